package importer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"bookstore-service/internal/models"
	"bookstore-service/internal/wooclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	products map[int64]*wooclient.Product
	failIDs  map[int64]bool
	total    int
	probeErr error
}

func (f *fakeSource) TestConnection(context.Context) (int, error) {
	if f.probeErr != nil {
		return 0, f.probeErr
	}
	return f.total, nil
}

func (f *fakeSource) ListAllProducts(context.Context) ([]wooclient.Product, error) {
	out := make([]wooclient.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeSource) GetProduct(_ context.Context, id int64) (*wooclient.Product, error) {
	if f.failIDs[id] {
		return nil, fmt.Errorf("product %d unavailable", id)
	}
	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d not found", id)
	}
	return p, nil
}

type fakeCatalog struct {
	mu       sync.Mutex
	existing map[int64]*models.Book
	created  []*models.Book
	updated  []*models.Book
	nextID   int64
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{existing: make(map[int64]*models.Book), nextID: 100}
}

func (f *fakeCatalog) FindImportMatch(_ context.Context, wooID int64, _, _, _ string) (*models.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.existing[wooID]; ok {
		return b, nil
	}
	return nil, nil
}

func (f *fakeCatalog) CreateBook(_ context.Context, book *models.Book) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	book.ID = f.nextID
	f.created = append(f.created, book)
	return nil
}

func (f *fakeCatalog) UpdateBook(_ context.Context, book *models.Book) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, book)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*models.ImportCompletedEvent
}

func (f *fakePublisher) PublishImportCompleted(_ context.Context, event *models.ImportCompletedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func newTestService(source *fakeSource, catalog *fakeCatalog, publisher *fakePublisher) *Service {
	svc := NewService(NewMemoryRegistry(time.Hour), catalog, publisher, 0, 50)
	svc.newSource = func(wooclient.Credentials) ProductSource { return source }
	return svc
}

func productFor(id int64, name string) *wooclient.Product {
	return &wooclient.Product{
		ID:           id,
		Name:         name,
		Status:       "publish",
		RegularPrice: "200",
		StockStatus:  "instock",
		Categories:   []wooclient.Category{{Name: "Poetry"}},
	}
}

func waitForCompletion(t *testing.T, svc *Service, importID string, total int) *models.ImportProgress {
	t.Helper()
	var progress *models.ImportProgress
	require.Eventually(t, func() bool {
		p, err := svc.Progress(context.Background(), importID)
		require.NoError(t, err)
		if p == nil || p.Stats.Pending > 0 {
			return false
		}
		progress = p
		return true
	}, 5*time.Second, 5*time.Millisecond)
	require.Equal(t, total, progress.Stats.Total)
	return progress
}

func TestStartImportProcessesAllItems(t *testing.T) {
	source := &fakeSource{
		products: map[int64]*wooclient.Product{
			1: productFor(1, "Book One"),
			2: productFor(2, "Book Two"),
			3: productFor(3, "Book Three"),
		},
	}
	catalog := newFakeCatalog()
	publisher := &fakePublisher{}
	svc := newTestService(source, catalog, publisher)
	defer svc.Close()

	refs := []wooclient.ProductRef{
		{ID: 1, Name: "Book One"},
		{ID: 2, Name: "Book Two"},
		{ID: 3, Name: "Book Three"},
	}

	importID, err := svc.StartImport(context.Background(), wooclient.Credentials{}, refs, "user-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(importID, "import_"))

	progress := waitForCompletion(t, svc, importID, 3)

	assert.Equal(t, 100, progress.Progress)
	assert.Equal(t, 3, progress.Stats.Success)
	assert.Equal(t, 0, progress.Stats.Errors)
	for _, item := range progress.Products {
		assert.Equal(t, models.ImportItemSuccess, item.Status)
	}
	assert.Len(t, catalog.created, 3)

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, importID, event.ImportID)
	assert.Equal(t, 3, event.Succeeded)
	assert.Equal(t, 0, event.Failed)
	assert.Len(t, event.BookIDs, 3)
}

func TestStartImportFailureDoesNotAbortSession(t *testing.T) {
	source := &fakeSource{
		products: map[int64]*wooclient.Product{
			1: productFor(1, "Book One"),
			3: productFor(3, "Book Three"),
		},
		failIDs: map[int64]bool{2: true},
	}
	catalog := newFakeCatalog()
	svc := newTestService(source, catalog, &fakePublisher{})
	defer svc.Close()

	refs := []wooclient.ProductRef{
		{ID: 1, Name: "Book One"},
		{ID: 2, Name: "Book Two"},
		{ID: 3, Name: "Book Three"},
	}

	importID, err := svc.StartImport(context.Background(), wooclient.Credentials{}, refs, "user-1")
	require.NoError(t, err)

	progress := waitForCompletion(t, svc, importID, 3)

	assert.Equal(t, 2, progress.Stats.Success)
	assert.Equal(t, 1, progress.Stats.Errors)
	assert.Equal(t, progress.Stats.Total, progress.Stats.Success+progress.Stats.Errors)

	assert.Equal(t, models.ImportItemSuccess, progress.Products[0].Status)
	assert.Equal(t, models.ImportItemError, progress.Products[1].Status)
	assert.NotEmpty(t, progress.Products[1].Error)
	assert.Equal(t, models.ImportItemSuccess, progress.Products[2].Status)
}

func TestStartImportUpdatesExistingBooks(t *testing.T) {
	source := &fakeSource{
		products: map[int64]*wooclient.Product{
			1: productFor(1, "Book One"),
			2: productFor(2, "Book Two"),
		},
	}
	catalog := newFakeCatalog()
	catalog.existing[1] = &models.Book{ID: 55, Title: "Book One", WooCommerceID: 1}
	svc := newTestService(source, catalog, &fakePublisher{})
	defer svc.Close()

	refs := []wooclient.ProductRef{
		{ID: 1, Name: "Book One"},
		{ID: 2, Name: "Book Two"},
	}

	importID, err := svc.StartImport(context.Background(), wooclient.Credentials{}, refs, "user-1")
	require.NoError(t, err)

	waitForCompletion(t, svc, importID, 2)

	require.Len(t, catalog.updated, 1)
	assert.Equal(t, int64(55), catalog.updated[0].ID)
	require.Len(t, catalog.created, 1)
	assert.Equal(t, int64(2), catalog.created[0].WooCommerceID)
}

func TestProgressUnknownSession(t *testing.T) {
	svc := newTestService(&fakeSource{}, newFakeCatalog(), &fakePublisher{})
	defer svc.Close()

	progress, err := svc.Progress(context.Background(), "import_unknown")
	require.NoError(t, err)
	assert.Nil(t, progress)
}

func TestServiceTestConnection(t *testing.T) {
	source := &fakeSource{total: 42}
	svc := newTestService(source, newFakeCatalog(), &fakePublisher{})
	defer svc.Close()

	result, err := svc.TestConnection(context.Background(), wooclient.Credentials{
		SiteURL: "https://shop.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result.TotalProducts)
	assert.Equal(t, "https://shop.example.com", result.StoreInfo.URL)
	assert.Equal(t, "connected", result.StoreInfo.Status)
}

func TestServiceTestConnectionError(t *testing.T) {
	source := &fakeSource{probeErr: fmt.Errorf("Invalid API credentials")}
	svc := newTestService(source, newFakeCatalog(), &fakePublisher{})
	defer svc.Close()

	_, err := svc.TestConnection(context.Background(), wooclient.Credentials{})
	assert.Error(t, err)
}

func TestFetchProducts(t *testing.T) {
	source := &fakeSource{
		products: map[int64]*wooclient.Product{
			1: productFor(1, "Book One"),
		},
	}
	svc := newTestService(source, newFakeCatalog(), &fakePublisher{})
	defer svc.Close()

	refs, err := svc.FetchProducts(context.Background(), wooclient.Credentials{})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, int64(1), refs[0].ID)
	assert.Equal(t, "200", refs[0].Price)
}

func TestGenerateImportID(t *testing.T) {
	a := generateImportID()
	b := generateImportID()

	assert.True(t, strings.HasPrefix(a, "import_"))
	assert.NotEqual(t, a, b)
	assert.Len(t, strings.Split(a, "_"), 3)
}
