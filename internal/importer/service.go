package importer

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"bookstore-service/internal/models"
	"bookstore-service/internal/util"
	"bookstore-service/internal/wooclient"

	"go.uber.org/zap"
)

// ProductSource fetches product data from the external catalog API
type ProductSource interface {
	TestConnection(ctx context.Context) (int, error)
	ListAllProducts(ctx context.Context) ([]wooclient.Product, error)
	GetProduct(ctx context.Context, id int64) (*wooclient.Product, error)
}

// Catalog persists imported books
type Catalog interface {
	FindImportMatch(ctx context.Context, wooID int64, isbn, title, author string) (*models.Book, error)
	CreateBook(ctx context.Context, book *models.Book) error
	UpdateBook(ctx context.Context, book *models.Book) error
}

// EventPublisher publishes import lifecycle events
type EventPublisher interface {
	PublishImportCompleted(ctx context.Context, event *models.ImportCompletedEvent) error
}

// Service drives the catalog import pipeline: connectivity probes, bulk
// preview fetches, and background import sessions with progress tracking.
type Service struct {
	registry  SessionRegistry
	catalog   Catalog
	publisher EventPublisher
	newSource func(creds wooclient.Credentials) ProductSource
	itemDelay time.Duration
	logger    *zap.Logger

	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewService creates an import service. publisher may be nil when event
// publishing is disabled.
func NewService(
	registry SessionRegistry,
	catalog Catalog,
	publisher EventPublisher,
	itemDelay time.Duration,
	maxPages int,
) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		registry:  registry,
		catalog:   catalog,
		publisher: publisher,
		newSource: func(creds wooclient.Credentials) ProductSource {
			return wooclient.NewClient(creds, maxPages)
		},
		itemDelay: itemDelay,
		logger:    util.GetLogger(),
		rootCtx:   ctx,
		cancel:    cancel,
	}
}

// Close cancels running import workers and waits for them to stop
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

// TestConnectionResult reports the outcome of a connectivity probe
type TestConnectionResult struct {
	TotalProducts int                 `json:"totalProducts"`
	StoreInfo     wooclient.StoreInfo `json:"storeInfo"`
}

// TestConnection probes the external store with the supplied credentials.
// Nothing is persisted.
func (s *Service) TestConnection(ctx context.Context, creds wooclient.Credentials) (*TestConnectionResult, error) {
	ctx, span := util.StartSpan(ctx, "ImportService.TestConnection")
	defer span.End()

	total, err := s.newSource(creds).TestConnection(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("WooCommerce connection successful",
		zap.String("site_url", creds.SiteURL),
		zap.Int("total_products", total))

	return &TestConnectionResult{
		TotalProducts: total,
		StoreInfo: wooclient.StoreInfo{
			URL:    creds.SiteURL,
			Status: "connected",
		},
	}, nil
}

// FetchProducts pulls the full catalog from the external store and reduces
// it to preview records. The fetch is synchronous and fully buffered.
func (s *Service) FetchProducts(ctx context.Context, creds wooclient.Credentials) ([]wooclient.ProductRef, error) {
	ctx, span := util.StartSpan(ctx, "ImportService.FetchProducts")
	defer span.End()

	products, err := s.newSource(creds).ListAllProducts(ctx)
	if err != nil {
		return nil, err
	}

	refs := make([]wooclient.ProductRef, 0, len(products))
	for i := range products {
		refs = append(refs, products[i].PreviewRef())
	}

	s.logger.Info("Fetched products from WooCommerce", zap.Int("count", len(refs)))
	return refs, nil
}

// StartImport allocates a session for the given product references,
// registers it, and launches the background worker. The session id is
// returned immediately; the worker is not awaited.
func (s *Service) StartImport(ctx context.Context, creds wooclient.Credentials, refs []wooclient.ProductRef, userID string) (string, error) {
	ctx, span := util.StartSpan(ctx, "ImportService.StartImport")
	defer span.End()

	items := make([]models.ImportItem, len(refs))
	for i, ref := range refs {
		items[i] = models.ImportItem{
			ExternalID: ref.ID,
			Name:       ref.Name,
			Status:     models.ImportItemPending,
		}
	}

	session := &models.ImportSession{
		ID:        generateImportID(),
		UserID:    userID,
		Total:     len(items),
		Items:     items,
		StartedAt: time.Now(),
	}

	if err := s.registry.Create(ctx, session); err != nil {
		return "", fmt.Errorf("failed to register import session: %w", err)
	}

	util.ImportSessionsStartedTotal.Inc()
	s.logger.Info("Import session started",
		zap.String("import_id", session.ID),
		zap.Int("total", session.Total))

	source := s.newSource(creds)
	s.wg.Add(1)
	go s.runWorker(session, source, userID)

	return session.ID, nil
}

// Progress returns the progress view for a session, or (nil, nil) when the
// session is unknown or expired.
func (s *Service) Progress(ctx context.Context, importID string) (*models.ImportProgress, error) {
	session, err := s.registry.Get(ctx, importID)
	if err != nil {
		return nil, fmt.Errorf("failed to get import progress: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	return &models.ImportProgress{
		Progress: ProgressPercent(session.Processed, session.Total),
		Products: session.Items,
		Stats: models.ImportStats{
			Total:   session.Total,
			Success: session.Succeeded,
			Errors:  session.Failed,
			Pending: session.Total - session.Processed,
		},
	}, nil
}

// ProgressPercent computes rounded percent-complete. A session with no
// items is complete by definition.
func ProgressPercent(processed, total int) int {
	if total <= 0 {
		return 100
	}
	return int(float64(processed)/float64(total)*100 + 0.5)
}

const importIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func generateImportID() string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = importIDAlphabet[rand.Intn(len(importIDAlphabet))]
	}
	return fmt.Sprintf("import_%d_%s", time.Now().UnixMilli(), suffix)
}
