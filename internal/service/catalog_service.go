package service

import (
	"context"
	"fmt"

	"bookstore-service/internal/models"
	"bookstore-service/internal/store"
	"bookstore-service/internal/util"

	"go.uber.org/zap"
)

// CatalogService handles book catalog queries and administration
type CatalogService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store *store.Store) *CatalogService {
	return &CatalogService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// ListBooks returns active books matching the filter, newest first
func (cs *CatalogService) ListBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, int, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListBooks")
	defer span.End()

	return cs.store.GetBooks(ctx, filter)
}

// SearchBooks text-searches active books by title
func (cs *CatalogService) SearchBooks(ctx context.Context, query string, limit int) ([]models.Book, int, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.SearchBooks")
	defer span.End()

	return cs.store.GetBooks(ctx, models.BookFilter{Search: query, Limit: limit})
}

// GetFeatured returns featured books, newest first
func (cs *CatalogService) GetFeatured(ctx context.Context, limit int) ([]models.Book, error) {
	if limit <= 0 {
		limit = 10
	}
	books, _, err := cs.store.GetBooks(ctx, models.BookFilter{Featured: true, Limit: limit})
	return books, err
}

// GetBestsellers returns bestsellers sorted by descending sales count
func (cs *CatalogService) GetBestsellers(ctx context.Context, limit int) ([]models.Book, error) {
	if limit <= 0 {
		limit = 10
	}
	return cs.store.GetBestsellers(ctx, limit)
}

// GetByCategory returns active books in a category
func (cs *CatalogService) GetByCategory(ctx context.Context, category string, limit, offset int) ([]models.Book, int, error) {
	if limit <= 0 {
		limit = 20
	}
	return cs.store.GetBooks(ctx, models.BookFilter{Category: category, Limit: limit, Offset: offset})
}

// GetBook retrieves one book by id
func (cs *CatalogService) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	return cs.store.GetBookByID(ctx, id)
}

// CreateBook adds a new catalog entry with fresh marketing counters
func (cs *CatalogService) CreateBook(ctx context.Context, book *models.Book) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateBook")
	defer span.End()

	book.IsActive = true
	book.Rating = 0
	book.ReviewCount = 0
	book.SalesCount = 0

	if err := cs.store.CreateBook(ctx, book); err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}

	cs.logger.Info("Book created",
		zap.Int64("book_id", book.ID),
		zap.String("title", book.Title))
	return nil
}

// UpdateBook updates a catalog entry
func (cs *CatalogService) UpdateBook(ctx context.Context, book *models.Book) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateBook")
	defer span.End()

	return cs.store.UpdateBook(ctx, book)
}

// DeleteBook soft-deletes a catalog entry; the row survives for orders
// that reference it
func (cs *CatalogService) DeleteBook(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteBook")
	defer span.End()

	if err := cs.store.SoftDeleteBook(ctx, id); err != nil {
		return err
	}

	cs.logger.Info("Book deleted", zap.Int64("book_id", id))
	return nil
}
