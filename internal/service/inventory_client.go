package service

import (
	"context"
	"time"

	"bookstore-service/internal/models"
	"bookstore-service/internal/redisclient"
	"bookstore-service/internal/store"
	"bookstore-service/internal/util"

	"go.uber.org/zap"
)

// InventoryClient mutates book stock, using Redis as the fast path with a
// transactional database fallback. The database row is the durable source
// of truth; Redis mirrors it for cheap reads.
type InventoryClient struct {
	store  *store.Store
	redis  *redisclient.Client
	logger *zap.Logger
}

// NewInventoryClient creates a new inventory client
func NewInventoryClient(store *store.Store, redis *redisclient.Client) *InventoryClient {
	return &InventoryClient{
		store:  store,
		redis:  redis,
		logger: util.GetLogger(),
	}
}

// DeductStock decrements a book's stock (clamped at zero) and increments
// its sales counter for a sold quantity. Stock is mutated exactly once per
// unit sold, at order placement.
func (ic *InventoryClient) DeductStock(ctx context.Context, bookID int64, quantity int) error {
	ctx, span := util.StartSpan(ctx, "InventoryClient.DeductStock")
	defer span.End()

	_, cached, err := ic.redis.DecrementStock(ctx, bookID, quantity)
	if err != nil {
		ic.logger.Warn("Redis stock decrement failed, falling back to DB",
			zap.Int64("book_id", bookID),
			zap.Error(err))
		_, dbErr := ic.store.DecrementStockTx(ctx, bookID, quantity)
		return dbErr
	}

	if !cached {
		_, err := ic.store.DecrementStockTx(ctx, bookID, quantity)
		return err
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := ic.store.DecrementStockTx(ctx, bookID, quantity); err != nil {
			ic.logger.Error("Failed to sync stock deduction to DB",
				zap.Int64("book_id", bookID),
				zap.Error(err))
		}
	}()

	return nil
}

// RestoreStock returns units to stock, reversing a sale (cancellation)
func (ic *InventoryClient) RestoreStock(ctx context.Context, bookID int64, quantity int) error {
	ctx, span := util.StartSpan(ctx, "InventoryClient.RestoreStock")
	defer span.End()

	if err := ic.redis.RestoreStock(ctx, bookID, quantity); err != nil {
		ic.logger.Error("Failed to restore stock in Redis",
			zap.Int64("book_id", bookID),
			zap.Error(err))
	}

	return ic.store.RestoreStockTx(ctx, bookID, quantity)
}

// SyncBooksToRedis refreshes the Redis inventory cache from the database
// for the given books
func (ic *InventoryClient) SyncBooksToRedis(ctx context.Context, bookIDs []int64) error {
	books, err := ic.store.GetBooksByIDs(ctx, bookIDs)
	if err != nil {
		return err
	}

	for _, book := range books {
		if err := ic.redis.InitInventory(ctx, book.ID, book.StockCount, book.SalesCount); err != nil {
			ic.logger.Error("Failed to init Redis inventory",
				zap.Int64("book_id", book.ID),
				zap.Error(err))
		}
	}
	return nil
}

// SyncInventoryToRedis mirrors the whole active catalog's inventory into
// Redis, run at startup
func (ic *InventoryClient) SyncInventoryToRedis(ctx context.Context) error {
	ic.logger.Info("Starting inventory sync to Redis")

	books, _, err := ic.store.GetBooks(ctx, models.BookFilter{})
	if err != nil {
		return err
	}

	for _, book := range books {
		if err := ic.redis.InitInventory(ctx, book.ID, book.StockCount, book.SalesCount); err != nil {
			ic.logger.Error("Failed to init Redis inventory",
				zap.Int64("book_id", book.ID),
				zap.Error(err))
		}
	}

	ic.logger.Info("Inventory sync completed", zap.Int("count", len(books)))
	return nil
}
