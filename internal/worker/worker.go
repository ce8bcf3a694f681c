package worker

import (
	"context"
	"log"

	"bookstore-service/internal/broker"
	"bookstore-service/internal/models"
)

// EventStore tracks which events have already been applied
type EventStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// Inventory mutates reserved stock and mirrors it into the cache
type Inventory interface {
	RestoreStock(ctx context.Context, bookID int64, quantity int) error
	SyncBooksToRedis(ctx context.Context, bookIDs []int64) error
}

// StockWorker consumes order, payment and import events. Reserved stock is
// committed on payment confirmation (the reservation simply stands) and
// released on payment failure; either way the Redis inventory mirror is
// refreshed. Every handler is idempotent via the processed_events table.
type StockWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        EventStore
	inventory    Inventory
}

// NewStockWorker creates a new stock worker
func NewStockWorker(
	consumer *broker.Consumer,
	store EventStore,
	inventory Inventory,
) *StockWorker {
	w := &StockWorker{
		consumer:  consumer,
		store:     store,
		inventory: inventory,
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(w.handleOrderCreated)
	eventHandler.OnPaymentConfirmed(w.handlePaymentConfirmed)
	eventHandler.OnPaymentFailed(w.handlePaymentFailed)
	eventHandler.OnImportCompleted(w.handleImportCompleted)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *StockWorker) Start(ctx context.Context) error {
	log.Println("Starting stock worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StockWorker) Stop() error {
	log.Println("Stopping stock worker...")
	return w.consumer.Close()
}

// handleOrderCreated refreshes cached inventory for the books reserved by
// a new order, once per event
func (w *StockWorker) handleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		return nil
	}

	if err := w.inventory.SyncBooksToRedis(ctx, itemBookIDs(event.Items)); err != nil {
		return err
	}

	return w.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

// handlePaymentConfirmed commits the reservation: the units deducted at
// placement stand, so only the cache mirror is refreshed
func (w *StockWorker) handlePaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		return nil
	}

	if err := w.inventory.SyncBooksToRedis(ctx, itemBookIDs(event.Items)); err != nil {
		return err
	}

	return w.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

// handlePaymentFailed releases the reservation: every unit deducted at
// placement is returned to stock, once per event
func (w *StockWorker) handlePaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		return nil
	}

	for _, item := range event.Items {
		if err := w.inventory.RestoreStock(ctx, item.BookID, item.Quantity); err != nil {
			return err
		}
	}

	if err := w.inventory.SyncBooksToRedis(ctx, itemBookIDs(event.Items)); err != nil {
		return err
	}

	return w.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

// handleImportCompleted mirrors newly imported books' inventory into
// Redis, once per event
func (w *StockWorker) handleImportCompleted(ctx context.Context, event *models.ImportCompletedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		return nil
	}

	if len(event.BookIDs) > 0 {
		if err := w.inventory.SyncBooksToRedis(ctx, event.BookIDs); err != nil {
			return err
		}
	}

	return w.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

func itemBookIDs(items []models.OrderItem) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.BookID)
	}
	return ids
}
