package importer

import (
	"context"
	"fmt"
	"time"

	"bookstore-service/internal/models"
	"bookstore-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// runWorker processes a session's items strictly in input order. Each item
// moves pending -> importing -> success|error exactly once; one item's
// failure never aborts the session. A fixed delay between items throttles
// calls against the external API.
func (s *Service) runWorker(session *models.ImportSession, source ProductSource, userID string) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Import worker panicked",
				zap.String("import_id", session.ID),
				zap.Any("panic", r))
			// Surface the crash in the session so progress polling sees
			// a finished session, not one stuck mid-flight.
			for i := range session.Items {
				item := &session.Items[i]
				if item.Status == models.ImportItemPending || item.Status == models.ImportItemImporting {
					item.Status = models.ImportItemError
					item.Error = "internal error"
					session.Failed++
					session.Processed++
				}
			}
			s.saveProgress(s.rootCtx, session)
		}
	}()

	ctx := s.rootCtx
	bookIDs := make([]int64, 0, len(session.Items))

	for i := range session.Items {
		if ctx.Err() != nil {
			s.logger.Warn("Import worker stopped before completion",
				zap.String("import_id", session.ID),
				zap.Int("processed", session.Processed))
			return
		}

		item := &session.Items[i]
		item.Status = models.ImportItemImporting
		s.saveProgress(ctx, session)

		book, err := s.importOne(ctx, source, item.ExternalID, userID)
		if err != nil {
			item.Status = models.ImportItemError
			item.Error = err.Error()
			session.Failed++
			util.ImportItemsFailedTotal.Inc()
			s.logger.Warn("Failed to import product",
				zap.String("import_id", session.ID),
				zap.Int64("product_id", item.ExternalID),
				zap.Error(err))
		} else {
			item.Status = models.ImportItemSuccess
			session.Succeeded++
			bookIDs = append(bookIDs, book.ID)
			util.BooksImportedTotal.Inc()
		}

		session.Processed++
		s.saveProgress(ctx, session)

		select {
		case <-time.After(s.itemDelay):
		case <-ctx.Done():
		}
	}

	s.logger.Info("Import session completed",
		zap.String("import_id", session.ID),
		zap.Int("succeeded", session.Succeeded),
		zap.Int("failed", session.Failed))

	if s.publisher != nil {
		event := &models.ImportCompletedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeImportCompleted,
				Timestamp: time.Now(),
			},
			ImportID:  session.ID,
			Total:     session.Total,
			Succeeded: session.Succeeded,
			Failed:    session.Failed,
			BookIDs:   bookIDs,
		}
		if err := s.publisher.PublishImportCompleted(ctx, event); err != nil {
			s.logger.Error("Failed to publish ImportCompleted event", zap.Error(err))
		}
	}
}

// importOne fetches the full product record, transforms it, and upserts the
// catalog entry. A failed existence check falls back to an unconditional
// insert rather than failing the item.
func (s *Service) importOne(ctx context.Context, source ProductSource, productID int64, userID string) (*models.Book, error) {
	product, err := source.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product %d: %w", productID, err)
	}

	book := Transform(product, userID, time.Now())

	existing, err := s.catalog.FindImportMatch(ctx, product.ID, book.ISBN, book.Title, book.Author)
	if err != nil {
		s.logger.Warn("Existence check failed, inserting unconditionally",
			zap.Int64("product_id", productID),
			zap.Error(err))
		if err := s.catalog.CreateBook(ctx, book); err != nil {
			return nil, err
		}
		return book, nil
	}

	if existing != nil {
		book.ID = existing.ID
		if err := s.catalog.UpdateBook(ctx, book); err != nil {
			return nil, err
		}
		return book, nil
	}

	if err := s.catalog.CreateBook(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

func (s *Service) saveProgress(ctx context.Context, session *models.ImportSession) {
	if err := s.registry.Update(ctx, session); err != nil {
		s.logger.Error("Failed to update import session",
			zap.String("import_id", session.ID),
			zap.Error(err))
	}
}
