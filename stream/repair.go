// Package stream provides the DynamoDB Streams handler that restores the
// hierarchy invariants after a crashed cascade or move.
//
// The synchronous cascades in the board service delete children before
// touching parent ordering lists, so a crash can strand two things: card
// records whose column is gone, and ordering-list entries that reference a
// deleted child. This handler watches REMOVE events on the records table
// and finishes the job. Every step is a conditional write that tolerates
// already-repaired state, so Lambda redelivery is safe.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/opencork/corkboard/board"
	"github.com/opencork/corkboard/ordering"
	"github.com/opencork/corkboard/store"
)

const (
	maxAttempts    = 5
	initialBackoff = 2 * time.Millisecond
)

// Handler processes record-table stream events and repairs the hierarchy.
type Handler struct {
	store  store.Store
	logger *slog.Logger
}

// NewHandler creates a repair handler over the given store.
func NewHandler(st store.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:  st,
		logger: logger,
	}
}

// HandleRepair processes a batch of stream records. It is designed to be
// used as an AWS Lambda handler.
func (h *Handler) HandleRepair(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if record.EventName != "REMOVE" {
		return nil
	}

	kind := getStringAttr(record.Change.OldImage, "kind")
	id := getStringAttr(record.Change.OldImage, "id")
	parent := getStringAttr(record.Change.OldImage, "parent")
	if kind == "" || id == "" {
		return nil
	}

	h.logger.Info("processing removal",
		"kind", kind,
		"id", id,
		"parent", parent,
	)

	switch store.Kind(kind) {
	case store.KindBoard:
		return h.sweepBoard(ctx, id)
	case store.KindColumn:
		return h.sweepColumn(ctx, id, parent)
	case store.KindCard:
		return h.dropFromCardsOrder(ctx, parent, id)
	default:
		return nil
	}
}

// sweepBoard finishes a board cascade: any column still parented to the
// board is swept in turn (its own REMOVE event would arrive eventually, but
// doing it here keeps the repair prompt and bounded).
func (h *Handler) sweepBoard(ctx context.Context, boardID string) error {
	columns, err := h.store.ListByParent(ctx, store.KindColumn, boardID)
	if err != nil {
		return fmt.Errorf("list columns of %s: %w", boardID, err)
	}

	for _, rec := range columns {
		if err := h.deleteOrphans(ctx, rec.ID); err != nil {
			return err
		}
		if err := h.deleteRecord(ctx, store.KindColumn, rec.ID); err != nil {
			return err
		}
	}

	h.logger.Info("board sweep completed", "boardId", boardID, "columns", len(columns))
	return nil
}

// sweepColumn enforces the orphan rule for a removed column: any card whose
// column no longer exists is itself deleted, and the board's columnsOrder
// drops the column id if a crashed cascade left it behind.
func (h *Handler) sweepColumn(ctx context.Context, columnID, boardID string) error {
	if err := h.deleteOrphans(ctx, columnID); err != nil {
		return err
	}
	if boardID == "" {
		return nil
	}
	return h.dropFromColumnsOrder(ctx, boardID, columnID)
}

// deleteOrphans deletes every card still parented to a gone column.
func (h *Handler) deleteOrphans(ctx context.Context, columnID string) error {
	cards, err := h.store.ListByParent(ctx, store.KindCard, columnID)
	if err != nil {
		return fmt.Errorf("list cards of %s: %w", columnID, err)
	}

	for _, rec := range cards {
		if err := h.deleteRecord(ctx, store.KindCard, rec.ID); err != nil {
			return err
		}
	}

	if len(cards) > 0 {
		h.logger.Info("deleted orphaned cards", "columnId", columnID, "count", len(cards))
	}
	return nil
}

// deleteRecord conditionally deletes a record, tolerating records that are
// already gone.
func (h *Handler) deleteRecord(ctx context.Context, kind store.Kind, id string) error {
	return h.withRetry(ctx, func() error {
		rec, err := h.store.Get(ctx, kind, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		err = h.store.Delete(ctx, kind, id, rec.Version)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	})
}

// dropFromColumnsOrder removes a stale column id from a board's order list.
func (h *Handler) dropFromColumnsOrder(ctx context.Context, boardID, columnID string) error {
	return h.withRetry(ctx, func() error {
		rec, err := h.store.Get(ctx, store.KindBoard, boardID)
		if errors.Is(err, store.ErrNotFound) {
			return nil // board gone too, nothing to repair
		}
		if err != nil {
			return err
		}

		var b board.Board
		if err := json.Unmarshal(rec.Data, &b); err != nil {
			return fmt.Errorf("decode board %s: %w", boardID, err)
		}
		if !ordering.Contains(b.ColumnsOrder, columnID) {
			return nil
		}
		if b.ColumnsOrder, err = ordering.Remove(b.ColumnsOrder, columnID); err != nil {
			return err
		}

		if rec.Data, err = json.Marshal(b); err != nil {
			return err
		}
		return h.store.Update(ctx, rec, rec.Version)
	})
}

// dropFromCardsOrder removes a stale card id from a column's order list.
func (h *Handler) dropFromCardsOrder(ctx context.Context, columnID, cardID string) error {
	if columnID == "" {
		return nil
	}
	return h.withRetry(ctx, func() error {
		rec, err := h.store.Get(ctx, store.KindColumn, columnID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var c board.Column
		if err := json.Unmarshal(rec.Data, &c); err != nil {
			return fmt.Errorf("decode column %s: %w", columnID, err)
		}
		if !ordering.Contains(c.CardsOrder, cardID) {
			return nil
		}
		if c.CardsOrder, err = ordering.Remove(c.CardsOrder, cardID); err != nil {
			return err
		}

		if rec.Data, err = json.Marshal(c); err != nil {
			return err
		}
		return h.store.Update(ctx, rec, rec.Version)
	})
}

// withRetry re-runs fn on version races, backing off exponentially.
func (h *Handler) withRetry(ctx context.Context, fn func() error) error {
	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrConcurrentModification) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}
