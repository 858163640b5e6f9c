package board

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/opencork/corkboard/ordering"
	"github.com/opencork/corkboard/store"
)

// CreateColumn validates and persists a new empty column under a live board
// and appends it to the board's columnsOrder. The column record is written
// first; the board's ordering list is the last word and is retried on
// version races.
func (s *Service) CreateColumn(ctx context.Context, boardID, name string) (*Column, error) {
	if _, err := s.loadBoard(ctx, boardID); err != nil {
		return nil, err
	}
	name, err := requiredText("name", name, maxColumnNameLen)
	if err != nil {
		return nil, err
	}

	col := &Column{
		ID:         uuid.NewString(),
		BoardID:    boardID,
		Name:       name,
		CardsOrder: []string{},
	}

	rec := &store.Record{Kind: store.KindColumn, ID: col.ID, Parent: boardID}
	if rec.Data, err = encode(col); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}

	err = s.mutateColumnsOrder(ctx, boardID, func(seq []string) ([]string, error) {
		return ordering.Insert(seq, col.ID, ordering.Append)
	})
	if err != nil {
		// The column record would otherwise linger as an orphan; undo it
		// before surfacing the failure. The reconciliation sweep covers the
		// case where even the undo is lost.
		if delErr := s.store.Delete(ctx, store.KindColumn, col.ID, rec.Version); delErr != nil {
			s.logger.Warn("failed to undo orphaned column", "columnId", col.ID, "error", delErr)
		}
		return nil, err
	}

	col.Version = rec.Version
	col.CreatedAt = rec.CreatedAt
	col.UpdatedAt = rec.UpdatedAt
	return col, nil
}

// ColumnUpdate is a partial update. Nil fields are left unchanged;
// CardsOrder, when present, must be an exact permutation of the column's
// live cards.
type ColumnUpdate struct {
	ID         *string
	BoardID    *string
	Name       *string
	CardsOrder []string
}

// UpdateColumn applies a partial update and returns the updated column.
func (s *Service) UpdateColumn(ctx context.Context, columnID string, upd ColumnUpdate) (*Column, error) {
	var updated *Column

	err := s.withRetry(ctx, "column.update", func() error {
		rec, err := s.store.Get(ctx, store.KindColumn, columnID)
		if err != nil {
			return asNotFound(err, store.KindColumn, columnID)
		}
		col, err := decodeColumn(rec)
		if err != nil {
			return err
		}

		if upd.ID != nil && *upd.ID != col.ID {
			return &ImmutableFieldError{Field: "id"}
		}
		if upd.BoardID != nil && *upd.BoardID != col.BoardID {
			return &ImmutableFieldError{Field: "boardId"}
		}
		if upd.Name != nil {
			if col.Name, err = requiredText("name", *upd.Name, maxColumnNameLen); err != nil {
				return err
			}
		}
		if upd.CardsOrder != nil {
			if col.CardsOrder, err = ordering.Reorder(col.CardsOrder, upd.CardsOrder); err != nil {
				return err
			}
		}

		if rec.Data, err = encode(col); err != nil {
			return err
		}
		if err := s.store.Update(ctx, rec, rec.Version); err != nil {
			return err
		}

		col.Version = rec.Version
		col.UpdatedAt = rec.UpdatedAt
		updated = col
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteColumn destroys the column and every card it lists, then drops it
// from the board's columnsOrder. Cards go before the column, the column
// before the board's list, so no ordering list references a missing entity
// beyond the cascade's own execution window.
func (s *Service) DeleteColumn(ctx context.Context, columnID string) error {
	col, err := s.loadColumn(ctx, columnID)
	if err != nil {
		return err
	}

	for _, cardID := range col.CardsOrder {
		if err := s.deleteCardRecord(ctx, cardID); err != nil {
			return err
		}
	}

	err = s.withRetry(ctx, "column.delete", func() error {
		rec, err := s.store.Get(ctx, store.KindColumn, columnID)
		if err != nil {
			return asNotFound(err, store.KindColumn, columnID)
		}
		return s.store.Delete(ctx, store.KindColumn, columnID, rec.Version)
	})
	if err != nil {
		var notFound *NotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}

	err = s.mutateColumnsOrder(ctx, col.BoardID, func(seq []string) ([]string, error) {
		return removeTolerant(seq, columnID)
	})
	if err != nil {
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			return nil // board already gone, nothing left to repair
		}
		return err
	}

	s.logger.Info("column deleted", "columnId", columnID, "boardId", col.BoardID, "cards", len(col.CardsOrder))
	return nil
}

// deleteCardRecord conditionally deletes a card entity, tolerating cards
// that are already gone.
func (s *Service) deleteCardRecord(ctx context.Context, cardID string) error {
	err := s.withRetry(ctx, "card.delete", func() error {
		rec, err := s.store.Get(ctx, store.KindCard, cardID)
		if err != nil {
			return asNotFound(err, store.KindCard, cardID)
		}
		return s.store.Delete(ctx, store.KindCard, cardID, rec.Version)
	})
	if err != nil {
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
	}
	return err
}
