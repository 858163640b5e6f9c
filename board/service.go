package board

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opencork/corkboard/internal/keys"
	"github.com/opencork/corkboard/ordering"
	"github.com/opencork/corkboard/store"
)

// Config holds tuning for the service.
type Config struct {
	// MaxRetries bounds the internal retry loop for version races on
	// ordering-list writes.
	// Default: 5
	MaxRetries int

	// RetryBackoff is the initial backoff between retries; it doubles on
	// every further attempt.
	// Default: 2ms
	RetryBackoff time.Duration

	// IdempotencyRetention is how long card-creation idempotency keys are
	// remembered. After the window a key may be reused.
	// Default: 24h
	IdempotencyRetention time.Duration
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		MaxRetries:           5,
		RetryBackoff:         2 * time.Millisecond,
		IdempotencyRetention: 24 * time.Hour,
	}
}

// validate fills in defaults for zero values.
func (c *Config) validate() {
	if c.MaxRetries < 1 {
		c.MaxRetries = 5
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Millisecond
	}
	if c.IdempotencyRetention <= 0 {
		c.IdempotencyRetention = 24 * time.Hour
	}
}

// Service owns the board/column/card hierarchy: creation, partial updates,
// cascading deletion, reordering, cross-column moves, and idempotent card
// creation. All cross-record mutations are built from the store's
// conditional single-key writes in child-before-parent-list order.
type Service struct {
	store  store.Store
	config Config
	logger *slog.Logger
}

// NewService creates a Service on top of the given store.
func NewService(st store.Store, config Config, logger *slog.Logger) *Service {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		config: config,
		logger: logger,
	}
}

// --- loaders ---

func (s *Service) loadBoard(ctx context.Context, id string) (*Board, error) {
	rec, err := s.store.Get(ctx, store.KindBoard, id)
	if err != nil {
		return nil, asNotFound(err, store.KindBoard, id)
	}
	return decodeBoard(rec)
}

func (s *Service) loadColumn(ctx context.Context, id string) (*Column, error) {
	rec, err := s.store.Get(ctx, store.KindColumn, id)
	if err != nil {
		return nil, asNotFound(err, store.KindColumn, id)
	}
	return decodeColumn(rec)
}

func (s *Service) loadCard(ctx context.Context, id string) (*Card, error) {
	rec, err := s.store.Get(ctx, store.KindCard, id)
	if err != nil {
		return nil, asNotFound(err, store.KindCard, id)
	}
	return decodeCard(rec)
}

// --- ordering-list mutation ---

// mutateColumnsOrder applies fn to the board's columnsOrder under the
// conditional-write retry discipline. fn sees a fresh snapshot on every
// attempt.
func (s *Service) mutateColumnsOrder(ctx context.Context, boardID string, fn func(seq []string) ([]string, error)) error {
	return s.withRetry(ctx, "board.columnsOrder", func() error {
		rec, err := s.store.Get(ctx, store.KindBoard, boardID)
		if err != nil {
			return asNotFound(err, store.KindBoard, boardID)
		}
		b, err := decodeBoard(rec)
		if err != nil {
			return err
		}

		next, err := fn(b.ColumnsOrder)
		if err != nil {
			return err
		}
		b.ColumnsOrder = next

		rec.Data, err = encode(b)
		if err != nil {
			return err
		}
		return s.store.Update(ctx, rec, rec.Version)
	})
}

// mutateCardsOrder is mutateColumnsOrder for a column's cardsOrder.
func (s *Service) mutateCardsOrder(ctx context.Context, columnID string, fn func(seq []string) ([]string, error)) error {
	return s.withRetry(ctx, "column.cardsOrder", func() error {
		rec, err := s.store.Get(ctx, store.KindColumn, columnID)
		if err != nil {
			return asNotFound(err, store.KindColumn, columnID)
		}
		c, err := decodeColumn(rec)
		if err != nil {
			return err
		}

		next, err := fn(c.CardsOrder)
		if err != nil {
			return err
		}
		c.CardsOrder = next

		rec.Data, err = encode(c)
		if err != nil {
			return err
		}
		return s.store.Update(ctx, rec, rec.Version)
	})
}

// removeTolerant wraps ordering.Remove treating an already-absent id as
// applied, which makes list removals safe to retry.
func removeTolerant(seq []string, id string) ([]string, error) {
	next, err := ordering.Remove(seq, id)
	if errors.Is(err, ordering.ErrAbsent) {
		return seq, nil
	}
	return next, err
}

// --- board operations ---

// CreateBoardParams are the inputs for CreateBoard.
type CreateBoardParams struct {
	Name        string
	Description string
	Owner       string
}

// CreateBoard validates and persists a new empty board.
func (s *Service) CreateBoard(ctx context.Context, p CreateBoardParams) (*Board, error) {
	name, err := requiredText("name", p.Name, maxBoardNameLen)
	if err != nil {
		return nil, err
	}
	description, err := optionalText("description", p.Description, maxDescriptionLen)
	if err != nil {
		return nil, err
	}
	if p.Owner == "" {
		return nil, &ValidationError{Field: "owner", Reason: "must not be empty"}
	}

	b := &Board{
		ID:           uuid.NewString(),
		Name:         name,
		Description:  description,
		Owner:        p.Owner,
		ColumnsOrder: []string{},
	}

	rec := &store.Record{Kind: store.KindBoard, ID: b.ID, Parent: keys.OwnerScope(b.Owner)}
	if rec.Data, err = encode(b); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}

	b.Version = rec.Version
	b.CreatedAt = rec.CreatedAt
	b.UpdatedAt = rec.UpdatedAt
	return b, nil
}

// BoardUpdate is a partial update. Nil fields are left unchanged;
// ColumnsOrder, when present, must be an exact permutation of the board's
// live columns.
type BoardUpdate struct {
	ID           *string
	Owner        *string
	Name         *string
	Description  *string
	ColumnsOrder []string
}

// UpdateBoard applies a partial update under the conditional-write retry
// discipline and returns the updated board.
func (s *Service) UpdateBoard(ctx context.Context, boardID string, upd BoardUpdate) (*Board, error) {
	var updated *Board

	err := s.withRetry(ctx, "board.update", func() error {
		rec, err := s.store.Get(ctx, store.KindBoard, boardID)
		if err != nil {
			return asNotFound(err, store.KindBoard, boardID)
		}
		b, err := decodeBoard(rec)
		if err != nil {
			return err
		}

		if upd.ID != nil && *upd.ID != b.ID {
			return &ImmutableFieldError{Field: "id"}
		}
		if upd.Owner != nil && *upd.Owner != b.Owner {
			return &ImmutableFieldError{Field: "owner"}
		}
		if upd.Name != nil {
			if b.Name, err = requiredText("name", *upd.Name, maxBoardNameLen); err != nil {
				return err
			}
		}
		if upd.Description != nil {
			if b.Description, err = optionalText("description", *upd.Description, maxDescriptionLen); err != nil {
				return err
			}
		}
		if upd.ColumnsOrder != nil {
			if b.ColumnsOrder, err = ordering.Reorder(b.ColumnsOrder, upd.ColumnsOrder); err != nil {
				return err
			}
		}

		if rec.Data, err = encode(b); err != nil {
			return err
		}
		if err := s.store.Update(ctx, rec, rec.Version); err != nil {
			return err
		}

		b.Version = rec.Version
		b.UpdatedAt = rec.UpdatedAt
		updated = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteBoard destroys the board and, transitively, every descendant column
// and card. Children go first so that every intermediate state is a valid
// (if shrinking) hierarchy.
func (s *Service) DeleteBoard(ctx context.Context, boardID string) error {
	b, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return err
	}

	for _, columnID := range b.ColumnsOrder {
		if err := s.DeleteColumn(ctx, columnID); err != nil {
			var notFound *NotFoundError
			if errors.As(err, &notFound) {
				continue // concurrent delete finished this one for us
			}
			return err
		}
	}

	err = s.withRetry(ctx, "board.delete", func() error {
		rec, err := s.store.Get(ctx, store.KindBoard, boardID)
		if err != nil {
			return asNotFound(err, store.KindBoard, boardID)
		}
		return s.store.Delete(ctx, store.KindBoard, boardID, rec.Version)
	})
	if err != nil {
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}

	s.logger.Info("board deleted", "boardId", boardID, "columns", len(b.ColumnsOrder))
	return nil
}

// GetBoard returns the fully assembled board view for its owner. Ordering
// lists drive the traversal; a listed child that no longer exists, or a card
// whose own columnId disagrees with the listing column, is stale and
// skipped (the card record is ground truth).
func (s *Service) GetBoard(ctx context.Context, boardID, caller string) (*BoardView, error) {
	b, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if b.Owner != caller {
		return nil, &NotFoundError{Kind: store.KindBoard, ID: boardID}
	}

	view := &BoardView{Board: b, Columns: []*ColumnView{}}
	for _, columnID := range b.ColumnsOrder {
		col, err := s.loadColumn(ctx, columnID)
		if err != nil {
			var notFound *NotFoundError
			if errors.As(err, &notFound) {
				continue
			}
			return nil, err
		}

		cv := &ColumnView{Column: col, Cards: []*Card{}}
		for _, cardID := range col.CardsOrder {
			card, err := s.loadCard(ctx, cardID)
			if err != nil {
				var notFound *NotFoundError
				if errors.As(err, &notFound) {
					continue
				}
				return nil, err
			}
			if card.ColumnID != col.ID {
				continue
			}
			cv.Cards = append(cv.Cards, card)
		}
		view.Columns = append(view.Columns, cv)
	}

	return view, nil
}

// ListBoards returns the boards owned by the given user.
func (s *Service) ListBoards(ctx context.Context, owner string) ([]*Board, error) {
	recs, err := s.store.ListByParent(ctx, store.KindBoard, keys.OwnerScope(owner))
	if err != nil {
		return nil, err
	}

	boards := make([]*Board, 0, len(recs))
	for _, rec := range recs {
		b, err := decodeBoard(rec)
		if err != nil {
			return nil, err
		}
		boards = append(boards, b)
	}
	return boards, nil
}
