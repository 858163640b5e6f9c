package board

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/opencork/corkboard/ordering"
	"github.com/opencork/corkboard/store"
)

// CreateCardParams are the inputs for CreateCard. IdempotencyKey is
// optional; when present, a retried request with the same key and scope is
// answered with the originally created card instead of a second one.
type CreateCardParams struct {
	BoardID        string
	ColumnID       string
	Title          string
	Description    string
	IdempotencyKey string
}

// CreateCardResult carries the created (or replayed) card.
type CreateCardResult struct {
	Card *Card

	// Replayed is true when the idempotency key matched an earlier create
	// and Card is that earlier card.
	Replayed bool
}

// CreateCard validates and persists a new card under a live column of the
// given board, appending it to the column's cardsOrder.
func (s *Service) CreateCard(ctx context.Context, p CreateCardParams) (*CreateCardResult, error) {
	var res *reservation
	if p.IdempotencyKey != "" {
		var err error
		res, err = s.checkAndReserve(ctx, p.BoardID, p.ColumnID, p.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if res.duplicate {
			return &CreateCardResult{Card: res.card, Replayed: true}, nil
		}
	}

	card, err := s.createCard(ctx, p)
	if err != nil {
		if res != nil {
			s.release(ctx, res)
		}
		return nil, err
	}

	if res != nil {
		if err := s.commit(ctx, res, card); err != nil {
			return nil, err
		}
	}
	return &CreateCardResult{Card: card}, nil
}

// createCard is CreateCard minus the idempotency bookkeeping.
func (s *Service) createCard(ctx context.Context, p CreateCardParams) (*Card, error) {
	col, err := s.loadColumn(ctx, p.ColumnID)
	if err != nil {
		return nil, err
	}
	if col.BoardID != p.BoardID {
		return nil, &NotFoundError{Kind: store.KindColumn, ID: p.ColumnID}
	}
	title, err := requiredText("title", p.Title, maxCardTitleLen)
	if err != nil {
		return nil, err
	}
	description, err := optionalText("description", p.Description, maxDescriptionLen)
	if err != nil {
		return nil, err
	}

	card := &Card{
		ID:          uuid.NewString(),
		BoardID:     p.BoardID,
		ColumnID:    p.ColumnID,
		Title:       title,
		Description: description,
	}

	rec := &store.Record{Kind: store.KindCard, ID: card.ID, Parent: p.ColumnID}
	if rec.Data, err = encode(card); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}

	err = s.mutateCardsOrder(ctx, p.ColumnID, func(seq []string) ([]string, error) {
		return ordering.Insert(seq, card.ID, ordering.Append)
	})
	if err != nil {
		if delErr := s.store.Delete(ctx, store.KindCard, card.ID, rec.Version); delErr != nil {
			s.logger.Warn("failed to undo orphaned card", "cardId", card.ID, "error", delErr)
		}
		return nil, err
	}

	card.Version = rec.Version
	card.CreatedAt = rec.CreatedAt
	card.UpdatedAt = rec.UpdatedAt
	return card, nil
}

// CardUpdate is a partial update. Nil fields are left unchanged. BoardID and
// ColumnID are immutable here; a card changes columns only through MoveCard.
type CardUpdate struct {
	ID          *string
	BoardID     *string
	ColumnID    *string
	Title       *string
	Description *string
}

// UpdateCard applies a partial update and returns the updated card.
func (s *Service) UpdateCard(ctx context.Context, cardID string, upd CardUpdate) (*Card, error) {
	var updated *Card

	err := s.withRetry(ctx, "card.update", func() error {
		rec, err := s.store.Get(ctx, store.KindCard, cardID)
		if err != nil {
			return asNotFound(err, store.KindCard, cardID)
		}
		card, err := decodeCard(rec)
		if err != nil {
			return err
		}

		if upd.ID != nil && *upd.ID != card.ID {
			return &ImmutableFieldError{Field: "id"}
		}
		if upd.BoardID != nil && *upd.BoardID != card.BoardID {
			return &ImmutableFieldError{Field: "boardId"}
		}
		if upd.ColumnID != nil && *upd.ColumnID != card.ColumnID {
			return &ImmutableFieldError{Field: "columnId"}
		}
		if upd.Title != nil {
			if card.Title, err = requiredText("title", *upd.Title, maxCardTitleLen); err != nil {
				return err
			}
		}
		if upd.Description != nil {
			if card.Description, err = optionalText("description", *upd.Description, maxDescriptionLen); err != nil {
				return err
			}
		}

		if rec.Data, err = encode(card); err != nil {
			return err
		}
		if err := s.store.Update(ctx, rec, rec.Version); err != nil {
			return err
		}

		card.Version = rec.Version
		card.UpdatedAt = rec.UpdatedAt
		updated = card
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteCard destroys the card and drops it from its column's cardsOrder,
// card first so the list never references a missing card beyond this call.
func (s *Service) DeleteCard(ctx context.Context, cardID string) error {
	card, err := s.loadCard(ctx, cardID)
	if err != nil {
		return err
	}

	if err := s.deleteCardRecord(ctx, cardID); err != nil {
		return err
	}

	err = s.mutateCardsOrder(ctx, card.ColumnID, func(seq []string) ([]string, error) {
		return removeTolerant(seq, cardID)
	})
	if err != nil {
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			return nil // column already gone, cascade got there first
		}
		return err
	}
	return nil
}
