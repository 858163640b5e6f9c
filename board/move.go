package board

import (
	"context"

	"github.com/opencork/corkboard/ordering"
	"github.com/opencork/corkboard/store"
)

// MoveCard repositions a card, either within its column or into another
// column of the same board. toIndex is clamped to the destination list;
// pass ordering.Append to place the card at the end.
//
// A cross-column move is three conditional writes committed in a fixed
// order: destination-list insert, source-list removal, then the card's
// columnId. A crash between the first two leaves the card id transiently in
// both lists; readers trust the card's own columnId and the stale source
// entry is dropped by the next write to that list (or the sweep).
func (s *Service) MoveCard(ctx context.Context, cardID, toColumnID string, toIndex int) (*Card, error) {
	card, err := s.loadCard(ctx, cardID)
	if err != nil {
		return nil, err
	}

	dest, err := s.loadColumn(ctx, toColumnID)
	if err != nil {
		return nil, err
	}
	if dest.BoardID != card.BoardID {
		return nil, ErrCrossBoardMove
	}

	if toColumnID == card.ColumnID {
		return card, s.repositionWithin(ctx, card, toIndex)
	}

	// Destination list first: once the id is in the destination order the
	// remaining steps are pure cleanup and safe to redo.
	err = s.mutateCardsOrder(ctx, toColumnID, func(seq []string) ([]string, error) {
		if ordering.Contains(seq, cardID) {
			return seq, nil // an earlier attempt already inserted it
		}
		return ordering.Insert(seq, cardID, toIndex)
	})
	if err != nil {
		return nil, err
	}

	err = s.mutateCardsOrder(ctx, card.ColumnID, func(seq []string) ([]string, error) {
		return removeTolerant(seq, cardID)
	})
	if err != nil {
		return nil, err
	}

	var moved *Card
	err = s.withRetry(ctx, "card.move", func() error {
		rec, err := s.store.Get(ctx, store.KindCard, cardID)
		if err != nil {
			return asNotFound(err, store.KindCard, cardID)
		}
		c, err := decodeCard(rec)
		if err != nil {
			return err
		}
		c.ColumnID = toColumnID
		rec.Parent = toColumnID

		if rec.Data, err = encode(c); err != nil {
			return err
		}
		if err := s.store.Update(ctx, rec, rec.Version); err != nil {
			return err
		}

		c.Version = rec.Version
		c.UpdatedAt = rec.UpdatedAt
		moved = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("card moved",
		"cardId", cardID,
		"fromColumnId", card.ColumnID,
		"toColumnId", toColumnID,
	)
	return moved, nil
}

// repositionWithin handles the degenerate same-column move: a remove and
// re-insert inside one cardsOrder, committed as a single conditional write.
func (s *Service) repositionWithin(ctx context.Context, card *Card, toIndex int) error {
	return s.mutateCardsOrder(ctx, card.ColumnID, func(seq []string) ([]string, error) {
		without, err := removeTolerant(seq, card.ID)
		if err != nil {
			return nil, err
		}
		return ordering.Insert(without, card.ID, toIndex)
	})
}
