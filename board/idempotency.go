package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opencork/corkboard/internal/keys"
	"github.com/opencork/corkboard/store"
)

// Reservation states. A key moves Unseen -> Reserved -> Committed, or back
// to Unseen via release when the guarded create fails.
const (
	idemReserved  = "reserved"
	idemCommitted = "committed"
)

// idemPayload is the stored form of an idempotency reservation.
type idemPayload struct {
	State    string `json:"state"`
	BoardID  string `json:"boardId"`
	ColumnID string `json:"columnId"`
	Key      string `json:"key"`
	Card     *Card  `json:"card,omitempty"`
}

// reservation is the in-flight handle returned by checkAndReserve.
type reservation struct {
	id      string
	version int64

	// duplicate reports that the key was already committed; card is the
	// originally created card.
	duplicate bool
	card      *Card
}

// checkAndReserve claims the (scope, key) tuple for this request. Exactly
// one concurrent caller gets a fresh reservation; the others observe the
// committed result, or wait briefly for it and then surface a retryable
// conflict if the winner is still in flight.
func (s *Service) checkAndReserve(ctx context.Context, boardID, columnID, key string) (*reservation, error) {
	id := keys.IdemID(boardID, columnID, key)
	payload := idemPayload{
		State:    idemReserved,
		BoardID:  boardID,
		ColumnID: columnID,
		Key:      key,
	}

	backoff := s.config.RetryBackoff
	for attempt := 0; attempt < s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		rec := &store.Record{
			Kind:      store.KindIdem,
			ID:        id,
			Parent:    columnID,
			ExpiresAt: time.Now().Add(s.config.IdempotencyRetention).Unix(),
		}
		var err error
		if rec.Data, err = encode(payload); err != nil {
			return nil, err
		}

		err = s.store.Create(ctx, rec)
		if err == nil {
			return &reservation{id: id, version: rec.Version}, nil
		}
		if !errors.Is(err, store.ErrAlreadyExists) {
			return nil, err
		}

		existing, err := s.store.Get(ctx, store.KindIdem, id)
		if errors.Is(err, store.ErrNotFound) {
			continue // reservation released or expired underneath us
		}
		if err != nil {
			return nil, err
		}

		var existingPayload idemPayload
		if err := json.Unmarshal(existing.Data, &existingPayload); err != nil {
			return nil, fmt.Errorf("decode idempotency record %s: %w", id, err)
		}
		if existingPayload.State == idemCommitted {
			card := existingPayload.Card
			// Prefer the live record so the replay carries current version
			// and timestamps; fall back to the stored snapshot if the card
			// has since been deleted.
			if card != nil {
				if live, err := s.loadCard(ctx, card.ID); err == nil {
					card = live
				}
			}
			return &reservation{id: id, duplicate: true, card: card}, nil
		}
		// Still reserved: the winning request is in flight. Loop to wait
		// for its commit or release.
	}

	s.logger.Warn("idempotency reservation still pending", "boardId", boardID, "columnId", columnID)
	return nil, ErrConflict
}

// commit durably records the created card against the reservation so later
// requests with the same key replay it.
func (s *Service) commit(ctx context.Context, res *reservation, card *Card) error {
	payload := idemPayload{
		State:    idemCommitted,
		BoardID:  card.BoardID,
		ColumnID: card.ColumnID,
		Card:     card,
	}

	return s.withRetry(ctx, "idempotency.commit", func() error {
		rec, err := s.store.Get(ctx, store.KindIdem, res.id)
		if err != nil {
			return asNotFound(err, store.KindIdem, res.id)
		}
		if rec.Data, err = encode(payload); err != nil {
			return err
		}
		return s.store.Update(ctx, rec, rec.Version)
	})
}

// release returns the key to the unseen state after a failed create, so the
// client may retry with the same key. Best effort: a lost release is
// recovered by the retention window.
func (s *Service) release(ctx context.Context, res *reservation) {
	if err := s.store.Delete(ctx, store.KindIdem, res.id, res.version); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("failed to release idempotency reservation", "id", res.id, "error", err)
		}
	}
}
