package board

import (
	"context"
	"errors"
	"time"

	"github.com/opencork/corkboard/store"
)

// withRetry runs fn until it succeeds, fails with something other than a
// version race, or the retry budget runs out. Version races back off
// exponentially; exhaustion surfaces as ErrConflict.
//
// fn must re-read whatever state it conditions on: retried operations are
// framed so that re-running them against refreshed state is safe.
func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	backoff := s.config.RetryBackoff
	var lastErr error

	for attempt := 0; attempt < s.config.MaxRetries; attempt++ {
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

	s.logger.Warn("retry budget exhausted", "op", op, "error", lastErr)
	return ErrConflict
}
