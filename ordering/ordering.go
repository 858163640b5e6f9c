// Package ordering maintains the ordered child-id sequences of the board
// hierarchy (a board's columnsOrder, a column's cardsOrder).
//
// All operations are pure: they take a snapshot of a sequence and return the
// next value without touching storage. The caller commits the result through
// the entity store's conditional write, so a lost version race simply means
// re-running the same pure operation against the refreshed snapshot.
package ordering

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicate is returned by Insert when the id is already present.
	ErrDuplicate = errors.New("ordering: id already present in sequence")

	// ErrAbsent is returned by Remove when the id is not in the sequence.
	// Retrying callers may treat this as success (the removal already took).
	ErrAbsent = errors.New("ordering: id not present in sequence")
)

// InvalidOrderError reports a proposed reorder that is not an exact
// permutation of the current sequence.
type InvalidOrderError struct {
	// Missing lists ids present in the current sequence but absent from the
	// proposal.
	Missing []string

	// Extra lists ids in the proposal that are not current children
	// (including duplicated ids).
	Extra []string
}

func (e *InvalidOrderError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing [%s]", strings.Join(e.Missing, ", ")))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, fmt.Sprintf("extra [%s]", strings.Join(e.Extra, ", ")))
	}
	return "ordering: proposed order is not a permutation of current children: " + strings.Join(parts, ", ")
}

// Append is the Insert index that places the id at the end of the sequence.
const Append = -1

// Insert returns a copy of seq with id inserted at index. Append (or any
// negative index) appends; an index past the end is clamped to the end.
func Insert(seq []string, id string, index int) ([]string, error) {
	for _, existing := range seq {
		if existing == id {
			return nil, ErrDuplicate
		}
	}

	if index < 0 || index > len(seq) {
		index = len(seq)
	}

	next := make([]string, 0, len(seq)+1)
	next = append(next, seq[:index]...)
	next = append(next, id)
	next = append(next, seq[index:]...)
	return next, nil
}

// Remove returns a copy of seq with the single matching id deleted.
func Remove(seq []string, id string) ([]string, error) {
	for i, existing := range seq {
		if existing == id {
			next := make([]string, 0, len(seq)-1)
			next = append(next, seq[:i]...)
			next = append(next, seq[i+1:]...)
			return next, nil
		}
	}
	return nil, ErrAbsent
}

// Reorder validates that proposed is an exact permutation of current and
// returns a copy of it. A proposal that drops, duplicates, or
// smuggles in ids fails with InvalidOrderError naming the delta.
func Reorder(current, proposed []string) ([]string, error) {
	remaining := make(map[string]int, len(current))
	for _, id := range current {
		remaining[id]++
	}

	var extra []string
	for _, id := range proposed {
		if remaining[id] > 0 {
			remaining[id]--
		} else {
			extra = append(extra, id)
		}
	}

	var missing []string
	for _, id := range current {
		if remaining[id] > 0 {
			remaining[id]--
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 || len(extra) > 0 {
		return nil, &InvalidOrderError{Missing: missing, Extra: extra}
	}

	next := make([]string, len(proposed))
	copy(next, proposed)
	return next, nil
}

// Contains reports whether id is present in seq.
func Contains(seq []string, id string) bool {
	for _, existing := range seq {
		if existing == id {
			return true
		}
	}
	return false
}
