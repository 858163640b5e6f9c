package store

import (
	"context"
	"time"
)

// Kind names a keyspace within the store.
type Kind string

// Keyspaces of the corkboard hierarchy.
const (
	KindBoard  Kind = "board"
	KindColumn Kind = "column"
	KindCard   Kind = "card"
	KindIdem   Kind = "idem"
)

// Record is the stored envelope for a single entity.
type Record struct {
	// Kind is the record's keyspace.
	Kind Kind

	// ID is the record id, unique within its kind.
	ID string

	// Parent scopes the record for child enumeration: the board id for a
	// column, the column id for a card, the owner scope for a board, the
	// column id for an idempotency reservation. Empty if unscoped.
	Parent string

	// Data is the JSON-encoded entity payload.
	Data []byte

	// Version is the optimistic-lock version, 1 after Create and bumped by
	// one on every successful Update.
	Version int64

	// CreatedAt and UpdatedAt are managed by the store.
	CreatedAt time.Time
	UpdatedAt time.Time

	// ExpiresAt is the unix second after which the record is treated as
	// gone. Zero means the record never expires.
	ExpiresAt int64
}

// Store is the conditional-write entity store contract.
type Store interface {
	// Get returns the latest committed record, or ErrNotFound if it is
	// absent or expired.
	Get(ctx context.Context, kind Kind, id string) (*Record, error)

	// Create persists a new record, failing with ErrAlreadyExists if a live
	// record with the same key exists. On success rec.Version is 1 and the
	// timestamps are set.
	Create(ctx context.Context, rec *Record) error

	// Update replaces the record contents if its current version equals
	// expectedVersion, failing with ErrConcurrentModification otherwise.
	// On success rec.Version and rec.UpdatedAt are refreshed in place.
	Update(ctx context.Context, rec *Record, expectedVersion int64) error

	// Delete removes the record if its current version equals
	// expectedVersion. It fails with ErrNotFound if the record is absent
	// and ErrConcurrentModification on a version mismatch.
	Delete(ctx context.Context, kind Kind, id string, expectedVersion int64) error

	// ListByParent returns all live records of the given kind whose Parent
	// equals parent, ordered by creation time.
	ListByParent(ctx context.Context, kind Kind, parent string) ([]*Record, error)
}

// clone returns a deep copy of the record.
func clone(rec *Record) *Record {
	out := *rec
	if rec.Data != nil {
		out.Data = make([]byte, len(rec.Data))
		copy(out.Data, rec.Data)
	}
	return &out
}
