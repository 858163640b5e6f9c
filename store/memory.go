package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/opencork/corkboard/internal/keys"
)

// Memory is an in-process Store with the same conditional-write semantics as
// the DynamoDB implementation. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*Record

	// now is swappable in tests to exercise retention expiry.
	now func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

func (m *Memory) key(kind Kind, id string) string {
	return keys.Ref(string(kind), id)
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, kind Kind, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[m.key(kind, id)]
	if !ok || IsExpired(rec.ExpiresAt, m.now()) {
		return nil, ErrNotFound
	}
	return clone(rec), nil
}

// Create implements Store. An expired record under the same key is replaced.
func (m *Memory) Create(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if existing, ok := m.records[m.key(rec.Kind, rec.ID)]; ok && !IsExpired(existing.ExpiresAt, now) {
		return ErrAlreadyExists
	}

	rec.Version = 1
	rec.CreatedAt = now.UTC()
	rec.UpdatedAt = rec.CreatedAt
	m.records[m.key(rec.Kind, rec.ID)] = clone(rec)
	return nil
}

// Update implements Store.
func (m *Memory) Update(ctx context.Context, rec *Record, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	existing, ok := m.records[m.key(rec.Kind, rec.ID)]
	if !ok || IsExpired(existing.ExpiresAt, now) {
		return ErrNotFound
	}
	if existing.Version != expectedVersion {
		return ErrConcurrentModification
	}

	rec.Version = expectedVersion + 1
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = now.UTC()
	m.records[m.key(rec.Kind, rec.ID)] = clone(rec)
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(ctx context.Context, kind Kind, id string, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.records[m.key(kind, id)]
	if !ok || IsExpired(existing.ExpiresAt, m.now()) {
		return ErrNotFound
	}
	if existing.Version != expectedVersion {
		return ErrConcurrentModification
	}

	delete(m.records, m.key(kind, id))
	return nil
}

// ListByParent implements Store.
func (m *Memory) ListByParent(ctx context.Context, kind Kind, parent string) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	var out []*Record
	for _, rec := range m.records {
		if rec.Kind != kind || rec.Parent != parent || IsExpired(rec.ExpiresAt, now) {
			continue
		}
		out = append(out, clone(rec))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
