// Package store provides the versioned entity store backing the corkboard
// hierarchy.
//
// Records are addressed by (kind, id) and carry an integer version that is
// bumped on every successful write. Conditional writes against that version
// are the sole concurrency-control primitive: there are no locks and no
// multi-key transactions. Higher layers build cross-record operations from
// ordered single-key conditional writes plus bounded retry.
//
// # Contract
//
// All implementations satisfy [Store]:
//
//	type Store interface {
//	    Get(ctx context.Context, kind Kind, id string) (*Record, error)
//	    Create(ctx context.Context, rec *Record) error
//	    Update(ctx context.Context, rec *Record, expectedVersion int64) error
//	    Delete(ctx context.Context, kind Kind, id string, expectedVersion int64) error
//	    ListByParent(ctx context.Context, kind Kind, parent string) ([]*Record, error)
//	}
//
// Reads are of the latest committed value (linearizable per key); a
// successful Create/Update/Delete is durable before it returns.
//
// # Implementations
//
//   - [Memory]: process-local store with the same conditional-write
//     semantics, for tests and embedders that bring their own durability.
//   - [Dynamo]: DynamoDB-backed store using condition expressions on the
//     version attribute, a GSI on the parent attribute for child
//     enumeration, and an expires_at attribute for records with a bounded
//     retention window (idempotency reservations).
//
// # Errors
//
//   - [ErrNotFound] - record absent or past its retention window
//   - [ErrAlreadyExists] - Create raced an existing live record
//   - [ErrConcurrentModification] - conditional write lost a version race
package store
