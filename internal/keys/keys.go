// Package keys provides key and scope formatting for the corkboard keyspaces.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Ref computes the type-qualified record reference (e.g., "card:uuid").
// It is the primary key of every entity record.
func Ref(kind, id string) string {
	return fmt.Sprintf("%s:%s", kind, id)
}

// OwnerScope computes the parent scope of a board record. Boards have no
// entity parent, so their parent attribute carries the owning user instead,
// which lets the parent index serve ListBoards.
func OwnerScope(owner string) string {
	return fmt.Sprintf("owner:%s", owner)
}

// IdemID computes a hash-distributed record id for an idempotency
// reservation. Hashing the full (scope, key) tuple keeps client-chosen keys
// from forming hot partitions and bounds the id length regardless of what
// the client sent.
func IdemID(boardID, columnID, key string) string {
	data := fmt.Sprintf("%s#%s#%s", boardID, columnID, key)
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:16]) // 128-bit hash as hex
}
