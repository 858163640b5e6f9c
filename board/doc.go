// Package board implements the board -> column -> card hierarchy: creation,
// partial updates, cascading deletion, explicit reordering, cross-column
// card moves, and idempotent card creation.
//
// The hierarchy's consistency model is built entirely on the entity store's
// conditional single-key writes. Cross-record operations commit in a fixed
// child-before-parent-list order with a bounded retry on version races, so
// every intermediate state is itself a valid (if incomplete) hierarchy and
// every step is safe to redo.
package board
