package board

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/opencork/corkboard/ordering"
	"github.com/opencork/corkboard/store"
)

var (
	// ErrCrossBoardMove is returned when a card move targets a column on a
	// different board. Moves are confined to one board.
	ErrCrossBoardMove = errors.New("corkboard: cards cannot move across boards")

	// ErrConflict is returned when a version race persisted through the
	// internal retry budget. The operation is safe to resubmit.
	ErrConflict = errors.New("corkboard: conflicting concurrent writes, retry the request")
)

// ValidationError reports a malformed or missing required field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("corkboard: invalid field %q: %s", e.Field, e.Reason)
}

// NotFoundError reports an absent entity.
type NotFoundError struct {
	Kind store.Kind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("corkboard: %s %q not found", e.Kind, e.ID)
}

// ImmutableFieldError reports an attempt to change a field that is fixed
// after creation.
type ImmutableFieldError struct {
	Field string
}

func (e *ImmutableFieldError) Error() string {
	return fmt.Sprintf("corkboard: field %q is immutable", e.Field)
}

// HTTPStatus maps a service error to the status code the transport layer
// should answer with. Unknown errors map to 500.
func HTTPStatus(err error) int {
	var (
		validation *ValidationError
		notFound   *NotFoundError
		immutable  *ImmutableFieldError
		invalid    *ordering.InvalidOrderError
	)

	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &immutable):
		return http.StatusConflict
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrCrossBoardMove):
		return http.StatusConflict
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// asNotFound translates a store-level miss into the entity-level error.
func asNotFound(err error, kind store.Kind, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{Kind: kind, ID: id}
	}
	return err
}
