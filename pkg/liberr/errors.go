// Package liberr defines the failure kinds the circulation services
// report. Callers classify with errors.Is; everything else is internal.
package liberr

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound means the entity id does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState means the operation is not legal from the entity's
	// current state, e.g. returning an already-returned loan or notifying
	// a reservation while no copy is available.
	ErrInvalidState = errors.New("invalid state")

	// ErrLimitExceeded means a policy cap was hit (renewal limit).
	ErrLimitExceeded = errors.New("limit exceeded")

	// ErrValidation means a required field is missing or malformed.
	ErrValidation = errors.New("validation failed")
)

// HTTPStatus maps a failure kind to its REST status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrLimitExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
