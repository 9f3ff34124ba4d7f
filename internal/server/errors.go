package server

import (
	"fmt"
	"net/http"

	"github.com/jonathan/course-illustrator/internal/session"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error.
// Resolution policy failures never reach this: they are 200 responses with a
// null image and a reason.
func HTTPStatus(err error) int {
	switch err.(type) {
	case *ErrValidation:
		return http.StatusBadRequest
	case *session.NotFoundError:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
