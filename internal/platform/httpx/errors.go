package httpx

import (
	"errors"
	"net/http"

	"github.com/playbookhq/playbooks/internal/shared"
)

type problemKind struct {
	sentinel error
	status   int
	slug     string
}

// problemKinds is checked in order; the first sentinel the error wraps wins.
var problemKinds = []problemKind{
	{shared.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{shared.ErrForbidden, http.StatusForbidden, "forbidden"},
	{shared.ErrNotFound, http.StatusNotFound, "not-found"},
	{shared.ErrValidation, http.StatusBadRequest, "invalid-request"},
}

// RespondError writes err as a problem response. Errors wrapping a shared
// sentinel keep their message as the detail; anything else is reported as
// an internal error without detail.
func RespondError(w http.ResponseWriter, err error) {
	for _, k := range problemKinds {
		if errors.Is(err, k.sentinel) {
			write(w, ProblemDetail{
				Type:   problemTypePrefix + k.slug,
				Title:  http.StatusText(k.status),
				Status: k.status,
				Detail: err.Error(),
			})
			return
		}
	}
	Problem(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), "")
}
