package v1alpha1

import (
	"errors"
	"net/http"

	"github.com/paperlane/paperlane/api/v1alpha1"
	"github.com/paperlane/paperlane/internal/service"
	"github.com/paperlane/paperlane/pkg/requestid"
)

// statusFor maps a service error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrAccountInactive):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrDuplicateSubmission),
		errors.Is(err, service.ErrJobAlreadyInFlight),
		errors.Is(err, service.ErrStaleState):
		return http.StatusConflict
	case errors.Is(err, service.ErrMissingReason), errors.Is(err, service.ErrInvalidDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrEngineRejected):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrEngineUnreachable):
		return http.StatusServiceUnavailable
	}

	var validationErr *service.ErrValidation
	if errors.As(err, &validationErr) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	respond(w, r, status, v1alpha1.Error{Message: message, RequestId: requestid.FromContextPtr(r.Context())})
}
