package api

import (
	"net/http"

	"github.com/neonbeat/back/internal/apperr"
)

// errorResponse is the JSON body returned on every non-2xx response.
// The tag mirrors apperr.Kind verbatim so clients can switch on a
// stable string rather than an HTTP status code (spec §7).
type errorResponse struct {
	Error string `json:"error"`
	Tag   string `json:"tag"`
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.PhaseRejected:
		return http.StatusConflict
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.Precondition:
		return http.StatusPreconditionFailed
	case apperr.Degraded:
		return http.StatusServiceUnavailable
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	if kind == "" {
		kind = apperr.Internal
	}
	writeJSON(w, statusFor(kind), errorResponse{Error: err.Error(), Tag: string(kind)})
}
