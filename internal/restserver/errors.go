package restserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gaoyifan/restic-115/internal/cloud115"
)

// writeError maps a cloud115 error to the matching restic REST status code
// and writes a plain-text body, logging the underlying cause.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classifyError(err)
	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	http.Error(w, msg, status)
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, cloud115.ErrBadRequest):
		return http.StatusBadRequest, http.StatusText(http.StatusBadRequest)
	case errors.Is(err, cloud115.ErrNotFound):
		return http.StatusNotFound, http.StatusText(http.StatusNotFound)
	case errors.Is(err, cloud115.ErrRangeNotSatisfiable):
		return http.StatusRequestedRangeNotSatisfiable, http.StatusText(http.StatusRequestedRangeNotSatisfiable)
	case errors.Is(err, cloud115.ErrRateLimited):
		return http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests)
	case errors.Is(err, cloud115.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, http.StatusText(http.StatusRequestEntityTooLarge)
	case errors.Is(err, cloud115.ErrNotImplemented):
		return http.StatusNotImplemented, http.StatusText(http.StatusNotImplemented)
	case errors.Is(err, cloud115.ErrUpstreamFailure):
		return http.StatusBadGateway, http.StatusText(http.StatusBadGateway)
	default:
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	}
}
