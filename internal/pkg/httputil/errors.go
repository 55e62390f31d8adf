package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/bissquit/incident-relay/internal/pkg/ctxlog"
)

// ErrorMapping defines how a domain error maps to an HTTP response.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string // if empty, uses err.Error()
}

// HandleError maps err to an HTTP response using the first matching mapping.
// Unmapped errors are logged and answered with 500 Internal Server Error.
// Mapped 5xx statuses are logged as well.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	logger := ctxlog.FromContext(ctx)

	for _, m := range mappings {
		if !errors.Is(err, m.Error) {
			continue
		}
		msg := m.Message
		if msg == "" {
			msg = err.Error()
		}
		if m.Status >= http.StatusInternalServerError {
			logger.Error("request failed", "status", m.Status, "error", err)
		}
		Error(w, m.Status, msg)
		return
	}

	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}
