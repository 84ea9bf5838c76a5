package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/bissquit/finance-admin/internal/pkg/ctxlog"
)

// ErrorMapping defines how a domain error maps to an HTTP response.
// When Location is set the client is redirected there instead of
// receiving an error body.
type ErrorMapping struct {
	Error    error
	Status   int    // if zero, taken from the error's StatusCode() or 500
	Message  string // if empty, uses the error's UserMessage() or err.Error()
	Location string
}

type statusCoder interface {
	StatusCode() int
}

type userMessager interface {
	UserMessage() string
}

// HandleError maps a domain error to an HTTP response using provided mappings.
// If no mapping matches, logs the error and returns 500 Internal Server Error.
func HandleError(w http.ResponseWriter, r *http.Request, err error, mappings []ErrorMapping) {
	ctx := r.Context()
	for _, m := range mappings {
		if !errors.Is(err, m.Error) {
			continue
		}
		if m.Location != "" {
			ctxlog.FromContext(ctx).Debug("redirecting on error", "error", err, "location", m.Location)
			Redirect(w, r, m.Location)
			return
		}
		Error(w, statusFor(err, m), messageFor(err, m))
		return
	}
	ctxlog.FromContext(ctx).Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}

// PanelError converts err into the inline error shown inside a view panel.
// Errors matching a mapping use its message; anything else is logged and
// reported with a generic message.
func PanelError(ctx context.Context, err error, mappings []ErrorMapping) *ErrorBody {
	for _, m := range mappings {
		if errors.Is(err, m.Error) {
			return &ErrorBody{Message: messageFor(err, m)}
		}
	}
	ctxlog.FromContext(ctx).Error("panel error", "error", err)
	return &ErrorBody{Message: "internal error"}
}

func statusFor(err error, m ErrorMapping) int {
	if m.Status != 0 {
		return m.Status
	}
	var sc statusCoder
	if errors.As(err, &sc) && sc.StatusCode() >= 400 {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

func messageFor(err error, m ErrorMapping) string {
	if m.Message != "" {
		return m.Message
	}
	var um userMessager
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	return err.Error()
}
