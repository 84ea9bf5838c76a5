package apiclient

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/bissquit/finance-admin/internal/pkg/ctxlog"
	"github.com/bissquit/finance-admin/internal/pkg/metrics"
)

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// Doer sends a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to Doer.
type DoerFunc func(req *http.Request) (*http.Response, error)

// Do calls f(req).
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

// Middleware decorates a Doer with a cross-cutting concern.
type Middleware func(next Doer) Doer

// Chain wraps base with mws; the first middleware is the outermost.
func Chain(base Doer, mws ...Middleware) Doer {
	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}
	return base
}

// TokenSource yields the access token of the session bound to ctx.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, bool)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, bool)

// AccessToken calls f(ctx).
func (f TokenSourceFunc) AccessToken(ctx context.Context) (string, bool) { return f(ctx) }

// BearerAuth sets "Authorization: Bearer <token>" when the request context
// carries a session. Requests without a session are sent unchanged.
func BearerAuth(source TokenSource) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			if source != nil {
				if token, ok := source.AccessToken(req.Context()); ok && token != "" {
					req = req.Clone(req.Context())
					req.Header.Set("Authorization", "Bearer "+token)
				}
			}
			return next.Do(req)
		})
	}
}

// SessionExpiredFunc is invoked once for every 401 received from upstream.
type SessionExpiredFunc func(ctx context.Context)

// Classify turns transport failures and non-2xx responses into *Error.
// It never retries. A non-2xx response is consumed and closed; 2xx
// responses pass through untouched.
func Classify(onExpired SessionExpiredFunc) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			ctx := req.Context()
			logger := ctxlog.FromContext(ctx)

			resp, err := next.Do(req)
			if err != nil {
				logger.Error("no response from upstream",
					"method", req.Method,
					"path", req.URL.Path,
					"error", err,
				)
				return nil, &Error{Kind: ErrUnreachable, Method: req.Method, Path: req.URL.Path, Err: err}
			}

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}

			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			_ = resp.Body.Close()

			apiErr := &Error{
				Method:  req.Method,
				Path:    req.URL.Path,
				Status:  resp.StatusCode,
				Message: ExtractMessage(body),
			}

			switch {
			case resp.StatusCode == http.StatusUnauthorized:
				apiErr.Kind = ErrSessionExpired
				logger.Info("upstream rejected session", "method", req.Method, "path", req.URL.Path)
				if onExpired != nil {
					onExpired(ctx)
				}
			case resp.StatusCode == http.StatusForbidden:
				apiErr.Kind = ErrInsufficientPermission
				logger.Warn("access forbidden by upstream", "method", req.Method, "path", req.URL.Path)
			case resp.StatusCode >= http.StatusInternalServerError:
				apiErr.Kind = ErrUpstreamFailure
				logger.Error("upstream server error",
					"method", req.Method,
					"path", req.URL.Path,
					"status", resp.StatusCode,
					"message", apiErr.Message,
				)
			default:
				apiErr.Kind = ErrUpstreamRejected
			}

			return nil, apiErr
		})
	}
}

// Instrument records the duration and outcome of each upstream call.
func Instrument() Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.Do(req)
			metrics.UpstreamRequestDuration.
				WithLabelValues(req.Method, KindName(err)).
				Observe(time.Since(start).Seconds())
			return resp, err
		})
	}
}
