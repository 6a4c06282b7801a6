package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	platformmw "sylo/internal/platform/middleware"
	"sylo/internal/ratelimit"
)

// IdentifierFunc derives the rate limit identifier for a request.
type IdentifierFunc func(r *http.Request) string

// Options configure one endpoint's rate limit.
type Options struct {
	Requests    int
	Window      string
	Identifier  IdentifierFunc
	BypassToken string
}

type Middleware struct {
	limiter *ratelimit.Service
	logger  *slog.Logger
}

func New(limiter *ratelimit.Service, logger *slog.Logger) *Middleware {
	return &Middleware{limiter: limiter, logger: logger}
}

// Limit returns middleware enforcing the given options. The limiter failing
// is never a reason to reject traffic: store errors log and let the request
// through.
func (m *Middleware) Limit(opts Options) func(http.Handler) http.Handler {
	if opts.Requests <= 0 {
		opts.Requests = 100
	}
	if opts.Window == "" {
		opts.Window = "1h"
	}
	identify := opts.Identifier
	if identify == nil {
		identify = DefaultIdentifier
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Trusted internal callers skip the limiter entirely.
			if opts.BypassToken != "" && r.Header.Get("X-Bypass-Token") == opts.BypassToken {
				next.ServeHTTP(w, r)
				return
			}

			result, err := m.limiter.Limit(r.Context(), identify(r), opts.Requests, opts.Window)
			if err != nil {
				m.logger.Error("rate limit check failed, failing open", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			// Add headers regardless of outcome
			addRateLimitHeaders(w, result)

			if !result.Allowed {
				writeRateLimitExceeded(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LimitService returns middleware whose identifier is namespaced by service
// name, so a caller's gmail budget never collides with their xero budget.
func (m *Middleware) LimitService(service string, requests int, window, bypassToken string) func(http.Handler) http.Handler {
	return m.Limit(Options{
		Requests:    requests,
		Window:      window,
		BypassToken: bypassToken,
		Identifier: func(r *http.Request) string {
			return DefaultIdentifier(r) + ":" + service
		},
	})
}

// DefaultIdentifier prefers an explicit caller identity, then forwarded IP
// headers, then "unknown".
func DefaultIdentifier(r *http.Request) string {
	if userID := r.Header.Get("X-User-ID"); userID != "" {
		return userID
	}
	if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
		return apiKey
	}
	if ip := platformmw.ClientIPFromRequest(r); ip != "" {
		return ip
	}
	return "unknown"
}

func addRateLimitHeaders(w http.ResponseWriter, result *ratelimit.Result) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *ratelimit.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	msg := fmt.Sprintf("Too many requests. Please retry after %s", result.ResetAt.UTC().Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, `{"error":"Rate limit exceeded","message":%q}`, msg)
}
