package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/brinebarrel/storefront-api/internal/ratelimit"
	apphttp "github.com/brinebarrel/storefront-api/pkg/http"
)

// RateLimit enforces a named budget per client key. Every response carries
// the X-RateLimit-* headers so clients can pace themselves; a denied request
// gets a 429 with a retry hint.
func RateLimit(limiter ratelimit.Limiter, budget ratelimit.Budget) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := budget.Name + ":" + apphttp.ClientKey(r)
			result := limiter.Admit(key, budget.Limit, budget.Window)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(result.ResetAt)))
				apphttp.WriteTooManyRequests(w, "Too many requests. Please try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(resetAt time.Time) int {
	secs := int(time.Until(resetAt).Round(time.Second).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

// GlobalRateLimit is a coarse per-IP cap across the whole API, sitting in
// front of the named budgets as a backstop against floods.
func GlobalRateLimit(requestsPerMinute int) func(next http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			apphttp.WriteTooManyRequests(w, "Too many requests. Please try again later.")
		}),
	)
}
