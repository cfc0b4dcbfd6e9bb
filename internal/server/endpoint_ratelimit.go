// endpoint_ratelimit.go - Per-category rate limiting.
//
// Uploads move the most bytes and mutations rewrite the news file, so both
// get their own, tighter budgets on top of the general API limit.
package server

import (
	"net/http"
	"strings"
	"time"
)

// EndpointRateLimitConfig holds the per-category budgets. A zero rate
// disables that category.
type EndpointRateLimitConfig struct {
	APIRate      int // requests per APIWindow
	APIWindow    time.Duration
	UploadRate   int // uploads per UploadWindow
	UploadWindow time.Duration
	WriteRate    int // news/catalog mutations per WriteWindow
	WriteWindow  time.Duration
}

// DefaultEndpointRateLimitConfig derives the budgets from the general
// per-minute API rate.
func DefaultEndpointRateLimitConfig(apiPerMinute int) EndpointRateLimitConfig {
	return EndpointRateLimitConfig{
		APIRate:      apiPerMinute,
		APIWindow:    time.Minute,
		UploadRate:   60,
		UploadWindow: time.Hour,
		WriteRate:    60,
		WriteWindow:  time.Minute,
	}
}

// EndpointRateLimiter routes each request to the limiter of its category.
type EndpointRateLimiter struct {
	api    *rateLimiter
	upload *rateLimiter
	write  *rateLimiter
}

func NewEndpointRateLimiter(cfg EndpointRateLimitConfig) *EndpointRateLimiter {
	erl := &EndpointRateLimiter{}
	if cfg.APIRate > 0 {
		erl.api = newRateLimiter(cfg.APIRate, cfg.APIWindow)
	}
	if cfg.UploadRate > 0 {
		erl.upload = newRateLimiter(cfg.UploadRate, cfg.UploadWindow)
	}
	if cfg.WriteRate > 0 {
		erl.write = newRateLimiter(cfg.WriteRate, cfg.WriteWindow)
	}
	return erl
}

// limitCategory names the budget a request is charged against.
func limitCategory(r *http.Request) string {
	switch {
	case strings.HasPrefix(r.URL.Path, "/upload_"):
		return "upload"
	case r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions:
		return "api"
	default:
		return "write"
	}
}

func (erl *EndpointRateLimiter) limiterFor(category string) *rateLimiter {
	switch category {
	case "upload":
		return erl.upload
	case "write":
		return erl.write
	}
	return erl.api
}

// Middleware charges every request to the API budget and, for uploads
// and writes, to their category budget as well.
func (erl *EndpointRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		category := limitCategory(r)

		limited := ""
		if erl.api != nil && !erl.api.allow(ip) {
			limited = "api"
		} else if category != "api" {
			if l := erl.limiterFor(category); l != nil && !l.allow(ip) {
				limited = category
			}
		}

		if limited != "" {
			Warn("rate_limit_exceeded", map[string]any{
				"ip":         ip,
				"path":       r.URL.Path,
				"method":     r.Method,
				"limit_type": limited,
				"request_id": RequestIDFromContext(r.Context()),
			})
			w.Header().Set("Retry-After", "60")
			w.Header().Set("X-RateLimit-Limit-Type", limited)
			writeDetail(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Close stops the cleanup goroutines of every limiter.
func (erl *EndpointRateLimiter) Close() {
	for _, l := range []*rateLimiter{erl.api, erl.upload, erl.write} {
		if l != nil {
			l.close()
		}
	}
}
