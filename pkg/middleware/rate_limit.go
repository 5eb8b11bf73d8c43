package middleware

import (
	"net/http"
	apperrors "roombook/pkg/errors"
	httputil "roombook/pkg/http"
	"roombook/pkg/logger"
	"sync"
	"time"
)

// KeyExtractor returns the caller key a request is throttled under. An empty
// key bypasses the limiter.
type KeyExtractor func(r *http.Request) string

// RequestRateLimiter is a sliding-window request throttle for the HTTP
// surface. It is unrelated to the booking rate limit, which is a domain rule
// enforced by the admission pipeline.
type RequestRateLimiter struct {
	mu        sync.RWMutex
	requests  map[string][]time.Time
	limit     int
	window    time.Duration
	extractor KeyExtractor
	log       *logger.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func NewRequestRateLimiter(limit int, window time.Duration, extractor KeyExtractor, log *logger.Logger) *RequestRateLimiter {
	if extractor == nil {
		extractor = ActorKeyExtractor
	}
	limiter := &RequestRateLimiter{
		requests:  make(map[string][]time.Time),
		limit:     limit,
		window:    window,
		extractor: extractor,
		log:       log,
		stopCh:    make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *RequestRateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for key, timestamps := range rl.requests {
				if len(timestamps) == 0 || time.Since(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RequestRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *RequestRateLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	valid := rl.requests[key][:0]
	for _, ts := range rl.requests[key] {
		if now.Sub(ts) < rl.window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

func RateLimit(limiter *RequestRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := limiter.extractor(r)

			if !limiter.Allow(key) {
				rejectRateLimited(w, limiter.log, r, key)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(w http.ResponseWriter, log *logger.Logger, r *http.Request, key string) {
	log.Warn("Request rate limit exceeded",
		"request_id", requestIDFrom(r),
		"caller", key,
		"path", r.URL.Path,
	)

	httputil.WriteError(w, apperrors.RateLimited("too many requests, slow down"))
}

// ActorKeyExtractor throttles per authenticated caller.
func ActorKeyExtractor(r *http.Request) string {
	return r.Header.Get(ActorIDHeader)
}
