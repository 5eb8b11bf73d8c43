package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	apperrors "roombook/pkg/errors"
	httputil "roombook/pkg/http"
	"roombook/pkg/logger"
)

// deadlineWriter serializes the handler goroutine and the deadline path onto
// one ResponseWriter. Whoever writes first owns the response.
type deadlineWriter struct {
	w       http.ResponseWriter
	header  http.Header
	mu      sync.Mutex
	expired bool
	started bool
}

func (dw *deadlineWriter) Header() http.Header {
	return dw.header
}

func (dw *deadlineWriter) WriteHeader(status int) {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	dw.writeHeaderLocked(status)
}

func (dw *deadlineWriter) writeHeaderLocked(status int) {
	if dw.expired || dw.started {
		return
	}
	dw.started = true
	for k, v := range dw.header {
		dw.w.Header()[k] = v
	}
	dw.w.WriteHeader(status)
}

func (dw *deadlineWriter) Write(b []byte) (int, error) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if dw.expired {
		return 0, http.ErrHandlerTimeout
	}
	dw.writeHeaderLocked(http.StatusOK)
	return dw.w.Write(b)
}

// expire claims the response for the timeout path. It reports false when the
// handler already started writing.
func (dw *deadlineWriter) expire() bool {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	dw.expired = true
	return !dw.started
}

// RequestTimeout bounds each request with a context deadline. When the
// handler has not answered in time the client gets 504 TIMEOUT and later
// writes from the handler are discarded.
func RequestTimeout(timeout time.Duration, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			dw := &deadlineWriter{w: w, header: make(http.Header)}
			done := make(chan struct{})
			panicked := make(chan any, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicked <- p
					}
					close(done)
				}()
				next.ServeHTTP(dw, r.WithContext(ctx))
			}()

			select {
			case <-done:
				select {
				case p := <-panicked:
					panic(p)
				default:
				}
			case <-ctx.Done():
				if !dw.expire() {
					return
				}
				log.Warn("Request deadline exceeded",
					"request_id", requestIDFrom(r),
					"path", r.URL.Path,
					"timeout", timeout,
				)
				httputil.WriteError(w, apperrors.Timeout("request timed out"))
			}
		})
	}
}
