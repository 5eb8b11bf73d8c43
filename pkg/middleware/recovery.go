package middleware

import (
	"fmt"
	"net/http"
	apperrors "roombook/pkg/errors"
	httputil "roombook/pkg/http"
	"roombook/pkg/logger"
	"runtime/debug"
)

// Recovery turns a handler panic into a 500 with the standard error envelope.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error("Handler panicked",
					"request_id", requestIDFrom(r),
					"actor_id", r.Header.Get(ActorIDHeader),
					"method", r.Method,
					"path", r.URL.Path,
					"panic", fmt.Sprint(rec),
					"stack", string(debug.Stack()),
				)
				httputil.WriteError(w, apperrors.Internal("handler panic", nil))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
