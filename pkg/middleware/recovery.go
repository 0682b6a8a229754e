package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	apperrors "cowork/pkg/errors"
	httputil "cowork/pkg/http"
	"cowork/pkg/logger"
)

// Recovery turns a handler panic into an INTERNAL_ERROR response. Panics with
// http.ErrAbortHandler keep unwinding so the server drops the connection.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}

				log.Error("Panic recovered",
					"request_id", RequestIDFromContext(r.Context()),
					"error", p,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				httputil.WriteError(w, apperrors.Internal("Handler panicked", fmt.Errorf("%v", p)))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
