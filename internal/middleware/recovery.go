// File: internal/middleware/recovery.go
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"planethero/internal/contextutils"
	"planethero/internal/response"
	"planethero/internal/services"

	"go.uber.org/zap"
)

// Recovery turns a panic into a logged 500 with the standard error envelope
func Recovery(builder *response.Builder, logger *zap.Logger) func(http.Handler) http.Handler {
	if builder == nil {
		builder = response.NewBuilder(nil, logger)
	}

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

				contextutils.GetLogger(r.Context(), logger).Error("Panic recovered",
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
				)

				builder.WriteError(w, r, services.NewInternalError(fmt.Sprintf("panic: %v", rec)))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
