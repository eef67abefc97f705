package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/aditya/go-carpool/pkg/utils"
)

// Recovery turns a panicking handler into a 500 response
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						zap.Any("panic", err),
						zap.String("path", r.URL.Path),
						zap.Stack("stack"),
					)
					utils.InternalError(w, "an unexpected error occurred")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
