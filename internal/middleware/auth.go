package middleware

import (
	"crypto/subtle"
	"net/http"

	apperrors "github.com/aditya/go-carpool/internal/errors"
	"github.com/aditya/go-carpool/pkg/utils"
)

const OperatorKeyHeader = "X-Operator-Key"

// OperatorAuth admits requests carrying the configured operator key. An empty
// key locks the API entirely.
func OperatorAuth(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(OperatorKeyHeader)
			if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				utils.Error(w, apperrors.Unauthorized("missing or invalid operator key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
