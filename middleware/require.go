package middleware

import (
	"net/http"

	"github.com/MrEthical07/storefront"
)

// RequirePermission admits callers whose permission mask holds perm.
func RequirePermission(engine *storefront.Engine, perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok {
				writeMessage(w, http.StatusUnauthorized, "Not authorized")
				return
			}
			if !engine.HasPermission(res, perm) {
				writeMessage(w, http.StatusForbidden, "Access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
