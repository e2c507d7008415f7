package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/storefront"
	"github.com/goccy/go-json"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the caller stored by a guard.
func AuthResultFromContext(ctx context.Context) (*storefront.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*storefront.AuthResult)
	return res, ok
}

// WithAuthResult stores res in ctx. Handlers under test use it to skip
// token validation.
func WithAuthResult(ctx context.Context, res *storefront.AuthResult) context.Context {
	return context.WithValue(ctx, authResultContextKey{}, res)
}

func Guard(engine *storefront.Engine, mode storefront.ValidationMode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeMessage(w, http.StatusUnauthorized, "Not authorized")
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeMessage(w, http.StatusUnauthorized, "Not authorized, no token")
				return
			}

			res, err := engine.Validate(r.Context(), token, mode)
			if err != nil {
				if errors.Is(err, storefront.ErrSessionBackendUnavailable) {
					writeMessage(w, http.StatusServiceUnavailable, "Service unavailable")
					return
				}
				writeMessage(w, http.StatusUnauthorized, "Not authorized, token failed")
				return
			}

			ctx := WithAuthResult(r.Context(), res)
			ctx = storefront.WithSessionID(ctx, res.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
