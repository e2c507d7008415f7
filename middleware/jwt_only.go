package middleware

import (
	"net/http"

	"github.com/MrEthical07/storefront"
)

// RequireJWTOnly checks the access token signature and claims without
// touching Redis.
func RequireJWTOnly(engine *storefront.Engine) func(http.Handler) http.Handler {
	return Guard(engine, storefront.ModeJWTOnly)
}
