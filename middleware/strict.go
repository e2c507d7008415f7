package middleware

import (
	"net/http"

	"github.com/MrEthical07/storefront"
)

// RequireStrict also rejects tokens whose session was revoked.
func RequireStrict(engine *storefront.Engine) func(http.Handler) http.Handler {
	return Guard(engine, storefront.ModeStrict)
}
