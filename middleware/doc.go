// Package middleware adapts [storefront.Engine] validation to net/http.
//
// [Guard] reads the bearer token, validates it in the requested mode and
// stores the [storefront.AuthResult] in the request context.
// [RequireJWTOnly] and [RequireStrict] are guards fixed to one mode.
// [RequirePermission] must run after a guard.
//
// Rejections are written as JSON {"message": "..."} with 401 for missing
// or invalid credentials and 403 for insufficient rights.
package middleware
