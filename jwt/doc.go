// Package jwt issues and verifies the short-lived access tokens handed out
// at login and refresh. Tokens carry the user ID, session ID, role and the
// role's permission mask; the opaque refresh token lives elsewhere.
package jwt
