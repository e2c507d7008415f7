// Package stores persists short-lived, single-use challenge records in
// Redis: password-reset links and email-verification links.
//
// A record holds the owning user, the SHA-256 of the link secret and a
// failed-attempt counter. Consume runs inside WATCH/MULTI with retry on
// contention and deletes the record on success, on expiry and once the
// attempt cap is reached. Secret comparison is constant-time.
//
// This package does not mint tokens, enforce rate limits or decide what a
// consumed challenge means.
package stores
