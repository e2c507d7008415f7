// Package internal holds token helpers private to the storefront module.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - limiters: per-flow rate limiters (register, email verification, reset, TOTP)
//   - rate: Redis fixed-window counter and the login/refresh limiter
//   - stores: single-use challenge records for reset and verification links
//   - catalog, orders: shop domain services
//   - store: document persistence (MongoDB and in-memory)
//   - httpapi: chi router and handlers
//   - mailer, config, logger: ambient plumbing for the binary
package internal
