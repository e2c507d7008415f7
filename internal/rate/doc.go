// Package rate provides the Redis fixed-window counter shared by every
// limiter in the service, plus the login and refresh limiter.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - <prefix>:rl:e:  login per-email
//   - <prefix>:rl:ip: login per-IP
//   - <prefix>:rr:    refresh per-session
//
// Domain-specific policies live in internal/limiters.
package rate
