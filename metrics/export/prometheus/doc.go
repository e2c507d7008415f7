// Package prometheus adapts the engine's in-process counters to
// client_golang.
//
// [NewCollector] wraps an [storefront.Engine] (or any [Source]) as a
// prometheus.Collector. Counters are exported as
// storefront_auth_<name>_total and the access token validation latency as
// the storefront_auth_validate_latency_seconds histogram.
//
// The collector reads a snapshot on every scrape and never mutates engine
// state. Callers register it on their own registry.
package prometheus
