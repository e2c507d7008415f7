// Package audit relays security events off the request path.
//
// [Dispatcher] buffers events and forwards them to a [Sink] from a single
// goroutine. In production the sink is a [ZapSink]; tests use [ChannelSink].
// Deciding which events to emit belongs to the caller.
package audit
