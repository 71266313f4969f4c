// Package audit delivers security audit events asynchronously.
//
// [Dispatcher] relays [Event] values to a [Sink] from a single goroutine.
// Delivery is fire and forget: a full buffer, a slow sink or a panicking
// sink is counted, never surfaced to the caller that emitted the event.
//
// Which events exist and when they are emitted is decided by the engine.
package audit
