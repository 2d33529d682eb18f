// Package event implements the decision-event contract used to gate
// connection-lifecycle transitions: a value describing what is about to
// happen (handshake, login, ...) carries a mutable Result that subscribed
// listeners may inspect and replace before the proxy acts on it.
//
// Listener invocation for a single event is strictly sequential, so the
// Result slot has exactly one writer at a time; dispatches for different
// events run fully in parallel. See Dispatcher for the delivery semantics.
package event

// Event is any value that can be delivered through a Dispatcher.
//
// Listener resolution is by the event's concrete type: a listener subscribed
// to *HandshakeEvent sees only *HandshakeEvent fires.
type Event any

// Result is the mutable outcome attached to a ResultedEvent.
type Result interface {
	// IsAllowed reports whether the gated action may proceed.
	IsAllowed() bool
}

// ResultedEvent is an Event whose listeners may replace the outcome.
// Replacement is last-writer-wins: listener order, not decision severity,
// resolves conflicts.
type ResultedEvent[R Result] interface {
	Event

	// Result returns the currently held outcome.
	Result() R

	// SetResult replaces the outcome. Passing the zero/nil result is a
	// contract violation and panics. Calls made after the event has been
	// resolved by its dispatch are discarded.
	SetResult(r R)
}

// resolvable is implemented by events carrying a result slot so the
// Dispatcher can seal them when their dispatch completes.
type resolvable interface {
	slot() *resultSlot
}
