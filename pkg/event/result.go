package event

import (
	"sync"

	"github.com/drawbridge-proxy/drawbridge/pkg/text"
)

// ComponentResult is an allow/deny outcome with a reason permitted for
// denial. Values are immutable once constructed; listeners replace the
// event's result rather than mutating it.
type ComponentResult struct {
	allowed bool
	reason  text.Component
}

// The allow outcome is stateless, so every allowed event shares one value.
var allowedResult = &ComponentResult{allowed: true}

// Allowed returns the shared result indicating the connection may proceed.
//
// Callers must compare results by IsAllowed, not by pointer identity.
func Allowed() *ComponentResult {
	return allowedResult
}

// Denied returns a new result rejecting the connection with the given
// reason. An empty reason is a contract violation and panics; use a concrete
// message so the peer can be told why it was turned away.
func Denied(reason text.Component) *ComponentResult {
	if reason.Empty() {
		panic("event: Denied requires a non-empty reason")
	}
	return &ComponentResult{allowed: false, reason: reason}
}

// IsAllowed implements Result.
func (r *ComponentResult) IsAllowed() bool {
	return r.allowed
}

// Reason returns the denial reason. The second return is false for allowed
// results, which never carry one.
func (r *ComponentResult) Reason() (text.Component, bool) {
	if r.allowed {
		return text.Component{}, false
	}
	return r.reason, true
}

func (r *ComponentResult) String() string {
	if r.allowed {
		return "allowed"
	}
	return "denied"
}

// resultSlot is the single mutable cell inside a resulted event. The
// dispatcher's sequential invocation is what serializes writers; the mutex
// exists only so that a write arriving after resolution (for example from a
// listener that outlived a dispatch timeout) is discarded safely instead of
// racing the reader.
type resultSlot struct {
	mu       sync.Mutex
	result   *ComponentResult
	resolved bool
}

func newResultSlot() resultSlot {
	return resultSlot{result: Allowed()}
}

func (s *resultSlot) get() *ComponentResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *resultSlot) set(r *ComponentResult) {
	if r == nil {
		panic("event: SetResult requires a non-nil result")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		// Late write after the dispatch resolved; the decision has already
		// been acted on.
		return
	}
	s.result = r
}

// seal marks the slot resolved and returns the final result. Idempotent.
func (s *resultSlot) seal() *ComponentResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = true
	return s.result
}

func (s *resultSlot) isResolved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolved
}
