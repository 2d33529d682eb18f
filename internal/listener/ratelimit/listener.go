// Package ratelimit throttles handshake attempts per remote address.
package ratelimit

import (
	"net"
	"sync"
	"time"

	"github.com/drawbridge-proxy/drawbridge/pkg/event"
	"github.com/drawbridge-proxy/drawbridge/pkg/text"
)

// Listener denies handshakes from addresses exceeding a fixed budget per
// sliding window. State is in-process only; a proxy fleet needs an external
// limiter, which is out of scope here.
type Listener struct {
	maxPerWindow int
	window       time.Duration
	now          func() time.Time

	mu      sync.Mutex
	history map[string][]time.Time
}

// NewListener creates a limiter allowing maxPerWindow handshakes per remote
// address within each window.
func NewListener(maxPerWindow int, window time.Duration) *Listener {
	return &Listener{
		maxPerWindow: maxPerWindow,
		window:       window,
		now:          time.Now,
		history:      make(map[string][]time.Time),
	}
}

// Register subscribes the listener at First priority alongside the
// blocklist; both are cheap local checks that should run before any remote
// lookup. Returns the unsubscribe func.
func (l *Listener) Register(d *event.Dispatcher) func() {
	return event.Subscribe(d, event.PriorityFirst, l.OnHandshake)
}

// OnHandshake is the listener body; exported for direct use in tests.
func (l *Listener) OnHandshake(e *event.HandshakeEvent) {
	if !l.Admit(e.Connection().RemoteAddr()) {
		e.SetResult(event.Denied(text.Plain("too many connection attempts, slow down")))
	}
}

// Admit records an attempt from addr and reports whether it fits the budget.
func (l *Listener) Admit(addr net.Addr) bool {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		host = addr.String()
	}
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	attempts := l.history[host]
	kept := attempts[:0]
	for _, t := range attempts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.maxPerWindow {
		l.history[host] = kept
		return false
	}

	l.history[host] = append(kept, now)
	return true
}
