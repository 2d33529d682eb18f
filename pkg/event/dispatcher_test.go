package event

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/drawbridge-proxy/drawbridge/pkg/text"
)

// fakeConn is an in-package InboundConnection for testing.
type fakeConn struct {
	id   string
	addr net.Addr
	host string
}

func (c *fakeConn) ID() string           { return c.id }
func (c *fakeConn) RemoteAddr() net.Addr { return c.addr }
func (c *fakeConn) VirtualHost() string  { return c.host }

func newFakeConn(id string) *fakeConn {
	return &fakeConn{
		id:   id,
		addr: &net.TCPAddr{IP: net.IPv4(198, 51, 100, 7), Port: 52000},
		host: "play.example.com",
	}
}

func TestComponentResult(t *testing.T) {
	t.Run("allowed carries no reason", func(t *testing.T) {
		r := Allowed()
		if !r.IsAllowed() {
			t.Fatalf("Allowed().IsAllowed() = false, want true")
		}
		if _, ok := r.Reason(); ok {
			t.Errorf("Allowed() should not carry a reason")
		}
		// Stateless singleton: repeated calls agree on logical state.
		if Allowed().IsAllowed() != Allowed().IsAllowed() {
			t.Errorf("Allowed() is not stable across invocations")
		}
	})

	t.Run("denied carries its reason", func(t *testing.T) {
		m := text.Plain("server is full")
		r := Denied(m)
		if r.IsAllowed() {
			t.Fatalf("Denied(m).IsAllowed() = true, want false")
		}
		reason, ok := r.Reason()
		if !ok {
			t.Fatalf("Denied(m).Reason() reported absent")
		}
		if reason != m {
			t.Errorf("Reason() = %q, want %q", reason, m)
		}
	})

	t.Run("denied without reason panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatalf("Denied(empty) did not panic")
			}
		}()
		Denied(text.Component{})
	})
}

func TestHandshakeEventContract(t *testing.T) {
	t.Run("initial result is allowed", func(t *testing.T) {
		e := NewHandshakeEvent(newFakeConn("c1"), IntentLogin)
		if !e.Result().IsAllowed() {
			t.Errorf("fresh event result should be allowed")
		}
	})

	t.Run("nil connection panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatalf("NewHandshakeEvent(nil, ...) did not panic")
			}
		}()
		NewHandshakeEvent(nil, IntentLogin)
	})

	t.Run("zero intent panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatalf("NewHandshakeEvent with zero intent did not panic")
			}
		}()
		NewHandshakeEvent(newFakeConn("c1"), 0)
	})

	t.Run("nil result panics", func(t *testing.T) {
		e := NewHandshakeEvent(newFakeConn("c1"), IntentStatus)
		defer func() {
			if recover() == nil {
				t.Fatalf("SetResult(nil) did not panic")
			}
		}()
		e.SetResult(nil)
	})

	t.Run("login default factory", func(t *testing.T) {
		e := NewHandshakeEventAssumingLogin(newFakeConn("c1"))
		if e.Intent() != IntentLogin {
			t.Errorf("defaulted intent = %s, want login", e.Intent())
		}
	})
}

func TestDispatchLastWriterWins(t *testing.T) {
	reason := text.Plain("blocked by l1")

	deny := func(e *HandshakeEvent) { e.SetResult(Denied(reason)) }
	allow := func(e *HandshakeEvent) { e.SetResult(Allowed()) }

	t.Run("deny then allow resolves allowed", func(t *testing.T) {
		d := NewDispatcher()
		Subscribe(d, PriorityEarly, deny)
		Subscribe(d, PriorityNormal, allow)

		e := NewHandshakeEvent(newFakeConn("c1"), IntentLogin)
		d.Fire(context.Background(), e)

		if !e.Result().IsAllowed() {
			t.Fatalf("final result = denied, want allowed (later listener wins)")
		}
		if _, ok := e.Result().Reason(); ok {
			t.Errorf("allowed final result must not carry a reason")
		}
	})

	t.Run("allow then deny resolves denied", func(t *testing.T) {
		d := NewDispatcher()
		Subscribe(d, PriorityEarly, allow)
		Subscribe(d, PriorityNormal, deny)

		e := NewHandshakeEvent(newFakeConn("c1"), IntentLogin)
		d.Fire(context.Background(), e)

		if e.Result().IsAllowed() {
			t.Fatalf("final result = allowed, want denied (ordering decides)")
		}
		got, _ := e.Result().Reason()
		if got != reason {
			t.Errorf("reason = %q, want %q", got, reason)
		}
	})
}

func TestDispatchOrdering(t *testing.T) {
	t.Run("priority then registration order", func(t *testing.T) {
		d := NewDispatcher()
		var order []string
		record := func(name string) func(*HandshakeEvent) {
			return func(*HandshakeEvent) { order = append(order, name) }
		}

		Subscribe(d, PriorityNormal, record("n1"))
		Subscribe(d, PriorityLast, record("last"))
		Subscribe(d, PriorityFirst, record("first"))
		Subscribe(d, PriorityNormal, record("n2"))

		d.Fire(context.Background(), NewHandshakeEvent(newFakeConn("c1"), IntentLogin))

		want := "first,n1,n2,last"
		if got := strings.Join(order, ","); got != want {
			t.Errorf("invocation order = %s, want %s", got, want)
		}
	})

	t.Run("unsubscribe removes the listener", func(t *testing.T) {
		d := NewDispatcher()
		calls := 0
		unsubscribe := Subscribe(d, PriorityNormal, func(*HandshakeEvent) { calls++ })

		if !d.HasSubscribers(NewHandshakeEvent(newFakeConn("c0"), IntentLogin)) {
			t.Fatalf("HasSubscribers = false with a live subscription")
		}

		d.Fire(context.Background(), NewHandshakeEvent(newFakeConn("c1"), IntentLogin))
		unsubscribe()
		d.Fire(context.Background(), NewHandshakeEvent(newFakeConn("c2"), IntentLogin))

		if calls != 1 {
			t.Errorf("listener ran %d times, want 1", calls)
		}
		if d.HasSubscribers(NewHandshakeEvent(newFakeConn("c3"), IntentLogin)) {
			t.Errorf("HasSubscribers = true after unsubscribe")
		}
	})
}

func TestDispatchListenerFailure(t *testing.T) {
	reason := text.Plain("denied before failure")

	d := NewDispatcher(WithLogger(log.New(&strings.Builder{}, "", 0)))
	var hookFired bool
	d.panicHook = func(Event, any) { hookFired = true }

	ranAfter := false
	Subscribe(d, PriorityFirst, func(e *HandshakeEvent) { e.SetResult(Denied(reason)) })
	Subscribe(d, PriorityEarly, func(e *HandshakeEvent) { panic("listener bug") })
	Subscribe(d, PriorityNormal, func(e *HandshakeEvent) { ranAfter = true })

	e := NewHandshakeEvent(newFakeConn("c1"), IntentLogin)
	d.Fire(context.Background(), e)

	if !ranAfter {
		t.Fatalf("listener after the panicking one did not run")
	}
	if e.Result().IsAllowed() {
		t.Errorf("panic altered the result; want the pre-failure deny preserved")
	}
	if got, _ := e.Result().Reason(); got != reason {
		t.Errorf("reason = %q, want %q", got, reason)
	}
	if !hookFired {
		t.Errorf("panic hook was not invoked")
	}
}

func TestDispatchZeroListeners(t *testing.T) {
	// Fail-open: an event nobody inspects resolves allowed.
	d := NewDispatcher()
	e := NewHandshakeEvent(newFakeConn("c1"), IntentStatus)
	d.Fire(context.Background(), e)
	if !e.Result().IsAllowed() {
		t.Fatalf("zero-listener dispatch resolved %s, want allowed", e.Result())
	}
}

func TestDispatchTimeout(t *testing.T) {
	t.Run("resolves with last-set result by the deadline", func(t *testing.T) {
		reason := text.Plain("denied before the stall")
		release := make(chan struct{})
		d := NewDispatcher()

		Subscribe(d, PriorityFirst, func(e *HandshakeEvent) { e.SetResult(Denied(reason)) })
		Subscribe(d, PriorityNormal, func(e *HandshakeEvent) { <-release })
		skipped := false
		Subscribe(d, PriorityLast, func(e *HandshakeEvent) { skipped = true })

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		e := NewHandshakeEvent(newFakeConn("c1"), IntentLogin)
		start := time.Now()
		d.Fire(ctx, e)
		elapsed := time.Since(start)

		if elapsed > time.Second {
			t.Fatalf("Fire blocked %s past the 50ms deadline", elapsed)
		}
		if e.Result().IsAllowed() {
			t.Errorf("timed-out dispatch lost the deny set before the stall")
		}
		close(release)
		// Give the stalled chain a moment to observe the sealed event.
		time.Sleep(20 * time.Millisecond)
		if skipped {
			t.Errorf("listener after the deadline still ran")
		}
	})

	t.Run("late write is a no-op", func(t *testing.T) {
		release := make(chan struct{})
		wrote := make(chan struct{})
		d := NewDispatcher()
		Subscribe(d, PriorityNormal, func(e *HandshakeEvent) {
			<-release
			e.SetResult(Denied(text.Plain("too late")))
			close(wrote)
		})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		e := NewHandshakeEvent(newFakeConn("c1"), IntentLogin)
		d.Fire(ctx, e)

		if !e.Result().IsAllowed() {
			t.Fatalf("event resolved %s before any listener wrote, want allowed", e.Result())
		}
		close(release)
		<-wrote
		if !e.Result().IsAllowed() {
			t.Errorf("late SetResult after resolution was not discarded")
		}
	})
}

func TestDispatchConcurrentEvents(t *testing.T) {
	// N independent connections converge to independent outcomes.
	const n = 64
	d := NewDispatcher()
	Subscribe(d, PriorityNormal, func(e *HandshakeEvent) {
		if strings.HasPrefix(e.Connection().ID(), "bad-") {
			e.SetResult(Denied(text.Plainf("connection %s rejected", e.Connection().ID())))
		}
	})

	var wg sync.WaitGroup
	events := make([]*HandshakeEvent, n)
	for i := 0; i < n; i++ {
		prefix := "ok"
		if i%2 == 1 {
			prefix = "bad"
		}
		events[i] = NewHandshakeEvent(newFakeConn(fmt.Sprintf("%s-%d", prefix, i)), IntentLogin)
		wg.Add(1)
		go func(e *HandshakeEvent) {
			defer wg.Done()
			d.Fire(context.Background(), e)
		}(events[i])
	}
	wg.Wait()

	for i, e := range events {
		wantAllowed := i%2 == 0
		if e.Result().IsAllowed() != wantAllowed {
			t.Errorf("event %d resolved %s, want allowed=%v", i, e.Result(), wantAllowed)
		}
	}
}

func TestFireAndForget(t *testing.T) {
	d := NewDispatcher()
	delivered := make(chan string, 1)
	Subscribe(d, PriorityNormal, func(e *HandshakeEvent) {
		delivered <- e.Connection().ID()
	})

	d.FireAndForget(NewHandshakeEvent(newFakeConn("c1"), IntentStatus))

	select {
	case id := <-delivered:
		if id != "c1" {
			t.Errorf("delivered event for %s, want c1", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("event was never delivered")
	}
}

func TestPreLoginEventSharesTheContract(t *testing.T) {
	d := NewDispatcher()
	Subscribe(d, PriorityNormal, func(e *PreLoginEvent) {
		if e.Username() == "banned_user" {
			e.SetResult(Denied(text.Plain("account is banned")))
		}
	})
	// A handshake listener must not see pre-login events.
	Subscribe(d, PriorityNormal, func(e *HandshakeEvent) {
		t.Errorf("handshake listener invoked for pre-login dispatch")
	})

	e := NewPreLoginEvent(newFakeConn("c1"), "banned_user")
	d.Fire(context.Background(), e)
	if e.Result().IsAllowed() {
		t.Fatalf("pre-login deny did not take effect")
	}
}
