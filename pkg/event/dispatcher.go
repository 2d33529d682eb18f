package event

import (
	"context"
	"log"
	"reflect"
	"runtime/debug"
	"sync"
)

// Listener priorities. Higher priorities run earlier; within one priority,
// registration order decides. Because replacement is last-writer-wins, the
// listener that runs last has the final say.
const (
	PriorityFirst  = 400
	PriorityEarly  = 200
	PriorityNormal = 0
	PriorityLate   = -200
	PriorityLast   = -400
)

// PanicHook is called when a listener panics during dispatch. The chain
// continues with the next listener regardless.
type PanicHook func(e Event, recovered any)

// Dispatcher delivers events to subscribed listeners.
//
// For one event the listener chain runs strictly in order on a goroutine
// owned by the dispatch, one listener at a time; the result slot therefore
// has a single writer without any lock on the result itself. Independent
// events dispatch fully in parallel.
//
// An event nobody subscribes to resolves with its initial result, which for
// resulted events is Allowed: the dispatcher fails open.
type Dispatcher struct {
	logger    *log.Logger
	panicHook PanicHook

	mu   sync.RWMutex
	seq  uint64
	subs map[reflect.Type][]*subscription
}

type subscription struct {
	priority int
	seq      uint64
	invoke   func(Event)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used to report listener failures.
func WithLogger(l *log.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithPanicHook installs a callback observing recovered listener panics,
// typically to feed a failure metric.
func WithPanicHook(h PanicHook) Option {
	return func(d *Dispatcher) { d.panicHook = h }
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger: log.Default(),
		subs:   make(map[reflect.Type][]*subscription),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe registers fn for events of concrete type T on d and returns a
// function that removes the registration. Matching is by exact type; there
// is no supertype walk.
//
// fn runs on the dispatch goroutine of each fired event and may block (for
// example on a remote lookup) without stalling other events' dispatches.
func Subscribe[T Event](d *Dispatcher, priority int, fn func(T)) (unsubscribe func()) {
	if fn == nil {
		panic("event: Subscribe requires a listener func")
	}
	t := reflect.TypeOf((*T)(nil)).Elem()

	d.mu.Lock()
	d.seq++
	sub := &subscription{
		priority: priority,
		seq:      d.seq,
		invoke:   func(e Event) { fn(e.(T)) },
	}
	d.subs[t] = insertOrdered(d.subs[t], sub)
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		list := d.subs[t]
		for i, s := range list {
			if s == sub {
				d.subs[t] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// insertOrdered keeps the list sorted by priority descending, then
// registration sequence ascending, so dispatch order is deterministic.
func insertOrdered(list []*subscription, sub *subscription) []*subscription {
	i := len(list)
	for ; i > 0; i-- {
		if list[i-1].priority >= sub.priority {
			break
		}
	}
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = sub
	return list
}

// Fire dispatches e and blocks until the event is resolved or ctx is done.
//
// On ctx expiry the event resolves with whatever result it currently holds,
// no further listeners are invoked for it, and a still-running listener's
// eventual SetResult is discarded. Fire never surfaces listener failures;
// callers only ever observe a resolved result.
func (d *Dispatcher) Fire(ctx context.Context, e Event) {
	if e == nil {
		panic("event: Fire requires an event")
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.deliver(ctx, e)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
	sealEvent(e)
}

// FireAndForget dispatches e without waiting for resolution. Intended for
// observational events; gating decisions must use Fire so the caller sees
// the resolved result before proceeding.
func (d *Dispatcher) FireAndForget(e Event) {
	if e == nil {
		panic("event: FireAndForget requires an event")
	}
	go func() {
		d.deliver(context.Background(), e)
		sealEvent(e)
	}()
}

// HasSubscribers reports whether any listener is registered for e's type.
func (d *Dispatcher) HasSubscribers(e Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs[reflect.TypeOf(e)]) > 0
}

// deliver runs the listener chain for e. It snapshots the subscription list
// so registrations made mid-dispatch do not affect an in-flight event.
func (d *Dispatcher) deliver(ctx context.Context, e Event) {
	d.mu.RLock()
	list := d.subs[reflect.TypeOf(e)]
	chain := make([]*subscription, len(list))
	copy(chain, list)
	d.mu.RUnlock()

	for _, sub := range chain {
		if ctx.Err() != nil {
			return
		}
		if r, ok := e.(resolvable); ok && r.slot().isResolved() {
			// Sealed by a timed-out Fire; the decision is already final.
			return
		}
		d.invokeOne(sub, e)
	}
}

// invokeOne runs a single listener, isolating panics so one misbehaving
// listener cannot abort the rest of the chain. The result is left exactly
// as the failed listener last set it.
func (d *Dispatcher) invokeOne(sub *subscription, e Event) {
	defer func() {
		if recovered := recover(); recovered != nil {
			d.logger.Printf("event: listener panic during %T dispatch: %v\n%s",
				e, recovered, debug.Stack())
			if d.panicHook != nil {
				d.panicHook(e, recovered)
			}
		}
	}()
	sub.invoke(e)
}

func sealEvent(e Event) {
	if r, ok := e.(resolvable); ok {
		r.slot().seal()
	}
}
