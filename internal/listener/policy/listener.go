package policy

import (
	"context"
	"log"
	"strings"

	"github.com/drawbridge-proxy/drawbridge/pkg/event"
	"github.com/drawbridge-proxy/drawbridge/pkg/text"
)

// Listener evaluates the Rego admission policy for each handshake and denies
// the connection when the policy says so.
//
// Failures anywhere in the pipeline (bundle load, input collection, policy
// evaluation) are logged and leave the event's result untouched: the policy
// listener fails open, matching the dispatcher's default. It also never
// replaces an existing deny with an allow, so a higher-priority listener's
// rejection stands.
type Listener struct {
	registry *SourceRegistry
	provider Provider
	engine   *Engine
	opts     SnapshotOpts
	logger   *log.Logger
}

// NewListener wires a policy listener from its parts.
func NewListener(registry *SourceRegistry, provider Provider, opts SnapshotOpts) *Listener {
	return &Listener{
		registry: registry,
		provider: provider,
		engine:   NewEngine(),
		opts:     opts,
		logger:   log.Default(),
	}
}

// Register subscribes the listener at Early priority so later, more specific
// listeners can still override its verdict. Returns the unsubscribe func.
func (l *Listener) Register(d *event.Dispatcher) func() {
	return event.Subscribe(d, event.PriorityEarly, l.OnHandshake)
}

// OnHandshake is the listener body; exported for direct use in tests.
func (l *Listener) OnHandshake(e *event.HandshakeEvent) {
	if !e.Result().IsAllowed() {
		// An earlier listener already denied; policy does not second-guess.
		return
	}

	ctx := context.Background()

	bundle, err := l.provider.GetBundle(ctx)
	if err != nil {
		l.logger.Printf("policy: bundle unavailable, admitting %s unexamined: %v", e.Connection().ID(), err)
		return
	}

	input, err := l.registry.Snapshot(ctx, e.Connection(), e.Intent(), l.opts)
	if err != nil {
		l.logger.Printf("policy: input collection failed for %s: %v", e.Connection().ID(), err)
		return
	}

	decision, err := l.engine.Evaluate(ctx, bundle, input)
	if err != nil {
		l.logger.Printf("policy: evaluation failed for %s: %v", e.Connection().ID(), err)
		return
	}

	if !decision.Allow {
		reason := "connection rejected by policy"
		if len(decision.DenyReasons) > 0 {
			reason = strings.Join(decision.DenyReasons, "; ")
		}
		e.SetResult(event.Denied(text.Plain(reason)))
	}
}
