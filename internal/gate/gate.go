// Package gate applies resolved decision events to real connections: it is
// the single caller allowed to move a connection past a lifecycle stage.
package gate

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drawbridge-proxy/drawbridge/internal/metrics"
	"github.com/drawbridge-proxy/drawbridge/pkg/event"
	"github.com/drawbridge-proxy/drawbridge/pkg/text"
)

// defaultDenyReason is transmitted when a deny carries no reason, which the
// Denied contract rules out for listener-set results but remains possible
// for policy applied by the gate itself.
var defaultDenyReason = text.Plain("connection refused")

// Record describes one resolved admission decision for the audit trail.
type Record struct {
	Stage        string // "handshake" or "prelogin"
	ConnectionID string
	RemoteAddr   string
	VirtualHost  string
	Intent       string
	Allowed      bool
	Reason       string
	Duration     time.Duration
	TimedOut     bool
}

// Recorder persists decision records.
type Recorder interface {
	// RecordDecision records the outcome of a resolved admission decision.
	RecordDecision(ctx context.Context, rec Record) error
}

// Disconnector closes a denied connection, transmitting the reason to the
// peer first. The networking layer provides the implementation.
type Disconnector interface {
	Disconnect(reason text.Component) error
}

// Gate fires decision events, awaits their resolution, and applies the
// final outcome. It never proceeds past a stage before the event's dispatch
// has resolved, and it never observes listener-level faults: only a resolved
// result, allowed or denied.
type Gate struct {
	dispatcher *event.Dispatcher
	recorder   Recorder
	timeout    time.Duration
	logger     *log.Logger
}

// New creates a gate. timeout bounds one dispatch; zero means no bound.
func New(dispatcher *event.Dispatcher, recorder Recorder, timeout time.Duration) *Gate {
	return &Gate{
		dispatcher: dispatcher,
		recorder:   recorder,
		timeout:    timeout,
		logger:     log.Default(),
	}
}

// HandleHandshake runs the admission decision for one handshake attempt.
// On deny the connection has already been disconnected (with the reason
// transmitted) when this returns; on allow the caller continues the session
// pipeline. The returned result is final for this connection attempt.
func (g *Gate) HandleHandshake(ctx context.Context, conn event.InboundConnection, intent event.HandshakeIntent, closer Disconnector) *event.ComponentResult {
	e := event.NewHandshakeEvent(conn, intent)
	return g.apply(ctx, e, Record{
		Stage:        "handshake",
		ConnectionID: conn.ID(),
		RemoteAddr:   conn.RemoteAddr().String(),
		VirtualHost:  conn.VirtualHost(),
		Intent:       intent.String(),
	}, closer)
}

// HandlePreLogin gates the named account's login on an already-admitted
// connection. Same contract as HandleHandshake.
func (g *Gate) HandlePreLogin(ctx context.Context, conn event.InboundConnection, username string, closer Disconnector) *event.ComponentResult {
	e := event.NewPreLoginEvent(conn, username)
	return g.apply(ctx, e, Record{
		Stage:        "prelogin",
		ConnectionID: conn.ID(),
		RemoteAddr:   conn.RemoteAddr().String(),
		VirtualHost:  conn.VirtualHost(),
		Intent:       event.IntentLogin.String(),
	}, closer)
}

// apply dispatches e, waits for resolution, records the decision, and
// enforces it on the connection.
func (g *Gate) apply(ctx context.Context, e event.ResultedEvent[*event.ComponentResult], rec Record, closer Disconnector) *event.ComponentResult {
	dispatchCtx := ctx
	var cancel context.CancelFunc
	if g.timeout > 0 {
		dispatchCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	timer := prometheus.NewTimer(metrics.DispatchLatency.WithLabelValues(rec.Stage))
	start := time.Now()
	g.dispatcher.Fire(dispatchCtx, e)
	timer.ObserveDuration()

	rec.TimedOut = dispatchCtx.Err() != nil
	if rec.TimedOut {
		metrics.DispatchTimeouts.WithLabelValues(rec.Stage).Inc()
	}

	result := e.Result()
	rec.Allowed = result.IsAllowed()
	rec.Duration = time.Since(start)
	if r, ok := result.Reason(); ok {
		rec.Reason = r.String()
	}
	g.record(ctx, rec)

	if result.IsAllowed() {
		metrics.Decisions.WithLabelValues(rec.Intent, "allow").Inc()
		return result
	}

	metrics.Decisions.WithLabelValues(rec.Intent, "deny").Inc()
	reason, ok := result.Reason()
	if !ok {
		reason = defaultDenyReason
	}
	if err := closer.Disconnect(reason); err != nil {
		g.logger.Printf("gate: disconnecting %s: %v", rec.ConnectionID, err)
	}
	return result
}

func (g *Gate) record(ctx context.Context, rec Record) {
	if g.recorder == nil {
		return
	}
	if err := g.recorder.RecordDecision(ctx, rec); err != nil {
		g.logger.Printf("gate: recording decision for %s: %v", rec.ConnectionID, err)
	}
}
