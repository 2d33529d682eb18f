package event

import (
	"fmt"
	"net"
	"strings"
)

// HandshakeIntent is the purpose a client declares in its initial handshake.
type HandshakeIntent int

const (
	// IntentLogin means the client wants to establish a session.
	IntentLogin HandshakeIntent = iota + 1
	// IntentStatus means the client only wants a status/ping response.
	IntentStatus
	// IntentTransfer means the client was transferred from another host.
	IntentTransfer
)

func (i HandshakeIntent) String() string {
	switch i {
	case IntentLogin:
		return "login"
	case IntentStatus:
		return "status"
	case IntentTransfer:
		return "transfer"
	default:
		return fmt.Sprintf("intent(%d)", int(i))
	}
}

// ParseIntent maps a wire token ("LOGIN", "status", ...) to an intent.
func ParseIntent(s string) (HandshakeIntent, error) {
	switch strings.ToLower(s) {
	case "login":
		return IntentLogin, nil
	case "status":
		return IntentStatus, nil
	case "transfer":
		return IntentTransfer, nil
	default:
		return 0, fmt.Errorf("unknown handshake intent %q", s)
	}
}

// InboundConnection is the immutable view of a client connection offered to
// listeners. The networking layer owns the concrete value; the decision core
// never writes through it.
type InboundConnection interface {
	// ID is the proxy-assigned identifier for this connection attempt.
	ID() string
	// RemoteAddr is the peer's network address.
	RemoteAddr() net.Addr
	// VirtualHost is the hostname the client claims to be connecting to.
	VirtualHost() string
}

// HandshakeEvent fires when a client completes its initial handshake with
// the proxy, before any further session setup. Listeners may deny the
// connection by replacing the result; the gate will not continue past the
// handshake until the event resolves.
type HandshakeEvent struct {
	conn    InboundConnection
	intent  HandshakeIntent
	results resultSlot
}

var _ ResultedEvent[*ComponentResult] = (*HandshakeEvent)(nil)

// NewHandshakeEvent creates a handshake event for the given connection and
// declared intent. Both are required; nil or zero values panic.
func NewHandshakeEvent(conn InboundConnection, intent HandshakeIntent) *HandshakeEvent {
	if conn == nil {
		panic("event: NewHandshakeEvent requires a connection")
	}
	if intent == 0 {
		panic("event: NewHandshakeEvent requires an intent")
	}
	return &HandshakeEvent{
		conn:    conn,
		intent:  intent,
		results: newResultSlot(),
	}
}

// NewHandshakeEventAssumingLogin creates a handshake event with the intent
// defaulted to IntentLogin.
//
// Deprecated: the default hides status pings from intent-aware listeners.
// It exists for callers written before intents were carried on the
// handshake; new code should state the intent with NewHandshakeEvent.
func NewHandshakeEventAssumingLogin(conn InboundConnection) *HandshakeEvent {
	return NewHandshakeEvent(conn, IntentLogin)
}

// Connection returns the inbound connection under decision.
func (e *HandshakeEvent) Connection() InboundConnection {
	return e.conn
}

// Intent returns the declared purpose of the handshake.
func (e *HandshakeEvent) Intent() HandshakeIntent {
	return e.intent
}

// Result implements ResultedEvent. The initial result is Allowed.
func (e *HandshakeEvent) Result() *ComponentResult {
	return e.results.get()
}

// SetResult implements ResultedEvent. Last writer wins.
func (e *HandshakeEvent) SetResult(r *ComponentResult) {
	e.results.set(r)
}

func (e *HandshakeEvent) slot() *resultSlot {
	return &e.results
}

func (e *HandshakeEvent) String() string {
	return fmt.Sprintf("HandshakeEvent{connection=%s, intent=%s, result=%s}",
		e.conn.ID(), e.intent, e.Result())
}
