package event

import "fmt"

// PreLoginEvent fires after an allowed login handshake, once the client has
// named the account it wants to authenticate as but before credentials are
// checked. It carries the same result contract as HandshakeEvent; the two
// share one dispatcher and one outcome type.
type PreLoginEvent struct {
	conn     InboundConnection
	username string
	results  resultSlot
}

var _ ResultedEvent[*ComponentResult] = (*PreLoginEvent)(nil)

// NewPreLoginEvent creates a pre-login event. Connection and username are
// required; missing values panic.
func NewPreLoginEvent(conn InboundConnection, username string) *PreLoginEvent {
	if conn == nil {
		panic("event: NewPreLoginEvent requires a connection")
	}
	if username == "" {
		panic("event: NewPreLoginEvent requires a username")
	}
	return &PreLoginEvent{
		conn:     conn,
		username: username,
		results:  newResultSlot(),
	}
}

// Connection returns the inbound connection under decision.
func (e *PreLoginEvent) Connection() InboundConnection {
	return e.conn
}

// Username returns the account name the client presented.
func (e *PreLoginEvent) Username() string {
	return e.username
}

// Result implements ResultedEvent.
func (e *PreLoginEvent) Result() *ComponentResult {
	return e.results.get()
}

// SetResult implements ResultedEvent.
func (e *PreLoginEvent) SetResult(r *ComponentResult) {
	e.results.set(r)
}

func (e *PreLoginEvent) slot() *resultSlot {
	return &e.results
}

func (e *PreLoginEvent) String() string {
	return fmt.Sprintf("PreLoginEvent{connection=%s, username=%s, result=%s}",
		e.conn.ID(), e.username, e.Result())
}
