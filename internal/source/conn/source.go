// Package conn provides the connection-context input sources.
package conn

import (
	"context"
	"net"
	"time"

	"github.com/drawbridge-proxy/drawbridge/internal/listener/policy"
	"github.com/drawbridge-proxy/drawbridge/pkg/event"
)

// Source implements policy.Source for facts carried by the connection
// itself. The value function selects which aspect this instance exposes.
type Source struct {
	inputID     string
	description string
	valueFunc   func(conn event.InboundConnection, intent event.HandshakeIntent) any
}

var _ policy.Source = (*Source)(nil)

// NewRemoteAddrSource exposes the peer's IP address as "remote_addr".
func NewRemoteAddrSource() *Source {
	return &Source{
		inputID:     "remote_addr",
		description: "IP address of the inbound peer",
		valueFunc: func(conn event.InboundConnection, _ event.HandshakeIntent) any {
			return hostOnly(conn.RemoteAddr())
		},
	}
}

// NewIntentSource exposes the declared handshake intent as "intent".
func NewIntentSource() *Source {
	return &Source{
		inputID:     "intent",
		description: "Declared intent of the handshake",
		valueFunc: func(_ event.InboundConnection, intent event.HandshakeIntent) any {
			return intent.String()
		},
	}
}

// NewVirtualHostSource exposes the claimed virtual host as "virtual_host".
func NewVirtualHostSource() *Source {
	return &Source{
		inputID:     "virtual_host",
		description: "Hostname the client claims to be connecting to",
		valueFunc: func(conn event.InboundConnection, _ event.HandshakeIntent) any {
			return conn.VirtualHost()
		},
	}
}

// NewSource creates a connection-context source with a custom value function.
func NewSource(inputID, description string, valueFunc func(event.InboundConnection, event.HandshakeIntent) any) *Source {
	return &Source{
		inputID:     inputID,
		description: description,
		valueFunc:   valueFunc,
	}
}

// Describe implements policy.Source.
func (s *Source) Describe() policy.Schema {
	return policy.Schema{
		ID:          s.inputID,
		Description: s.description,
	}
}

// Collect implements policy.Source. Connection facts are always fresh and
// never touch the network.
func (s *Source) Collect(_ context.Context, conn event.InboundConnection, intent event.HandshakeIntent) (policy.Input, error) {
	return policy.NewInput(s.inputID, s.valueFunc(conn, intent), time.Now()), nil
}

// hostOnly strips the port from an address, falling back to the raw string
// for address types without one.
func hostOnly(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
