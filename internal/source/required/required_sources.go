// Package required provides the required input sources for static check
package required

import (
	"context"
	"time"

	"github.com/drawbridge-proxy/drawbridge/internal/listener/policy"
	"github.com/drawbridge-proxy/drawbridge/pkg/event"
)

// RemoteAddrSource provides the remote_addr input
type RemoteAddrSource struct{}

var _ policy.Source = (*RemoteAddrSource)(nil)

// Describe implements the Source interface
func (s *RemoteAddrSource) Describe() policy.Schema {
	return policy.Schema{
		ID:          "remote_addr",
		Description: "IP address of the inbound peer",
	}
}

// Collect implements the Source interface
func (s *RemoteAddrSource) Collect(_ context.Context, _ event.InboundConnection, _ event.HandshakeIntent) (policy.Input, error) {
	return policy.NewInput("remote_addr", "", time.Now()), nil
}

// IntentSource provides the intent input
type IntentSource struct{}

var _ policy.Source = (*IntentSource)(nil)

// Describe implements the Source interface
func (s *IntentSource) Describe() policy.Schema {
	return policy.Schema{
		ID:          "intent",
		Description: "Declared intent of the handshake",
	}
}

// Collect implements the Source interface
func (s *IntentSource) Collect(_ context.Context, _ event.InboundConnection, _ event.HandshakeIntent) (policy.Input, error) {
	return policy.NewInput("intent", "", time.Now()), nil
}

// VirtualHostSource provides the virtual_host input
type VirtualHostSource struct{}

var _ policy.Source = (*VirtualHostSource)(nil)

// Describe implements the Source interface
func (s *VirtualHostSource) Describe() policy.Schema {
	return policy.Schema{
		ID:          "virtual_host",
		Description: "Hostname the client claims to be connecting to",
	}
}

// Collect implements the Source interface
func (s *VirtualHostSource) Collect(_ context.Context, _ event.InboundConnection, _ event.HandshakeIntent) (policy.Input, error) {
	return policy.NewInput("virtual_host", "", time.Now()), nil
}

// ReputationScoreSource provides the reputation_score input
type ReputationScoreSource struct{}

var _ policy.Source = (*ReputationScoreSource)(nil)

// Describe implements the Source interface
func (s *ReputationScoreSource) Describe() policy.Schema {
	return policy.Schema{
		ID:          "reputation_score",
		Description: "Abuse-reputation score of the peer address (0-100)",
	}
}

// Collect implements the Source interface
func (s *ReputationScoreSource) Collect(_ context.Context, _ event.InboundConnection, _ event.HandshakeIntent) (policy.Input, error) {
	return policy.NewInput("reputation_score", 0, time.Now()), nil
}

// MaxReputationScoreSource provides the max_reputation_score input
type MaxReputationScoreSource struct{}

var _ policy.Source = (*MaxReputationScoreSource)(nil)

// Describe implements the Source interface
func (s *MaxReputationScoreSource) Describe() policy.Schema {
	return policy.Schema{
		ID:          "max_reputation_score",
		Description: "Reputation score at or above which connections are denied",
	}
}

// Collect implements the Source interface
func (s *MaxReputationScoreSource) Collect(_ context.Context, _ event.InboundConnection, _ event.HandshakeIntent) (policy.Input, error) {
	return policy.NewInput("max_reputation_score", 0, time.Now()), nil
}
