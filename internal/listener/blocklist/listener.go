package blocklist

import (
	"fmt"
	"net"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/drawbridge-proxy/drawbridge/pkg/event"
	"github.com/drawbridge-proxy/drawbridge/pkg/text"
)

// Decision is the result of evaluating a handshake against the rule set.
type Decision struct {
	Allow       bool
	MatchedRule int    // index of the matched rule, -1 if default was used
	Reason      string // human-readable explanation
}

// Listener applies a RuleSet to each handshake. It subscribes at First
// priority so its verdict lands before the policy and rate-limit listeners
// run; later listeners may still overwrite it.
type Listener struct {
	rules *RuleSet
}

// NewListener creates a blocklist listener over a compiled rule set.
func NewListener(rules *RuleSet) *Listener {
	return &Listener{rules: rules}
}

// Register subscribes the listener and returns the unsubscribe func.
func (l *Listener) Register(d *event.Dispatcher) func() {
	return event.Subscribe(d, event.PriorityFirst, l.OnHandshake)
}

// OnHandshake is the listener body; exported for direct use in tests.
func (l *Listener) OnHandshake(e *event.HandshakeEvent) {
	decision := l.Evaluate(e.Connection(), e.Intent())
	if !decision.Allow {
		e.SetResult(event.Denied(text.Plain(decision.Reason)))
	}
}

// Evaluate checks the connection against the rules top-down; first match
// wins, then the configured default.
func (l *Listener) Evaluate(conn event.InboundConnection, intent event.HandshakeIntent) Decision {
	peerIP := remoteIP(conn.RemoteAddr())

	for i, rule := range l.rules.Rules {
		if !rule.matches(conn.VirtualHost(), peerIP, intent) {
			continue
		}
		allow := rule.Action == "allow"
		reason := rule.Reason
		if reason == "" {
			reason = fmt.Sprintf("matched blocklist rule %d", i)
		}
		return Decision{
			Allow:       allow,
			MatchedRule: i,
			Reason:      reason,
		}
	}

	// No rule matched; fall back to default
	allow := l.rules.Default == "allow"
	return Decision{
		Allow:       allow,
		MatchedRule: -1,
		Reason:      "no matching rule, using default: " + l.rules.Default,
	}
}

// matches reports whether every populated selector matches.
func (r *Rule) matches(virtualHost string, peerIP net.IP, intent event.HandshakeIntent) bool {
	if r.Host != "" && !globMatch(r.Host, virtualHost) {
		return false
	}
	if r.network != nil && (peerIP == nil || !r.network.Contains(peerIP)) {
		return false
	}
	if len(r.Intents) > 0 {
		found := false
		for _, name := range r.Intents {
			if name == intent.String() {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// globMatch checks if a value matches a glob pattern.
// Supports ** for recursive matching.
func globMatch(pattern, value string) bool {
	matched, err := doublestar.Match(pattern, value)
	if err != nil {
		return false
	}
	return matched
}

func remoteIP(addr net.Addr) net.IP {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		host = addr.String()
	}
	return net.ParseIP(host)
}
