// Package reputation looks up the peer's address reputation from an external
// scoring service.
package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drawbridge-proxy/drawbridge/internal/listener/policy"
	"github.com/drawbridge-proxy/drawbridge/internal/metrics"
	"github.com/drawbridge-proxy/drawbridge/pkg/event"
)

// Source implements policy.Source for an address-reputation API endpoint.
// Verdicts are cached per address for the configured TTL so handshake floods
// from one peer do not fan out into lookup floods.
type Source struct {
	baseURL     string
	inputID     string
	httpClient  *http.Client
	cacheTTL    time.Duration
	description string

	mu     sync.RWMutex
	cached map[string]cachedInput
}

type cachedInput struct {
	input  policy.Input
	expiry time.Time
}

var _ policy.Source = (*Source)(nil)

// NewSource creates a new reputation source.
func NewSource(baseURL string, cacheTTL time.Duration) *Source {
	return &Source{
		baseURL:     baseURL,
		inputID:     "reputation_score",
		httpClient:  &http.Client{Timeout: 5 * time.Second},
		cacheTTL:    cacheTTL,
		description: "Abuse-reputation score of the peer address (0-100)",
		cached:      make(map[string]cachedInput),
	}
}

// Describe implements policy.Source.
func (s *Source) Describe() policy.Schema {
	return policy.Schema{
		ID:          s.inputID,
		Description: s.description,
	}
}

// Collect implements policy.Source.
func (s *Source) Collect(ctx context.Context, conn event.InboundConnection, _ event.HandshakeIntent) (policy.Input, error) {
	timer := prometheus.NewTimer(metrics.SourceCollectLatency.WithLabelValues(s.inputID))
	defer timer.ObserveDuration()

	addr := hostOnly(conn.RemoteAddr())

	s.mu.RLock()
	if entry, ok := s.cached[addr]; ok && time.Now().Before(entry.expiry) {
		s.mu.RUnlock()
		return entry.input, nil
	}
	s.mu.RUnlock()

	url := fmt.Sprintf("%s/api/reputation/%s", s.baseURL, addr)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		metrics.SourceCollectErrors.WithLabelValues(s.inputID, "request_creation").Inc()
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		metrics.SourceCollectErrors.WithLabelValues(s.inputID, "http_error").Inc()
		return nil, fmt.Errorf("%w: %v", policy.ErrSourceUnavailable, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			metrics.SourceCollectErrors.WithLabelValues(s.inputID, "body_close_error").Inc()
		}
	}()

	if resp.StatusCode != http.StatusOK {
		metrics.SourceCollectErrors.WithLabelValues(s.inputID, fmt.Sprintf("status_%d", resp.StatusCode)).Inc()
		return nil, fmt.Errorf("%w: unexpected status code %d", policy.ErrSourceUnavailable, resp.StatusCode)
	}

	var result struct {
		Score int `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		metrics.SourceCollectErrors.WithLabelValues(s.inputID, "decode_error").Inc()
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	now := time.Now()
	input := policy.NewInput(s.inputID, result.Score, now)

	s.mu.Lock()
	s.cached[addr] = cachedInput{input: input, expiry: now.Add(s.cacheTTL)}
	s.mu.Unlock()

	return input, nil
}

func hostOnly(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
