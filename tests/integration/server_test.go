package integration

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/apple/pkl-go/pkl"

	"github.com/drawbridge-proxy/drawbridge/internal/audit/sqlitestore"
	"github.com/drawbridge-proxy/drawbridge/internal/config"
	"github.com/drawbridge-proxy/drawbridge/internal/gate"
	"github.com/drawbridge-proxy/drawbridge/internal/listener/policy"
	"github.com/drawbridge-proxy/drawbridge/internal/server"
	connsource "github.com/drawbridge-proxy/drawbridge/internal/source/conn"
	"github.com/drawbridge-proxy/drawbridge/internal/source/reputation"
	"github.com/drawbridge-proxy/drawbridge/internal/source/reputation_mock"
	"github.com/drawbridge-proxy/drawbridge/internal/source/static"
	"github.com/drawbridge-proxy/drawbridge/pkg/event"
)

// TestServerIntegration runs the reference transport against the shipped
// admission policy with a mock reputation service behind it, showing the
// complete end-to-end flow over TCP.
func TestServerIntegration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Mock reputation service; 127.0.0.1 is the address the test client
	// will actually connect from.
	mockReputation := reputation_mock.NewServer()
	defer mockReputation.Close()

	testConfig := &config.AppConfig{
		Policy: &config.Policy{
			Enabled:            true,
			Path:               "../../policy/rego/admission.rego",
			Query:              "data.drawbridge.response",
			SourceTimeout:      &pkl.Duration{Value: 2, Unit: pkl.Second},
			MaxStaleness:       &pkl.Duration{Value: 30, Unit: pkl.Second},
			ReputationBaseURL:  mockReputation.URL(),
			ReputationCacheTTL: &pkl.Duration{Value: 0, Unit: pkl.Second},
			MaxReputationScore: 80,
		},
	}

	// Assemble the policy listener from real sources
	registry := policy.NewSourceRegistry()
	registry.Register(connsource.NewRemoteAddrSource())
	registry.Register(connsource.NewIntentSource())
	registry.Register(connsource.NewVirtualHostSource())
	registry.Register(static.NewMaxReputationScoreSource(testConfig))
	registry.Register(reputation.NewSource(testConfig.Policy.ReputationBaseURL, testConfig.Policy.ReputationCacheTTL.GoDuration()))

	provider := policy.NewFileProvider(testConfig.Policy.Path, testConfig.Policy.Query)
	opts := policy.SnapshotOpts{
		MaxAge:           testConfig.Policy.MaxStaleness.GoDuration(),
		PerSourceTimeout: testConfig.Policy.SourceTimeout.GoDuration(),
	}

	d := event.NewDispatcher()
	policy.NewListener(registry, provider, opts).Register(d)

	// Record decisions to a throwaway SQLite store
	store, err := sqlitestore.NewStore(t.TempDir() + "/decisions.db")
	if err != nil {
		t.Fatalf("Failed to open decision store: %v", err)
	}
	defer store.Close()

	g := gate.New(d, store, 2*time.Second)
	srv := server.New(g)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(ctx, "127.0.0.1:0") }()
	select {
	case <-srv.Ready():
	case err := <-errCh:
		t.Fatalf("Server failed to start: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("Server did not become ready")
	}
	addr := srv.Addr().String()

	exchange := func(greeting string) string {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			t.Fatalf("Failed to dial server: %v", err)
		}
		defer conn.Close()

		if _, err := conn.Write([]byte(greeting + "\n")); err != nil {
			t.Fatalf("Failed to send greeting: %v", err)
		}
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		scanner := bufio.NewScanner(conn)
		if !scanner.Scan() {
			t.Fatalf("No reply from server: %v", scanner.Err())
		}
		return scanner.Text()
	}

	// Clean reputation: the login goes through
	mockReputation.SetScore("127.0.0.1", 5)
	if reply := exchange("LOGIN play.example.com steve"); !strings.HasPrefix(reply, "OK ") {
		t.Fatalf("Expected the clean login to be admitted, got %q", reply)
	}

	// Abusive reputation: the login is refused with the policy's reason
	mockReputation.SetScore("127.0.0.1", 95)
	if reply := exchange("LOGIN play.example.com steve"); !strings.HasPrefix(reply, "DENY ") {
		t.Fatalf("Expected the abusive login to be denied, got %q", reply)
	}

	// Status pings stay exempt from reputation gating
	if reply := exchange("STATUS play.example.com"); !strings.HasPrefix(reply, "OK ") {
		t.Fatalf("Expected the status ping to be admitted, got %q", reply)
	}

	// The deny above must have landed in the decision store
	counts, err := store.DeniedByAddr(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("Failed to query the decision store: %v", err)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	if total != 1 {
		t.Errorf("Expected exactly one recorded denial, got %d (%v)", total, counts)
	}
}
