package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/davecgh/go-spew/spew"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/drawbridge-proxy/drawbridge/internal/audit/sqlitestore"
	"github.com/drawbridge-proxy/drawbridge/internal/audit/stdout"
	"github.com/drawbridge-proxy/drawbridge/internal/config"
	"github.com/drawbridge-proxy/drawbridge/internal/gate"
	"github.com/drawbridge-proxy/drawbridge/internal/listener/blocklist"
	"github.com/drawbridge-proxy/drawbridge/internal/listener/policy"
	"github.com/drawbridge-proxy/drawbridge/internal/listener/ratelimit"
	"github.com/drawbridge-proxy/drawbridge/internal/metrics"
	"github.com/drawbridge-proxy/drawbridge/internal/server"
	connsource "github.com/drawbridge-proxy/drawbridge/internal/source/conn"
	"github.com/drawbridge-proxy/drawbridge/internal/source/reputation"
	"github.com/drawbridge-proxy/drawbridge/internal/source/static"
	pkgconfig "github.com/drawbridge-proxy/drawbridge/pkg/config"
	"github.com/drawbridge-proxy/drawbridge/pkg/config/loader"
	"github.com/drawbridge-proxy/drawbridge/pkg/event"
)

var (
	configPath string
	dumpConfig bool
)

func main() {
	root := &cobra.Command{
		Use:   "drawbridge",
		Short: "Connection admission gate",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admission gate and the metrics endpoint",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&configPath, "config", pkgconfig.DefaultPath, "path to the Pkl configuration module")
	serveCmd.Flags().BoolVar(&dumpConfig, "dump-config", false, "print the evaluated configuration before serving")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration, blocklist rules, and policy bundle",
		RunE:  runCheck,
	}
	checkCmd.Flags().StringVar(&configPath, "config", pkgconfig.DefaultPath, "path to the Pkl configuration module")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("drawbridge v0.1.0")
		},
	}

	root.AddCommand(serveCmd, checkCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()

	cfg, sha, err := loader.LoadFromPathWithSHA(ctx, configPath)
	if err != nil {
		return err
	}
	log.Printf("configuration %s loaded (sha256 %.12s)", configPath, sha)
	if dumpConfig {
		fmt.Printf("Configuration loaded successfully:\n%s\n", spew.Sdump(cfg))
	}

	dispatcher := event.NewDispatcher(
		event.WithPanicHook(func(e event.Event, recovered any) {
			metrics.ListenerFailures.WithLabelValues(fmt.Sprintf("%T", e)).Inc()
		}),
	)

	if err := registerListeners(ctx, dispatcher, cfg); err != nil {
		return err
	}

	recorder, closeRecorder, err := buildRecorder(cfg)
	if err != nil {
		return err
	}
	defer closeRecorder()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.Printf("metrics listening on %s", cfg.Prometheus.ListenAddr)
		if err := http.ListenAndServe(cfg.Prometheus.ListenAddr, mux); err != nil {
			log.Fatalf("metrics server failed: %v", err)
		}
	}()

	g := gate.New(dispatcher, recorder, cfg.Dispatch.Timeout.GoDuration())
	return server.New(g).Listen(ctx, cfg.Server.ListenAddr)
}

// registerListeners subscribes the configured admission listeners. Order of
// registration does not matter; each listener declares its own priority.
func registerListeners(ctx context.Context, d *event.Dispatcher, cfg *config.AppConfig) error {
	if cfg.Blocklist.Enabled {
		rules, err := blocklist.Load(cfg.Blocklist.RulesPath)
		if err != nil {
			return fmt.Errorf("loading blocklist rules: %w", err)
		}
		blocklist.NewListener(rules).Register(d)
		log.Printf("blocklist listener registered (%d rules from %s)", len(rules.Rules), cfg.Blocklist.RulesPath)
	}

	if cfg.RateLimit.Enabled {
		ratelimit.NewListener(cfg.RateLimit.MaxPerWindow, cfg.RateLimit.Window.GoDuration()).Register(d)
		log.Printf("rate-limit listener registered (%d per %s)", cfg.RateLimit.MaxPerWindow, cfg.RateLimit.Window.GoDuration())
	}

	if cfg.Policy.Enabled {
		registry := policy.NewSourceRegistry()
		registry.Register(connsource.NewRemoteAddrSource())
		registry.Register(connsource.NewIntentSource())
		registry.Register(connsource.NewVirtualHostSource())
		registry.Register(static.NewMaxReputationScoreSource(cfg))
		if cfg.Policy.ReputationBaseURL != "" {
			registry.Register(reputation.NewSource(cfg.Policy.ReputationBaseURL, cfg.Policy.ReputationCacheTTL.GoDuration()))
		}

		provider := policy.NewFileProvider(cfg.Policy.Path, cfg.Policy.Query)
		if _, err := provider.GetBundle(ctx); err != nil {
			return fmt.Errorf("compiling policy bundle: %w", err)
		}

		opts := policy.SnapshotOpts{
			MaxAge:           cfg.Policy.MaxStaleness.GoDuration(),
			PerSourceTimeout: cfg.Policy.SourceTimeout.GoDuration(),
		}
		policy.NewListener(registry, provider, opts).Register(d)
		log.Printf("policy listener registered (bundle %s)", cfg.Policy.Path)
	}

	return nil
}

// buildRecorder picks the decision trail backend. The SQLite store is
// optional; the JSONL trail on stdout is always available.
func buildRecorder(cfg *config.AppConfig) (gate.Recorder, func(), error) {
	if cfg.Audit.SqlitePath == "" {
		return stdout.New(), func() {}, nil
	}
	store, err := sqlitestore.NewStore(cfg.Audit.SqlitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening decision store: %w", err)
	}
	log.Printf("recording decisions to %s", cfg.Audit.SqlitePath)
	return store, func() { store.Close() }, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, sha, err := loader.LoadFromPathWithSHA(ctx, configPath)
	if err != nil {
		return err
	}
	fmt.Printf("config ok: %s (sha256 %.12s)\n", configPath, sha)

	if cfg.Blocklist.Enabled {
		rules, err := blocklist.Load(cfg.Blocklist.RulesPath)
		if err != nil {
			return fmt.Errorf("blocklist rules invalid: %w", err)
		}
		fmt.Printf("blocklist ok: %d rules, default %s\n", len(rules.Rules), rules.Default)
	}

	if cfg.Policy.Enabled {
		provider := policy.NewFileProvider(cfg.Policy.Path, cfg.Policy.Query)
		bundle, err := provider.GetBundle(ctx)
		if err != nil {
			return fmt.Errorf("policy bundle invalid: %w", err)
		}
		fmt.Printf("policy ok: %s (bundle %.12s)\n", cfg.Policy.Path, bundle.ID())
	}

	return nil
}
