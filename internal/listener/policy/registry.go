package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/drawbridge-proxy/drawbridge/internal/metrics"
	"github.com/drawbridge-proxy/drawbridge/pkg/event"
)

// SnapshotOpts lets the caller tune latency / staleness guarantees.
type SnapshotOpts struct {
	MaxAge           time.Duration // zero => no age check
	PerSourceTimeout time.Duration // enforced with ctx.WithTimeout
}

// SourceRegistry holds a collection of Sources and orchestrates assembling
// the policy input document for one connection attempt.
type SourceRegistry struct {
	sources map[string]Source
	mu      sync.RWMutex
}

// NewSourceRegistry creates a new empty SourceRegistry.
func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{
		sources: make(map[string]Source),
	}
}

// Register adds a Source to the registry.
// If a source with the same ID already exists, it will be replaced.
func (r *SourceRegistry) Register(source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()

	schema := source.Describe()
	r.sources[schema.ID] = source
}

// GetSource retrieves a Source by ID.
func (r *SourceRegistry) GetSource(inputID string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	source, exists := r.sources[inputID]
	return source, exists
}

// Snapshot collects all inputs for the given connection and intent, in
// parallel, and returns a map of input ID to value suitable for policy
// evaluation. The registry is effectively read-only while dispatches run;
// registration happens at startup.
func (r *SourceRegistry) Snapshot(ctx context.Context, conn event.InboundConnection, intent event.HandshakeIntent, opts SnapshotOpts) (map[string]any, error) {
	r.mu.RLock()
	// Copy the source map so the lock is not held during collection.
	sources := make(map[string]Source, len(r.sources))
	for id, source := range r.sources {
		sources[id] = source
	}
	r.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)

	type result struct {
		id  string
		val any
		err error
	}
	results := make(chan result, len(sources))

	for id, source := range sources {
		id, source := id, source
		g.Go(func() error {
			sctx := gctx
			if opts.PerSourceTimeout > 0 {
				var cancel context.CancelFunc
				sctx, cancel = context.WithTimeout(gctx, opts.PerSourceTimeout)
				defer cancel()
			}

			in, err := source.Collect(sctx, conn, intent)
			if err != nil {
				// Errors travel through the channel so one failed source
				// does not cancel the others mid-collection.
				results <- result{id: id, err: fmt.Errorf("collecting input %s: %w", id, err)}
				return nil
			}

			if opts.MaxAge > 0 && time.Since(in.Timestamp()) > opts.MaxAge {
				metrics.SourceStaleness.WithLabelValues(id).Inc()
				results <- result{id: id, err: fmt.Errorf("collecting input %s: %w", id, ErrSourceStale)}
				return nil
			}

			results <- result{id: in.ID(), val: in.Value(), err: nil}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err // unreachable: errors are collected via the channel
	}
	close(results)

	resultMap := make(map[string]any, len(sources))
	var firstErr error

	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		resultMap[res.id] = res.val
	}

	if firstErr != nil {
		return nil, firstErr
	}

	return resultMap, nil
}
