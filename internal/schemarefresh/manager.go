// Package schemarefresh builds schema snapshots from type definitions and
// swaps them atomically when the definitions change.
package schemarefresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"neo4j-graphql/internal/logging"
	"neo4j-graphql/internal/naming"
	"neo4j-graphql/internal/observability"
	"neo4j-graphql/internal/resolver"
	"neo4j-graphql/internal/schema"
)

// Snapshot contains an immutable view of the current schema state.
type Snapshot struct {
	Schema      *schema.Schema
	Resolver    *resolver.Resolver
	BuiltAt     time.Time
	Fingerprint string
}

// Config controls schema refresh behavior.
type Config struct {
	Source Source
	// Resolver is the template every snapshot's resolver is built from.
	Resolver    resolver.Config
	Naming      naming.Config
	Logger      *logging.Logger
	Metrics     *observability.SchemaRefreshMetrics
	MinInterval time.Duration
	MaxInterval time.Duration
}

// Manager maintains and refreshes schema snapshots.
type Manager struct {
	source      Source
	resolverCfg resolver.Config
	naming      naming.Config
	logger      *logging.Logger
	metrics     *observability.SchemaRefreshMetrics
	minInterval time.Duration
	maxInterval time.Duration
	active      atomic.Pointer[Snapshot]
	// refreshMu serializes rebuilds so a manual reload and a poll never
	// race to store snapshots out of order.
	refreshMu sync.Mutex
	wg        sync.WaitGroup
}

// NewManager builds the initial schema snapshot and returns a manager.
// A zero MinInterval disables polling; RefreshNow still works.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	if cfg.Source == nil {
		return nil, errors.New("schema refresh manager requires a type definitions source")
	}
	if cfg.Logger == nil {
		cfg.Logger = &logging.Logger{Logger: slog.Default()}
	}

	minInterval := cfg.MinInterval
	maxInterval := cfg.MaxInterval
	if maxInterval < minInterval {
		maxInterval = minInterval
	}

	manager := &Manager{
		source:      cfg.Source,
		resolverCfg: cfg.Resolver,
		naming:      cfg.Naming,
		logger:      cfg.Logger.WithFields(slog.String("component", "schema_refresh")),
		metrics:     cfg.Metrics,
		minInterval: minInterval,
		maxInterval: maxInterval,
	}

	start := time.Now()
	typeDefs, err := manager.source.Load(ctx)
	if err != nil {
		manager.recordRefresh(time.Since(start), false, "startup")
		return nil, err
	}
	snapshot, err := manager.buildSnapshot(ctx, typeDefs)
	if err != nil {
		manager.recordRefresh(time.Since(start), false, "startup")
		return nil, err
	}
	manager.active.Store(snapshot)
	manager.recordRefresh(time.Since(start), true, "startup")
	return manager, nil
}

// Start begins the background refresh loop.
func (m *Manager) Start(ctx context.Context) {
	if m.minInterval <= 0 {
		m.logger.Info("schema refresh disabled")
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.refreshLoop(ctx)
	}()
}

// CurrentSnapshot returns the active schema snapshot.
func (m *Manager) CurrentSnapshot() *Snapshot {
	return m.active.Load()
}

// Current returns the resolver of the active snapshot, or nil before the
// first successful build.
func (m *Manager) Current() *resolver.Resolver {
	if snapshot := m.active.Load(); snapshot != nil {
		return snapshot.Resolver
	}
	return nil
}

// Fingerprint returns the fingerprint of the active type definitions.
func (m *Manager) Fingerprint() string {
	if snapshot := m.active.Load(); snapshot != nil {
		return snapshot.Fingerprint
	}
	return ""
}

// RefreshNow forces a schema rebuild and swap.
func (m *Manager) RefreshNow() error {
	return m.RefreshNowContext(context.Background())
}

// RefreshNowContext forces a schema rebuild and swap with context support.
// On failure the active snapshot is left in place.
func (m *Manager) RefreshNowContext(ctx context.Context) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	start := time.Now()
	typeDefs, err := m.source.Load(ctx)
	if err != nil {
		m.recordRefresh(time.Since(start), false, "manual")
		return err
	}
	snapshot, err := m.buildSnapshot(ctx, typeDefs)
	if err != nil {
		m.recordRefresh(time.Since(start), false, "manual")
		return err
	}

	m.active.Store(snapshot)
	m.recordRefresh(time.Since(start), true, "manual")
	m.logger.Info("schema reloaded", slog.String("fingerprint", snapshot.Fingerprint))
	return nil
}

// Wait blocks until the refresh loop exits or the context is canceled.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) refreshLoop(ctx context.Context) {
	interval := m.minInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("schema refresh stopped")
			return
		case <-timer.C:
			m.refreshOnce(ctx, &interval)
			timer.Reset(interval)
		}
	}
}

// refreshOnce rebuilds when the type definitions changed. Unchanged polls
// back off towards maxInterval; a change or failure resets to minInterval.
func (m *Manager) refreshOnce(ctx context.Context, interval *time.Duration) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	start := time.Now()
	typeDefs, err := m.source.Load(ctx)
	if err != nil {
		m.logger.Warn("type definitions check failed",
			slog.String("source", m.source.Describe()),
			slog.String("error", err.Error()),
		)
		m.recordRefresh(time.Since(start), false, "poll")
		*interval = m.minInterval
		return
	}

	fingerprint := Fingerprint(typeDefs)
	if current := m.active.Load(); current != nil && current.Fingerprint == fingerprint {
		m.recordRefresh(time.Since(start), true, "poll_no_change")
		*interval = nextInterval(*interval, m.minInterval, m.maxInterval)
		return
	}

	m.logger.Info("type definitions changed, rebuilding",
		slog.String("source", m.source.Describe()),
		slog.String("fingerprint", fingerprint),
	)
	snapshot, err := m.buildSnapshot(ctx, typeDefs)
	if err != nil {
		m.logger.Error("failed to rebuild schema, keeping previous snapshot", slog.String("error", err.Error()))
		m.recordRefresh(time.Since(start), false, "poll")
		*interval = m.minInterval
		return
	}

	m.active.Store(snapshot)
	*interval = m.minInterval
	m.recordRefresh(time.Since(start), true, "poll")
	m.logger.Info("schema refresh complete", slog.String("fingerprint", snapshot.Fingerprint))
}

func (m *Manager) buildSnapshot(ctx context.Context, typeDefs string) (*Snapshot, error) {
	start := time.Now()
	result, err := Build(ctx, BuildConfig{
		TypeDefs: typeDefs,
		Naming:   m.naming,
		Logger:   m.logger.Logger,
		Resolver: m.resolverCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("schema from %s: %w", m.source.Describe(), err)
	}
	for _, warning := range result.Warnings {
		m.logger.Warn("schema warning", slog.String("issue", warning.Error()))
	}

	m.logger.Info("schema snapshot built",
		slog.Int("nodes", len(result.Schema.Nodes())),
		slog.Duration("duration", time.Since(start)),
	)
	return &Snapshot{
		Schema:      result.Schema,
		Resolver:    result.Resolver,
		BuiltAt:     time.Now(),
		Fingerprint: Fingerprint(typeDefs),
	}, nil
}

func nextInterval(current, minInterval, maxInterval time.Duration) time.Duration {
	if current < minInterval {
		return minInterval
	}
	next := current + current/2
	if next > maxInterval {
		return maxInterval
	}
	return next
}

func (m *Manager) recordRefresh(duration time.Duration, success bool, trigger string) {
	if m.metrics == nil {
		return
	}
	m.metrics.RecordRefresh(context.Background(), duration, success, trigger)
}
