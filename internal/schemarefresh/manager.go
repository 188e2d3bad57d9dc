// Package schemarefresh builds schema snapshots from the list definitions file
// and rebuilds them when the file changes.
package schemarefresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"cms-graphql/internal/listconfig"
	"cms-graphql/internal/logging"
	"cms-graphql/internal/naming"
	"cms-graphql/internal/observability"
)

const (
	defaultMinInterval = 30 * time.Second
	defaultMaxInterval = 5 * time.Minute
)

// Refresh triggers, as reported to the refresh metrics.
const (
	triggerStartup   = "startup"
	triggerManual    = "manual"
	triggerPoll      = "poll"
	triggerUnchanged = "poll_no_change"
)

// Config controls schema refresh behavior.
type Config struct {
	// ListsPath is the list definitions file.
	ListsPath string
	// ReadLists replaces reading ListsPath, e.g. in tests.
	ReadLists       func() ([]byte, error)
	OpenStore       StoreOpener
	MaxTotalResults int
	Session         func(ctx context.Context) any
	Naming          *naming.Config
	Logger          *logging.Logger
	Metrics         *observability.SchemaRefreshMetrics
	// MinInterval and MaxInterval bound the polling of the definitions
	// file. A negative MinInterval disables polling.
	MinInterval time.Duration
	MaxInterval time.Duration
	GraphiQL    bool
	Playground  bool
}

// Manager owns the active snapshot and swaps it atomically on reload.
type Manager struct {
	readLists       func() ([]byte, error)
	openStore       StoreOpener
	maxTotalResults int
	naming          *naming.Config
	session         func(ctx context.Context) any
	logger          *logging.Logger
	metrics         *observability.SchemaRefreshMetrics
	minInterval     time.Duration
	maxInterval     time.Duration
	graphiQL        bool
	playground      bool

	active atomic.Pointer[Snapshot]
	// building serializes rebuilds; a manual reload waits for a poll.
	building sync.Mutex
	wg       sync.WaitGroup
}

// NewManager builds the initial schema snapshot and returns a manager.
func NewManager(cfg Config) (*Manager, error) {
	readLists := cfg.ReadLists
	if readLists == nil {
		if cfg.ListsPath == "" {
			return nil, errors.New("schema refresh manager requires a list definitions file")
		}
		path := cfg.ListsPath
		readLists = func() ([]byte, error) { return os.ReadFile(path) }
	}
	if cfg.OpenStore == nil {
		return nil, errors.New("schema refresh manager requires a store opener")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &logging.Logger{Logger: slog.Default()}
	}

	m := &Manager{
		readLists:       readLists,
		openStore:       cfg.OpenStore,
		maxTotalResults: cfg.MaxTotalResults,
		naming:          cfg.Naming,
		session:         cfg.Session,
		logger:          logger.WithFields(slog.String("component", "schema_refresh")),
		metrics:         cfg.Metrics,
		graphiQL:        cfg.GraphiQL,
		playground:      cfg.Playground,
	}
	m.minInterval, m.maxInterval = pollBounds(cfg.MinInterval, cfg.MaxInterval)

	if _, err := m.reload(context.Background(), triggerStartup, false); err != nil {
		return nil, err
	}
	return m, nil
}

func pollBounds(minInterval, maxInterval time.Duration) (time.Duration, time.Duration) {
	if minInterval == 0 {
		minInterval = defaultMinInterval
	}
	if maxInterval <= 0 {
		maxInterval = defaultMaxInterval
	}
	if minInterval > 0 && maxInterval < minInterval {
		maxInterval = minInterval
	}
	return minInterval, maxInterval
}

// Start begins polling the definitions file until ctx is canceled.
func (m *Manager) Start(ctx context.Context) {
	if m.minInterval < 0 {
		m.logger.Info("schema refresh disabled")
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.refreshLoop(ctx)
	}()
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

// Handler returns the HTTP handler for the current schema snapshot.
func (m *Manager) Handler() http.Handler {
	snapshot := m.CurrentSnapshot()
	if snapshot == nil || snapshot.Handler == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "schema not ready", http.StatusServiceUnavailable)
		})
	}
	return snapshot.Handler
}

// ServeHTTP serves each request with the snapshot active when it arrives.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.Handler().ServeHTTP(w, r)
}

// CurrentSnapshot returns the active schema snapshot.
func (m *Manager) CurrentSnapshot() *Snapshot {
	return m.active.Load()
}

// RefreshNow forces a schema rebuild and swap.
func (m *Manager) RefreshNow() error {
	return m.RefreshNowContext(context.Background())
}

// RefreshNowContext rebuilds even when the definitions are unchanged. The
// active snapshot stays in place when the rebuild fails.
func (m *Manager) RefreshNowContext(ctx context.Context) error {
	_, err := m.reload(ctx, triggerManual, false)
	return err
}

// reload reads the definitions and swaps in a freshly built snapshot. With
// skipUnchanged, definitions matching the active fingerprint are left alone
// and reload reports false.
func (m *Manager) reload(ctx context.Context, trigger string, skipUnchanged bool) (bool, error) {
	m.building.Lock()
	defer m.building.Unlock()

	start := time.Now()
	data, err := m.readLists()
	if err != nil {
		m.recordRefresh(start, false, trigger, nil)
		return false, fmt.Errorf("failed to read list definitions: %w", err)
	}

	fingerprint := listconfig.Fingerprint(data)
	current := m.CurrentSnapshot()
	if skipUnchanged && current != nil && current.Fingerprint == fingerprint {
		m.recordRefresh(start, true, triggerUnchanged, current)
		return false, nil
	}

	snapshot, err := m.buildSnapshot(ctx, data, fingerprint)
	if err != nil {
		m.recordRefresh(start, false, trigger, nil)
		return false, err
	}
	m.active.Store(snapshot)
	m.recordRefresh(start, true, trigger, snapshot)
	m.logger.Info("schema built",
		slog.String("trigger", trigger),
		slog.Int("lists", snapshot.listCount()),
		slog.String("fingerprint", fingerprint),
	)
	return true, nil
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

// refreshOnce polls the definitions file. Unchanged polls back off towards
// the maximum interval; a rebuild or a failure resets it.
func (m *Manager) refreshOnce(ctx context.Context, interval *time.Duration) {
	changed, err := m.reload(ctx, triggerPoll, true)
	switch {
	case err != nil:
		m.logger.Warn("schema refresh failed; keeping the previous schema", slog.String("error", err.Error()))
		*interval = m.minInterval
	case changed:
		*interval = m.minInterval
	default:
		*interval = nextInterval(*interval, m.minInterval, m.maxInterval)
	}
}

// nextInterval grows the poll interval by half, within [minInterval, maxInterval].
func nextInterval(current, minInterval, maxInterval time.Duration) time.Duration {
	if current < minInterval {
		return minInterval
	}
	return min(current+current/2, maxInterval)
}

func (m *Manager) recordRefresh(start time.Time, success bool, trigger string, snapshot *Snapshot) {
	if m.metrics == nil {
		return
	}
	m.metrics.RecordRefresh(context.Background(), time.Since(start), success, trigger, snapshot.listCount())
}
