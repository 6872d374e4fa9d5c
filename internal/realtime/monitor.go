// Package realtime tracks live tailing progress per source, polling each
// registered reader on a fixed interval and serving the latest snapshot.
package realtime

import (
	"sync"
	"time"

	"github.com/pterm/pterm"
)

// LagSource is the subset of reader.Reader a Monitor needs to observe.
type LagSource interface {
	Lag() (uint64, error)
	LogNumber() int
	LogName() string
}

// SourceStatus is a point-in-time snapshot of one tracked source.
type SourceStatus struct {
	Name       string    `json:"name"`
	LogPath    string    `json:"log_path"`
	LogNumber  int       `json:"log_number"`
	Lag        uint64    `json:"lag"`
	LagError   string    `json:"lag_error,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Monitor polls a set of registered LagSources at a fixed interval and
// serves the latest snapshot under a read/write lock, so readers and the
// HTTP API never contend on the sources themselves.
type Monitor struct {
	logger *pterm.Logger

	mu       sync.RWMutex
	sources  map[string]LagSource
	statuses map[string]SourceStatus

	stop chan struct{}
}

// NewMonitor builds a Monitor with no registered sources.
func NewMonitor(logger *pterm.Logger) *Monitor {
	return &Monitor{
		logger:   logger,
		sources:  make(map[string]LagSource),
		statuses: make(map[string]SourceStatus),
		stop:     make(chan struct{}),
	}
}

// Register adds or replaces the source tracked under name.
func (m *Monitor) Register(name string, src LagSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[name] = src
}

// Unregister stops tracking name.
func (m *Monitor) Unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sources, name)
	delete(m.statuses, name)
}

// Start begins collecting at the given interval until Stop is called.
func (m *Monitor) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.collect()
			case <-m.stop:
				return
			}
		}
	}()
	m.logger.Info("lag monitor started", m.logger.Args("interval", interval.String()))
}

// Stop ends the collection loop started by Start.
func (m *Monitor) Stop() {
	close(m.stop)
}

func (m *Monitor) collect() {
	m.mu.RLock()
	snapshot := make(map[string]LagSource, len(m.sources))
	for name, src := range m.sources {
		snapshot[name] = src
	}
	m.mu.RUnlock()

	results := make(map[string]SourceStatus, len(snapshot))
	now := time.Now()
	for name, src := range snapshot {
		status := SourceStatus{
			Name:      name,
			LogPath:   src.LogName(),
			LogNumber: src.LogNumber(),
			UpdatedAt: now,
		}
		lag, err := src.Lag()
		if err != nil {
			status.LagError = err.Error()
			m.logger.Trace("lag unavailable", m.logger.Args("source", name, "error", err))
		} else {
			status.Lag = lag
		}
		results[name] = status
	}

	m.mu.Lock()
	for name, status := range results {
		m.statuses[name] = status
	}
	m.mu.Unlock()
}

// Snapshot returns the latest status of every registered source.
func (m *Monitor) Snapshot() []SourceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SourceStatus, 0, len(m.statuses))
	for _, status := range m.statuses {
		out = append(out, status)
	}
	return out
}

// Get returns the latest status for one source.
func (m *Monitor) Get(name string) (SourceStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.statuses[name]
	return status, ok
}
