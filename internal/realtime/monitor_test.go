package realtime

import (
	"errors"
	"testing"
	"time"

	"github.com/pterm/pterm"
)

type fakeLagSource struct {
	lag    uint64
	err    error
	number int
	name   string
}

func (f fakeLagSource) Lag() (uint64, error) { return f.lag, f.err }
func (f fakeLagSource) LogNumber() int       { return f.number }
func (f fakeLagSource) LogName() string      { return f.name }

func TestMonitorCollectAndSnapshot(t *testing.T) {
	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelWarn)
	m := NewMonitor(logger)
	m.Register("app", fakeLagSource{lag: 42, name: "/var/log/app.log"})
	m.Register("broken", fakeLagSource{err: errors.New("no handle")})

	m.collect()

	status, ok := m.Get("app")
	if !ok || status.Lag != 42 || status.LogPath != "/var/log/app.log" {
		t.Fatalf("unexpected status for app: %+v ok=%v", status, ok)
	}

	broken, ok := m.Get("broken")
	if !ok || broken.LagError == "" {
		t.Fatalf("expected lag error recorded for broken source, got %+v", broken)
	}

	m.Unregister("app")
	m.collect()
	if _, ok := m.Get("app"); ok {
		t.Fatal("expected app to be gone after Unregister")
	}
}

func TestMonitorStartStop(t *testing.T) {
	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelWarn)
	m := NewMonitor(logger)
	m.Register("app", fakeLagSource{lag: 1})
	m.Start(10 * time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	m.Stop()

	if _, ok := m.Get("app"); !ok {
		t.Fatal("expected at least one collection cycle to have run")
	}
}
