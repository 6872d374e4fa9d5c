package tail

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pterm/pterm"

	"tailtrack/internal/reader"
	"tailtrack/internal/sink"
)

type recordingSink struct {
	mu   sync.Mutex
	recs []sink.Record
}

func (s *recordingSink) Write(_ context.Context, rec sink.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}
func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

func TestProcessorDrainsAndCommits(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")
	posPath := filepath.Join(dir, "app.log.pos")
	if err := os.WriteFile(logPath, []byte("a\nb\n"), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := reader.New(reader.Config{
		Log:           logPath,
		Pos:           posPath,
		Start:         reader.StartBegin,
		End:           reader.EndFuture,
		CheckInode:    true,
		CheckLastline: true,
	})
	if err != nil {
		t.Fatalf("reader.New: %v", err)
	}

	s := &recordingSink{}
	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelWarn)
	p := NewProcessor("app", logPath, r, s, logger, 10*time.Millisecond)
	p.Start()

	deadline := time.Now().Add(2 * time.Second)
	for s.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	p.Stop()

	if s.count() != 2 {
		t.Fatalf("sink received %d records, want 2", s.count())
	}

	data, err := os.ReadFile(posPath)
	if err != nil {
		t.Fatalf("expected a committed position file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty position file after Stop")
	}
}
