package sink

import (
	"testing"
	"time"

	"github.com/pterm/pterm"
)

func TestRetentionServiceDeletesOldRecords(t *testing.T) {
	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelWarn)
	s, err := NewSQLiteSink(t.TempDir()+"/retention.db", logger)
	if err != nil {
		t.Fatalf("NewSQLiteSink: %v", err)
	}
	defer s.Close()

	old := lineRecord{SourceName: "app", LogNumber: 0, Offset: 1, Line: "old", ReadAt: time.Now().AddDate(0, 0, -30)}
	recent := lineRecord{SourceName: "app", LogNumber: 0, Offset: 2, Line: "new", ReadAt: time.Now()}
	if err := s.db.Create(&old).Error; err != nil {
		t.Fatal(err)
	}
	if err := s.db.Create(&recent).Error; err != nil {
		t.Fatal(err)
	}

	r := NewRetentionService(s, logger, 7, "02:00", time.Minute, false)
	r.runCleanup()

	var count int64
	if err := s.db.Model(&lineRecord{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 remaining record, got %d", count)
	}
}

func TestRetentionServiceDisabledNoop(t *testing.T) {
	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelWarn)
	s, err := NewSQLiteSink(t.TempDir()+"/retention.db", logger)
	if err != nil {
		t.Fatalf("NewSQLiteSink: %v", err)
	}
	defer s.Close()

	r := NewRetentionService(s, logger, 0, "02:00", time.Minute, false)
	r.Start()
}
