package sink

import (
	"context"
	"time"

	"github.com/pterm/pterm"
)

// RetentionService deletes line_records older than a configured window on a
// daily schedule and optionally reclaims space with VACUUM. Deletes run in
// small batches and VACUUM runs straight under the sink's existing busy
// timeout, since SQLiteSink already serializes all writes through a single
// connection — there's no concurrent writer to pause first.
type RetentionService struct {
	sink          *SQLiteSink
	logger        *pterm.Logger
	retentionDays int
	targetTime    string
	checkInterval time.Duration
	vacuum        bool

	stop chan struct{}
}

// NewRetentionService builds a RetentionService. retentionDays <= 0 disables
// the service entirely.
func NewRetentionService(s *SQLiteSink, logger *pterm.Logger, retentionDays int, targetTime string, checkInterval time.Duration, vacuum bool) *RetentionService {
	return &RetentionService{
		sink:          s,
		logger:        logger,
		retentionDays: retentionDays,
		targetTime:    targetTime,
		checkInterval: checkInterval,
		vacuum:        vacuum,
		stop:          make(chan struct{}),
	}
}

// Start launches the scheduling loop in a goroutine. A no-op if retention
// is disabled.
func (r *RetentionService) Start() {
	if r.retentionDays <= 0 {
		r.logger.Info("retention disabled (TAILTRACK_RETENTION_DAYS=0)")
		return
	}
	r.logger.Info("starting retention service", r.logger.Args(
		"retention_days", r.retentionDays,
		"target_time", r.targetTime,
		"vacuum_enabled", r.vacuum,
	))
	go r.loop()
}

// Stop signals the scheduling loop to exit. It does not wait for an
// in-flight cleanup to finish.
func (r *RetentionService) Stop() {
	close(r.stop)
}

func (r *RetentionService) loop() {
	for {
		target := r.nextTarget(time.Now())
		select {
		case <-r.stop:
			return
		case <-time.After(minDuration(time.Until(target), r.checkInterval)):
			if time.Now().After(target.Add(-1 * time.Minute)) {
				r.runCleanup()
			}
		}
	}
}

func (r *RetentionService) nextTarget(now time.Time) time.Time {
	parsed, err := time.Parse("15:04", r.targetTime)
	if err != nil {
		r.logger.Warn("invalid retention target time, using 02:00", r.logger.Args("configured", r.targetTime, "error", err))
		parsed, _ = time.Parse("15:04", "02:00")
	}
	target := time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, now.Location())
	if now.After(target) {
		target = target.Add(24 * time.Hour)
	}
	return target
}

func (r *RetentionService) runCleanup() {
	cutoff := time.Now().AddDate(0, 0, -r.retentionDays)
	r.logger.Info("running retention cleanup", r.logger.Args("cutoff", cutoff.Format("2006-01-02")))

	const batchSize = 1000
	var totalDeleted int64
	for {
		result := r.sink.db.Exec(`
			DELETE FROM line_records
			WHERE id IN (
				SELECT id FROM line_records
				WHERE read_at < ?
				LIMIT ?
			)
		`, cutoff, batchSize)
		if result.Error != nil {
			r.logger.WithCaller().Error("retention delete failed", r.logger.Args("error", result.Error))
			return
		}
		totalDeleted += result.RowsAffected
		if result.RowsAffected == 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	r.logger.Info("retention cleanup complete", r.logger.Args("records_deleted", totalDeleted))

	if r.vacuum && totalDeleted > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := r.sink.db.WithContext(ctx).Exec("VACUUM").Error; err != nil {
			r.logger.WithCaller().Error("vacuum failed", r.logger.Args("error", err))
		}
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
