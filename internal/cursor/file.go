package cursor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"tailtrack/internal/position"
	"tailtrack/internal/tailerr"
)

// FileCursor is a Cursor backed by a position file. Commits are atomic
// (temp file + rename, never an in-place truncate), and it retains a
// bounded window of older positions when configured with a rollback
// period, grounded on the same temp-file-then-rename pattern the wider
// corpus uses for durable registries.
type FileCursor struct {
	path           string
	rollbackPeriod time.Duration
	lockMode       LockMode

	mu       sync.Mutex
	lockFile *os.File
	now      func() time.Time
}

// NewFileCursor opens (but does not require to exist) the position file at
// path. If lockMode is not LockNone, it immediately takes an exclusive
// advisory lock on path+".lock", held until Close.
func NewFileCursor(path string, rollbackPeriod time.Duration, lockMode LockMode) (*FileCursor, error) {
	switch lockMode {
	case LockNone, LockBlocking, LockNonblocking:
	default:
		return nil, tailerr.NewConfigError("unknown lock mode %q", lockMode)
	}

	fc := &FileCursor{
		path:           path,
		rollbackPeriod: rollbackPeriod,
		lockMode:       lockMode,
		now:            time.Now,
	}
	if lockMode != LockNone {
		if err := fc.acquireLock(); err != nil {
			return nil, err
		}
	}
	return fc, nil
}

func (fc *FileCursor) acquireLock() error {
	if err := os.MkdirAll(filepath.Dir(fc.path), 0755); err != nil {
		return fmt.Errorf("create cursor directory: %w", err)
	}
	f, err := os.OpenFile(fc.path+".lock", os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open cursor lock file: %w", err)
	}

	flags := syscall.LOCK_EX
	if fc.lockMode == LockNonblocking {
		flags |= syscall.LOCK_NB
	}
	if err := syscall.Flock(int(f.Fd()), flags); err != nil {
		f.Close()
		if fc.lockMode == LockNonblocking && errors.Is(err, syscall.EWOULDBLOCK) {
			return tailerr.ErrLockBusy
		}
		return fmt.Errorf("acquire cursor lock: %w", err)
	}
	fc.lockFile = f
	return nil
}

// Read returns the newest persisted record, or (nil, nil) if the position
// file does not exist yet (a legitimate fresh-start state). An existing but
// empty file is tailerr.ErrCursorMissing; a malformed file is
// tailerr.ErrCursorCorrupt.
func (fc *FileCursor) Read() (*position.Record, error) {
	recs, err := fc.readAll()
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	rec := recs[0]
	return &rec, nil
}

func (fc *FileCursor) readAll() ([]position.Record, error) {
	data, err := os.ReadFile(fc.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cursor file: %w", err)
	}
	if len(data) == 0 {
		return nil, tailerr.ErrCursorMissing
	}
	return parseRecords(data)
}

// Commit persists p as the newest record. When no rollback period is
// configured, it replaces the whole file with [p]. Otherwise it applies
// the rollback window policy: retain at most one record aged <= period and
// at most one aged > period, besides the new newest record.
func (fc *FileCursor) Commit(p position.Record) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if fc.rollbackPeriod <= 0 {
		p.CommitTime = nil
		return fc.writeAll([]position.Record{p})
	}

	existing, err := fc.readAll()
	if err != nil && !errors.Is(err, tailerr.ErrCursorMissing) {
		return err
	}

	now := fc.now().Unix()
	p.CommitTime = &now

	periodSeconds := int64(fc.rollbackPeriod / time.Second)
	newRecords := applyRollbackWindow(p, existing, now, periodSeconds)
	return fc.writeAll(newRecords)
}

// applyRollbackWindow implements the §4.3 policy: given the existing
// newest-first record list and a freshly committed record p at time now,
// decide the new newest-first list to persist.
func applyRollbackWindow(p position.Record, existing []position.Record, now, periodSeconds int64) []position.Record {
	if len(existing) == 0 {
		return []position.Record{p}
	}

	r0 := existing[0]
	age0 := now - commitTimeOf(r0, now)
	if age0 > periodSeconds {
		return []position.Record{p, r0}
	}
	if len(existing) == 1 {
		return []position.Record{p, r0}
	}

	r1 := existing[1]
	age1 := now - commitTimeOf(r1, now)
	if age1 <= periodSeconds {
		rest := append([]position.Record{p, r1}, existing[2:]...)
		return rest
	}
	return []position.Record{p, r0, r1}
}

func commitTimeOf(r position.Record, fallback int64) int64 {
	if r.CommitTime != nil {
		return *r.CommitTime
	}
	return fallback
}

// Rollback discards the newest record. It returns true iff a strictly
// older record remains and becomes newest.
func (fc *FileCursor) Rollback() (bool, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	recs, err := fc.readAll()
	if err != nil {
		return false, err
	}
	if len(recs) < 2 {
		return false, nil
	}
	if err := fc.writeAll(recs[1:]); err != nil {
		return false, err
	}
	return true, nil
}

// Clean removes all persisted state.
func (fc *FileCursor) Clean() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if err := os.Remove(fc.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cursor file: %w", err)
	}
	return nil
}

// Close releases the advisory lock, if one is held.
func (fc *FileCursor) Close() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if fc.lockFile == nil {
		return nil
	}
	_ = syscall.Flock(int(fc.lockFile.Fd()), syscall.LOCK_UN)
	err := fc.lockFile.Close()
	fc.lockFile = nil
	return err
}

// writeAll atomically replaces the cursor file content: write to a temp
// file in the same directory, flush, chmod, rename over the target. The
// target is never truncated in place, so a crash mid-write leaves either
// the old or the new complete content.
func (fc *FileCursor) writeAll(recs []position.Record) error {
	body := formatRecords(recs)
	dir := filepath.Dir(fc.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create cursor directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cursor-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cursor file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp cursor file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("flush temp cursor file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp cursor file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp cursor file: %w", err)
	}
	if err := os.Rename(tmpPath, fc.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp cursor file into place: %w", err)
	}
	return nil
}
