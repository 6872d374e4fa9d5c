// Package reader implements the rotation-aware sequential log reader: the
// state machine that tracks a position across a logical log's rotated
// segments, recovers that position after a restart, and exposes a
// line-at-a-time read/commit/rollback/lag API to callers.
package reader

import (
	"time"

	"tailtrack/internal/cursor"
	"tailtrack/internal/filter"
	"tailtrack/internal/tailerr"
)

// Start is the initial placement strategy used when no cursor record
// exists yet.
type Start string

const (
	StartBegin Start = "begin"
	StartEnd   Start = "end"
	StartFirst Start = "first"
)

// End controls whether a Reader follows appends past its open-time EOF.
type End string

const (
	EndFixed  End = "fixed"
	EndFuture End = "future"
)

// Config is the full set of construction parameters for a Reader, mirroring
// the configuration table of the cursor/segment subsystem: a position file
// path (or an explicit cursor, but never both) plus the placement and
// identity-check knobs that drive rotation recovery.
type Config struct {
	// Log is the logical log path, or "-" for standard input. Reading from
	// "-" implies a single segment with no rotation.
	Log string

	// Pos is a position-file path, or "-" to select cursor.NullCursor.
	// Mutually exclusive with Cursor; exactly one of the two must be set.
	Pos string
	// Cursor, if non-nil, is used directly instead of opening Pos.
	Cursor cursor.Cursor

	Start Start
	End   End
	Lock  cursor.LockMode

	CheckInode    bool
	CheckLastline bool
	CheckLog      bool

	AutofixCursor bool

	// RollbackPeriod enables a multi-record cursor retaining history back
	// this far; zero disables rollback entirely. Only consulted when Pos
	// is used to open a FileCursor (ignored for an explicitly supplied
	// Cursor, which owns its own rollback policy).
	RollbackPeriod time.Duration

	// Filter, if non-nil, is applied to every successfully read line.
	Filter filter.Filter
}

func (c Config) validate() error {
	if c.Start != StartBegin && c.Start != StartEnd && c.Start != StartFirst {
		return tailerr.NewConfigError("unknown start value %q", c.Start)
	}
	if c.End != EndFixed && c.End != EndFuture {
		return tailerr.NewConfigError("unknown end value %q", c.End)
	}
	switch c.Lock {
	case "", cursor.LockNone, cursor.LockBlocking, cursor.LockNonblocking:
	default:
		return tailerr.NewConfigError("unknown lock value %q", c.Lock)
	}
	if !c.CheckInode && !c.CheckLastline {
		return tailerr.NewConfigError("at least one of check_inode or check_lastline must be enabled")
	}
	if c.Pos != "" && c.Cursor != nil {
		return tailerr.NewConfigError("pos and cursor are mutually exclusive")
	}
	if c.Pos == "" && c.Cursor == nil {
		return tailerr.NewConfigError("one of pos or cursor must be supplied")
	}
	if c.Pos == "-" && c.Log == "" {
		return tailerr.NewConfigError("pos \"-\" requires an explicit log")
	}
	return nil
}
