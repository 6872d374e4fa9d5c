// Package cursor persists reader progress durably so a restart can resume
// where a prior run left off. Cursor has two implementations: FileCursor,
// backed by a position file with atomic rename and a bounded rollback
// window, and NullCursor, a no-op used when persistence is disabled.
package cursor

import "tailtrack/internal/position"

// LockMode controls whether and how a FileCursor takes an exclusive
// advisory lock on its position file for the lifetime of the cursor.
type LockMode string

const (
	LockNone       LockMode = "none"
	LockBlocking   LockMode = "blocking"
	LockNonblocking LockMode = "nonblocking"
)

// Cursor is the durable store of one or more recent positions.
type Cursor interface {
	// Read returns the newest persisted position, or nil if none exists
	// yet (a cursor file that has never been committed to is not an
	// error). A file that exists but is empty yields
	// tailerr.ErrCursorMissing; one that cannot be parsed yields
	// tailerr.ErrCursorCorrupt.
	Read() (*position.Record, error)
	// Commit atomically persists p as the newest position, retaining
	// older positions per the rollback window policy.
	Commit(p position.Record) error
	// Rollback discards the newest position. It returns true iff a
	// strictly older position remains and becomes newest.
	Rollback() (bool, error)
	// Clean removes all persisted state.
	Clean() error
	// Close releases any held lock.
	Close() error
}
