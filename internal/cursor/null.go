package cursor

import "tailtrack/internal/position"

// NullCursor is the no-op Cursor used when persistence is disabled (pos
// file "-"). Every operation succeeds trivially.
type NullCursor struct{}

func (NullCursor) Read() (*position.Record, error)    { return nil, nil }
func (NullCursor) Commit(position.Record) error       { return nil }
func (NullCursor) Rollback() (bool, error)             { return false, nil }
func (NullCursor) Clean() error                        { return nil }
func (NullCursor) Close() error                        { return nil }
