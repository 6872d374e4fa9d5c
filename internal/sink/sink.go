// Package sink delivers lines a Reader has produced to a durable store, one
// row per tailed line.
package sink

import "context"

// Record is one line read from a tracked source, ready for storage.
type Record struct {
	SourceName string
	Line       string
	Offset     int64
	LogNumber  int
	ReadAtUnix int64
}

// Sink persists Records. Write must not block indefinitely; callers are
// expected to apply their own timeout via ctx.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close() error
}

// NullSink discards every record. Useful for dry runs and tests.
type NullSink struct{}

func (NullSink) Write(context.Context, Record) error { return nil }
func (NullSink) Close() error                        { return nil }
