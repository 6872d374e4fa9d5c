// Package position defines the durable value object a cursor persists: the
// byte offset, physical-file identity and trailing-line signature that
// together pin a reader to an exact point in a logical log.
package position

// MaxLastLine is the largest number of trailing bytes of the most recently
// consumed line that a Record retains. Longer lines are truncated on the
// left, keeping the suffix closest to the recorded offset.
const MaxLastLine = 255

// Record is a snapshot of where a reader has consumed up to. Offset and
// Inode are pointers because both can be legitimately absent: Offset is nil
// when no segment is open, Inode is nil when inode checking is disabled.
type Record struct {
	// Offset is the byte offset into the open segment at which the next
	// read begins. Nil means no open segment.
	Offset *int64
	// Inode identifies the physical file backing the segment, when inode
	// checking is enabled.
	Inode *uint64
	// LastLine holds up to MaxLastLine trailing bytes of the most recently
	// fully-consumed line, with any newline bytes stripped: the cursor
	// file's "key: value" format has no room for an embedded newline.
	LastLine string
	// LogPath is always the logical base path, never a ".N" suffixed
	// rotated segment name.
	LogPath string
	// CommitTime is wall-clock seconds since epoch, set by a Cursor when
	// rollback bookkeeping is active.
	CommitTime *int64
}

// TailBytes returns the suffix of s no longer than n bytes, truncating on
// the left.
func TailBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// WithOffset returns a copy of r with Offset set.
func (r Record) WithOffset(off int64) Record {
	r.Offset = &off
	return r
}

// WithInode returns a copy of r with Inode set.
func (r Record) WithInode(ino uint64) Record {
	r.Inode = &ino
	return r
}
