package reader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"tailtrack/internal/cursor"
	"tailtrack/internal/filter"
	"tailtrack/internal/position"
	"tailtrack/internal/segment"
	"tailtrack/internal/tailerr"
)

const lastLineLookback = 256

// Reader is a rotation-aware sequential reader over one logical log. It
// tracks which physical segment and byte offset it is at, recovers that
// state from a cursor on construction, and walks forward across rotated
// segments transparently as the caller reads lines.
type Reader struct {
	cfg      Config
	cur      cursor.Cursor
	ownsCur  bool
	loc      segment.Locator
	lastIdx  int
	eofLimit int64 // only meaningful when cfg.End == EndFixed

	segIdx int
	f      *os.File
	closed bool

	lastLine string // last line consumed by Read; Position derives its signature from the file instead

	stdin    bool
	stdinBuf *bufio.Reader
	stdinOff int64
}

// New constructs a Reader per cfg, performing rotation recovery or fresh
// placement as described by the spec's construction algorithm.
func New(cfg Config) (*Reader, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Filter == nil {
		cfg.Filter = filter.Passthrough
	}

	r := &Reader{cfg: cfg}

	if cfg.Log == "-" {
		r.stdin = true
		r.stdinBuf = bufio.NewReader(os.Stdin)
		if cfg.Cursor != nil {
			r.cur = cfg.Cursor
		} else if cfg.Pos == "-" {
			r.cur = cursor.NullCursor{}
		} else {
			c, err := cursor.NewFileCursor(cfg.Pos, cfg.RollbackPeriod, lockMode(cfg))
			if err != nil {
				return nil, err
			}
			r.cur = c
			r.ownsCur = true
		}
		return r, nil
	}

	cur, owns, err := r.openCursor(cfg)
	if err != nil {
		return nil, err
	}
	r.cur = cur
	r.ownsCur = owns

	rec, err := r.cur.Read()
	if err != nil {
		return nil, err
	}

	logPath := cfg.Log
	if rec != nil {
		if logPath == "" {
			logPath = rec.LogPath
		} else if cfg.CheckLog && rec.LogPath != "" && rec.LogPath != logPath {
			return nil, tailerr.ErrLogfileMismatch
		}
	}
	if logPath == "" {
		return nil, tailerr.NewConfigError("no log supplied and cursor has no stored log_path")
	}
	r.cfg.Log = logPath
	r.loc = segment.Locator{LogPath: logPath}

	lastIdx, err := r.loc.LastIndex()
	if err != nil {
		return nil, err
	}
	r.lastIdx = lastIdx

	if cfg.End == EndFixed {
		info, err := os.Stat(logPath)
		switch {
		case err == nil:
			r.eofLimit = info.Size()
		case os.IsNotExist(err):
			r.eofLimit = 0
		default:
			return nil, fmt.Errorf("stat %s: %w", logPath, err)
		}
	}

	if rec != nil {
		if err := r.recoverPosition(*rec); err != nil {
			if !errors.Is(err, tailerr.ErrPositionLost) && !errors.Is(err, tailerr.ErrUnreadableLog) {
				return nil, err
			}
			if !cfg.AutofixCursor {
				return nil, err
			}
			if err := r.cur.Clean(); err != nil {
				return nil, err
			}
			if err := r.freshStart(); err != nil {
				return nil, err
			}
		}
		return r, nil
	}

	if err := r.freshStart(); err != nil {
		return nil, err
	}
	return r, nil
}

func lockMode(cfg Config) cursor.LockMode {
	if cfg.Lock == "" {
		return cursor.LockNone
	}
	return cfg.Lock
}

func (r *Reader) openCursor(cfg Config) (cursor.Cursor, bool, error) {
	if cfg.Cursor != nil {
		return cfg.Cursor, false, nil
	}
	if cfg.Pos == "-" {
		return cursor.NullCursor{}, false, nil
	}
	c, err := cursor.NewFileCursor(cfg.Pos, cfg.RollbackPeriod, lockMode(cfg))
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// freshStart places the reader per cfg.Start, with no cursor history to
// resume from.
func (r *Reader) freshStart() error {
	switch r.cfg.Start {
	case StartBegin:
		return r.openSegment(0, 0)
	case StartEnd:
		if err := r.openSegment(0, 0); err != nil {
			return err
		}
		off, err := seekToLastLineBoundary(r.f)
		if err != nil {
			return err
		}
		if _, err := r.f.Seek(off, io.SeekStart); err != nil {
			return fmt.Errorf("seek %s: %w", r.f.Name(), err)
		}
		return nil
	case StartFirst:
		return r.openSegment(r.lastIdx, 0)
	default:
		return tailerr.NewConfigError("unknown start value %q", r.cfg.Start)
	}
}

// seekToLastLineBoundary scans backward from EOF to find the offset right
// after the last newline, so the first read() begins on a line boundary.
func seekToLastLineBoundary(f *os.File) (int64, error) {
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("seek %s: %w", f.Name(), err)
	}
	const chunk = 4096
	pos := size
	buf := make([]byte, chunk)
	for pos > 0 {
		readLen := int64(chunk)
		if readLen > pos {
			readLen = pos
		}
		start := pos - readLen
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			return 0, fmt.Errorf("seek %s: %w", f.Name(), err)
		}
		n, err := io.ReadFull(f, buf[:readLen])
		if err != nil && err != io.ErrUnexpectedEOF {
			return 0, fmt.Errorf("read %s: %w", f.Name(), err)
		}
		for i := n - 1; i >= 0; i-- {
			if buf[i] == '\n' {
				return start + int64(i) + 1, nil
			}
		}
		pos = start
	}
	return 0, nil
}

// openSegment opens segment idx at the given offset, closing any
// previously open handle.
func (r *Reader) openSegment(idx int, offset int64) error {
	r.closeHandle()
	path := r.loc.Path(idx)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return tailerr.ErrUnreadableLog
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	if offset != 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return fmt.Errorf("seek %s: %w", path, err)
		}
	}
	r.segIdx = idx
	r.f = f
	return nil
}

func (r *Reader) closeHandle() {
	if r.f != nil {
		r.f.Close()
		r.f = nil
	}
}

// isLastNonEmptySegment reports whether the current segment is the newest
// one holding data: segment 0 always qualifies; an older segment qualifies
// only if the next-newer segment is empty or absent. Segments newer than
// that one are not examined.
func (r *Reader) isLastNonEmptySegment() (bool, error) {
	if r.segIdx == 0 {
		return true, nil
	}
	path := r.loc.Path(r.segIdx - 1)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.Size() == 0, nil
}

// Read returns the next complete line (terminator included), or ("", false,
// nil) when none is currently available. A filter error is returned as the
// error, with ok=false; the failing line's raw bytes have already been
// consumed, so the next Read resumes at the line after it.
func (r *Reader) Read() (string, bool, error) {
	if r.stdin {
		return r.readStdin()
	}
	if r.f == nil {
		return "", false, nil
	}

	for {
		if r.cfg.End == EndFixed && r.segIdx == 0 {
			pos, err := r.f.Seek(0, io.SeekCurrent)
			if err != nil {
				return "", false, fmt.Errorf("tell %s: %w", r.f.Name(), err)
			}
			if pos >= r.eofLimit {
				return "", false, nil
			}
		}

		line, complete, err := readLine(r.f)
		if err != nil {
			return "", false, err
		}

		if complete {
			r.lastLine = line
			out, ferr := r.cfg.Filter(line)
			if ferr != nil {
				var fe *tailerr.FilterError
				if !errors.As(ferr, &fe) {
					ferr = &tailerr.FilterError{Err: ferr}
				}
				return "", false, ferr
			}
			return out, true, nil
		}

		if line != "" {
			last, err := r.isLastNonEmptySegment()
			if err != nil {
				return "", false, err
			}
			if last {
				if _, err := r.f.Seek(-int64(len(line)), io.SeekCurrent); err != nil {
					return "", false, fmt.Errorf("seek back %s: %w", r.f.Name(), err)
				}
				return "", false, nil
			}
			r.lastLine = line
			out, ferr := r.cfg.Filter(line)
			if ferr != nil {
				var fe *tailerr.FilterError
				if !errors.As(ferr, &fe) {
					ferr = &tailerr.FilterError{Err: ferr}
				}
				return "", false, ferr
			}
			return out, true, nil
		}

		// Clean EOF with nothing pending: try to walk to a newer segment.
		advanced, err := r.walkNewer()
		if err != nil {
			return "", false, err
		}
		if !advanced {
			return "", false, nil
		}
	}
}

// readLine reads until '\n' or EOF from f, returning the bytes read
// (terminator included when found) and whether a terminator was found. When
// a terminator is found, any bytes read past it are given back by seeking
// the handle to just after the terminator. On EOF without a terminator the
// partial bytes are returned as consumed; seeking back over them is left to
// the caller.
func readLine(f *os.File) (string, bool, error) {
	const chunkSize = 4096
	var buf []byte
	chunk := make([]byte, chunkSize)

	for {
		n, err := f.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if idx := indexByte(chunk[:n], '\n'); idx >= 0 {
				consumedInChunk := idx + 1
				extra := n - consumedInChunk
				if extra > 0 {
					if _, serr := f.Seek(-int64(extra), io.SeekCurrent); serr != nil {
						return "", false, fmt.Errorf("seek back %s: %w", f.Name(), serr)
					}
				}
				want := len(buf) - extra
				return string(buf[:want]), true, nil
			}
		}
		if err != nil {
			if err == io.EOF {
				return string(buf), false, nil
			}
			return "", false, fmt.Errorf("read %s: %w", f.Name(), err)
		}
	}
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

// walkNewer advances from the current segment to the next-newer one on
// EOF, per §4.6. It returns false when no walk is possible (segment 0
// under EndFixed, or under EndFuture where EOF is a steady state).
func (r *Reader) walkNewer() (bool, error) {
	if r.segIdx == 0 {
		return false, nil
	}
	if err := r.openSegment(r.segIdx-1, 0); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Reader) readStdin() (string, bool, error) {
	line, err := r.stdinBuf.ReadString('\n')
	if len(line) == 0 && err != nil {
		if err == io.EOF {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read stdin: %w", err)
	}
	if err != nil && err != io.EOF {
		return "", false, fmt.Errorf("read stdin: %w", err)
	}
	if !strings.HasSuffix(line, "\n") {
		// Incomplete trailing line on a pipe: push it back for next Read.
		r.stdinBuf = bufio.NewReader(io.MultiReader(strings.NewReader(line), r.stdinBuf))
		return "", false, nil
	}
	r.stdinOff += int64(len(line))
	r.lastLine = line
	out, ferr := r.cfg.Filter(line)
	if ferr != nil {
		var fe *tailerr.FilterError
		if !errors.As(ferr, &fe) {
			ferr = &tailerr.FilterError{Err: ferr}
		}
		return "", false, ferr
	}
	return out, true, nil
}

// Position snapshots the reader's current state as a PositionRecord.
func (r *Reader) Position() (position.Record, error) {
	rec := position.Record{LogPath: r.cfg.Log}
	if r.stdin {
		rec.Offset = nil
		return rec, nil
	}
	if r.f == nil {
		return rec, nil
	}
	off, err := r.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return rec, fmt.Errorf("tell %s: %w", r.f.Name(), err)
	}
	rec = rec.WithOffset(off)

	if r.cfg.CheckInode {
		ino, err := inodeOf(r.f)
		if err != nil {
			return rec, err
		}
		rec = rec.WithInode(ino)
	}
	if r.cfg.CheckLastline {
		ll, err := r.lastLineAt(r.segIdx, off)
		if err != nil {
			return rec, err
		}
		rec.LastLine = ll
	}
	return rec, nil
}

// lastLineAt computes the ≤255-byte signature ending at offset within
// segment idx, per §4.5: look back up to 256 bytes within the segment, or
// into the previous segment's tail if offset is 0.
func (r *Reader) lastLineAt(idx int, offset int64) (string, error) {
	if offset == 0 {
		prevPath := r.loc.Path(idx + 1)
		pf, err := os.Open(prevPath)
		if err != nil {
			if os.IsNotExist(err) {
				return "", nil
			}
			return "", fmt.Errorf("open %s: %w", prevPath, err)
		}
		defer pf.Close()
		info, err := pf.Stat()
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", prevPath, err)
		}
		return tailOfFile(pf, info.Size())
	}

	path := r.loc.Path(idx)
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return tailOfFile(f, offset)
}

// lastLineReplacer strips newline bytes from a computed signature before it
// is persisted or compared. The cursor file's "key: value" format has no
// escaping for embedded newlines (spec: "up to 255 bytes, no newline"), so
// any newline inside the lookback window must go before the value ever
// reaches formatRecord — and tailOfFile is the one place both the persist
// path (Position) and the compare path (tryCandidate) get this signature
// from, so stripping here keeps the two sides symmetric.
var lastLineReplacer = strings.NewReplacer("\n", "", "\r", "")

func tailOfFile(f *os.File, upTo int64) (string, error) {
	n := int64(lastLineLookback)
	if n > upTo {
		n = upTo
	}
	if n == 0 {
		return "", nil
	}
	start := upTo - n
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek %s: %w", f.Name(), err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(f, buf); err != nil {
		return "", fmt.Errorf("read %s: %w", f.Name(), err)
	}
	clean := lastLineReplacer.Replace(string(buf))
	return position.TailBytes(clean, position.MaxLastLine), nil
}

// Commit persists p (defaulting to Position()) via the reader's cursor. A
// record with no offset is a no-op, matching stdin's offsetless position.
func (r *Reader) Commit(p *position.Record) error {
	var rec position.Record
	if p != nil {
		rec = *p
	} else {
		var err error
		rec, err = r.Position()
		if err != nil {
			return err
		}
	}
	if rec.Offset == nil {
		return nil
	}
	if len(rec.LastLine) > position.MaxLastLine {
		rec.LastLine = position.TailBytes(rec.LastLine, position.MaxLastLine)
	}
	return r.cur.Commit(rec)
}

// Rollback discards the newest committed position via the cursor. It does
// not affect the reader's in-memory position; callers typically construct
// a fresh Reader after a successful rollback to resume from the restored
// position.
func (r *Reader) Rollback() (bool, error) {
	return r.cur.Rollback()
}

// Lag returns the bytes remaining to read across the current and all
// newer segments.
func (r *Reader) Lag() (uint64, error) {
	if r.stdin || r.f == nil {
		return 0, tailerr.ErrLagUnavailable
	}
	off, err := r.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("tell %s: %w", r.f.Name(), err)
	}
	var total int64
	for idx := r.segIdx; idx >= 0; idx-- {
		info, err := os.Stat(r.loc.Path(idx))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, fmt.Errorf("stat %s: %w", r.loc.Path(idx), err)
		}
		total += info.Size()
	}
	total -= off
	if total < 0 {
		total = 0
	}
	return uint64(total), nil
}

// LogNumber returns the current segment index.
func (r *Reader) LogNumber() int { return r.segIdx }

// LogName returns the current segment's physical path.
func (r *Reader) LogName() string {
	if r.stdin {
		return "-"
	}
	return r.loc.Path(r.segIdx)
}

// Close releases the reader's handle and, if it owns the cursor, the
// cursor's lock.
func (r *Reader) Close() error {
	r.closeHandle()
	if r.ownsCur {
		return r.cur.Close()
	}
	return nil
}

func inodeOf(f *os.File) (uint64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", f.Name(), err)
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, fmt.Errorf("inode unavailable for %s on this platform", f.Name())
	}
	return st.Ino, nil
}
