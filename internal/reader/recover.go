package reader

import (
	"io"
	"os"
	"strings"

	"tailtrack/internal/position"
	"tailtrack/internal/tailerr"
)

// recoverPosition implements the §4.4 rotation-recovery protocol: find
// which current on-disk segment corresponds to the persisted record p, by
// scanning candidates from the active segment outward to the oldest.
func (r *Reader) recoverPosition(p position.Record) error {
	if p.Offset == nil {
		return tailerr.ErrPositionLost
	}

	for idx := 0; idx <= r.lastIdx; idx++ {
		ok, err := r.tryCandidate(idx, p)
		if err != nil {
			return err
		}
		if ok {
			return r.ensureUnreadBytesAvailable()
		}
	}
	return tailerr.ErrPositionLost
}

// tryCandidate evaluates segment idx against p per steps 1-6 of §4.4.
// On acceptance it leaves the reader positioned at idx, *p.Offset.
func (r *Reader) tryCandidate(idx int, p position.Record) (bool, error) {
	path := r.loc.Path(idx)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, tailerr.ErrUnreadableLog
	}

	if info.Size() < *p.Offset {
		return false, nil
	}
	if info.Size() == 0 && idx == 0 && r.cfg.End == EndFixed {
		return false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, tailerr.ErrUnreadableLog
	}

	if _, err := f.Seek(*p.Offset, io.SeekStart); err != nil {
		f.Close()
		return false, nil
	}

	if r.cfg.CheckInode && p.Inode != nil {
		ino, err := inodeOf(f)
		if err != nil || ino != *p.Inode {
			f.Close()
			return false, nil
		}
	}

	if r.cfg.CheckLastline && p.LastLine != "" {
		var actual string
		var err error
		if *p.Offset == 0 {
			actual, err = r.lastLineAt(idx, 0)
		} else {
			actual, err = tailOfFile(f, *p.Offset)
		}
		if err != nil {
			f.Close()
			return false, err
		}
		if !strings.HasSuffix(actual, p.LastLine) && actual != p.LastLine {
			f.Close()
			return false, nil
		}
	}

	r.segIdx = idx
	r.closeHandle()
	r.f = f
	return true, nil
}

// ensureUnreadBytesAvailable implements §4.4 step 7: if the accepted
// candidate has no unread bytes and is not the active segment, walk
// forward until one does, or we reach segment 0.
func (r *Reader) ensureUnreadBytesAvailable() error {
	for r.segIdx > 0 {
		info, err := r.f.Stat()
		if err != nil {
			return err
		}
		tell, err := r.f.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		if tell < info.Size() {
			return nil
		}
		advanced, err := r.walkNewer()
		if err != nil {
			return err
		}
		if !advanced {
			return nil
		}
	}
	return nil
}
