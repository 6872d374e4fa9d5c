// Package segment enumerates the physical files that make up one logical
// log: the active file at LogPath and the rotated segments LogPath.1,
// LogPath.2, ... with larger indices meaning older data.
package segment

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Locator maps segment indices to physical paths for a single logical log.
type Locator struct {
	LogPath string
}

// Path returns the physical filename for the given segment index. Index 0
// is the active file; index k>0 is LogPath.k.
func (l Locator) Path(index int) string {
	if index == 0 {
		return l.LogPath
	}
	return fmt.Sprintf("%s.%d", l.LogPath, index)
}

// LastIndex returns the largest k such that LogPath.k exists on disk. A
// suffix whose text after the final "." is not purely decimal digits is
// ignored, so editor backups or partially-rotated names never confuse the
// count. Returns 0 when no rotated segment exists.
func (l Locator) LastIndex() (int, error) {
	dir := filepath.Dir(l.LogPath)
	base := filepath.Base(l.LogPath)
	prefix := base + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("list segment directory %s: %w", dir, err)
	}

	last := 0
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		suffix := name[len(prefix):]
		if suffix == "" || !isAllDigits(suffix) {
			continue
		}
		n, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		if n > last {
			last = n
		}
	}
	return last, nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
