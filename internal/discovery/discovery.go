// Package discovery finds candidate log sources to tail with a
// format-agnostic directory scan: anything that looks like an active log
// file, optionally with rotated siblings.
package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pterm/pterm"

	"tailtrack/internal/segment"
)

// Candidate is a log source discovered on disk.
type Candidate struct {
	Name string
	Path string
}

// Scanner finds Candidates under one or more directories. An explicitly
// configured path always wins over auto-discovery, and auto-discovery can
// be disabled outright.
type Scanner struct {
	logger          *pterm.Logger
	configuredPaths []string
	autoDiscover    bool
	scanDirs        []string
}

// NewScanner builds a Scanner. configuredPaths, if non-empty, are used
// verbatim and auto-discovery is skipped; otherwise, if autoDiscover is
// true, scanDirs are walked for candidate files.
func NewScanner(logger *pterm.Logger, configuredPaths []string, autoDiscover bool, scanDirs []string) *Scanner {
	return &Scanner{
		logger:          logger,
		configuredPaths: configuredPaths,
		autoDiscover:    autoDiscover,
		scanDirs:        scanDirs,
	}
}

// Scan returns the discovered candidates. It logs each configured path it
// accepts or finds inaccessible and each auto-discovered path; directory
// entries skipped during auto-discovery are not logged.
func (s *Scanner) Scan() ([]Candidate, error) {
	if len(s.configuredPaths) > 0 {
		var valid []Candidate
		for _, path := range s.configuredPaths {
			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				s.logger.Warn("configured log path not accessible", s.logger.Args("path", path, "error", err))
				continue
			}
			s.logger.Info("using configured log path (auto-discovery skipped)", s.logger.Args("path", path))
			valid = append(valid, Candidate{Name: nameFromPath(path), Path: path})
		}
		return valid, nil
	}

	if !s.autoDiscover {
		s.logger.Info("auto-discovery disabled and no configured log paths set")
		return nil, nil
	}

	var found []Candidate
	seen := make(map[string]bool)
	for _, dir := range s.scanDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				s.logger.Trace("scan directory not accessible", s.logger.Args("dir", dir))
				continue
			}
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			if !strings.HasSuffix(name, ".log") {
				continue
			}
			if isRotatedSegmentName(name) {
				continue
			}
			full := filepath.Join(dir, name)
			info, err := entry.Info()
			if err != nil || info.Size() == 0 {
				continue
			}
			if seen[full] {
				continue
			}
			seen[full] = true
			found = append(found, Candidate{Name: nameFromPath(full), Path: full})
			s.logger.Debug("discovered log source", s.logger.Args("path", full))
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })

	if len(found) == 0 {
		s.logger.Warn("no log sources found via auto-discovery", s.logger.Args("dirs", s.scanDirs))
	}
	return found, nil
}

// isRotatedSegmentName reports whether name looks like log.N rather than an
// active log file, using the same all-digit-suffix rule segment.Locator
// applies when counting rotated segments.
func isRotatedSegmentName(name string) bool {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return false
	}
	suffix := name[idx+1:]
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func nameFromPath(path string) string {
	base := filepath.Base(path)
	if idx := strings.IndexByte(base, '.'); idx > 0 {
		return base[:idx]
	}
	return base
}

// LastRotatedIndex is a thin convenience wrapper so callers that already
// have a Candidate can find its current rotation depth without
// constructing a segment.Locator themselves.
func LastRotatedIndex(c Candidate) (int, error) {
	return segment.Locator{LogPath: c.Path}.LastIndex()
}
