package segment

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLocatorPath(t *testing.T) {
	l := Locator{LogPath: "/var/log/app.log"}
	if got := l.Path(0); got != "/var/log/app.log" {
		t.Fatalf("Path(0) = %q", got)
	}
	if got := l.Path(3); got != "/var/log/app.log.3" {
		t.Fatalf("Path(3) = %q", got)
	}
}

func TestLastIndexNoRotatedSegments(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")
	if err := os.WriteFile(logPath, []byte("hello\n"), 0644); err != nil {
		t.Fatal(err)
	}

	l := Locator{LogPath: logPath}
	n, err := l.LastIndex()
	if err != nil {
		t.Fatalf("LastIndex: %v", err)
	}
	if n != 0 {
		t.Fatalf("LastIndex = %d, want 0", n)
	}
}

func TestLastIndexFindsHighestRotatedSegment(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")
	for _, name := range []string{"app.log", "app.log.1", "app.log.2", "app.log.10"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	l := Locator{LogPath: logPath}
	n, err := l.LastIndex()
	if err != nil {
		t.Fatalf("LastIndex: %v", err)
	}
	if n != 10 {
		t.Fatalf("LastIndex = %d, want 10", n)
	}
}

func TestLastIndexIgnoresNonDecimalSuffixes(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")
	for _, name := range []string{"app.log", "app.log.1", "app.log.bak", "app.log.1~", "app.log.gz"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	l := Locator{LogPath: logPath}
	n, err := l.LastIndex()
	if err != nil {
		t.Fatalf("LastIndex: %v", err)
	}
	if n != 1 {
		t.Fatalf("LastIndex = %d, want 1 (non-decimal suffixes must be ignored)", n)
	}
}

func TestLastIndexMissingDirectory(t *testing.T) {
	l := Locator{LogPath: "/nonexistent-tailtrack-dir/app.log"}
	n, err := l.LastIndex()
	if err != nil {
		t.Fatalf("LastIndex: %v", err)
	}
	if n != 0 {
		t.Fatalf("LastIndex = %d, want 0", n)
	}
}
