package reader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tailtrack/internal/cursor"
	"tailtrack/internal/tailerr"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
}

func baseConfig(log, pos string) Config {
	return Config{
		Log:           log,
		Pos:           pos,
		Start:         StartBegin,
		End:           EndFuture,
		CheckInode:    true,
		CheckLastline: true,
	}
}

func TestScenarioBasicReadCommit(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")
	posPath := filepath.Join(dir, "app.log.pos")
	writeFile(t, logPath, "a\nb\n")

	r, err := New(baseConfig(logPath, posPath))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	line, ok, err := r.Read()
	if err != nil || !ok || line != "a\n" {
		t.Fatalf("first read = %q, %v, %v", line, ok, err)
	}
	if err := r.Commit(nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r2, err := New(baseConfig(logPath, posPath))
	if err != nil {
		t.Fatalf("New (resume): %v", err)
	}
	defer r2.Close()
	line, ok, err = r2.Read()
	if err != nil || !ok || line != "b\n" {
		t.Fatalf("resumed read = %q, %v, %v", line, ok, err)
	}
	_, ok, err = r2.Read()
	if err != nil || ok {
		t.Fatalf("expected no more lines, got ok=%v err=%v", ok, err)
	}
}

func TestScenarioRotationWithoutLoss(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")
	posPath := filepath.Join(dir, "app.log.pos")
	writeFile(t, logPath, "a\nb\n")

	r, err := New(baseConfig(logPath, posPath))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	line, ok, err := r.Read()
	if err != nil || !ok || line != "a\n" {
		t.Fatalf("read a: %q %v %v", line, ok, err)
	}
	if err := r.Commit(nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := os.Rename(logPath, logPath+".1"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, logPath, "")
	appendFile(t, logPath, "c\n")

	r2, err := New(baseConfig(logPath, posPath))
	if err != nil {
		t.Fatalf("New (resume after rotation): %v", err)
	}
	defer r2.Close()

	var got []string
	for {
		line, ok, err := r2.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, line)
	}
	if len(got) != 2 || got[0] != "b\n" || got[1] != "c\n" {
		t.Fatalf("got %v, want [b\\n c\\n]", got)
	}
}

func TestLastLineSignatureStripsNewlineAndRecovers(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")
	posPath := filepath.Join(dir, "app.log.pos")
	writeFile(t, logPath, "first\nsecond\n")

	r, err := New(baseConfig(logPath, posPath))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := r.Read(); err != nil {
		t.Fatalf("Read first: %v", err)
	}
	if err := r.Commit(nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rec, err := r.Position()
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if strings.Contains(rec.LastLine, "\n") {
		t.Fatalf("expected no embedded newline in lastline signature, got %q", rec.LastLine)
	}
	if rec.LastLine != "first" {
		t.Fatalf("expected lastline %q, got %q", "first", rec.LastLine)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	// The on-disk cursor file must not contain a raw embedded newline
	// either, or a later read-back would see it as two separate lines.
	raw, err := os.ReadFile(posPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range strings.Split(string(raw), "\n") {
		if line == "" || line == "###" {
			continue
		}
		if !strings.Contains(line, ":") {
			t.Fatalf("cursor file line %q is not a key:value pair (embedded newline leaked through)", line)
		}
	}

	r2, err := New(baseConfig(logPath, posPath))
	if err != nil {
		t.Fatalf("New (resume): %v", err)
	}
	defer r2.Close()
	line, ok, err := r2.Read()
	if err != nil || !ok || line != "second\n" {
		t.Fatalf("resumed read = %q, %v, %v", line, ok, err)
	}
}

func TestScenarioLateUpdateToRotatedSegment(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")
	posPath := filepath.Join(dir, "app.log.pos")
	writeFile(t, logPath, "a\nb\n")

	r, err := New(baseConfig(logPath, posPath))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := r.Read(); err != nil {
		t.Fatalf("Read a: %v", err)
	}
	if err := r.Commit(nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, _, err := r.Read(); err != nil {
		t.Fatalf("Read b: %v", err)
	}
	if err := r.Commit(nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	if err := os.Rename(logPath, logPath+".1"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, logPath, "")
	appendFile(t, logPath+".1", "c\n")

	r2, err := New(baseConfig(logPath, posPath))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r2.Close()

	line, ok, err := r2.Read()
	if err != nil || !ok || line != "c\n" {
		t.Fatalf("read c: %q %v %v", line, ok, err)
	}
	_, ok, err = r2.Read()
	if err != nil || ok {
		t.Fatalf("expected None, got ok=%v err=%v", ok, err)
	}
}

func TestScenarioIncompleteTrailingLine(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")
	posPath := filepath.Join(dir, "app.log.pos")
	writeFile(t, logPath, "ab")

	r, err := New(baseConfig(logPath, posPath))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	_, ok, err := r.Read()
	if err != nil || ok {
		t.Fatalf("expected None for incomplete line, got ok=%v err=%v", ok, err)
	}

	appendFile(t, logPath, "c\n")
	line, ok, err := r.Read()
	if err != nil || !ok || line != "abc\n" {
		t.Fatalf("read after completion: %q %v %v", line, ok, err)
	}
}

func TestScenarioUnknownRotationFailsWithPositionLost(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")
	posPath := filepath.Join(dir, "app.log.pos")

	writeFile(t, logPath+".2", "old-segment-tail-line\n")
	writeFile(t, logPath+".1", "middle\n")
	writeFile(t, logPath, "newest\n")

	r, err := New(baseConfig(logPath, posPath))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := r.Read(); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := r.Commit(nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rec, err := r.Position()
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if rec.Inode == nil {
		t.Fatal("expected inode to be recorded")
	}
	// Force the committed position to an offset/lastline combination that
	// no remaining segment can satisfy: the inode still names the active
	// segment, but its lastline signature matches nothing on disk.
	rec = rec.WithOffset(5)
	rec.LastLine = "impossible-signature-that-matches-nothing"
	fc := r.cur.(*cursor.FileCursor)
	if err := fc.Commit(rec); err != nil {
		t.Fatalf("Commit forged record: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(logPath + ".2"); err != nil {
		t.Fatal(err)
	}

	_, err = New(baseConfig(logPath, posPath))
	if err != tailerr.ErrPositionLost {
		t.Fatalf("expected ErrPositionLost, got %v", err)
	}
}

func TestConfigRejectsBothCheckFlagsOff(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Log:   filepath.Join(dir, "app.log"),
		Pos:   filepath.Join(dir, "app.log.pos"),
		Start: StartBegin,
		End:   EndFuture,
	}
	_, err := New(cfg)
	var ce *tailerr.ConfigError
	if err == nil {
		t.Fatal("expected ConfigError")
	}
	if !castConfigError(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func castConfigError(err error, target **tailerr.ConfigError) bool {
	ce, ok := err.(*tailerr.ConfigError)
	if ok {
		*target = ce
	}
	return ok
}
