package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewFileSourceMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.log")

	// Default options require the file to exist.
	if _, err := NewFileSource([]string{missing}, nil); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}

	opts := DefaultFileOptions()
	opts.MustExist = false
	fs, err := NewFileSource([]string{missing}, opts)
	if err != nil {
		t.Fatalf("expected no error with MustExist=false, got: %v", err)
	}
	fs.Stop()
}

func TestNewFileSourceNoPaths(t *testing.T) {
	if _, err := NewFileSource(nil, nil); err == nil {
		t.Error("expected error for empty path list")
	}
}

func collectLines(t *testing.T, fs *FileSource, want int, timeout time.Duration) []Line {
	t.Helper()
	var lines []Line
	deadline := time.After(timeout)
	for len(lines) < want {
		select {
		case line, ok := <-fs.Lines():
			if !ok {
				return lines
			}
			if line.Err != nil {
				t.Fatalf("line error: %v", line.Err)
			}
			lines = append(lines, line)
		case <-deadline:
			t.Fatalf("timed out with %d of %d lines", len(lines), want)
		}
	}
	return lines
}

func TestFileSourceReadsExistingContent(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "test.log")
	if err := os.WriteFile(tmpFile, []byte("line 1\nline 2\nline 3\n"), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	opts := DefaultFileOptions()
	opts.FromStart = true
	opts.PollInterval = 50 * time.Millisecond

	fs, err := NewFileSource([]string{tmpFile}, opts)
	if err != nil {
		t.Fatalf("failed to create file source: %v", err)
	}
	defer fs.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := fs.Start(ctx); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	lines := collectLines(t, fs, 3, 3*time.Second)
	if lines[0].Text != "line 1" || lines[2].Text != "line 3" {
		t.Errorf("unexpected lines: %q ... %q", lines[0].Text, lines[2].Text)
	}
	if lines[0].Origin != tmpFile {
		t.Errorf("origin = %q, want %q", lines[0].Origin, tmpFile)
	}
	if lines[0].Time.IsZero() {
		t.Error("line timestamp should be set")
	}
}

func TestFileSourceTailsNewContent(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "test.log")
	if err := os.WriteFile(tmpFile, []byte("old line\n"), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	opts := DefaultFileOptions()
	opts.PollInterval = 50 * time.Millisecond

	fs, err := NewFileSource([]string{tmpFile}, opts)
	if err != nil {
		t.Fatalf("failed to create file source: %v", err)
	}
	defer fs.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := fs.Start(ctx); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	// Default tails from the end: the pre-existing line is skipped.
	f, err := os.OpenFile(tmpFile, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("failed to open for append: %v", err)
	}
	if _, err := f.WriteString("new line\n"); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	f.Close()

	lines := collectLines(t, fs, 1, 3*time.Second)
	if lines[0].Text != "new line" {
		t.Errorf("text = %q, want %q", lines[0].Text, "new line")
	}
}

func TestFileSourceTruncation(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "test.log")
	if err := os.WriteFile(tmpFile, []byte("aaa\nbbb\nccc\n"), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	opts := DefaultFileOptions()
	opts.PollInterval = 50 * time.Millisecond

	fs, err := NewFileSource([]string{tmpFile}, opts)
	if err != nil {
		t.Fatalf("failed to create file source: %v", err)
	}
	defer fs.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := fs.Start(ctx); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	// copytruncate-style rotation: the file shrinks, then refills.
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(tmpFile, []byte("fresh\n"), 0644); err != nil {
		t.Fatalf("failed to truncate: %v", err)
	}

	lines := collectLines(t, fs, 1, 3*time.Second)
	if lines[0].Text != "fresh" {
		t.Errorf("text = %q, want %q", lines[0].Text, "fresh")
	}
}

func TestFileSourceStopClosesChannel(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "test.log")
	if err := os.WriteFile(tmpFile, []byte(""), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	fs, err := NewFileSource([]string{tmpFile}, nil)
	if err != nil {
		t.Fatalf("failed to create file source: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := fs.Start(ctx); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	fs.Stop()

	select {
	case _, ok := <-fs.Lines():
		if ok {
			// A buffered line is fine; the channel must close soon after.
			for range fs.Lines() {
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("lines channel did not close after Stop")
	}
}
