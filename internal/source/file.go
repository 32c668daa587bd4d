package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/good-yellow-bee/logalert/internal/metrics"
)

// FileOptions contains options for configuring a FileSource.
type FileOptions struct {
	// PollInterval is the interval to poll for changes when fsnotify
	// events are missed.
	PollInterval time.Duration
	// ReOpen indicates whether to reopen a file after rotation.
	ReOpen bool
	// MustExist indicates whether the files must exist at startup.
	MustExist bool
	// FromStart reads existing content instead of seeking to the end.
	// A live alerting daemon normally wants only new lines.
	FromStart bool
}

// DefaultFileOptions returns FileOptions with sensible defaults.
func DefaultFileOptions() *FileOptions {
	return &FileOptions{
		PollInterval: 250 * time.Millisecond,
		ReOpen:       true,
		MustExist:    true,
	}
}

// FileSource tails one or more log files and emits new lines as they
// are written. Rotation is handled by watching for create events on
// the parent directory; truncation is detected by the polling
// fallback.
type FileSource struct {
	paths []string
	opts  *FileOptions

	tails   []*fileTail
	watcher *fsnotify.Watcher

	lines chan Line
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// fileTail is the per-file read state.
type fileTail struct {
	path   string
	file   *os.File
	reader *bufio.Reader
	size   int64
}

// NewFileSource creates a FileSource for the given file paths.
func NewFileSource(paths []string, opts *FileOptions) (*FileSource, error) {
	if opts == nil {
		opts = DefaultFileOptions()
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("at least one file path is required")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	fs := &FileSource{
		opts:    opts,
		watcher: watcher,
		lines:   make(chan Line, 100),
		done:    make(chan struct{}),
	}

	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to get absolute path for %s: %w", path, err)
		}
		fs.paths = append(fs.paths, absPath)

		tail := &fileTail{path: absPath}
		info, err := os.Stat(absPath)
		if err != nil {
			if os.IsNotExist(err) && opts.MustExist {
				watcher.Close()
				return nil, fmt.Errorf("file does not exist: %s", absPath)
			}
		} else {
			if err := tail.open(); err != nil {
				watcher.Close()
				return nil, err
			}
			tail.size = info.Size()
			if !opts.FromStart {
				if err := tail.seekEnd(); err != nil {
					watcher.Close()
					return nil, err
				}
			}
		}
		fs.tails = append(fs.tails, tail)
	}

	return fs, nil
}

// Lines returns the channel that emits file lines.
func (f *FileSource) Lines() <-chan Line {
	return f.lines
}

// Start begins tailing the files.
func (f *FileSource) Start(ctx context.Context) error {
	// Watch parent directories for rotation detection.
	dirs := make(map[string]bool)
	for _, path := range f.paths {
		dirs[filepath.Dir(path)] = true
	}
	for dir := range dirs {
		if err := f.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}

	go f.run(ctx)
	return nil
}

// Stop stops the source.
func (f *FileSource) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true

	close(f.done)
	f.watcher.Close()
	for _, tail := range f.tails {
		if tail.file != nil {
			tail.file.Close()
		}
	}
}

func (f *FileSource) run(ctx context.Context) {
	defer close(f.lines)

	if f.opts.FromStart {
		for _, tail := range f.tails {
			f.readLines(tail)
		}
	}

	ticker := time.NewTicker(f.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.done:
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			f.handleEvent(event)
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.sendLine(Line{Err: fmt.Errorf("watcher error: %w", err)})
		case <-ticker.C:
			// Fallback polling for systems where fsnotify is unreliable.
			for _, tail := range f.tails {
				f.checkForChanges(tail)
			}
		}
	}
}

func (f *FileSource) tailFor(path string) *fileTail {
	for _, tail := range f.tails {
		if tail.path == path {
			return tail
		}
	}
	return nil
}

func (f *FileSource) handleEvent(event fsnotify.Event) {
	tail := f.tailFor(event.Name)
	if tail == nil {
		return
	}

	if event.Has(fsnotify.Write) {
		f.readLines(tail)
	} else if event.Has(fsnotify.Create) {
		// File was recreated (rotation)
		if f.opts.ReOpen {
			f.handleRotation(tail)
		}
	}
	// Ignore Remove, Rename, Chmod - wait for the create event on rotation
}

func (f *FileSource) checkForChanges(tail *fileTail) {
	info, err := os.Stat(tail.path)
	if err != nil {
		// File might have been rotated, wait for it to reappear
		return
	}

	newSize := info.Size()

	// Truncation (log rotation with copytruncate)
	if newSize < tail.size {
		f.handleTruncation(tail)
		return
	}

	if newSize > tail.size {
		tail.size = newSize
		f.readLines(tail)
	}
}

func (f *FileSource) handleRotation(tail *fileTail) {
	if tail.file != nil {
		tail.file.Close()
		tail.file = nil
	}

	// The new file may not be readable immediately after the create event.
	for i := 0; i < 10; i++ {
		if err := tail.open(); err == nil {
			if info, err := os.Stat(tail.path); err == nil {
				tail.size = info.Size()
			}
			f.readLines(tail)
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func (f *FileSource) handleTruncation(tail *fileTail) {
	if tail.file == nil {
		return
	}
	tail.file.Seek(0, io.SeekStart)
	tail.reader = bufio.NewReader(tail.file)
	tail.size = 0
	f.readLines(tail)
}

func (f *FileSource) readLines(tail *fileTail) {
	if tail.file == nil || tail.reader == nil {
		return
	}

	for {
		line, err := tail.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				if len(line) > 0 {
					// Partial line: seek back so it is re-read whole
					// once the rest arrives.
					tail.file.Seek(-int64(len(line)), io.SeekCurrent)
					tail.reader = bufio.NewReader(tail.file)
				}
				return
			}
			f.sendLine(Line{Origin: tail.path, Err: fmt.Errorf("read error: %w", err)})
			return
		}

		// Strip trailing newline and carriage return
		if len(line) > 0 && line[len(line)-1] == '\n' {
			line = line[:len(line)-1]
		}
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}

		metrics.SourceLines.WithLabelValues(tail.path).Inc()
		f.sendLine(Line{
			Text:   line,
			Origin: tail.path,
			Time:   time.Now(),
		})
	}
}

func (f *FileSource) sendLine(line Line) {
	select {
	case f.lines <- line:
	case <-f.done:
	}
}

func (t *fileTail) open() error {
	file, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	t.file = file
	t.reader = bufio.NewReader(file)
	return nil
}

func (t *fileTail) seekEnd() error {
	if t.file == nil {
		return nil
	}
	if _, err := t.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}
	t.reader = bufio.NewReader(t.file)
	return nil
}
