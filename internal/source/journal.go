package source

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os/exec"
	"sync"
	"time"

	"github.com/good-yellow-bee/logalert/internal/metrics"
)

// journalScanBuffer is the max line size accepted from journalctl.
// Large enough to smooth out bursts of long lines.
const journalScanBuffer = 1024 * 1024

// JournalOptions configures a JournalSource.
type JournalOptions struct {
	// Unit filters the journal to a single systemd unit. Empty means
	// the full journal.
	Unit string
	// RestartBackoff is the wait before respawning journalctl after it
	// exits (default: 2s).
	RestartBackoff time.Duration
}

// DefaultJournalOptions returns JournalOptions with sensible defaults.
func DefaultJournalOptions() *JournalOptions {
	return &JournalOptions{
		RestartBackoff: 2 * time.Second,
	}
}

// JournalSource follows the systemd journal by spawning
//
//	stdbuf -oL journalctl --follow --lines 0 --output=cat --no-pager
//
// and scanning its stdout line by line. stdbuf forces line buffering so
// entries arrive as they are written. If journalctl exits, the source
// respawns it after a short backoff until the context is cancelled.
type JournalSource struct {
	opts *JournalOptions

	lines chan Line
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewJournalSource creates a JournalSource.
func NewJournalSource(opts *JournalOptions) *JournalSource {
	if opts == nil {
		opts = DefaultJournalOptions()
	}
	if opts.RestartBackoff <= 0 {
		opts.RestartBackoff = 2 * time.Second
	}
	return &JournalSource{
		opts:  opts,
		lines: make(chan Line, 100),
		done:  make(chan struct{}),
	}
}

// Lines returns the channel that emits journal lines.
func (j *JournalSource) Lines() <-chan Line {
	return j.lines
}

// Start begins following the journal.
func (j *JournalSource) Start(ctx context.Context) error {
	if _, err := exec.LookPath("journalctl"); err != nil {
		return fmt.Errorf("journalctl not found in PATH: %w", err)
	}
	go j.run(ctx)
	return nil
}

// Stop stops the source.
func (j *JournalSource) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return
	}
	j.closed = true
	close(j.done)
}

func (j *JournalSource) run(ctx context.Context) {
	defer close(j.lines)

	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-j.done:
			return
		default:
		}

		if !first {
			metrics.SourceRestarts.Inc()
			log.Printf("journalctl exited, restarting in %s", j.opts.RestartBackoff)
			select {
			case <-time.After(j.opts.RestartBackoff):
			case <-ctx.Done():
				return
			case <-j.done:
				return
			}
		}
		first = false

		if err := j.follow(ctx); err != nil {
			j.sendLine(Line{Err: fmt.Errorf("journal follow: %w", err)})
		}
	}
}

// follow spawns one journalctl process and drains it until it exits or
// the context is cancelled.
func (j *JournalSource) follow(ctx context.Context) error {
	args := []string{
		"-oL", // flush journalctl output line by line
		"journalctl",
		"--follow",
		"--lines", "0",
		"--output=cat",
		"--no-pager",
	}

	origin := "journal"
	if j.opts.Unit == "" {
		log.Printf("no systemd unit specified, following all logs")
	} else {
		log.Printf("following logs for systemd unit %s", j.opts.Unit)
		args = append(args, "--unit", j.opts.Unit)
		origin = j.opts.Unit
	}

	cmd := exec.CommandContext(ctx, "stdbuf", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to capture journalctl stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to spawn journalctl: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), journalScanBuffer)

	for scanner.Scan() {
		select {
		case <-j.done:
			cmd.Process.Kill()
			cmd.Wait()
			return nil
		default:
		}
		metrics.SourceLines.WithLabelValues(origin).Inc()
		j.sendLine(Line{
			Text:   scanner.Text(),
			Origin: origin,
			Time:   time.Now(),
		})
	}

	scanErr := scanner.Err()
	waitErr := cmd.Wait()
	if scanErr != nil {
		return scanErr
	}
	return waitErr
}

func (j *JournalSource) sendLine(line Line) {
	select {
	case j.lines <- line:
	case <-j.done:
	}
}
