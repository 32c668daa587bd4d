package alerting

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/good-yellow-bee/logalert/internal/metrics"
	"github.com/good-yellow-bee/logalert/internal/source"
)

// Engine is the alert pipeline. It owns the stateless matcher, the
// heartbeat tracker, and the suppressor, and runs them from a single
// goroutine so all mutable state has one writer. Two stimuli drive it:
// incoming log lines and a fixed-period heartbeat check tick. Admitted
// events are pushed to a buffered channel without blocking; a slow
// consumer costs dropped events, never stalled ingestion.
type Engine struct {
	matcher    *Matcher
	tracker    *Tracker
	suppressor *Suppressor
	interval   time.Duration

	// events is the channel where admitted events are sent.
	events chan *Event

	// closed tracks whether Close has been called to prevent
	// sending on a closed channel.
	closed atomic.Bool

	stats *EngineStats
}

// EngineStats tracks engine counters using atomics for lock-free reads.
type EngineStats struct {
	LinesProcessed      atomic.Int64
	PatternMatches      atomic.Int64
	HeartbeatMisses     atomic.Int64
	HeartbeatRecoveries atomic.Int64
	EventsSuppressed    atomic.Int64
	EventsDropped       atomic.Int64
	EventsEmitted       atomic.Int64
}

// EngineOptions configures the alert engine.
type EngineOptions struct {
	// CheckInterval is the heartbeat check period.
	CheckInterval time.Duration
	// Cooldown is the per-key suppression window.
	Cooldown time.Duration
	// EventBufferSize is the size of the events channel buffer.
	EventBufferSize int
	// StartTime seeds heartbeat last-seen times. Zero means now.
	StartTime time.Time
}

// DefaultEngineOptions returns default engine options.
func DefaultEngineOptions() *EngineOptions {
	return &EngineOptions{
		CheckInterval:   10 * time.Second,
		Cooldown:        time.Minute,
		EventBufferSize: 100,
	}
}

// NewEngine creates an engine for a validated rule set.
func NewEngine(rules *RuleSet, opts *EngineOptions) *Engine {
	if opts == nil {
		opts = DefaultEngineOptions()
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = 10 * time.Second
	}
	if opts.EventBufferSize <= 0 {
		opts.EventBufferSize = 100
	}
	start := opts.StartTime
	if start.IsZero() {
		start = time.Now()
	}

	return &Engine{
		matcher:    NewMatcher(rules.Alerts),
		tracker:    NewTracker(rules.Heartbeats, start),
		suppressor: NewSuppressor(opts.Cooldown),
		interval:   opts.CheckInterval,
		events:     make(chan *Event, opts.EventBufferSize),
		stats:      &EngineStats{},
	}
}

// Events returns the channel carrying admitted events.
func (e *Engine) Events() <-chan *Event {
	return e.events
}

// ProcessLine evaluates a single log line at the current time.
func (e *Engine) ProcessLine(line string) []*Event {
	return e.ProcessLineAt(line, time.Now())
}

// ProcessLineAt evaluates a line at a specific time (useful for
// testing). The line is fanned out to the matcher and the heartbeat
// tracker; resulting events pass through the suppressor and admitted
// ones are returned and sent to the events channel. Empty lines are
// skipped.
func (e *Engine) ProcessLineAt(line string, now time.Time) []*Event {
	if line == "" {
		return nil
	}

	e.stats.LinesProcessed.Add(1)
	metrics.LinesProcessed.Inc()

	var candidates []*Event
	if ev := e.matcher.Match(line, now); ev != nil {
		e.stats.PatternMatches.Add(1)
		candidates = append(candidates, ev)
	}
	recoveries := e.tracker.Feed(line, now)
	if len(recoveries) > 0 {
		for _, ev := range recoveries {
			e.stats.HeartbeatRecoveries.Add(1)
			candidates = append(candidates, ev)
		}
		metrics.HeartbeatsMissing.Set(float64(e.tracker.MissingCount()))
	}

	return e.admit(candidates, now)
}

// Tick runs a heartbeat check at the current time.
func (e *Engine) Tick() []*Event {
	return e.TickAt(time.Now())
}

// TickAt runs a heartbeat check at a specific time.
func (e *Engine) TickAt(now time.Time) []*Event {
	candidates := e.tracker.Check(now)
	for range candidates {
		e.stats.HeartbeatMisses.Add(1)
	}
	metrics.HeartbeatsMissing.Set(float64(e.tracker.MissingCount()))
	return e.admit(candidates, now)
}

// admit routes candidates through the suppressor and forwards the
// survivors to the events channel.
func (e *Engine) admit(candidates []*Event, now time.Time) []*Event {
	var admitted []*Event
	for _, ev := range candidates {
		if !e.suppressor.AdmitAt(ev, now) {
			e.stats.EventsSuppressed.Add(1)
			metrics.EventsSuppressed.Inc()
			continue
		}
		admitted = append(admitted, ev)
		e.stats.EventsEmitted.Add(1)
		metrics.EventsEmitted.WithLabelValues(string(ev.Kind)).Inc()

		if e.closed.Load() {
			continue
		}
		select {
		case e.events <- ev:
		default:
			dropped := e.stats.EventsDropped.Add(1)
			metrics.EventsDropped.Inc()
			if dropped == 1 || dropped%100 == 0 {
				log.Printf("warning: event channel full, dropped %d events total", dropped)
			}
		}
	}
	return admitted
}

// Run consumes lines until the context is cancelled or the channel
// closes, checking heartbeats every CheckInterval. It is the single
// writer for tracker and suppressor state: a burst of lines cannot
// delay a tick by more than one line's processing time, and nothing
// here ever blocks on event delivery.
func (e *Engine) Run(ctx context.Context, lines <-chan source.Line) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if line.Err != nil {
				log.Printf("warning: log source error: %v", line.Err)
				continue
			}
			now := line.Time
			if now.IsZero() {
				now = time.Now()
			}
			e.ProcessLineAt(line.Text, now)
		case <-ticker.C:
			e.Tick()
		}
	}
}

// MissingHeartbeats returns how many heartbeats are currently missing.
func (e *Engine) MissingHeartbeats() int {
	return e.tracker.MissingCount()
}

// EngineStatsSnapshot is a point-in-time copy of engine counters.
type EngineStatsSnapshot struct {
	LinesProcessed      int64 `json:"lines_processed"`
	PatternMatches      int64 `json:"pattern_matches"`
	HeartbeatMisses     int64 `json:"heartbeat_misses"`
	HeartbeatRecoveries int64 `json:"heartbeat_recoveries"`
	EventsSuppressed    int64 `json:"events_suppressed"`
	EventsDropped       int64 `json:"events_dropped"`
	EventsEmitted       int64 `json:"events_emitted"`
}

// Stats returns a snapshot of engine counters.
func (e *Engine) Stats() EngineStatsSnapshot {
	return EngineStatsSnapshot{
		LinesProcessed:      e.stats.LinesProcessed.Load(),
		PatternMatches:      e.stats.PatternMatches.Load(),
		HeartbeatMisses:     e.stats.HeartbeatMisses.Load(),
		HeartbeatRecoveries: e.stats.HeartbeatRecoveries.Load(),
		EventsSuppressed:    e.stats.EventsSuppressed.Load(),
		EventsDropped:       e.stats.EventsDropped.Load(),
		EventsEmitted:       e.stats.EventsEmitted.Load(),
	}
}

// Close closes the events channel. Safe to call concurrently with
// ProcessLine and Tick.
func (e *Engine) Close() {
	if e.closed.Swap(true) {
		return
	}
	close(e.events)
}
