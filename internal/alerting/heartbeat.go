package alerting

import (
	"fmt"
	"time"
)

// HeartbeatStatus is the state of a single tracked heartbeat.
type HeartbeatStatus string

const (
	// StatusHealthy means the heartbeat was seen within tolerance.
	StatusHealthy HeartbeatStatus = "healthy"
	// StatusMissing means the heartbeat is overdue and was alerted on.
	StatusMissing HeartbeatStatus = "missing"
)

// heartbeatState is the mutable per-rule tracking record. It is owned
// exclusively by the engine goroutine driving the Tracker.
type heartbeatState struct {
	lastSeen     time.Time
	status       HeartbeatStatus
	missingSince time.Time
}

// Tracker watches heartbeat rules for absence. Lines refresh the
// per-rule last-seen time; periodic checks compare it against the
// rule's tolerance. Both transitions are edge-triggered: one missing
// event per outage, one recovered event per return.
//
// Tracker is not safe for concurrent use; the engine serializes all
// calls on its run loop.
type Tracker struct {
	rules  []*HeartbeatRule
	states []*heartbeatState
}

// NewTracker creates a Tracker for validated heartbeat rules.
// Every rule starts Healthy with lastSeen seeded to startTime, so a
// heartbeat gets a full tolerance window before its first check can
// declare it missing.
func NewTracker(rules []*HeartbeatRule, startTime time.Time) *Tracker {
	states := make([]*heartbeatState, len(rules))
	for i := range rules {
		states[i] = &heartbeatState{
			lastSeen: startTime,
			status:   StatusHealthy,
		}
	}
	return &Tracker{rules: rules, states: states}
}

// Feed records a line against every matching heartbeat rule. A rule in
// Missing state flips back to Healthy and yields exactly one recovery
// event reporting how long the heartbeat was down. Rules already
// Healthy refresh silently.
func (t *Tracker) Feed(line string, now time.Time) []*Event {
	var events []*Event
	for i, rule := range t.rules {
		if !rule.Matches(line) {
			continue
		}
		state := t.states[i]
		state.lastSeen = now

		if state.status == StatusMissing {
			downtime := now.Sub(state.missingSince)
			state.status = StatusHealthy
			state.missingSince = time.Time{}
			msg := fmt.Sprintf("Heartbeat recovered in %s for pattern '%s'.",
				formatDuration(downtime), rule.Pattern)
			events = append(events, newEvent(i, KindHeartbeatRecovered, msg, now))
		}
	}
	return events
}

// Check declares overdue heartbeats missing. A Healthy rule whose
// last sighting is older than its tolerance flips to Missing and
// yields exactly one missing event; rules already Missing stay silent
// until they recover.
func (t *Tracker) Check(now time.Time) []*Event {
	var events []*Event
	for i, rule := range t.rules {
		state := t.states[i]
		if state.status != StatusHealthy {
			continue
		}
		elapsed := now.Sub(state.lastSeen)
		if elapsed <= rule.Tolerance {
			continue
		}
		state.status = StatusMissing
		state.missingSince = now
		msg := fmt.Sprintf("%sHeartbeat missed for pattern '%s'. Last seen %s ago.",
			rule.Prefix, rule.Pattern, formatDuration(elapsed))
		events = append(events, newEvent(i, KindHeartbeatMissing, msg, now))
	}
	return events
}

// MissingCount returns how many heartbeats are currently missing.
func (t *Tracker) MissingCount() int {
	count := 0
	for _, state := range t.states {
		if state.status == StatusMissing {
			count++
		}
	}
	return count
}

// Status returns the current status of the heartbeat rule at index i.
func (t *Tracker) Status(i int) HeartbeatStatus {
	if i < 0 || i >= len(t.states) {
		return ""
	}
	return t.states[i].status
}

// formatDuration renders a duration for alert text, dropping
// sub-second noise.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return d.Round(time.Second).String()
}
