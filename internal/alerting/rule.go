// Package alerting provides the alert engine for logalert.
// It evaluates log lines against ordered regex rules, tracks expected
// heartbeat messages for absence, and deduplicates the resulting events
// with per-condition cooldowns.
package alerting

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies what produced an alert event.
type EventKind string

const (
	// KindStateless is a direct pattern match on a log line.
	KindStateless EventKind = "stateless"
	// KindHeartbeatMissing fires when an expected message stops appearing.
	KindHeartbeatMissing EventKind = "heartbeat_missing"
	// KindHeartbeatRecovered fires when a missing heartbeat reappears.
	KindHeartbeatRecovered EventKind = "heartbeat_recovered"
)

// StatelessRule matches individual log lines against a regex pattern.
// Rules are evaluated in configured order and the first match wins, so
// specific rules should be placed before general ones. The rule's
// identity is its position in the configured list.
type StatelessRule struct {
	// Pattern is the regex applied to each line.
	Pattern string `yaml:"pattern"`
	// Prefix is prepended to the matched line in the alert message.
	Prefix string `yaml:"prefix"`

	compiled *regexp.Regexp
}

// Validate compiles the rule's pattern.
func (r *StatelessRule) Validate() error {
	if r.Pattern == "" {
		return fmt.Errorf("pattern is required")
	}
	compiled, err := regexp.Compile(r.Pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", r.Pattern, err)
	}
	r.compiled = compiled
	return nil
}

// Matches reports whether the line matches the rule's pattern.
func (r *StatelessRule) Matches(line string) bool {
	return r.compiled != nil && r.compiled.MatchString(line)
}

// HeartbeatRule describes a message that is expected to recur. Its
// absence for longer than Tolerance is the alert condition. Identity is
// the position in the configured heartbeat list.
type HeartbeatRule struct {
	// Pattern is the regex that identifies the heartbeat message.
	Pattern string `yaml:"pattern"`
	// Prefix is prepended to missing-heartbeat alert messages.
	Prefix string `yaml:"prefix"`
	// ToleranceSeconds is the configured tolerance in seconds.
	ToleranceSeconds int `yaml:"tolerance"`
	// Tolerance is the maximum allowed gap since the last sighting.
	// Derived from ToleranceSeconds during validation; may be set
	// directly when rules are built programmatically.
	Tolerance time.Duration `yaml:"-"`

	compiled *regexp.Regexp
}

// Validate compiles the rule's pattern and checks the tolerance.
func (r *HeartbeatRule) Validate() error {
	if r.Pattern == "" {
		return fmt.Errorf("pattern is required")
	}
	if r.Tolerance == 0 && r.ToleranceSeconds > 0 {
		r.Tolerance = time.Duration(r.ToleranceSeconds) * time.Second
	}
	if r.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive for pattern %q", r.Pattern)
	}
	compiled, err := regexp.Compile(r.Pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", r.Pattern, err)
	}
	r.compiled = compiled
	return nil
}

// Matches reports whether the line matches the heartbeat's pattern.
func (r *HeartbeatRule) Matches(line string) bool {
	return r.compiled != nil && r.compiled.MatchString(line)
}

// Event is a single alert or recovery produced by the engine.
// Events are immutable values; they are created by the matcher or the
// heartbeat tracker and consumed by the suppressor and the notifiers.
type Event struct {
	// ID uniquely identifies this event instance.
	ID string `json:"id"`
	// RuleID is the position of the originating rule in its list.
	RuleID int `json:"rule_id"`
	// Kind says which condition produced the event.
	Kind EventKind `json:"kind"`
	// Message is the fully rendered alert text.
	Message string `json:"message"`
	// Timestamp is when the condition was observed.
	Timestamp time.Time `json:"timestamp"`
}

// newEvent builds an event with a fresh ID.
func newEvent(ruleID int, kind EventKind, message string, ts time.Time) *Event {
	return &Event{
		ID:        uuid.New().String(),
		RuleID:    ruleID,
		Kind:      kind,
		Message:   message,
		Timestamp: ts,
	}
}

// Key returns the suppression key for the event. Missing and recovered
// events for the same rule get distinct keys so a recovery is never
// held back by its own missing alert.
func (e *Event) Key() string {
	return fmt.Sprintf("%s/%d", e.Kind, e.RuleID)
}

// RuleSet is the validated rule configuration the engine runs with.
// It is immutable after Validate.
type RuleSet struct {
	// Alerts are the ordered stateless rules.
	Alerts []*StatelessRule `yaml:"alerts"`
	// Heartbeats are the expected recurring messages.
	Heartbeats []*HeartbeatRule `yaml:"heartbeats"`
}

// Validate compiles every rule and rejects an empty rule set.
func (rs *RuleSet) Validate() error {
	if len(rs.Alerts) == 0 && len(rs.Heartbeats) == 0 {
		return fmt.Errorf("at least one alert or heartbeat rule is required")
	}
	for i, rule := range rs.Alerts {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("invalid alert rule at index %d: %w", i, err)
		}
	}
	for i, rule := range rs.Heartbeats {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("invalid heartbeat rule at index %d: %w", i, err)
		}
	}
	return nil
}
