package alerting

import "time"

// Matcher evaluates lines against the ordered stateless rules.
// It holds no mutable state and is safe for concurrent use.
type Matcher struct {
	rules []*StatelessRule
}

// NewMatcher creates a Matcher over validated rules. Order is
// significant: the first matching rule wins.
func NewMatcher(rules []*StatelessRule) *Matcher {
	return &Matcher{rules: rules}
}

// Match returns an event for the lowest-position rule whose pattern
// matches the line, or nil when no rule matches. At most one event is
// produced per line.
func (m *Matcher) Match(line string, now time.Time) *Event {
	for i, rule := range m.rules {
		if rule.Matches(line) {
			return newEvent(i, KindStateless, rule.Prefix+line, now)
		}
	}
	return nil
}
