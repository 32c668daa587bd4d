package alerting

import (
	"strings"
	"testing"
	"time"
)

func mustHeartbeats(t *testing.T, rules ...*HeartbeatRule) []*HeartbeatRule {
	t.Helper()
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			t.Fatalf("failed to validate heartbeat %q: %v", r.Pattern, err)
		}
	}
	return rules
}

func TestTrackerMissingAndRecovery(t *testing.T) {
	start := time.Now()
	rules := mustHeartbeats(t, &HeartbeatRule{
		Pattern:   "health_check_ok",
		Prefix:    ":skull: ",
		Tolerance: 300 * time.Second,
	})
	tr := NewTracker(rules, start)

	// Within tolerance: nothing fires.
	if events := tr.Check(start.Add(299 * time.Second)); len(events) != 0 {
		t.Fatalf("check within tolerance produced %d events", len(events))
	}

	// 301s after startup with no sighting: exactly one missing event.
	events := tr.Check(start.Add(301 * time.Second))
	if len(events) != 1 {
		t.Fatalf("check past tolerance produced %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Kind != KindHeartbeatMissing {
		t.Errorf("kind = %s, want %s", ev.Kind, KindHeartbeatMissing)
	}
	if ev.RuleID != 0 {
		t.Errorf("rule id = %d, want 0", ev.RuleID)
	}
	if !strings.HasPrefix(ev.Message, ":skull: ") {
		t.Errorf("message %q missing rule prefix", ev.Message)
	}
	if !strings.Contains(ev.Message, "health_check_ok") {
		t.Errorf("message %q missing pattern", ev.Message)
	}

	// Further checks while missing stay silent.
	for _, offset := range []time.Duration{302 * time.Second, 305 * time.Second, 600 * time.Second} {
		if events := tr.Check(start.Add(offset)); len(events) != 0 {
			t.Fatalf("check at +%s while missing produced %d events", offset, len(events))
		}
	}

	// Matching line at 310s: exactly one recovery.
	events = tr.Feed("health_check_ok all good", start.Add(310*time.Second))
	if len(events) != 1 {
		t.Fatalf("feed after outage produced %d events, want 1", len(events))
	}
	if events[0].Kind != KindHeartbeatRecovered {
		t.Errorf("kind = %s, want %s", events[0].Kind, KindHeartbeatRecovered)
	}
	// Outage was declared at 301s, so downtime is 9s.
	if !strings.Contains(events[0].Message, "9s") {
		t.Errorf("recovery message %q should report 9s downtime", events[0].Message)
	}

	// Healthy again: the next check within tolerance is silent.
	if events := tr.Check(start.Add(320 * time.Second)); len(events) != 0 {
		t.Fatalf("check after recovery produced %d events", len(events))
	}
}

func TestTrackerFeedRefreshesLastSeen(t *testing.T) {
	start := time.Now()
	rules := mustHeartbeats(t, &HeartbeatRule{Pattern: "tick", Tolerance: 10 * time.Second})
	tr := NewTracker(rules, start)

	// Regular heartbeats keep the rule healthy well past the seed time.
	for i := 1; i <= 10; i++ {
		now := start.Add(time.Duration(i) * 8 * time.Second)
		if events := tr.Feed("tick", now); len(events) != 0 {
			t.Fatalf("feed while healthy produced %d events", len(events))
		}
		if events := tr.Check(now.Add(time.Second)); len(events) != 0 {
			t.Fatalf("check at +%ds produced %d events", i*8+1, len(events))
		}
	}
}

func TestTrackerHealthyFeedIsIdempotent(t *testing.T) {
	start := time.Now()
	rules := mustHeartbeats(t, &HeartbeatRule{Pattern: "ok", Tolerance: time.Minute})
	tr := NewTracker(rules, start)

	for i := 0; i < 5; i++ {
		if events := tr.Feed("ok", start.Add(time.Duration(i)*time.Second)); len(events) != 0 {
			t.Fatalf("replaying a healthy heartbeat produced %d events", len(events))
		}
	}
	if tr.Status(0) != StatusHealthy {
		t.Errorf("status = %s, want %s", tr.Status(0), StatusHealthy)
	}
}

func TestTrackerNonMatchingLineIgnored(t *testing.T) {
	start := time.Now()
	rules := mustHeartbeats(t, &HeartbeatRule{Pattern: "ok", Tolerance: 10 * time.Second})
	tr := NewTracker(rules, start)

	// Unrelated lines do not refresh last-seen.
	tr.Feed("something else entirely", start.Add(9*time.Second))
	events := tr.Check(start.Add(11 * time.Second))
	if len(events) != 1 {
		t.Fatalf("expected missing event despite unrelated traffic, got %d", len(events))
	}
}

func TestTrackerMultipleRules(t *testing.T) {
	start := time.Now()
	rules := mustHeartbeats(t,
		&HeartbeatRule{Pattern: "svc-a heartbeat", Tolerance: 10 * time.Second},
		&HeartbeatRule{Pattern: "svc-b heartbeat", Tolerance: 60 * time.Second},
	)
	tr := NewTracker(rules, start)

	// Only svc-a keeps beating.
	tr.Feed("svc-a heartbeat", start.Add(30*time.Second))

	// At +65s: svc-a was seen at +30s (within 10s? no - 35s ago, over
	// tolerance), svc-b never seen (65s, over tolerance).
	events := tr.Check(start.Add(65 * time.Second))
	if len(events) != 2 {
		t.Fatalf("expected both rules missing, got %d events", len(events))
	}
	if events[0].RuleID == events[1].RuleID {
		t.Error("missing events must come from distinct rules")
	}
	if tr.MissingCount() != 2 {
		t.Errorf("missing count = %d, want 2", tr.MissingCount())
	}

	// One line recovers only svc-a.
	recovered := tr.Feed("svc-a heartbeat", start.Add(70*time.Second))
	if len(recovered) != 1 {
		t.Fatalf("expected one recovery, got %d", len(recovered))
	}
	if recovered[0].RuleID != 0 {
		t.Errorf("recovered rule = %d, want 0", recovered[0].RuleID)
	}
	if tr.MissingCount() != 1 {
		t.Errorf("missing count = %d, want 1", tr.MissingCount())
	}
}

func TestTrackerStartupGrace(t *testing.T) {
	start := time.Now()
	rules := mustHeartbeats(t, &HeartbeatRule{Pattern: "ok", Tolerance: 30 * time.Second})
	tr := NewTracker(rules, start)

	// Immediately after startup no heartbeat has been seen, but the
	// seeded last-seen prevents an instant false alarm.
	if events := tr.Check(start.Add(time.Second)); len(events) != 0 {
		t.Fatalf("check right after startup produced %d events", len(events))
	}
	if events := tr.Check(start.Add(29 * time.Second)); len(events) != 0 {
		t.Fatalf("check within grace produced %d events", len(events))
	}
	if events := tr.Check(start.Add(31 * time.Second)); len(events) != 1 {
		t.Fatalf("check past grace produced %d events, want 1", len(events))
	}
}

func TestTrackerExactTolerance(t *testing.T) {
	start := time.Now()
	rules := mustHeartbeats(t, &HeartbeatRule{Pattern: "ok", Tolerance: 10 * time.Second})
	tr := NewTracker(rules, start)

	// Exactly at tolerance the gap is not yet "longer than", so no event.
	if events := tr.Check(start.Add(10 * time.Second)); len(events) != 0 {
		t.Fatalf("check at exact tolerance produced %d events", len(events))
	}
	if events := tr.Check(start.Add(10*time.Second + time.Nanosecond)); len(events) != 1 {
		t.Fatalf("check just past tolerance produced %d events, want 1", len(events))
	}
}
