package notifier

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/good-yellow-bee/logalert/internal/alerting"
)

// Recorder persists admitted events for later inspection. Implemented
// by the history store; nil disables recording.
type Recorder interface {
	Record(ctx context.Context, event *alerting.Event) error
}

// Sender drains admitted events from the engine and dispatches them.
// Delivery runs outside the engine's goroutine with a per-send timeout,
// so a slow or failing webhook can never backpressure line ingestion.
// Failures are logged, not escalated: an admitted event counts as
// attempted, not confirmed.
type Sender struct {
	dispatcher *Dispatcher
	recorder   Recorder

	// SendTimeout bounds a single dispatch (default: 30s).
	SendTimeout time.Duration

	sent     atomic.Int64
	failures atomic.Int64
}

// NewSender creates a Sender. recorder may be nil.
func NewSender(dispatcher *Dispatcher, recorder Recorder) *Sender {
	return &Sender{
		dispatcher:  dispatcher,
		recorder:    recorder,
		SendTimeout: 30 * time.Second,
	}
}

// Run consumes events until the channel closes or the context is
// cancelled. On shutdown the in-flight dispatch gets its full send
// timeout to finish.
func (s *Sender) Run(ctx context.Context, events <-chan *alerting.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			s.deliver(event)
		}
	}
}

// deliver records and dispatches one event. The dispatch context is
// detached from the run context so cancellation still grants the
// in-flight send its timeout.
func (s *Sender) deliver(event *alerting.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), s.SendTimeout)
	defer cancel()

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, event); err != nil {
			log.Printf("warning: failed to record alert history: %v", err)
		}
	}

	if err := s.dispatcher.Dispatch(ctx, event); err != nil {
		s.failures.Add(1)
		if errors.Is(err, ErrRateLimited) {
			log.Printf("warning: notification rate limited: %s", event.Message)
			return
		}
		log.Printf("error sending alert: %v", err)
		return
	}
	s.sent.Add(1)
}

// SenderStatsSnapshot is a point-in-time copy of sender counters.
type SenderStatsSnapshot struct {
	Sent     int64 `json:"sent"`
	Failures int64 `json:"failures"`
}

// Stats returns a snapshot of sender counters.
func (s *Sender) Stats() SenderStatsSnapshot {
	return SenderStatsSnapshot{
		Sent:     s.sent.Load(),
		Failures: s.failures.Load(),
	}
}
