// Package notifier delivers alert events to notification channels.
package notifier

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/good-yellow-bee/logalert/internal/alerting"
	"github.com/good-yellow-bee/logalert/internal/metrics"
)

// Notifier is the interface for all notification channels.
type Notifier interface {
	// Name returns the notifier name (e.g., "slack", "console").
	Name() string
	// Send delivers an alert event.
	Send(ctx context.Context, event *alerting.Event) error
	// Close releases any resources.
	Close() error
}

// ErrRateLimited is returned when a notification is dropped by the
// global rate limiter.
var ErrRateLimited = fmt.Errorf("notification rate limited")

// RateLimitConfig holds the global delivery rate limit. This is a last
// flood valve on the outbound channel, independent of the engine's
// per-condition suppression.
type RateLimitConfig struct {
	PerSecond float64 // Sustained notifications per second (default: 1)
	Burst     int     // Burst allowance (default: 10)
	Enabled   bool    // Whether rate limiting is enabled (default: true)
}

// DefaultRateLimitConfig returns default rate limit settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		PerSecond: 1,
		Burst:     10,
		Enabled:   true,
	}
}

// Dispatcher fans an event out to all registered notifiers.
type Dispatcher struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
	limiter   *rate.Limiter
	limited   bool
}

// NewDispatcher creates a dispatcher with default rate limiting.
func NewDispatcher() *Dispatcher {
	return NewDispatcherWithRateLimit(DefaultRateLimitConfig())
}

// NewDispatcherWithRateLimit creates a dispatcher with a custom rate
// limit configuration.
func NewDispatcherWithRateLimit(config RateLimitConfig) *Dispatcher {
	if config.PerSecond <= 0 {
		config.PerSecond = 1
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	return &Dispatcher{
		notifiers: make(map[string]Notifier),
		limiter:   rate.NewLimiter(rate.Limit(config.PerSecond), config.Burst),
		limited:   config.Enabled,
	}
}

// Register adds a notifier to the dispatcher.
func (d *Dispatcher) Register(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers[n.Name()] = n
}

// Unregister removes a notifier from the dispatcher.
func (d *Dispatcher) Unregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.notifiers, name)
}

// Get returns a notifier by name.
func (d *Dispatcher) Get(name string) (Notifier, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.notifiers[name]
	return n, ok
}

// Dispatch sends an event to every registered notifier. Returns
// ErrRateLimited if the event is dropped by the global limiter.
func (d *Dispatcher) Dispatch(ctx context.Context, event *alerting.Event) error {
	if d.limited && !d.limiter.Allow() {
		metrics.NotificationsRateLimited.Inc()
		return ErrRateLimited
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var errs []error
	for name, n := range d.notifiers {
		if err := n.Send(ctx, event); err != nil {
			metrics.NotificationFailures.WithLabelValues(name).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		metrics.NotificationsSent.WithLabelValues(name).Inc()
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %v", errs)
	}
	return nil
}

// Close closes all registered notifiers.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for name, n := range d.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	d.notifiers = make(map[string]Notifier)

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
