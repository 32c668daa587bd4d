package notifier

import (
	"context"
	"log"

	"github.com/good-yellow-bee/logalert/internal/alerting"
)

// ConsoleNotifier writes alert messages to the process log. It is the
// default channel when no webhook is configured, so a bare deployment
// still surfaces every alert somewhere.
type ConsoleNotifier struct{}

// NewConsoleNotifier creates a console notifier.
func NewConsoleNotifier() *ConsoleNotifier {
	return &ConsoleNotifier{}
}

// Name returns "console".
func (c *ConsoleNotifier) Name() string {
	return "console"
}

// Send logs the event message.
func (c *ConsoleNotifier) Send(_ context.Context, event *alerting.Event) error {
	log.Printf("alert [%s] %s", event.Kind, event.Message)
	return nil
}

// Close is a no-op for the console notifier.
func (c *ConsoleNotifier) Close() error {
	return nil
}
