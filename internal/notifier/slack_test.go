package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/good-yellow-bee/logalert/internal/alerting"
)

func TestSlackConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  SlackConfig
		wantErr bool
	}{
		{
			name:    "empty URL",
			config:  SlackConfig{},
			wantErr: true,
		},
		{
			name:    "plain HTTP",
			config:  SlackConfig{WebhookURL: "http://hooks.slack.com/x"},
			wantErr: true,
		},
		{
			name:   "valid",
			config: SlackConfig{WebhookURL: "https://hooks.slack.com/services/T/B/x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

// newTestSlackNotifier builds a notifier pointed at an httptest server,
// bypassing URL validation (the test server is plain HTTP).
func newTestSlackNotifier(t *testing.T, url string, attempts int) *SlackNotifier {
	t.Helper()
	return &SlackNotifier{
		config: SlackConfig{
			WebhookURL:   url,
			MaxAttempts:  attempts,
			RetryBackoff: 10 * time.Millisecond,
		},
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestSlackSend(t *testing.T) {
	var gotBody atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody.Store(string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := newTestSlackNotifier(t, server.URL, 1)
	event := &alerting.Event{
		Kind:      alerting.KindStateless,
		Message:   ":fire: ERROR disk full",
		Timestamp: time.Now(),
	}

	if err := s.Send(context.Background(), event); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	var payload slackMessage
	if err := json.Unmarshal([]byte(gotBody.Load().(string)), &payload); err != nil {
		t.Fatalf("failed to parse payload: %v", err)
	}
	if payload.Text != event.Message {
		t.Errorf("payload text = %q, want %q", payload.Text, event.Message)
	}
}

func TestSlackSendServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no_service", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	s := newTestSlackNotifier(t, server.URL, 1)
	err := s.Send(context.Background(), &alerting.Event{Message: "x"})
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if !strings.Contains(err.Error(), "status 503") {
		t.Errorf("error %q should mention the status", err.Error())
	}
}

func TestSlackSendRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "try again", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := newTestSlackNotifier(t, server.URL, 2)
	if err := s.Send(context.Background(), &alerting.Event{Message: "x"}); err != nil {
		t.Fatalf("send should succeed on retry: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestSlackSendRespectsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	s := newTestSlackNotifier(t, server.URL, 5)
	s.config.RetryBackoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// First attempt fails, retry wait sees the cancelled context.
	err := s.Send(ctx, &alerting.Event{Message: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
}
