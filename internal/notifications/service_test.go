package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"signframes/internal/config"
	"signframes/internal/notifications"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		captured = append(captured, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, &captured
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyRunStarted(context.Background(), 3); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil).TestNotification(context.Background()); err != nil {
		t.Fatalf("expected nil config to yield noop, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	server, captured := newCaptureServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	ctx := context.Background()

	if err := svc.NotifyRunStarted(ctx, 12); err != nil {
		t.Fatalf("NotifyRunStarted: %v", err)
	}
	if err := svc.NotifyRunCompleted(ctx, notifications.RunSummary{Completed: 12, Skipped: 2, ImagesExtracted: 340, Duration: 95 * time.Second}); err != nil {
		t.Fatalf("NotifyRunCompleted: %v", err)
	}
	if err := svc.NotifyRunCompleted(ctx, notifications.RunSummary{Completed: 4, Remaining: 8}); err != nil {
		t.Fatalf("NotifyRunCompleted (partial): %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("ffmpeg failed"), "task 42"); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}

	got := *captured
	if len(got) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(got))
	}
	tests := []struct {
		title    string
		body     string
		tags     string
		priority string
	}{
		{"signframes - Run Started", "Started extraction with 12 tasks remaining", "signframes,run,started", ""},
		{"signframes - Run Complete", "Extraction complete: 12 tasks (2 skipped), 340 images in 1m35s", "signframes,run,completed", ""},
		{"signframes - Run Stopped", "Extraction complete: 4 tasks (0 skipped), 0 images in 0s; 8 tasks remaining", "signframes,run,completed", ""},
		{"signframes - Error", "Error with task 42: ffmpeg failed", "signframes,error,alert", "high"},
	}
	for i, want := range tests {
		if got[i].title != want.title || got[i].body != want.body || got[i].tags != want.tags || got[i].priority != want.priority {
			t.Fatalf("request %d = %+v, want %+v", i, got[i], want)
		}
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server, _ := newCaptureServer(t, http.StatusForbidden)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "ntfy returned 403") {
		t.Fatalf("expected ntfy status error, got %v", err)
	}
}
