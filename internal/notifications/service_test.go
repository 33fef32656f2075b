package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"dubber/internal/config"
	"dubber/internal/jobs"
	"dubber/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyJobCompleted(context.Background(), "Example", "/tmp/out.mp4"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		notify         func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "job started",
			notify: func(svc notifications.Service) error {
				return svc.NotifyJobStarted(context.Background(), "Conference Talk")
			},
			expectTitle:   "Dubber - Job Started",
			expectMessage: "Started dubbing: Conference Talk",
			expectTags:    "dubber,job,started",
		},
		{
			name: "job completed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyJobCompleted(context.Background(), "Conference Talk", "/out/dubbed.mp4")
			},
			expectTitle:    "Dubber - Complete",
			expectMessage:  "Dub complete: Conference Talk\nFile: /out/dubbed.mp4",
			expectTags:     "dubber,job,completed",
			expectPriority: "high",
		},
		{
			name: "job failed",
			notify: func(svc notifications.Service) error {
				return svc.NotifyJobFailed(context.Background(), "Conference Talk", "2 of 3 chunk(s) failed")
			},
			expectTitle:    "Dubber - Failed",
			expectMessage:  "Dubbing failed: Conference Talk\n2 of 3 chunk(s) failed",
			expectTags:     "dubber,error,alert",
			expectPriority: "high",
		},
		{
			name: "job cancelled",
			notify: func(svc notifications.Service) error {
				return svc.NotifyJobCancelled(context.Background(), "Conference Talk")
			},
			expectTitle:   "Dubber - Cancelled",
			expectMessage: "Dubbing cancelled: Conference Talk",
			expectTags:    "dubber,job,cancelled",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.notify(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error from non-2xx ntfy response")
	}
}

func TestJobNotifierSwallowsDeliveryFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	notifier := notifications.NewJobNotifier(notifications.NewService(&cfg), nil)
	job := &jobs.Job{ID: "job-1", SourceURL: "https://example.com/v", ErrorMessage: "merge failed"}

	// Neither call may panic or propagate the HTTP failure.
	notifier.JobCompleted(context.Background(), job)
	notifier.JobFailed(context.Background(), job)
}
