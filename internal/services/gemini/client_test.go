package gemini_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"matchlens/internal/services"
	"matchlens/internal/services/gemini"
)

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip_00m15s.mp4")
	if err := os.WriteFile(path, []byte("not really video"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func newClient(t *testing.T, handler http.Handler) *gemini.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return gemini.NewClient(gemini.Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gemini-2.5-flash",
	})
}

func TestSubmitPollInferReleaseFlow(t *testing.T) {
	var deleted bool
	mux := http.NewServeMux()
	mux.HandleFunc("/upload/v1beta/files", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		fmt.Fprint(w, `{"file":{"name":"files/abc123","uri":"https://example.test/files/abc123","state":"PROCESSING"}}`)
	})
	mux.HandleFunc("/v1beta/files/abc123", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			deleted = true
			fmt.Fprint(w, `{}`)
			return
		}
		fmt.Fprint(w, `{"name":"files/abc123","state":"ACTIVE"}`)
	})
	mux.HandleFunc("/v1beta/models/gemini-2.5-flash:generateContent", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"TIMESTAMP: 00:03\nCATEGORY: GAME_START\nCONFIDENCE: 9"}]}}]}`)
	})

	client := newClient(t, mux)
	ctx := context.Background()

	handle, err := client.Submit(ctx, writeArtifact(t))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if handle.Name != "files/abc123" {
		t.Fatalf("unexpected handle: %+v", handle)
	}

	state, err := client.Poll(ctx, handle)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if state != gemini.StateReady {
		t.Fatalf("expected READY, got %s", state)
	}

	text, err := client.Infer(ctx, handle, "classify this clip")
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if text == "" {
		t.Fatal("expected non-empty response text")
	}

	if err := client.Release(ctx, handle); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if !deleted {
		t.Fatal("expected delete request to reach the server")
	}
}

func TestPollReportsProcessingAndFailed(t *testing.T) {
	responses := []string{
		`{"name":"files/abc","state":"PROCESSING"}`,
		`{"name":"files/abc","state":"FAILED","error":{"message":"could not decode video"}}`,
	}
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/v1beta/files/abc", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, responses[calls])
		calls++
	})

	client := newClient(t, mux)
	handle := gemini.Handle{Name: "files/abc", URI: "uri", MIMEType: "video/mp4"}

	state, err := client.Poll(context.Background(), handle)
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if state != gemini.StateProcessing {
		t.Fatalf("expected PROCESSING, got %s", state)
	}

	_, err = client.Poll(context.Background(), handle)
	if err == nil {
		t.Fatal("expected error for FAILED state")
	}
	if !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("expected permanent classification, got %v", err)
	}
	if services.IsRetryable(err) {
		t.Fatal("processing failure must not be retryable")
	}
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"bad gateway", http.StatusBadGateway, true},
		{"bad request", http.StatusBadRequest, false},
		{"forbidden", http.StatusForbidden, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/v1beta/files/abc", func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			})
			client := newClient(t, mux)
			_, err := client.Poll(context.Background(), gemini.Handle{Name: "files/abc"})
			if err == nil {
				t.Fatal("expected error")
			}
			if services.IsRetryable(err) != tc.retryable {
				t.Fatalf("status %d: retryable=%v, want %v (err: %v)", tc.status, services.IsRetryable(err), tc.retryable, err)
			}
		})
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1beta/files/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	client := newClient(t, mux)

	if err := client.Release(context.Background(), gemini.Handle{Name: "files/gone"}); err != nil {
		t.Fatalf("Release of missing handle should succeed, got %v", err)
	}
	if err := client.Release(context.Background(), gemini.Handle{}); err != nil {
		t.Fatalf("Release of empty handle should be a no-op, got %v", err)
	}
}

func TestInferRejectsBlockedContent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1beta/models/gemini-2.5-flash:generateContent", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	})
	client := newClient(t, mux)

	_, err := client.Infer(context.Background(), gemini.Handle{Name: "files/abc", URI: "uri", MIMEType: "video/mp4"}, "classify")
	if err == nil {
		t.Fatal("expected error for blocked content")
	}
	if !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("expected permanent classification, got %v", err)
	}
}

func TestSubmitRequiresAPIKey(t *testing.T) {
	client := gemini.NewClient(gemini.Config{BaseURL: "http://127.0.0.1:0"})
	_, err := client.Submit(context.Background(), writeArtifact(t))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
