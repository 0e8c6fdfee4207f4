package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pithecene-io/tlink/iox"
	"github.com/pithecene-io/tlink/notify"
	"github.com/pithecene-io/tlink/types"
)

func testEvent() *notify.Event {
	err := types.NewLinkError(types.ErrConnect, "dial", "10.0.0.2:22", errors.New("connection refused"))
	return notify.SyncError("10.0.0.2", "The robot refused the connection.", err,
		time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
}

func newPublisher(t *testing.T, cfg Config) *Publisher {
	t.Helper()
	if cfg.Backoff == 0 {
		cfg.Backoff = time.Millisecond
	}
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(iox.CloseFunc(p))
	return p
}

func TestPublish_Success(t *testing.T) {
	var received notify.Event
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("unmarshal: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	p := newPublisher(t, Config{URL: ts.URL})
	if err := p.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if received.EventType != notify.EventSyncError {
		t.Errorf("EventType = %q, want %q", received.EventType, notify.EventSyncError)
	}
	if received.Kind != "connect" {
		t.Errorf("Kind = %q, want connect", received.Kind)
	}
	if received.Timestamp != "2026-03-14T12:00:00Z" {
		t.Errorf("Timestamp = %q", received.Timestamp)
	}
	if received.ContractVersion != types.ContractVersion {
		t.Errorf("ContractVersion = %q, want %q", received.ContractVersion, types.ContractVersion)
	}
}

func TestPublish_CustomHeaders(t *testing.T) {
	var authHeader string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	p := newPublisher(t, Config{
		URL:     ts.URL,
		Headers: map[string]string{"Authorization": "Bearer test-token"},
	})
	if err := p.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if authHeader != "Bearer test-token" {
		t.Errorf("Authorization = %q, want Bearer test-token", authHeader)
	}
}

func TestPublish_RetriesOnFailure(t *testing.T) {
	var attempts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	p := newPublisher(t, Config{URL: ts.URL, Retries: 3})
	if err := p.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish should succeed after retries: %v", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestPublish_StatusHandling(t *testing.T) {
	tests := []struct {
		code     int
		retries  int
		wantErr  bool
		attempts int32
	}{
		{200, 2, false, 1},
		{202, 2, false, 1},
		{204, 2, false, 1},
		{400, 3, true, 1},
		{401, 3, true, 1},
		{404, 3, true, 1},
		{500, 2, true, 3},
		{502, 2, true, 3},
		{503, 2, true, 3},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			var attempts atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				attempts.Add(1)
				w.WriteHeader(tt.code)
			}))
			defer ts.Close()

			p := newPublisher(t, Config{URL: ts.URL, Retries: tt.retries})
			err := p.Publish(t.Context(), testEvent())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Publish() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var statusErr *StatusError
				if !errors.As(err, &statusErr) || statusErr.Code != tt.code {
					t.Errorf("err = %v, want StatusError %d", err, tt.code)
				}
			}
			if got := attempts.Load(); got != tt.attempts {
				t.Errorf("attempts = %d, want %d", got, tt.attempts)
			}
		})
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-release:
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()
	defer close(release)

	p := newPublisher(t, Config{URL: ts.URL, Timeout: 10 * time.Second})

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	if err := p.Publish(ctx, testEvent()); err == nil {
		t.Fatal("expected error on canceled context")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty URL")
	}
	if _, err := New(Config{URL: "http://example.com", Retries: -1}); err == nil {
		t.Error("expected error for negative retries")
	}

	p, err := New(Config{URL: "http://example.com", Retries: 5})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if p.config.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", p.config.Timeout, DefaultTimeout)
	}
	if p.config.Retries != 5 {
		t.Errorf("Retries = %d, want 5", p.config.Retries)
	}
}
