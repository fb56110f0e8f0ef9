package notify

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pagesmith/app/pkg/types"
)

func testPayload() types.NotifyPayload {
	return types.NotifyPayload{
		Email:     "user@example.com",
		Task:      "task-1",
		Round:     1,
		Nonce:     "n",
		RepoURL:   "https://github.com/u/task-1",
		CommitSHA: "abc",
		PagesURL:  "https://u.github.io/task-1/",
	}
}

func TestNotifyRetriesWithExponentialBackoff(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(10, time.Millisecond)
	var delays []time.Duration
	n.sleep = func(d time.Duration) { delays = append(delays, d) }

	if !n.Notify(srv.URL, testPayload()) {
		t.Fatal("expected eventual success")
	}
	if calls.Load() != 4 {
		t.Fatalf("expected 4 attempts, got %d", calls.Load())
	}
	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("unexpected delays: %v", delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delay %d: got %s want %s", i, delays[i], want[i])
		}
	}
}

func TestNotifyExhaustsAttemptsAndReturnsFalse(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := New(5, time.Millisecond)
	sleeps := 0
	n.sleep = func(time.Duration) { sleeps++ }

	if n.Notify(srv.URL, testPayload()) {
		t.Fatal("expected failure after exhausting retries")
	}
	if calls.Load() != 5 {
		t.Fatalf("expected exactly 5 attempts, got %d", calls.Load())
	}
	// No sleep after the final attempt.
	if sleeps != 4 {
		t.Fatalf("expected 4 sleeps, got %d", sleeps)
	}
}

func TestNotifyTransportErrorCountsAsAttempt(t *testing.T) {
	n := New(2, time.Millisecond)
	n.sleep = func(time.Duration) {}

	// Nothing listens here; both attempts fail at the transport level.
	if n.Notify("http://127.0.0.1:1/unreachable", testPayload()) {
		t.Fatal("expected failure against unreachable endpoint")
	}
}

func TestNotifySendsJSONPayload(t *testing.T) {
	var gotBody string
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(1, time.Millisecond)
	if !n.Notify(srv.URL, testPayload()) {
		t.Fatal("expected success")
	}
	if gotContentType != "application/json" {
		t.Fatalf("unexpected content type: %s", gotContentType)
	}
	for _, field := range []string{`"email":"user@example.com"`, `"commit_sha":"abc"`, `"pages_url":"https://u.github.io/task-1/"`} {
		if !strings.Contains(gotBody, field) {
			t.Fatalf("payload missing %s: %s", field, gotBody)
		}
	}
}
