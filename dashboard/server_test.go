package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/surgekit/surge"
)

// fakeRun is a minimal Run for handler tests.
type fakeRun struct {
	metrics surge.MetricsCollector
	state   atomic.Int32
	stopped atomic.Bool
}

func newFakeRun() *fakeRun {
	f := &fakeRun{metrics: surge.NewCollector()}
	f.state.Store(int32(surge.StateRunning))
	return f
}

func (f *fakeRun) IsRunning() bool {
	return surge.TestState(f.state.Load()) == surge.StateRunning
}

func (f *fakeRun) Stop() {
	f.stopped.Store(true)
	f.state.Store(int32(surge.StateStopping))
}

func (f *fakeRun) State() surge.TestState          { return surge.TestState(f.state.Load()) }
func (f *fakeRun) ActiveUsers() int64              { return 42 }
func (f *fakeRun) Spawned() int64                  { return 50 }
func (f *fakeRun) Metrics() surge.MetricsCollector { return f.metrics }

func TestHandleStatus(t *testing.T) {
	srv := NewServer(newFakeRun(), ":0")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	srv.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		State       string `json:"state"`
		Running     bool   `json:"running"`
		ActiveUsers int64  `json:"activeUsers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse body: %v", err)
	}
	if body.State != "RUNNING" || !body.Running || body.ActiveUsers != 42 {
		t.Errorf("body = %+v", body)
	}
}

func TestHandleStop(t *testing.T) {
	run := newFakeRun()
	srv := NewServer(run, ":0")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/stop", nil)
	srv.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	deadline := time.Now().Add(time.Second)
	for !run.stopped.Load() {
		if time.Now().After(deadline) {
			t.Fatal("run was not stopped")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandleSnapshotsServesLatest(t *testing.T) {
	run := newFakeRun()
	srv := NewServer(run, ":0")

	// No snapshots yet: an empty array, not null.
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/snapshots", nil))
	if got := rec.Body.String(); got != "[]" {
		t.Errorf("empty snapshots body = %q, want []", got)
	}

	srv.broadcast([]surge.PoolMetricsSnapshot{{ActionName: "login", CompletedCount: 9}})

	rec = httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/snapshots", nil))
	var snaps []surge.PoolMetricsSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snaps); err != nil {
		t.Fatalf("parse body: %v", err)
	}
	if len(snaps) != 1 || snaps[0].ActionName != "login" || snaps[0].CompletedCount != 9 {
		t.Errorf("snapshots = %+v", snaps)
	}
}

func TestHandleIndexServesUI(t *testing.T) {
	srv := NewServer(newFakeRun(), ":0")
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}
}

func TestBroadcastDropsWhenClientSlow(t *testing.T) {
	srv := NewServer(newFakeRun(), ":0")
	ch := make(chan []surge.PoolMetricsSnapshot, 1)
	srv.mu.Lock()
	srv.clients["c"] = ch
	srv.mu.Unlock()

	// Fill the buffer, then broadcast more; the slow client must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			srv.broadcast([]surge.PoolMetricsSnapshot{{ActionName: "a"}})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
}
