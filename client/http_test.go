package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/surgekit/surge"
)

func TestHTTPSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	action := HTTP("GET", srv.URL)
	if err := action(context.Background(), surge.NewSession()); err != nil {
		t.Fatalf("action error = %v", err)
	}
}

func TestHTTPStatusFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	action := HTTP("GET", srv.URL)
	if err := action(context.Background(), surge.NewSession()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestHTTPExpectStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	action := HTTP("GET", srv.URL, WithExpectStatus(http.StatusNotFound))
	if err := action(context.Background(), surge.NewSession()); err != nil {
		t.Fatalf("action error = %v, want 404 accepted", err)
	}
}

func TestHTTPPlaceholdersAndBody(t *testing.T) {
	var mu sync.Mutex
	var gotPath, gotBody, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		mu.Lock()
		gotPath = r.URL.Path
		gotBody = string(b)
		gotHeader = r.Header.Get("X-Token")
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sess := surge.NewSession()
	sess.Set("user", "alice")
	sess.Set("token", "t-123")

	action := HTTP("POST", srv.URL+"/users/{{user}}",
		WithHeader("X-Token", "{{token}}"),
		WithBody("application/json", func(sess *surge.Session) string {
			return `{"name":"` + sess.GetString("user") + `"}`
		}),
	)
	if err := action(context.Background(), sess); err != nil {
		t.Fatalf("action error = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/users/alice" {
		t.Errorf("path = %q, want /users/alice", gotPath)
	}
	if gotBody != `{"name":"alice"}` {
		t.Errorf("body = %q", gotBody)
	}
	if gotHeader != "t-123" {
		t.Errorf("X-Token = %q, want t-123", gotHeader)
	}
}

func TestHTTPCapture(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("session-token"))
	}))
	defer srv.Close()

	sess := surge.NewSession()
	action := HTTP("GET", srv.URL,
		WithCapture("token", func(_ int, body []byte) any { return string(body) }),
	)
	if err := action(context.Background(), sess); err != nil {
		t.Fatalf("action error = %v", err)
	}
	if got := sess.GetString("token"); got != "session-token" {
		t.Errorf("captured token = %q, want session-token", got)
	}
}

func TestResolve(t *testing.T) {
	sess := surge.NewSession()
	sess.Set("a", "x")
	cases := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"{{a}}", "x"},
		{"pre {{a}} post", "pre x post"},
		{"{{missing}}", ""},
		{"{{unclosed", "{{unclosed"},
	}
	for _, tc := range cases {
		if got := resolve(tc.in, sess); got != tc.want {
			t.Errorf("resolve(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
