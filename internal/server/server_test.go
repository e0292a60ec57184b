package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/lazypower/crystals/internal/engine"
	"github.com/lazypower/crystals/internal/logging"
	"github.com/lazypower/crystals/internal/store"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := logging.Discard()
	opts.Logger = log
	return New(db, engine.New(log), "test-version", opts)
}

func testServer(t *testing.T) *Server {
	t.Helper()
	return newTestServer(t, Options{PositionRate: 1000, PositionBurst: 1000})
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "GET", "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["db"] != true {
		t.Errorf("db = %v, want true", body["db"])
	}
	if body["resolved"] != false {
		t.Errorf("resolved = %v, want false", body["resolved"])
	}
}

func TestUIDisabledByDefault(t *testing.T) {
	srv := testServer(t)
	w := do(t, srv, "GET", "/", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 with no UI", w.Code)
	}
}

func TestUIServesFrontEnd(t *testing.T) {
	ui := fstest.MapFS{
		"index.html": {Data: []byte("<html>map</html>")},
		"app.js":     {Data: []byte("console.log('crystals')")},
	}
	srv := newTestServer(t, Options{UI: ui})

	tests := []struct {
		path string
		want string
	}{
		{"/", "<html>map</html>"},
		{"/app.js", "console.log('crystals')"},
		{"/crystal/abc", "<html>map</html>"}, // client-side route
	}
	for _, tt := range tests {
		w := do(t, srv, "GET", tt.path, "")
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: status = %d", tt.path, w.Code)
			continue
		}
		if got := w.Body.String(); got != tt.want {
			t.Errorf("GET %s: body = %q, want %q", tt.path, got, tt.want)
		}
	}

	// API routes still win over the front end
	if w := do(t, srv, "GET", "/api/health", ""); w.Code != http.StatusOK {
		t.Errorf("health status = %d", w.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := testServer(t)
	if w := do(t, srv, "GET", "/api/memories", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
