package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func TestGetReturnsSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/plan" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ok":        true,
			"timestamp": int64(42),
			"value":     []string{"a", "b"},
		})
	}))
	defer srv.Close()

	snap, err := NewClient(srv.URL).Get(context.Background(), "plan", 0)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if snap.Timestamp != 42 {
		t.Errorf("Timestamp = %d, want 42", snap.Timestamp)
	}
	var value []string
	if err := json.Unmarshal(snap.Value, &value); err != nil || len(value) != 2 {
		t.Errorf("unexpected value %s (%v)", snap.Value, err)
	}
}

func TestGetNotModified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("timestamp"); got != "42" {
			t.Errorf("timestamp query = %q, want 42", got)
		}
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Get(context.Background(), "plan", 42)
	if !errors.Is(err, ErrNotModified) {
		t.Errorf("expected ErrNotModified, got %v", err)
	}
}

func TestSetSuccess(t *testing.T) {
	var path, query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		query = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Set(context.Background(), "plan", 43, 42, []string{"a"})
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if path != "/plan/43" {
		t.Errorf("path = %q, want /plan/43", path)
	}
	if query != "oldTimestamp=42" {
		t.Errorf("query = %q, want oldTimestamp=42", query)
	}
}

func TestSetConflictStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Set(context.Background(), "plan", 43, 1, nil)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestSetConflictBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "timestamp conflict"})
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Set(context.Background(), "plan", 43, 1, nil)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict from conflict body, got %v", err)
	}
}

func TestGetUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Get(context.Background(), "plan", 0)
	var upstream *UpstreamError
	if !errors.As(err, &upstream) || upstream.StatusCode != http.StatusBadGateway {
		t.Errorf("expected UpstreamError 502, got %v", err)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")

	c, err := NewCache(path)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	if got := c.Snapshot(); got.Timestamp != 0 {
		t.Errorf("fresh cache Timestamp = %d, want 0", got.Timestamp)
	}

	c.Update(Snapshot{Timestamp: 42, Value: json.RawMessage(`["a"]`)})
	if err := c.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reopened, err := NewCache(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	snap := reopened.Snapshot()
	if snap.Timestamp != 42 || string(snap.Value) != `["a"]` {
		t.Errorf("reopened snapshot = %+v", snap)
	}
}

func TestCacheSaveSkipsWhenClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "snapshot.json")
	c, err := NewCache(path)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	// Never updated: Save should not even create the file.
	if err := c.Save(); err != nil {
		t.Fatalf("Save of clean cache failed: %v", err)
	}
	if _, err := NewCache(path); err != nil {
		t.Fatalf("NewCache after clean save failed: %v", err)
	}
}
