package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/highlab/entomologist/internal/index"
	"github.com/highlab/entomologist/internal/issue"
)

func setupTestServer(t *testing.T) (*Server, *index.DB) {
	t.Helper()

	db, err := index.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("index.Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv := NewServer("localhost:0", db, log.New(io.Discard, "", 0))
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })
	return srv, db
}

func seedIssues(t *testing.T, db *index.DB) {
	t.Helper()

	issues := []*issue.Issue{
		{
			ID:        "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			Title:     "flaky test on arm",
			State:     issue.StateNew,
			CreatedAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			ID:        "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
			Title:     "typo in help text",
			State:     issue.StateDone,
			CreatedAt: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
		},
	}
	if err := db.Rebuild(context.Background(), issues); err != nil {
		t.Fatalf("Rebuild() failed: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := setupTestServer(t)

	resp, err := http.Get(fmt.Sprintf("http://%s/health", srv.Addr()))
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestIssuesEndpoint(t *testing.T) {
	srv, db := setupTestServer(t)
	seedIssues(t, db)

	resp, err := http.Get(fmt.Sprintf("http://%s/api/issues?state=new", srv.Addr()))
	if err != nil {
		t.Fatalf("GET /api/issues failed: %v", err)
	}
	defer resp.Body.Close()

	var rows []index.Summary
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(rows) != 1 || rows[0].Title != "flaky test on arm" {
		t.Errorf("rows = %v, want the single new issue", rows)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv, db := setupTestServer(t)
	seedIssues(t, db)

	resp, err := http.Get(fmt.Sprintf("http://%s/api/stats", srv.Addr()))
	if err != nil {
		t.Fatalf("GET /api/stats failed: %v", err)
	}
	defer resp.Body.Close()

	var counts map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&counts); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if counts["new"] != 1 || counts["done"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestWebSocketRefresh(t *testing.T) {
	srv, db := setupTestServer(t)
	seedIssues(t, db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, fmt.Sprintf("ws://%s/ws", srv.Addr()), nil)
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Give the server a beat to register the client.
	time.Sleep(100 * time.Millisecond)
	srv.NotifyRefresh(ctx)

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	if msg.Type != MessageTypeRefresh {
		t.Errorf("first message type = %q, want refresh", msg.Type)
	}

	_, data, err = conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	if msg.Type != MessageTypeStats {
		t.Errorf("second message type = %q, want stats", msg.Type)
	}
	var counts map[string]int
	if err := json.Unmarshal(msg.Data, &counts); err != nil {
		t.Fatalf("failed to decode stats payload: %v", err)
	}
	if counts["new"] != 1 {
		t.Errorf("stats payload = %v", counts)
	}
}

func TestRefWatcherFiresOnRefUpdate(t *testing.T) {
	gitDir := t.TempDir()
	refDir := filepath.Join(gitDir, "refs", "heads")
	if err := os.MkdirAll(refDir, 0o755); err != nil {
		t.Fatalf("MkdirAll() failed: %v", err)
	}

	moved := make(chan struct{}, 1)
	rw, err := NewRefWatcher(gitDir, "entomologist-data", func(context.Context) {
		select {
		case moved <- struct{}{}:
		default:
		}
	}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewRefWatcher() failed: %v", err)
	}
	rw.debounce = 20 * time.Millisecond
	if err := rw.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(func() { rw.Stop() })

	ref := filepath.Join(refDir, "entomologist-data")
	if err := os.WriteFile(ref, []byte("0123456789012345678901234567890123456789\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	select {
	case <-moved:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not report the ref update")
	}
}

func TestRefWatcherIgnoresUnrelatedFiles(t *testing.T) {
	gitDir := t.TempDir()
	refDir := filepath.Join(gitDir, "refs", "heads")
	if err := os.MkdirAll(refDir, 0o755); err != nil {
		t.Fatalf("MkdirAll() failed: %v", err)
	}

	moved := make(chan struct{}, 1)
	rw, err := NewRefWatcher(gitDir, "entomologist-data", func(context.Context) {
		moved <- struct{}{}
	}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewRefWatcher() failed: %v", err)
	}
	rw.debounce = 20 * time.Millisecond
	if err := rw.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(func() { rw.Stop() })

	other := filepath.Join(gitDir, "FETCH_HEAD")
	if err := os.WriteFile(other, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	select {
	case <-moved:
		t.Fatal("watcher fired for an unrelated file")
	case <-time.After(300 * time.Millisecond):
	}
}
