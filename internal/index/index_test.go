package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/highlab/entomologist/internal/issue"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleIssues() []*issue.Issue {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	done := t0.Add(48 * time.Hour)
	return []*issue.Issue{
		{
			ID:        "1111111111111111111111111111111111111111",
			Title:     "login broken",
			State:     issue.StateInProgress,
			Assignee:  "alice",
			Tags:      []string{"ui", "urgent"},
			CreatedAt: t0,
			Comments:  []issue.Comment{{ID: "c1", Body: "looking"}},
		},
		{
			ID:        "2222222222222222222222222222222222222222",
			Title:     "search is slow",
			State:     issue.StateDone,
			CreatedAt: t0.Add(time.Hour),
			DoneAt:    &done,
			Deps:      []string{"1111111111111111111111111111111111111111"},
		},
		{
			ID:        "3333333333333333333333333333333333333333",
			Title:     "update docs",
			State:     issue.StateNew,
			CreatedAt: t0.Add(2 * time.Hour),
		},
	}
}

func TestRebuildAndQuery(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.Rebuild(ctx, sampleIssues()); err != nil {
		t.Fatalf("Rebuild() failed: %v", err)
	}

	all, err := db.Issues(ctx, "")
	if err != nil {
		t.Fatalf("Issues() failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Issues() returned %d rows, want 3", len(all))
	}
	if all[0].Title != "login broken" {
		t.Errorf("first row = %q, want creation order", all[0].Title)
	}
	if all[0].Tags != "ui,urgent" && all[0].Tags != "urgent,ui" {
		t.Errorf("tags = %q", all[0].Tags)
	}
	if all[0].CommentCnt != 1 {
		t.Errorf("comment count = %d, want 1", all[0].CommentCnt)
	}

	inProgress, err := db.Issues(ctx, "inprogress")
	if err != nil {
		t.Fatalf("Issues(inprogress) failed: %v", err)
	}
	if len(inProgress) != 1 || inProgress[0].Assignee != "alice" {
		t.Errorf("Issues(inprogress) = %v", inProgress)
	}
}

func TestRebuildReplaces(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.Rebuild(ctx, sampleIssues()); err != nil {
		t.Fatalf("Rebuild() failed: %v", err)
	}
	// A rebuild from a smaller snapshot drops stale rows.
	if err := db.Rebuild(ctx, sampleIssues()[:1]); err != nil {
		t.Fatalf("Rebuild() failed: %v", err)
	}

	all, err := db.Issues(ctx, "")
	if err != nil {
		t.Fatalf("Issues() failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("Issues() returned %d rows after rebuild, want 1", len(all))
	}
}

func TestCountsByState(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.Rebuild(ctx, sampleIssues()); err != nil {
		t.Fatalf("Rebuild() failed: %v", err)
	}

	counts, err := db.CountsByState(ctx)
	if err != nil {
		t.Fatalf("CountsByState() failed: %v", err)
	}
	want := map[string]int{"inprogress": 1, "done": 1, "new": 1}
	for state, n := range want {
		if counts[state] != n {
			t.Errorf("counts[%s] = %d, want %d", state, counts[state], n)
		}
	}
}

func TestSearch(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.Rebuild(ctx, sampleIssues()); err != nil {
		t.Fatalf("Rebuild() failed: %v", err)
	}

	hits, err := db.Search(ctx, "slow")
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(hits) != 1 || hits[0].Title != "search is slow" {
		t.Errorf("Search(slow) = %v", hits)
	}

	hits, err = db.Search(ctx, "nothing matches this")
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("Search(miss) = %v, want empty", hits)
	}
}
