package export

import (
	"bytes"
	"context"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/highlab/entomologist/internal/issue"
	"github.com/highlab/entomologist/internal/store"
	"github.com/highlab/entomologist/internal/vcs/memory"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	repo := memory.New("Tester <tester@example.com>")
	s := store.New(repo, store.Options{
		Author: "Tester <tester@example.com>",
		Logger: log.New(io.Discard, "", 0),
	})
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	return s
}

func TestWriteAndRead(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	created, err := s.CreateIssue(ctx, "exporter smoke test", "round trips issues")
	if err != nil {
		t.Fatalf("CreateIssue() failed: %v", err)
	}
	if _, err := s.AddComment(ctx, created.ID, "first comment"); err != nil {
		t.Fatalf("AddComment() failed: %v", err)
	}
	if err := s.AddTag(ctx, created.ID, "infra"); err != nil {
		t.Fatalf("AddTag() failed: %v", err)
	}

	issues, err := s.ListIssues(ctx)
	if err != nil {
		t.Fatalf("ListIssues() failed: %v", err)
	}

	var buf bytes.Buffer
	result, err := Write(&buf, issues)
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if result.IssuesWritten != 1 {
		t.Errorf("IssuesWritten = %d, want 1", result.IssuesWritten)
	}
	if n := strings.Count(buf.String(), "\n"); n != 1 {
		t.Errorf("output has %d lines, want 1", n)
	}

	parsed, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if len(parsed) != 1 {
		t.Fatalf("Read() returned %d issues, want 1", len(parsed))
	}
	got := parsed[0]
	if got.ID != created.ID || got.Title != "exporter smoke test" {
		t.Errorf("parsed issue = %+v", got)
	}
	if len(got.Comments) != 1 || got.Comments[0].Body != "first comment" {
		t.Errorf("comments = %v", got.Comments)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "infra" {
		t.Errorf("tags = %v", got.Tags)
	}
}

func TestReadRejectsBadRecords(t *testing.T) {
	_, err := Read(strings.NewReader(`{"id": "not-an-id", "title": "x"}` + "\n"))
	if err == nil {
		t.Fatal("Read() accepted a record with an invalid id")
	}

	_, err = Read(strings.NewReader(`{"id": `))
	if err == nil {
		t.Fatal("Read() accepted truncated JSON")
	}
}

func TestImportRoundTrip(t *testing.T) {
	src := setupTestStore(t)
	dst := setupTestStore(t)
	ctx := context.Background()

	created, err := src.CreateIssue(ctx, "ported issue", "travels between databases")
	if err != nil {
		t.Fatalf("CreateIssue() failed: %v", err)
	}
	if err := src.SetState(ctx, created.ID, issue.StateInProgress); err != nil {
		t.Fatalf("SetState() failed: %v", err)
	}
	if _, err := src.AddComment(ctx, created.ID, "bring me along"); err != nil {
		t.Fatalf("AddComment() failed: %v", err)
	}

	issues, err := src.ListIssues(ctx)
	if err != nil {
		t.Fatalf("ListIssues() failed: %v", err)
	}

	result, err := Import(ctx, dst, issues)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if result.IssuesRead != 1 {
		t.Errorf("IssuesRead = %d, want 1", result.IssuesRead)
	}

	got, err := dst.ReadIssue(ctx, created.ID)
	if err != nil {
		t.Fatalf("ReadIssue() after import failed: %v", err)
	}
	if got.Title != "ported issue" || got.State != issue.StateInProgress {
		t.Errorf("imported issue = %+v", got)
	}
	if len(got.Comments) != 1 || got.Comments[0].Body != "bring me along" {
		t.Errorf("imported comments = %v", got.Comments)
	}
	if got.CreatedAt.Unix() != created.CreatedAt.Unix() {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created.CreatedAt)
	}

	// Importing again skips the existing issue.
	result, err = Import(ctx, dst, issues)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if result.IssuesRead != 0 || len(result.Skipped) != 1 {
		t.Errorf("second import = %+v, want everything skipped", result)
	}
}
