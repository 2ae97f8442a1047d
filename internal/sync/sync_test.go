package sync

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/highlab/entomologist/internal/issue"
	"github.com/highlab/entomologist/internal/store"
	"github.com/highlab/entomologist/internal/vcs/memory"
)

type clone struct {
	repo   *memory.Repo
	store  *store.Store
	engine *Engine
}

// setupClones builds two clones sharing an origin, with the database
// initialized on the first and published to the remote.
func setupClones(t *testing.T) (*clone, *clone) {
	t.Helper()
	ctx := context.Background()
	quiet := log.New(io.Discard, "", 0)

	origin := memory.New("Origin <origin@example.com>")

	alice := &clone{repo: memory.New("Alice <alice@example.com>")}
	alice.repo.AddRemote("origin", origin)
	alice.store = store.New(alice.repo, store.Options{Author: "Alice <alice@example.com>", Logger: quiet})
	alice.engine = New(alice.repo, store.DefaultBranch, "origin", quiet)

	bob := &clone{repo: memory.New("Bob <bob@example.com>")}
	bob.repo.AddRemote("origin", origin)
	bob.store = store.New(bob.repo, store.Options{Author: "Bob <bob@example.com>", Logger: quiet})
	bob.engine = New(bob.repo, store.DefaultBranch, "origin", quiet)

	if err := alice.store.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if _, err := alice.engine.Sync(ctx); err != nil {
		t.Fatalf("initial Sync() failed: %v", err)
	}

	// Bob clones the database by fetching and creating his local branch.
	tip, err := bob.repo.Fetch(ctx, "origin", store.DefaultBranch)
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if err := bob.repo.UpdateRef(ctx, store.DefaultBranch, "", tip); err != nil {
		t.Fatalf("UpdateRef() failed: %v", err)
	}

	return alice, bob
}

func mustSync(t *testing.T, c *clone) *Result {
	t.Helper()
	result, err := c.engine.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	return result
}

func TestInitialPublish(t *testing.T) {
	ctx := context.Background()
	quiet := log.New(io.Discard, "", 0)

	origin := memory.New("Origin <origin@example.com>")
	repo := memory.New("Alice <alice@example.com>")
	repo.AddRemote("origin", origin)
	s := store.New(repo, store.Options{Author: "Alice <alice@example.com>", Logger: quiet})
	engine := New(repo, store.DefaultBranch, "origin", quiet)

	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	result, err := engine.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if !result.Pushed {
		t.Error("first sync did not publish the branch")
	}
	if result.Phase != PhaseIdle {
		t.Errorf("phase = %v, want idle", result.Phase)
	}
}

func TestSyncUninitialized(t *testing.T) {
	quiet := log.New(io.Discard, "", 0)
	repo := memory.New("Alice <alice@example.com>")
	engine := New(repo, store.DefaultBranch, "origin", quiet)

	_, err := engine.Sync(context.Background())
	if !errors.Is(err, store.ErrNotInitialized) {
		t.Errorf("Sync() error = %v, want ErrNotInitialized", err)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	alice, _ := setupClones(t)
	ctx := context.Background()

	if _, err := alice.store.CreateIssue(ctx, "first issue", ""); err != nil {
		t.Fatalf("CreateIssue() failed: %v", err)
	}

	first := mustSync(t, alice)
	if !first.Pushed {
		t.Error("sync with local commits did not push")
	}

	second := mustSync(t, alice)
	if !second.UpToDate() {
		t.Errorf("second sync not a no-op: %+v", second)
	}

	tip1, _ := alice.repo.ResolveRef(ctx, store.DefaultBranch)
	third := mustSync(t, alice)
	tip2, _ := alice.repo.ResolveRef(ctx, store.DefaultBranch)
	if tip1 != tip2 || !third.UpToDate() {
		t.Error("repeated sync moved the branch")
	}
}

func TestSyncFastForward(t *testing.T) {
	alice, bob := setupClones(t)
	ctx := context.Background()

	if _, err := alice.store.CreateIssue(ctx, "alice's issue", ""); err != nil {
		t.Fatalf("CreateIssue() failed: %v", err)
	}
	mustSync(t, alice)

	// Bob has no local work, so his sync fast-forwards without a merge.
	result := mustSync(t, bob)
	if !result.FastForwarded {
		t.Errorf("sync did not fast-forward: %+v", result)
	}
	if !result.Merged.IsZero() {
		t.Error("fast-forward created a merge commit")
	}

	issues, err := bob.store.ListIssues(ctx)
	if err != nil {
		t.Fatalf("ListIssues() failed: %v", err)
	}
	if len(issues) != 1 || issues[0].Title != "alice's issue" {
		t.Errorf("bob sees %v after sync", issues)
	}
}

func TestSyncMergesDisjointWork(t *testing.T) {
	alice, bob := setupClones(t)
	ctx := context.Background()

	if _, err := alice.store.CreateIssue(ctx, "alice's issue", ""); err != nil {
		t.Fatalf("CreateIssue() failed: %v", err)
	}
	if _, err := bob.store.CreateIssue(ctx, "bob's issue", ""); err != nil {
		t.Fatalf("CreateIssue() failed: %v", err)
	}

	mustSync(t, alice)
	result := mustSync(t, bob)
	if result.Merged.IsZero() {
		t.Errorf("divergent sync did not merge: %+v", result)
	}
	if !result.Pushed {
		t.Error("merge result not pushed")
	}

	mustSync(t, alice)
	for _, c := range []*clone{alice, bob} {
		issues, err := c.store.ListIssues(ctx)
		if err != nil {
			t.Fatalf("ListIssues() failed: %v", err)
		}
		if len(issues) != 2 {
			t.Fatalf("clone sees %d issues after sync, want 2", len(issues))
		}
	}
}

func TestSyncMergesDifferentTagsOnSameIssue(t *testing.T) {
	alice, bob := setupClones(t)
	ctx := context.Background()

	iss, err := alice.store.CreateIssue(ctx, "shared issue", "")
	if err != nil {
		t.Fatalf("CreateIssue() failed: %v", err)
	}
	mustSync(t, alice)
	mustSync(t, bob)

	// Divergent edits to the same issue, but different fields.
	if err := alice.store.AddTag(ctx, iss.ID, "ui"); err != nil {
		t.Fatalf("AddTag() failed: %v", err)
	}
	if err := bob.store.AddTag(ctx, iss.ID, "backend"); err != nil {
		t.Fatalf("AddTag() failed: %v", err)
	}

	mustSync(t, alice)
	result := mustSync(t, bob)
	if result.Phase == PhaseConflicted {
		t.Fatalf("different tags conflicted: %+v", result.Conflicts)
	}
	mustSync(t, alice)

	got, err := alice.store.ReadIssue(ctx, iss.ID)
	if err != nil {
		t.Fatalf("ReadIssue() failed: %v", err)
	}
	if !got.HasTag("ui") || !got.HasTag("backend") {
		t.Errorf("merged tags = %v, want both", got.Tags)
	}
}

func TestSyncConflictOnSameField(t *testing.T) {
	alice, bob := setupClones(t)
	ctx := context.Background()

	iss, err := alice.store.CreateIssue(ctx, "contested issue", "")
	if err != nil {
		t.Fatalf("CreateIssue() failed: %v", err)
	}
	mustSync(t, alice)
	mustSync(t, bob)

	if err := alice.store.SetState(ctx, iss.ID, issue.StateInProgress); err != nil {
		t.Fatalf("SetState() failed: %v", err)
	}
	if err := bob.store.SetState(ctx, iss.ID, issue.StateWontDo); err != nil {
		t.Fatalf("SetState() failed: %v", err)
	}

	mustSync(t, alice)
	result, err := bob.engine.Sync(ctx)

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Sync() error = %v, want ConflictError", err)
	}
	if result.Phase != PhaseConflicted {
		t.Errorf("phase = %v, want conflicted", result.Phase)
	}

	// The conflict names the issue and the field that collided.
	found := false
	for _, c := range result.Conflicts {
		if c.IssueID == iss.ID && c.Field == "state" {
			found = true
		}
	}
	if !found {
		t.Errorf("conflicts = %v, want issue %s state", result.Conflicts, iss.ID[:8])
	}

	// Local history is untouched; resolving locally and re-syncing works.
	local, _ := bob.repo.ResolveRef(ctx, store.DefaultBranch)
	if local.IsZero() {
		t.Fatal("local branch lost after conflict")
	}
	got, err := bob.store.ReadIssue(ctx, iss.ID)
	if err != nil {
		t.Fatalf("ReadIssue() failed: %v", err)
	}
	if got.State != issue.StateWontDo {
		t.Errorf("local state = %v after conflicted sync, want wontdo", got.State)
	}
}

func TestSyncIDCollisionIsOrdinaryConflict(t *testing.T) {
	alice, bob := setupClones(t)
	ctx := context.Background()

	// Two clones somehow generate the same id for different issues.
	// The collision must surface as a normal merge conflict on that
	// issue, not as corruption or silent overwrite.
	collided := "feedfacefeedfacefeedfacefeedfacefeedface"
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := alice.store.ImportIssue(ctx, &issue.Issue{
		ID: collided, Title: "alice's idea", State: issue.StateNew, CreatedAt: now,
	}); err != nil {
		t.Fatalf("ImportIssue() failed: %v", err)
	}
	if err := bob.store.ImportIssue(ctx, &issue.Issue{
		ID: collided, Title: "bob's idea", State: issue.StateNew, CreatedAt: now,
	}); err != nil {
		t.Fatalf("ImportIssue() failed: %v", err)
	}

	mustSync(t, alice)
	result, err := bob.engine.Sync(ctx)

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Sync() error = %v, want ConflictError", err)
	}
	found := false
	for _, c := range result.Conflicts {
		if c.IssueID == collided && c.Field == "title" {
			found = true
		}
	}
	if !found {
		t.Errorf("conflicts = %v, want title of the collided issue", result.Conflicts)
	}
}

func TestSyncPushRejectionSurfaced(t *testing.T) {
	alice, bob := setupClones(t)
	ctx := context.Background()

	// Both create local work. Alice syncs first.
	if _, err := alice.store.CreateIssue(ctx, "a", ""); err != nil {
		t.Fatalf("CreateIssue() failed: %v", err)
	}
	if _, err := bob.store.CreateIssue(ctx, "b", ""); err != nil {
		t.Fatalf("CreateIssue() failed: %v", err)
	}
	mustSync(t, alice)

	// Bob's cycle merges and pushes cleanly in one pass.
	result := mustSync(t, bob)
	if result.Phase != PhaseIdle || !result.Pushed {
		t.Errorf("result = %+v, want pushed idle", result)
	}
}
