package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"testing"

	"github.com/highlab/entomologist/internal/vcs"
)

// setupTestRepo creates a temporary git repository for testing.
// Tests skip when git is missing or predates merge-tree --write-tree.
func setupTestRepo(t *testing.T) (*Git, string) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	if err := checkVersion(); err != nil {
		t.Skipf("git too old: %v", err)
	}

	tmpDir := t.TempDir()

	cmd := exec.Command("git", "init")
	cmd.Dir = tmpDir
	if err := cmd.Run(); err != nil {
		t.Fatalf("failed to init git repo: %v", err)
	}

	exec.Command("git", "-C", tmpDir, "config", "user.name", "Test User").Run()
	exec.Command("git", "-C", tmpDir, "config", "user.email", "test@example.com").Run()

	g, err := New(tmpDir)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return g, tmpDir
}

// setupTestRemote wires a bare repository as "origin" of g.
func setupTestRemote(t *testing.T, g *Git) string {
	t.Helper()

	remoteDir := t.TempDir()
	cmd := exec.Command("git", "init", "--bare")
	cmd.Dir = remoteDir
	if err := cmd.Run(); err != nil {
		t.Fatalf("failed to init bare repo: %v", err)
	}

	cmd = exec.Command("git", "-C", g.RepoRoot(), "remote", "add", "origin", remoteDir)
	if err := cmd.Run(); err != nil {
		t.Fatalf("failed to add remote: %v", err)
	}
	return remoteDir
}

func TestNew(t *testing.T) {
	g, _ := setupTestRepo(t)

	if g.Name() != vcs.TypeGit {
		t.Errorf("Name() = %v, want %v", g.Name(), vcs.TypeGit)
	}
	if g.RepoRoot() == "" {
		t.Error("RepoRoot() returned empty string")
	}
	if g.GitDir() == "" {
		t.Error("GitDir() returned empty string")
	}
}

func TestNewOutsideRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	tmpDir := t.TempDir()
	// Guard against the temp dir living under a repository.
	if _, err := os.Stat(tmpDir + "/.git"); err == nil {
		t.Skip("temp dir is inside a repository")
	}

	cmd := exec.Command("git", "-C", tmpDir, "rev-parse", "--show-toplevel")
	if cmd.Run() == nil {
		t.Skip("temp dir is inside a repository")
	}

	_, err := New(tmpDir)
	if !errors.Is(err, vcs.ErrNotInRepo) {
		t.Errorf("New() error = %v, want ErrNotInRepo", err)
	}
}

func TestBlobRoundTrip(t *testing.T) {
	g, _ := setupTestRepo(t)
	ctx := context.Background()

	data := []byte("in-progress\n")
	oid, err := g.WriteBlob(ctx, data)
	if err != nil {
		t.Fatalf("WriteBlob() failed: %v", err)
	}

	// Identical content must hash identically.
	oid2, err := g.WriteBlob(ctx, data)
	if err != nil {
		t.Fatalf("WriteBlob() failed: %v", err)
	}
	if oid != oid2 {
		t.Errorf("WriteBlob() not content-addressed: %s != %s", oid, oid2)
	}

	got, err := g.ReadBlob(ctx, oid)
	if err != nil {
		t.Fatalf("ReadBlob() failed: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("ReadBlob() = %q, want %q", got, data)
	}
}

func TestReadBlobNotFound(t *testing.T) {
	g, _ := setupTestRepo(t)
	ctx := context.Background()

	_, err := g.ReadBlob(ctx, "0123456789012345678901234567890123456789")
	if !errors.Is(err, vcs.ErrObjectNotFound) {
		t.Errorf("ReadBlob() error = %v, want ErrObjectNotFound", err)
	}
}

func TestTreeRoundTrip(t *testing.T) {
	g, _ := setupTestRepo(t)
	ctx := context.Background()

	blob, err := g.WriteBlob(ctx, []byte("fix the flux capacitor\n"))
	if err != nil {
		t.Fatalf("WriteBlob() failed: %v", err)
	}

	inner, err := g.WriteTree(ctx, []vcs.TreeEntry{
		{Name: "title", Kind: vcs.KindBlob, OID: blob},
	})
	if err != nil {
		t.Fatalf("WriteTree() failed: %v", err)
	}

	root, err := g.WriteTree(ctx, []vcs.TreeEntry{
		{Name: "meta", Kind: vcs.KindTree, OID: inner},
		{Name: "README.md", Kind: vcs.KindBlob, OID: blob},
	})
	if err != nil {
		t.Fatalf("WriteTree() failed: %v", err)
	}

	entries, err := g.ReadTree(ctx, root)
	if err != nil {
		t.Fatalf("ReadTree() failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ReadTree() returned %d entries, want 2", len(entries))
	}
	if entries[0].Name != "README.md" || entries[0].Kind != vcs.KindBlob {
		t.Errorf("entry 0 = %+v, want README.md blob", entries[0])
	}
	if entries[1].Name != "meta" || entries[1].Kind != vcs.KindTree {
		t.Errorf("entry 1 = %+v, want meta tree", entries[1])
	}
	if entries[1].OID != inner {
		t.Errorf("meta tree id = %s, want %s", entries[1].OID, inner)
	}
}

func TestCommitAndRef(t *testing.T) {
	g, _ := setupTestRepo(t)
	ctx := context.Background()

	blob, _ := g.WriteBlob(ctx, []byte("issue database\n"))
	tree, err := g.WriteTree(ctx, []vcs.TreeEntry{
		{Name: "README.md", Kind: vcs.KindBlob, OID: blob},
	})
	if err != nil {
		t.Fatalf("WriteTree() failed: %v", err)
	}

	commit, err := g.WriteCommit(ctx, tree, nil, "initialize issue database")
	if err != nil {
		t.Fatalf("WriteCommit() failed: %v", err)
	}

	// Branch creation is a CAS from the zero id.
	if err := g.UpdateRef(ctx, "issues-data", vcs.ZeroOID, commit); err != nil {
		t.Fatalf("UpdateRef() failed: %v", err)
	}

	tip, err := g.ResolveRef(ctx, "issues-data")
	if err != nil {
		t.Fatalf("ResolveRef() failed: %v", err)
	}
	if tip != commit {
		t.Errorf("ResolveRef() = %s, want %s", tip, commit)
	}

	got, err := g.ReadCommit(ctx, commit)
	if err != nil {
		t.Fatalf("ReadCommit() failed: %v", err)
	}
	if got.Tree != tree {
		t.Errorf("commit tree = %s, want %s", got.Tree, tree)
	}
	if got.Message != "initialize issue database" {
		t.Errorf("commit message = %q", got.Message)
	}
	if len(got.Parents) != 0 {
		t.Errorf("commit parents = %v, want none", got.Parents)
	}
}

func TestResolveRefNotFound(t *testing.T) {
	g, _ := setupTestRepo(t)

	_, err := g.ResolveRef(context.Background(), "no-such-branch")
	if !errors.Is(err, vcs.ErrRefNotFound) {
		t.Errorf("ResolveRef() error = %v, want ErrRefNotFound", err)
	}
}

func TestUpdateRefStale(t *testing.T) {
	g, _ := setupTestRepo(t)
	ctx := context.Background()

	blob, _ := g.WriteBlob(ctx, []byte("a\n"))
	tree, _ := g.WriteTree(ctx, []vcs.TreeEntry{{Name: "f", Kind: vcs.KindBlob, OID: blob}})
	c1, _ := g.WriteCommit(ctx, tree, nil, "one")
	c2, _ := g.WriteCommit(ctx, tree, []vcs.OID{c1}, "two")

	if err := g.UpdateRef(ctx, "issues-data", vcs.ZeroOID, c1); err != nil {
		t.Fatalf("UpdateRef() failed: %v", err)
	}

	// Wrong expected old value must fail, and the tip must not move.
	err := g.UpdateRef(ctx, "issues-data", c2, c2)
	if !errors.Is(err, vcs.ErrStaleRef) {
		t.Errorf("UpdateRef() error = %v, want ErrStaleRef", err)
	}

	tip, _ := g.ResolveRef(ctx, "issues-data")
	if tip != c1 {
		t.Errorf("tip moved to %s after failed CAS, want %s", tip, c1)
	}

	// Creating an existing branch must also fail.
	err = g.UpdateRef(ctx, "issues-data", vcs.ZeroOID, c2)
	if !errors.Is(err, vcs.ErrStaleRef) {
		t.Errorf("UpdateRef() create error = %v, want ErrStaleRef", err)
	}
}

func TestLog(t *testing.T) {
	g, _ := setupTestRepo(t)
	ctx := context.Background()

	blob, _ := g.WriteBlob(ctx, []byte("a\n"))
	tree, _ := g.WriteTree(ctx, []vcs.TreeEntry{{Name: "f", Kind: vcs.KindBlob, OID: blob}})
	c1, _ := g.WriteCommit(ctx, tree, nil, "one")
	c2, _ := g.WriteCommit(ctx, tree, []vcs.OID{c1}, "two")
	c3, _ := g.WriteCommit(ctx, tree, []vcs.OID{c2}, "three")

	commits, err := g.Log(ctx, c3, c1)
	if err != nil {
		t.Fatalf("Log() failed: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("Log() returned %d commits, want 2", len(commits))
	}
	if commits[0].OID != c3 || commits[1].OID != c2 {
		t.Errorf("Log() order = %s, %s; want %s, %s",
			commits[0].OID, commits[1].OID, c3, c2)
	}

	all, err := g.Log(ctx, c3, vcs.ZeroOID)
	if err != nil {
		t.Fatalf("Log() failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Log() returned %d commits, want 3", len(all))
	}
}

func TestMergeClean(t *testing.T) {
	g, _ := setupTestRepo(t)
	ctx := context.Background()

	base := buildCommit(t, g, nil, map[string]string{"a/x": "1\n"})
	ours := buildCommit(t, g, []vcs.OID{base}, map[string]string{"a/x": "1\n", "a/y": "2\n"})
	theirs := buildCommit(t, g, []vcs.OID{base}, map[string]string{"a/x": "1\n", "b/z": "3\n"})

	result, err := g.Merge(ctx, ours, theirs)
	if err != nil {
		t.Fatalf("Merge() failed: %v", err)
	}
	if !result.Clean() {
		t.Fatalf("Merge() conflicts = %v, want clean", result.Conflicts)
	}

	snap := vcs.NewSnapshot(g, result.Tree)
	for path, want := range map[string]string{"a/x": "1\n", "a/y": "2\n", "b/z": "3\n"} {
		got, err := snap.ReadFile(ctx, path)
		if err != nil {
			t.Fatalf("merged tree missing %s: %v", path, err)
		}
		if string(got) != want {
			t.Errorf("merged %s = %q, want %q", path, got, want)
		}
	}
}

func TestMergeConflict(t *testing.T) {
	g, _ := setupTestRepo(t)
	ctx := context.Background()

	base := buildCommit(t, g, nil, map[string]string{"a/state": "new\n"})
	ours := buildCommit(t, g, []vcs.OID{base}, map[string]string{"a/state": "inprogress\n"})
	theirs := buildCommit(t, g, []vcs.OID{base}, map[string]string{"a/state": "done\n"})

	result, err := g.Merge(ctx, ours, theirs)
	if err != nil {
		t.Fatalf("Merge() failed: %v", err)
	}
	if result.Clean() {
		t.Fatal("Merge() reported clean, want conflict")
	}
	if len(result.Conflicts) != 1 || result.Conflicts[0] != "a/state" {
		t.Errorf("Merge() conflicts = %v, want [a/state]", result.Conflicts)
	}
}

func TestFetchAndPush(t *testing.T) {
	g, _ := setupTestRepo(t)
	setupTestRemote(t, g)
	ctx := context.Background()

	c1 := buildCommit(t, g, nil, map[string]string{"README.md": "db\n"})
	if err := g.UpdateRef(ctx, "issues-data", vcs.ZeroOID, c1); err != nil {
		t.Fatalf("UpdateRef() failed: %v", err)
	}

	// Remote branch does not exist yet.
	_, err := g.Fetch(ctx, "origin", "issues-data")
	if !errors.Is(err, vcs.ErrRefNotFound) {
		t.Fatalf("Fetch() error = %v, want ErrRefNotFound", err)
	}

	if err := g.Push(ctx, "origin", "issues-data", vcs.ZeroOID); err != nil {
		t.Fatalf("Push() failed: %v", err)
	}

	tip, err := g.Fetch(ctx, "origin", "issues-data")
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if tip != c1 {
		t.Errorf("Fetch() = %s, want %s", tip, c1)
	}

	// A push expecting the wrong remote tip must be rejected.
	c2 := buildCommit(t, g, []vcs.OID{c1}, map[string]string{"README.md": "db2\n"})
	if err := g.UpdateRef(ctx, "issues-data", c1, c2); err != nil {
		t.Fatalf("UpdateRef() failed: %v", err)
	}
	err = g.Push(ctx, "origin", "issues-data", vcs.ZeroOID)
	if !errors.Is(err, vcs.ErrPushRejected) {
		t.Errorf("Push() error = %v, want ErrPushRejected", err)
	}

	if err := g.Push(ctx, "origin", "issues-data", c1); err != nil {
		t.Errorf("Push() with correct lease failed: %v", err)
	}
}

func TestPushNoRemote(t *testing.T) {
	g, _ := setupTestRepo(t)

	err := g.Push(context.Background(), "origin", "issues-data", vcs.ZeroOID)
	if !errors.Is(err, vcs.ErrNoRemote) {
		t.Errorf("Push() error = %v, want ErrNoRemote", err)
	}
}

// buildCommit writes the given path->content files as a commit.
func buildCommit(t *testing.T, g *Git, parents []vcs.OID, files map[string]string) vcs.OID {
	t.Helper()
	ctx := context.Background()

	builder := vcs.NewTreeBuilder(g, vcs.ZeroOID)
	if len(parents) > 0 {
		parent, err := g.ReadCommit(ctx, parents[0])
		if err != nil {
			t.Fatalf("ReadCommit() failed: %v", err)
		}
		builder = vcs.NewTreeBuilder(g, parent.Tree)
	}

	for path, content := range files {
		if err := builder.PutBytes(ctx, path, []byte(content)); err != nil {
			t.Fatalf("PutBytes() failed: %v", err)
		}
	}

	tree, err := builder.Write(ctx)
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	commit, err := g.WriteCommit(ctx, tree, parents, "test commit")
	if err != nil {
		t.Fatalf("WriteCommit() failed: %v", err)
	}
	return commit
}
