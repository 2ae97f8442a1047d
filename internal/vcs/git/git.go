// Package git provides the Git implementation of the repository adapter.
//
// This package wraps git plumbing commands (hash-object, mktree,
// commit-tree, merge-tree, update-ref) so that the issue database can be
// written without ever touching the working tree. Conflict detection
// relies on `git merge-tree --write-tree`, which needs git 2.38 or newer;
// New verifies the installed version.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/highlab/entomologist/internal/vcs"
)

// minGitVersion is the oldest git that supports `merge-tree --write-tree`.
const minGitVersion = "v2.38.0"

// Git implements the repository adapter for git repositories.
type Git struct {
	// repoRoot is the repository root directory path
	repoRoot string

	// gitDir is the .git directory path (may differ for worktrees)
	gitDir string
}

// New creates a Git adapter for the repository containing path.
// It fails if git is not installed, is older than 2.38, or path is not
// inside a repository.
func New(path string) (*Git, error) {
	if err := checkVersion(); err != nil {
		return nil, err
	}

	g := &Git{}
	if err := g.detect(path); err != nil {
		return nil, err
	}
	return g, nil
}

func init() {
	vcs.Register(vcs.TypeGit, func(dir string) (vcs.Repo, error) {
		return New(dir)
	})
}

// Name returns the adapter type (git).
func (g *Git) Name() vcs.Type {
	return vcs.TypeGit
}

// RepoRoot returns the repository root directory path.
func (g *Git) RepoRoot() string {
	return g.repoRoot
}

// GitDir returns the .git directory path. The dashboard watches ref
// files under it to notice branch updates.
func (g *Git) GitDir() string {
	return g.gitDir
}

// Author returns the local identity as "Name <email>" from the
// repository config, falling back to just the name when no email is
// configured.
func (g *Git) Author(ctx context.Context) (string, error) {
	name, err := g.run(ctx, "config", "user.name")
	if err != nil {
		return "", fmt.Errorf("git user.name is not set: %w", err)
	}

	email, err := g.run(ctx, "config", "user.email")
	if err != nil {
		return strings.TrimSpace(string(name)), nil
	}
	return fmt.Sprintf("%s <%s>",
		strings.TrimSpace(string(name)), strings.TrimSpace(string(email))), nil
}

// detect locates the repository containing path.
func (g *Git) detect(path string) error {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = path

	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("%w: %s", vcs.ErrNotInRepo, path)
	}
	g.repoRoot = strings.TrimSpace(string(output))

	cmd = exec.Command("git", "rev-parse", "--absolute-git-dir")
	cmd.Dir = g.repoRoot
	output, err = cmd.Output()
	if err != nil {
		return fmt.Errorf("failed to locate .git directory: %w", err)
	}
	g.gitDir = filepath.Clean(strings.TrimSpace(string(output)))

	return nil
}

// Version returns the installed git version string, e.g. "2.43.0".
func Version() (string, error) {
	output, err := exec.Command("git", "--version").Output()
	if err != nil {
		return "", fmt.Errorf("%w: %v", vcs.ErrEngineNotAvailable, err)
	}

	// Output format: "git version 2.43.0" (possibly with a platform suffix)
	version := strings.TrimSpace(string(output))
	version = strings.TrimPrefix(version, "git version ")
	if i := strings.IndexByte(version, ' '); i >= 0 {
		version = version[:i]
	}
	return version, nil
}

func checkVersion() error {
	version, err := Version()
	if err != nil {
		return err
	}

	v := "v" + version
	// Strip non-semver suffixes like ".windows.1".
	if parts := strings.SplitN(v, ".", 4); len(parts) >= 3 {
		v = strings.Join(parts[:3], ".")
	}
	if !semver.IsValid(v) {
		// Unparseable version strings are let through rather than
		// blocking on exotic builds.
		return nil
	}
	if semver.Compare(v, minGitVersion) < 0 {
		return fmt.Errorf("%w: git %s is too old, need %s or newer for merge-tree",
			vcs.ErrEngineNotAvailable, version, strings.TrimPrefix(minGitVersion, "v"))
	}
	return nil
}

// run executes a git command in the repository and returns its stdout.
// Stderr is folded into the error message on failure.
func (g *Git) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.repoRoot

	var stderr strings.Builder
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return output, fmt.Errorf("git %s failed: %w\n%s",
			strings.Join(args, " "), err, stderr.String())
	}
	return output, nil
}

// runInput is run with data fed to the command's stdin.
func (g *Git) runInput(ctx context.Context, input []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.repoRoot
	cmd.Stdin = bytes.NewReader(input)

	var stderr strings.Builder
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return output, fmt.Errorf("git %s failed: %w\n%s",
			strings.Join(args, " "), err, stderr.String())
	}
	return output, nil
}
