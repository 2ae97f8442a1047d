package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/highlab/entomologist/internal/vcs"
)

// HasRemote reports whether the named remote is configured.
func (g *Git) HasRemote(ctx context.Context, remote string) bool {
	_, err := g.run(ctx, "remote", "get-url", remote)
	return err == nil
}

// Fetch retrieves the remote tip of the named branch and returns it.
func (g *Git) Fetch(ctx context.Context, remote, branch string) (vcs.OID, error) {
	if !g.HasRemote(ctx, remote) {
		return vcs.ZeroOID, fmt.Errorf("remote %q: %w", remote, vcs.ErrNoRemote)
	}

	_, err := g.run(ctx, "fetch", remote, branch)
	if err != nil {
		if strings.Contains(err.Error(), "couldn't find remote ref") {
			return vcs.ZeroOID, fmt.Errorf("remote %q has no branch %q: %w",
				remote, branch, vcs.ErrRefNotFound)
		}
		return vcs.ZeroOID, err
	}

	output, err := g.run(ctx, "rev-parse", "--verify", "--quiet",
		fmt.Sprintf("refs/remotes/%s/%s", remote, branch))
	if err != nil {
		return vcs.ZeroOID, fmt.Errorf("remote %q has no branch %q: %w",
			remote, branch, vcs.ErrRefNotFound)
	}
	return vcs.OID(strings.TrimSpace(string(output))), nil
}

// Push updates the remote branch to the local tip, guarded by the
// expected remote value (force-with-lease gives compare-and-swap
// semantics over the wire).
func (g *Git) Push(ctx context.Context, remote, branch string, expected vcs.OID) error {
	if !g.HasRemote(ctx, remote) {
		return fmt.Errorf("remote %q: %w", remote, vcs.ErrNoRemote)
	}

	lease := string(expected)
	if expected.IsZero() {
		lease = zeroHash
	}

	_, err := g.run(ctx, "push",
		fmt.Sprintf("--force-with-lease=refs/heads/%s:%s", branch, lease),
		remote,
		fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "stale info") ||
			strings.Contains(msg, "[rejected]") ||
			strings.Contains(msg, "fetch first") {
			return fmt.Errorf("branch %q on %q: %w", branch, remote, vcs.ErrPushRejected)
		}
		return err
	}
	return nil
}
