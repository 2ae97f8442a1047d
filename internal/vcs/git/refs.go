package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/highlab/entomologist/internal/vcs"
)

// zeroHash is what git's update-ref expects as "the ref must not exist".
const zeroHash = "0000000000000000000000000000000000000000"

// ResolveRef returns the commit at the tip of the named local branch.
func (g *Git) ResolveRef(ctx context.Context, branch string) (vcs.OID, error) {
	output, err := g.run(ctx, "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	if err != nil {
		// --quiet makes a missing ref a bare non-zero exit.
		return vcs.ZeroOID, fmt.Errorf("branch %q: %w", branch, vcs.ErrRefNotFound)
	}
	return vcs.OID(strings.TrimSpace(string(output))), nil
}

// UpdateRef moves the branch tip from old to new as a compare-and-swap.
func (g *Git) UpdateRef(ctx context.Context, branch string, old, new vcs.OID) error {
	oldValue := string(old)
	if old.IsZero() {
		oldValue = zeroHash
	}

	_, err := g.run(ctx, "update-ref", "refs/heads/"+branch, string(new), oldValue)
	if err != nil {
		// update-ref reports a failed compare as "cannot lock ref" with
		// the unexpected current value, or "reference already exists".
		msg := err.Error()
		if strings.Contains(msg, "cannot lock ref") ||
			strings.Contains(msg, "but expected") ||
			strings.Contains(msg, "already exists") {
			return fmt.Errorf("branch %q: %w", branch, vcs.ErrStaleRef)
		}
		return err
	}
	return nil
}
