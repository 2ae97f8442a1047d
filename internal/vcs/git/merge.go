package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/highlab/entomologist/internal/vcs"
)

// Merge performs a three-way merge of two commits using
// `git merge-tree --write-tree`, which merges at the object level without
// touching the working tree. Conflicts come back as a path list, not as
// conflict markers in a checkout.
func (g *Git) Merge(ctx context.Context, ours, theirs vcs.OID) (*vcs.MergeResult, error) {
	cmd := exec.CommandContext(ctx, "git", "merge-tree",
		"--write-tree", "--name-only", "-z", string(ours), string(theirs))
	cmd.Dir = g.repoRoot

	var stderr strings.Builder
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		// Exit status 1 means the merge ran but found conflicts; the
		// output still carries the tree and the conflicted paths.
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
			return nil, fmt.Errorf("git merge-tree failed: %w\n%s", err, stderr.String())
		}
	}

	return parseMergeTreeOutput(string(output))
}

// parseMergeTreeOutput decodes the -z output of merge-tree --write-tree
// --name-only: the merged tree id, then one NUL-terminated conflicted
// path per entry, then NUL-separated informational sections.
func parseMergeTreeOutput(output string) (*vcs.MergeResult, error) {
	fields := strings.Split(output, "\x00")
	if len(fields) == 0 || fields[0] == "" {
		return nil, fmt.Errorf("empty merge-tree output")
	}

	result := &vcs.MergeResult{Tree: vcs.OID(strings.TrimSpace(fields[0]))}
	for _, f := range fields[1:] {
		// An empty field terminates the conflicted-path section; what
		// follows are informational messages.
		if f == "" {
			break
		}
		result.Conflicts = append(result.Conflicts, f)
	}
	return result, nil
}
