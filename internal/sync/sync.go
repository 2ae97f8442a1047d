// Package sync implements the synchronization engine for the data branch.
//
// A cycle runs Idle -> Fetching -> Diffing -> Merging, then either
// Clean -> Pushing -> Idle or Conflicted. Fetch and push failures are
// surfaced to the caller verbatim; the engine never retries transport
// operations on its own. A cycle against an unchanged remote is a no-op,
// so running sync twice in a row is always safe.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/highlab/entomologist/internal/store"
	"github.com/highlab/entomologist/internal/vcs"
)

// Phase is a stage of the synchronization state machine.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseFetching   Phase = "fetching"
	PhaseDiffing    Phase = "diffing"
	PhaseMerging    Phase = "merging"
	PhasePushing    Phase = "pushing"
	PhaseConflicted Phase = "conflicted"
)

// ConflictError is returned when a merge cannot complete automatically.
// The local and remote histories are left untouched; the user resolves
// by re-applying one side's intent and syncing again.
type ConflictError struct {
	Conflicts []store.Conflict
}

func (e *ConflictError) Error() string {
	lines := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		lines[i] = c.String()
	}
	return fmt.Sprintf("merge conflicts:\n  %s", strings.Join(lines, "\n  "))
}

// Result describes one completed (or conflicted) cycle.
type Result struct {
	// Phase is the terminal phase: PhaseIdle or PhaseConflicted.
	Phase Phase

	// Local and Remote are the branch tips observed during the cycle.
	Local, Remote vcs.OID

	// Divergence is how the tips had drifted before reconciliation.
	Divergence vcs.Divergence

	// Merged is the merge commit created, if any.
	Merged vcs.OID

	// Conflicts holds the conflicted entities when Phase is conflicted.
	Conflicts []store.Conflict

	// Pushed reports whether the remote was updated.
	Pushed bool

	// FastForwarded reports whether the local branch advanced to the
	// remote tip without a merge commit.
	FastForwarded bool
}

// UpToDate reports whether the cycle found nothing to reconcile.
func (r *Result) UpToDate() bool {
	return r.Phase == PhaseIdle && !r.Pushed && !r.FastForwarded && r.Merged.IsZero()
}

// Engine runs synchronization cycles for one branch against one remote.
type Engine struct {
	repo   vcs.Repo
	branch string
	remote string
	logger *log.Logger
}

// New creates an Engine. If logger is nil, a default logger writing to
// stderr is used.
func New(repo vcs.Repo, branch, remote string, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Engine{
		repo:   repo,
		branch: branch,
		remote: remote,
		logger: logger,
	}
}

// Sync runs one full cycle. On conflict it returns a *ConflictError
// alongside a Result whose phase is PhaseConflicted.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	result := &Result{Phase: PhaseIdle}

	local, err := e.repo.ResolveRef(ctx, e.branch)
	if err != nil {
		if errors.Is(err, vcs.ErrRefNotFound) {
			return nil, store.ErrNotInitialized
		}
		return nil, err
	}
	result.Local = local

	result.Phase = PhaseFetching
	remote, err := e.repo.Fetch(ctx, e.remote, e.branch)
	if err != nil {
		if errors.Is(err, vcs.ErrRefNotFound) {
			// The remote has never seen this database; the first push
			// creates the branch there.
			e.logger.Printf("remote %s has no %s branch, publishing", e.remote, e.branch)
			return e.push(ctx, result, vcs.ZeroOID)
		}
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	result.Remote = remote

	if remote == local {
		e.logger.Printf("%s is up to date with %s", e.branch, e.remote)
		result.Phase = PhaseIdle
		return result, nil
	}

	result.Phase = PhaseDiffing
	localOnly, err := e.repo.Log(ctx, local, remote)
	if err != nil {
		return nil, err
	}
	remoteOnly, err := e.repo.Log(ctx, remote, local)
	if err != nil {
		return nil, err
	}
	result.Divergence = vcs.Divergence{LocalOnly: localOnly, RemoteOnly: remoteOnly}

	switch {
	case len(remoteOnly) == 0:
		// Only we moved; publish our commits.
		return e.push(ctx, result, remote)

	case len(localOnly) == 0:
		// Only the remote moved; fast-forward our branch.
		e.logger.Printf("fast-forwarding %s to %s", e.branch, remote.Short())
		if err := e.repo.UpdateRef(ctx, e.branch, local, remote); err != nil {
			return nil, err
		}
		result.FastForwarded = true
		result.Phase = PhaseIdle
		return result, nil
	}

	result.Phase = PhaseMerging
	e.logger.Printf("merging %s (%d local, %d remote commits)",
		e.branch, len(localOnly), len(remoteOnly))

	merge, err := e.repo.Merge(ctx, local, remote)
	if err != nil {
		return nil, fmt.Errorf("merge failed: %w", err)
	}

	if !merge.Clean() {
		result.Phase = PhaseConflicted
		for _, path := range merge.Conflicts {
			result.Conflicts = append(result.Conflicts, store.DescribeConflict(path))
		}
		e.logger.Printf("merge of %s conflicted on %d paths", e.branch, len(merge.Conflicts))
		return result, &ConflictError{Conflicts: result.Conflicts}
	}

	message := fmt.Sprintf("merge %s from %s", e.branch, e.remote)
	merged, err := e.repo.WriteCommit(ctx, merge.Tree, []vcs.OID{local, remote}, message)
	if err != nil {
		return nil, err
	}
	result.Merged = merged

	if err := e.repo.UpdateRef(ctx, e.branch, local, merged); err != nil {
		// A local writer slipped in between fetch and merge. Treat it
		// like any other failed cycle; the next run merges their work.
		return nil, fmt.Errorf("local branch moved during sync: %w", err)
	}

	return e.push(ctx, result, remote)
}

// push publishes the current local tip, expecting the remote to still be
// at expected.
func (e *Engine) push(ctx context.Context, result *Result, expected vcs.OID) (*Result, error) {
	result.Phase = PhasePushing

	if err := e.repo.Push(ctx, e.remote, e.branch, expected); err != nil {
		return nil, fmt.Errorf("push failed: %w", err)
	}

	e.logger.Printf("pushed %s to %s", e.branch, e.remote)
	result.Pushed = true
	result.Phase = PhaseIdle
	return result, nil
}
