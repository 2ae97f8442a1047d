package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/highlab/entomologist/internal/vcs"
)

// Merge performs a three-way merge of two commits using their common
// ancestor, mirroring what `git merge-tree --write-tree` computes.
// Entry-level resolution only: a path modified on both sides to different
// content is a conflict, never a line-level merge. The per-field issue
// layout makes line-level merging unnecessary.
func (r *Repo) Merge(_ context.Context, ours, theirs vcs.OID) (*vcs.MergeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ourCommit, err := r.readCommitLocked(ours)
	if err != nil {
		return nil, err
	}
	theirCommit, err := r.readCommitLocked(theirs)
	if err != nil {
		return nil, err
	}

	base, err := r.mergeBaseLocked(ours, theirs)
	if err != nil {
		return nil, err
	}
	baseTree := vcs.ZeroOID
	if !base.IsZero() {
		baseCommit, err := r.readCommitLocked(base)
		if err != nil {
			return nil, err
		}
		baseTree = baseCommit.Tree
	}

	result := &vcs.MergeResult{}
	tree, err := r.mergeTreesLocked(baseTree, ourCommit.Tree, theirCommit.Tree, "", result)
	if err != nil {
		return nil, err
	}
	result.Tree = tree
	sort.Strings(result.Conflicts)
	return result, nil
}

// mergeBaseLocked returns the nearest common ancestor of two commits,
// or the zero id if the histories are unrelated.
func (r *Repo) mergeBaseLocked(a, b vcs.OID) (vcs.OID, error) {
	ancestorsA, err := r.ancestorsLocked(a)
	if err != nil {
		return vcs.ZeroOID, err
	}

	// Breadth-first from b so the first hit is the nearest common commit.
	seen := make(map[vcs.OID]bool)
	queue := []vcs.OID{b}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true

		if ancestorsA[id] {
			return id, nil
		}
		c, err := r.readCommitLocked(id)
		if err != nil {
			return vcs.ZeroOID, err
		}
		queue = append(queue, c.Parents...)
	}
	return vcs.ZeroOID, nil
}

// mergeTreesLocked merges two trees against their base, recording
// conflicted paths (prefixed with dir) in result.
func (r *Repo) mergeTreesLocked(base, ours, theirs vcs.OID, dir string, result *vcs.MergeResult) (vcs.OID, error) {
	if ours == theirs {
		return ours, nil
	}

	baseEntries, err := r.entriesByName(base)
	if err != nil {
		return vcs.ZeroOID, err
	}
	ourEntries, err := r.entriesByName(ours)
	if err != nil {
		return vcs.ZeroOID, err
	}
	theirEntries, err := r.entriesByName(theirs)
	if err != nil {
		return vcs.ZeroOID, err
	}

	names := make(map[string]bool)
	for n := range baseEntries {
		names[n] = true
	}
	for n := range ourEntries {
		names[n] = true
	}
	for n := range theirEntries {
		names[n] = true
	}

	var merged []vcs.TreeEntry
	for name := range names {
		b, hasBase := baseEntries[name]
		o, hasOurs := ourEntries[name]
		t, hasTheirs := theirEntries[name]
		path := joinPath(dir, name)

		entry, conflict, err := r.mergeEntry(b, hasBase, o, hasOurs, t, hasTheirs, path, result)
		if err != nil {
			return vcs.ZeroOID, err
		}
		if conflict {
			// Keep our side in the result tree so conflicted merges
			// still produce a complete tree, like merge-tree does.
			if hasOurs {
				merged = append(merged, o)
			} else if hasTheirs {
				merged = append(merged, t)
			}
			continue
		}
		if entry != nil {
			merged = append(merged, *entry)
		}
	}

	return r.writeTreeLocked(merged)
}

// mergeEntry resolves one name across the three trees. A nil entry with
// no conflict means the name is deleted in the merge.
func (r *Repo) mergeEntry(base vcs.TreeEntry, hasBase bool, ours vcs.TreeEntry, hasOurs bool,
	theirs vcs.TreeEntry, hasTheirs bool, path string, result *vcs.MergeResult) (*vcs.TreeEntry, bool, error) {

	switch {
	case !hasOurs && !hasTheirs:
		// Deleted on both sides (or never existed).
		return nil, false, nil

	case hasOurs && !hasTheirs:
		if !hasBase {
			return &ours, false, nil // added by us
		}
		if sameEntry(base, ours) {
			return nil, false, nil // deleted by them, untouched by us
		}
		// Modified by us, deleted by them.
		r.markConflict(ours, path, result)
		return nil, true, nil

	case !hasOurs && hasTheirs:
		if !hasBase {
			return &theirs, false, nil
		}
		if sameEntry(base, theirs) {
			return nil, false, nil
		}
		r.markConflict(theirs, path, result)
		return nil, true, nil
	}

	// Present on both sides.
	if sameEntry(ours, theirs) {
		return &ours, false, nil
	}
	if hasBase && sameEntry(base, ours) {
		return &theirs, false, nil
	}
	if hasBase && sameEntry(base, theirs) {
		return &ours, false, nil
	}

	if ours.Kind == vcs.KindTree && theirs.Kind == vcs.KindTree {
		baseTree := vcs.ZeroOID
		if hasBase && base.Kind == vcs.KindTree {
			baseTree = base.OID
		}
		sub, err := r.mergeTreesLocked(baseTree, ours.OID, theirs.OID, path, result)
		if err != nil {
			return nil, false, err
		}
		entries, err := r.readTreeLocked(sub)
		if err != nil {
			return nil, false, err
		}
		if len(entries) == 0 {
			return nil, false, nil
		}
		return &vcs.TreeEntry{Name: ours.Name, Kind: vcs.KindTree, OID: sub}, false, nil
	}

	// Both changed the same blob (or a blob/tree clash).
	r.markConflict(ours, path, result)
	return nil, true, nil
}

// markConflict records path as conflicted. Directory entries expand to
// their contained files, matching merge-tree's per-file reporting.
func (r *Repo) markConflict(entry vcs.TreeEntry, path string, result *vcs.MergeResult) {
	if entry.Kind != vcs.KindTree {
		result.Conflicts = append(result.Conflicts, path)
		return
	}
	entries, err := r.readTreeLocked(entry.OID)
	if err != nil {
		result.Conflicts = append(result.Conflicts, path)
		return
	}
	for _, e := range entries {
		r.markConflict(e, joinPath(path, e.Name), result)
	}
}

func (r *Repo) entriesByName(tree vcs.OID) (map[string]vcs.TreeEntry, error) {
	m := make(map[string]vcs.TreeEntry)
	if tree.IsZero() {
		return m, nil
	}
	entries, err := r.readTreeLocked(tree)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		m[e.Name] = e
	}
	return m, nil
}

func sameEntry(a, b vcs.TreeEntry) bool {
	return a.Kind == b.Kind && a.OID == b.OID
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return fmt.Sprintf("%s/%s", dir, name)
}
