// Package vcs defines the repository adapter that isolates entomologist
// from the underlying version-control engine.
//
// The issue database lives entirely inside a dedicated branch of the host
// repository. Every component that reads or writes issue data goes through
// the Repo interface: immutable blobs, trees, and commits, plus a single
// compare-and-swap ref update as the only mutation point.
//
// # Implementations
//
//   - internal/vcs/git: wraps the git plumbing commands (hash-object,
//     mktree, commit-tree, merge-tree, update-ref)
//   - internal/vcs/memory: a deterministic in-memory engine used by tests
//
// Implementations register themselves via Register() in their init()
// functions and are selected by Open().
package vcs

import (
	"context"
	"time"
)

// Type identifies a repository adapter implementation.
type Type string

const (
	// TypeGit is the exec-based git implementation.
	TypeGit Type = "git"

	// TypeMemory is the in-memory implementation used for testing.
	TypeMemory Type = "memory"
)

// String returns the string representation of the adapter type.
func (t Type) String() string {
	return string(t)
}

// OID is the content-addressed identifier of a blob, tree, or commit,
// in lowercase hex. The zero value means "no object".
type OID string

// ZeroOID is the absent-object identifier. Passing it as the expected
// old value of UpdateRef or Push asserts that the ref does not exist yet.
const ZeroOID OID = ""

// IsZero reports whether the OID identifies no object.
func (o OID) IsZero() bool {
	return o == ZeroOID
}

// Short returns an abbreviated form of the OID for display.
func (o OID) Short() string {
	if len(o) > 8 {
		return string(o[:8])
	}
	return string(o)
}

// EntryKind distinguishes blob and tree entries.
type EntryKind int

const (
	// KindBlob is a regular file entry.
	KindBlob EntryKind = iota

	// KindTree is a subdirectory entry.
	KindTree
)

// TreeEntry is one named entry in a tree object, sorted by Name within
// the tree. Adapters return structured entries so that callers never
// parse raw path strings.
type TreeEntry struct {
	Name string
	Kind EntryKind
	OID  OID
}

// Commit is the decoded form of a commit object.
type Commit struct {
	OID     OID
	Tree    OID
	Parents []OID
	Author  string
	Time    time.Time
	Message string
}

// MergeResult is the outcome of a three-way merge of two commits.
// A clean merge carries the merged tree; a conflicted merge carries
// the full set of conflicted paths instead of failing with an error.
type MergeResult struct {
	// Tree is the merged tree. Valid only when Clean() is true.
	Tree OID

	// Conflicts lists every path that could not be merged automatically,
	// relative to the tree root.
	Conflicts []string
}

// Clean reports whether the merge completed without conflicts.
func (m *MergeResult) Clean() bool {
	return len(m.Conflicts) == 0
}

// Divergence describes how two branch tips have drifted apart.
// It is purely informational; computing it has no side effects.
type Divergence struct {
	// LocalOnly holds commits reachable from the local tip but not the
	// remote tip, newest first.
	LocalOnly []Commit

	// RemoteOnly holds commits reachable from the remote tip but not the
	// local tip, newest first.
	RemoteOnly []Commit
}

// Diverged reports whether both sides carry commits the other lacks.
func (d *Divergence) Diverged() bool {
	return len(d.LocalOnly) > 0 && len(d.RemoteOnly) > 0
}

// Repo is the repository adapter contract.
//
// All mutation is expressed as new immutable objects plus a single
// compare-and-swap ref update; nothing is ever modified in place. The
// dedicated branch ref is the only shared mutable resource in the whole
// system, and UpdateRef/Push are its only serialization points.
type Repo interface {
	// Name returns the adapter type.
	Name() Type

	// ResolveRef returns the commit at the tip of the named branch.
	// Returns ErrRefNotFound if the branch does not exist.
	ResolveRef(ctx context.Context, branch string) (OID, error)

	// ReadCommit decodes the commit with the given id.
	ReadCommit(ctx context.Context, id OID) (*Commit, error)

	// ReadTree returns the entries of one tree object, sorted by name.
	ReadTree(ctx context.Context, tree OID) ([]TreeEntry, error)

	// ReadBlob returns the content of a blob object.
	ReadBlob(ctx context.Context, blob OID) ([]byte, error)

	// WriteBlob stores a blob and returns its content id. Writing the
	// same bytes twice yields the same id.
	WriteBlob(ctx context.Context, data []byte) (OID, error)

	// WriteTree stores a tree object from the given entries. Entries may
	// be passed in any order; the object is canonicalized. An empty entry
	// list produces the empty tree.
	WriteTree(ctx context.Context, entries []TreeEntry) (OID, error)

	// WriteCommit stores a commit pointing at tree with the given parents.
	WriteCommit(ctx context.Context, tree OID, parents []OID, message string) (OID, error)

	// UpdateRef moves the branch tip from old to new as a compare-and-swap:
	// it fails with ErrStaleRef if the branch no longer points at old.
	// Passing ZeroOID as old asserts the branch does not exist yet.
	UpdateRef(ctx context.Context, branch string, old, new OID) error

	// Fetch retrieves the remote tip of the named branch and returns it.
	// Returns ErrRefNotFound if the remote has no such branch.
	Fetch(ctx context.Context, remote, branch string) (OID, error)

	// Push updates the remote branch to the local tip, but only if the
	// remote still points at expected (compare-and-swap semantics).
	// Returns ErrPushRejected if the remote moved concurrently.
	Push(ctx context.Context, remote, branch string, expected OID) error

	// Merge performs a three-way merge of two commits using their common
	// ancestor. Conflicts are reported in the result, not as an error.
	Merge(ctx context.Context, ours, theirs OID) (*MergeResult, error)

	// Log returns the commits reachable from include but not from exclude,
	// newest first. Either side may be ZeroOID.
	Log(ctx context.Context, include, exclude OID) ([]Commit, error)
}
