package vcs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Snapshot is a read-only view of one tree, addressed by slash-separated
// paths. It caches nothing; every lookup walks the object store, which is
// cheap for the shallow trees the issue layout produces.
type Snapshot struct {
	repo Repo
	root OID
}

// NewSnapshot returns a snapshot rooted at the given tree.
func NewSnapshot(repo Repo, root OID) *Snapshot {
	return &Snapshot{repo: repo, root: root}
}

// Root returns the root tree id of the snapshot.
func (s *Snapshot) Root() OID {
	return s.root
}

// Lookup resolves a slash-separated path to its tree entry.
// Returns ErrObjectNotFound if any component is missing.
func (s *Snapshot) Lookup(ctx context.Context, path string) (*TreeEntry, error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty path")
	}

	tree := s.root
	for i, part := range parts {
		entries, err := s.repo.ReadTree(ctx, tree)
		if err != nil {
			return nil, err
		}
		entry := findEntry(entries, part)
		if entry == nil {
			return nil, fmt.Errorf("path %q: %w", path, ErrObjectNotFound)
		}
		if i == len(parts)-1 {
			return entry, nil
		}
		if entry.Kind != KindTree {
			return nil, fmt.Errorf("path %q: %q is not a directory", path, part)
		}
		tree = entry.OID
	}
	return nil, fmt.Errorf("path %q: %w", path, ErrObjectNotFound)
}

// ReadFile returns the content of the blob at path.
func (s *Snapshot) ReadFile(ctx context.Context, path string) ([]byte, error) {
	entry, err := s.Lookup(ctx, path)
	if err != nil {
		return nil, err
	}
	if entry.Kind != KindBlob {
		return nil, fmt.Errorf("path %q is a directory, not a file", path)
	}
	return s.repo.ReadBlob(ctx, entry.OID)
}

// List returns the entries of the directory at path. An empty path lists
// the root. Returns ErrObjectNotFound if the directory does not exist.
func (s *Snapshot) List(ctx context.Context, path string) ([]TreeEntry, error) {
	if strings.Trim(path, "/") == "" {
		return s.repo.ReadTree(ctx, s.root)
	}
	entry, err := s.Lookup(ctx, path)
	if err != nil {
		return nil, err
	}
	if entry.Kind != KindTree {
		return nil, fmt.Errorf("path %q is a file, not a directory", path)
	}
	return s.repo.ReadTree(ctx, entry.OID)
}

// Exists reports whether path resolves to any entry.
func (s *Snapshot) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.Lookup(ctx, path)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}

func findEntry(entries []TreeEntry, name string) *TreeEntry {
	for i := range entries {
		if entries[i].Name == name {
			return &entries[i]
		}
	}
	return nil
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// TreeBuilder accumulates edits against a base tree and writes the
// minimal set of new tree objects to apply them. Only the directories on
// the spine of each edited path are rewritten; untouched siblings keep
// their existing ids, which is what keeps unrelated issues byte-identical
// across edits and lets the merge machinery match them trivially.
type TreeBuilder struct {
	repo Repo
	base OID
	ops  []treeOp
}

type treeOp struct {
	path   []string
	blob   OID  // valid when delete is false
	delete bool
}

// NewTreeBuilder returns a builder over the given base tree.
// A zero base starts from an empty tree.
func NewTreeBuilder(repo Repo, base OID) *TreeBuilder {
	return &TreeBuilder{repo: repo, base: base}
}

// Put records a file write at the slash-separated path. Intermediate
// directories are created as needed. Later operations on the same path
// win.
func (b *TreeBuilder) Put(path string, blob OID) {
	b.ops = append(b.ops, treeOp{path: splitPath(path), blob: blob})
}

// PutBytes stores data as a blob and records a write of it at path.
func (b *TreeBuilder) PutBytes(ctx context.Context, path string, data []byte) error {
	blob, err := b.repo.WriteBlob(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to write blob for %q: %w", path, err)
	}
	b.Put(path, blob)
	return nil
}

// Delete records removal of the entry at path. Deleting a directory
// removes its whole subtree. Deleting a missing path is a no-op.
func (b *TreeBuilder) Delete(path string) {
	b.ops = append(b.ops, treeOp{path: splitPath(path), delete: true})
}

// Write applies all recorded operations and returns the new root tree.
// The builder can be reused afterwards; recorded operations are cleared.
func (b *TreeBuilder) Write(ctx context.Context) (OID, error) {
	root, err := b.loadNode(ctx, b.base)
	if err != nil {
		return ZeroOID, err
	}

	for _, op := range b.ops {
		if len(op.path) == 0 {
			return ZeroOID, fmt.Errorf("empty path in tree edit")
		}
		if op.delete {
			if err := root.remove(ctx, b, op.path); err != nil {
				return ZeroOID, err
			}
		} else {
			if err := root.insert(ctx, b, op.path, op.blob); err != nil {
				return ZeroOID, err
			}
		}
	}

	oid, err := root.write(ctx, b.repo)
	if err != nil {
		return ZeroOID, err
	}
	b.ops = nil
	b.base = oid
	return oid, nil
}

// treeNode is an in-memory directory being edited. Children that were
// never touched stay as unexpanded entries and keep their stored ids.
type treeNode struct {
	children map[string]*nodeEntry
	dirty    bool
}

type nodeEntry struct {
	kind EntryKind
	oid  OID       // valid while sub is nil
	sub  *treeNode // expanded directory, nil for blobs and untouched trees
}

func (b *TreeBuilder) loadNode(ctx context.Context, tree OID) (*treeNode, error) {
	node := &treeNode{children: make(map[string]*nodeEntry)}
	if tree.IsZero() {
		return node, nil
	}
	entries, err := b.repo.ReadTree(ctx, tree)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		node.children[e.Name] = &nodeEntry{kind: e.Kind, oid: e.OID}
	}
	return node, nil
}

func (n *treeNode) insert(ctx context.Context, b *TreeBuilder, path []string, blob OID) error {
	n.dirty = true
	name := path[0]
	if len(path) == 1 {
		n.children[name] = &nodeEntry{kind: KindBlob, oid: blob}
		return nil
	}

	child := n.children[name]
	switch {
	case child == nil:
		child = &nodeEntry{kind: KindTree, sub: &treeNode{children: make(map[string]*nodeEntry)}}
		n.children[name] = child
	case child.kind == KindBlob:
		return fmt.Errorf("path component %q is a file", name)
	case child.sub == nil:
		sub, err := b.loadNode(ctx, child.oid)
		if err != nil {
			return err
		}
		child.sub = sub
	}
	return child.sub.insert(ctx, b, path[1:], blob)
}

func (n *treeNode) remove(ctx context.Context, b *TreeBuilder, path []string) error {
	name := path[0]
	child, ok := n.children[name]
	if !ok {
		return nil
	}
	n.dirty = true
	if len(path) == 1 {
		delete(n.children, name)
		return nil
	}
	if child.kind == KindBlob {
		return nil
	}
	if child.sub == nil {
		sub, err := b.loadNode(ctx, child.oid)
		if err != nil {
			return err
		}
		child.sub = sub
	}
	if err := child.sub.remove(ctx, b, path[1:]); err != nil {
		return err
	}
	// Empty directories cannot be represented, so deleting the last file
	// of a subtree removes the subtree itself.
	if len(child.sub.children) == 0 {
		delete(n.children, name)
	}
	return nil
}

func (n *treeNode) write(ctx context.Context, repo Repo) (OID, error) {
	entries := make([]TreeEntry, 0, len(n.children))
	for name, child := range n.children {
		oid := child.oid
		if child.sub != nil {
			sub, err := child.sub.write(ctx, repo)
			if err != nil {
				return ZeroOID, err
			}
			oid = sub
		}
		entries = append(entries, TreeEntry{Name: name, Kind: child.kind, OID: oid})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return repo.WriteTree(ctx, entries)
}
