// Package memory provides a deterministic in-memory implementation of the
// repository adapter, used by tests.
//
// Objects are stored in git's on-disk serialization and hashed with sha1,
// so every id produced here matches what the git adapter would produce for
// the same content. Repositories can be linked as remotes of each other,
// which lets tests drive full two-clone synchronization cycles without a
// git binary.
package memory

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/highlab/entomologist/internal/vcs"
)

// Repo is an in-memory repository.
type Repo struct {
	mu      sync.Mutex
	objects map[vcs.OID]object
	refs    map[string]vcs.OID
	remotes map[string]*Repo

	author string
	clock  time.Time
}

type object struct {
	kind string // "blob", "tree", "commit"
	body []byte
}

// New creates an empty in-memory repository. Commits are attributed to
// author and timestamped from a logical clock that advances one second
// per commit, keeping histories deterministic.
func New(author string) *Repo {
	return &Repo{
		objects: make(map[vcs.OID]object),
		refs:    make(map[string]vcs.OID),
		remotes: make(map[string]*Repo),
		author:  author,
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func init() {
	vcs.Register(vcs.TypeMemory, func(string) (vcs.Repo, error) {
		return New("mem <mem@localhost>"), nil
	})
}

// AddRemote links other as a named remote of this repository.
func (r *Repo) AddRemote(name string, other *Repo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remotes[name] = other
}

// Name returns the adapter type (memory).
func (r *Repo) Name() vcs.Type {
	return vcs.TypeMemory
}

// hashObject stores body as an object of the given kind and returns the
// git-compatible sha1 id.
func (r *Repo) hashObject(kind string, body []byte) vcs.OID {
	header := fmt.Sprintf("%s %d\x00", kind, len(body))
	sum := sha1.Sum(append([]byte(header), body...))
	oid := vcs.OID(hex.EncodeToString(sum[:]))
	r.objects[oid] = object{kind: kind, body: append([]byte(nil), body...)}
	return oid
}

func (r *Repo) lookup(id vcs.OID, kind string) (object, error) {
	obj, ok := r.objects[id]
	if !ok {
		return object{}, fmt.Errorf("%s %s: %w", kind, id.Short(), vcs.ErrObjectNotFound)
	}
	if obj.kind != kind {
		return object{}, fmt.Errorf("object %s is a %s, not a %s", id.Short(), obj.kind, kind)
	}
	return obj, nil
}

// ReadBlob returns the content of a blob object.
func (r *Repo) ReadBlob(_ context.Context, blob vcs.OID) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj, err := r.lookup(blob, "blob")
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), obj.body...), nil
}

// WriteBlob stores a blob and returns its content id.
func (r *Repo) WriteBlob(_ context.Context, data []byte) (vcs.OID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hashObject("blob", data), nil
}

// treeSortName is the key git sorts tree entries by: directories compare
// as if their name had a trailing slash.
func treeSortName(e vcs.TreeEntry) string {
	if e.Kind == vcs.KindTree {
		return e.Name + "/"
	}
	return e.Name
}

func encodeTree(entries []vcs.TreeEntry) ([]byte, error) {
	sorted := append([]vcs.TreeEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		return treeSortName(sorted[i]) < treeSortName(sorted[j])
	})

	var body []byte
	for _, e := range sorted {
		mode := "100644"
		if e.Kind == vcs.KindTree {
			mode = "40000"
		}
		raw, err := hex.DecodeString(string(e.OID))
		if err != nil || len(raw) != 20 {
			return nil, fmt.Errorf("invalid object id %q for entry %q", e.OID, e.Name)
		}
		body = append(body, []byte(mode+" "+e.Name+"\x00")...)
		body = append(body, raw...)
	}
	return body, nil
}

func decodeTree(body []byte) ([]vcs.TreeEntry, error) {
	var entries []vcs.TreeEntry
	for len(body) > 0 {
		nul := -1
		for i, b := range body {
			if b == 0 {
				nul = i
				break
			}
		}
		if nul < 0 || len(body) < nul+21 {
			return nil, fmt.Errorf("truncated tree object")
		}

		head := string(body[:nul])
		space := strings.IndexByte(head, ' ')
		if space < 0 {
			return nil, fmt.Errorf("malformed tree entry %q", head)
		}
		mode, name := head[:space], head[space+1:]

		kind := vcs.KindBlob
		if mode == "40000" {
			kind = vcs.KindTree
		}
		entries = append(entries, vcs.TreeEntry{
			Name: name,
			Kind: kind,
			OID:  vcs.OID(hex.EncodeToString(body[nul+1 : nul+21])),
		})
		body = body[nul+21:]
	}

	// Present entries to callers in plain name order, like ls-tree.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// ReadTree returns the entries of one tree object, sorted by name.
func (r *Repo) ReadTree(_ context.Context, tree vcs.OID) ([]vcs.TreeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readTreeLocked(tree)
}

func (r *Repo) readTreeLocked(tree vcs.OID) ([]vcs.TreeEntry, error) {
	if tree == emptyTreeID {
		if _, ok := r.objects[tree]; !ok {
			return nil, nil
		}
	}
	obj, err := r.lookup(tree, "tree")
	if err != nil {
		return nil, err
	}
	return decodeTree(obj.body)
}

// emptyTreeID is git's well-known empty tree.
const emptyTreeID = vcs.OID("4b825dc642cb6eb9a060e54bf8d69288fbee4904")

// WriteTree stores a tree object from the given entries.
func (r *Repo) WriteTree(_ context.Context, entries []vcs.TreeEntry) (vcs.OID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeTreeLocked(entries)
}

func (r *Repo) writeTreeLocked(entries []vcs.TreeEntry) (vcs.OID, error) {
	body, err := encodeTree(entries)
	if err != nil {
		return vcs.ZeroOID, err
	}
	return r.hashObject("tree", body), nil
}

// ReadCommit decodes the commit with the given id.
func (r *Repo) ReadCommit(_ context.Context, id vcs.OID) (*vcs.Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readCommitLocked(id)
}

func (r *Repo) readCommitLocked(id vcs.OID) (*vcs.Commit, error) {
	obj, err := r.lookup(id, "commit")
	if err != nil {
		return nil, err
	}
	return decodeCommit(id, obj.body)
}

func decodeCommit(id vcs.OID, body []byte) (*vcs.Commit, error) {
	c := &vcs.Commit{OID: id}
	text := string(body)

	headers, message, found := strings.Cut(text, "\n\n")
	if !found {
		return nil, fmt.Errorf("malformed commit %s", id.Short())
	}
	c.Message = strings.TrimRight(message, "\n")

	for _, line := range strings.Split(headers, "\n") {
		key, value, _ := strings.Cut(line, " ")
		switch key {
		case "tree":
			c.Tree = vcs.OID(value)
		case "parent":
			c.Parents = append(c.Parents, vcs.OID(value))
		case "author":
			// "Name <email> <unix> <zone>"
			fields := strings.Fields(value)
			if len(fields) >= 2 {
				c.Author = strings.Join(fields[:len(fields)-2], " ")
				var ts int64
				fmt.Sscanf(fields[len(fields)-2], "%d", &ts)
				c.Time = time.Unix(ts, 0).UTC()
			}
		}
	}
	return c, nil
}

// WriteCommit stores a commit pointing at tree with the given parents.
func (r *Repo) WriteCommit(_ context.Context, tree vcs.OID, parents []vcs.OID, message string) (vcs.OID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeCommitLocked(tree, parents, message)
}

func (r *Repo) writeCommitLocked(tree vcs.OID, parents []vcs.OID, message string) (vcs.OID, error) {
	if _, err := r.lookup(tree, "tree"); err != nil {
		return vcs.ZeroOID, err
	}

	r.clock = r.clock.Add(time.Second)
	stamp := fmt.Sprintf("%s %d +0000", r.author, r.clock.Unix())

	var b strings.Builder
	fmt.Fprintf(&b, "tree %s\n", tree)
	for _, p := range parents {
		if _, err := r.lookup(p, "commit"); err != nil {
			return vcs.ZeroOID, err
		}
		fmt.Fprintf(&b, "parent %s\n", p)
	}
	fmt.Fprintf(&b, "author %s\n", stamp)
	fmt.Fprintf(&b, "committer %s\n", stamp)
	fmt.Fprintf(&b, "\n%s\n", message)

	return r.hashObject("commit", []byte(b.String())), nil
}

// ResolveRef returns the commit at the tip of the named branch.
func (r *Repo) ResolveRef(_ context.Context, branch string) (vcs.OID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tip, ok := r.refs[branch]
	if !ok {
		return vcs.ZeroOID, fmt.Errorf("branch %q: %w", branch, vcs.ErrRefNotFound)
	}
	return tip, nil
}

// UpdateRef moves the branch tip from old to new as a compare-and-swap.
func (r *Repo) UpdateRef(_ context.Context, branch string, old, new vcs.OID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.refs[branch]
	if old.IsZero() {
		if exists {
			return fmt.Errorf("branch %q: %w", branch, vcs.ErrStaleRef)
		}
	} else if !exists || current != old {
		return fmt.Errorf("branch %q: %w", branch, vcs.ErrStaleRef)
	}

	if _, err := r.lookup(new, "commit"); err != nil {
		return err
	}
	r.refs[branch] = new
	return nil
}

// Fetch copies the remote branch tip and its objects into this repository.
func (r *Repo) Fetch(_ context.Context, remote, branch string) (vcs.OID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	other, ok := r.remotes[remote]
	if !ok {
		return vcs.ZeroOID, fmt.Errorf("remote %q: %w", remote, vcs.ErrNoRemote)
	}

	other.mu.Lock()
	defer other.mu.Unlock()

	tip, exists := other.refs[branch]
	if !exists {
		return vcs.ZeroOID, fmt.Errorf("remote %q has no branch %q: %w",
			remote, branch, vcs.ErrRefNotFound)
	}

	copyReachable(other, r, tip)
	return tip, nil
}

// Push updates the remote branch to the local tip, guarded by expected.
func (r *Repo) Push(_ context.Context, remote, branch string, expected vcs.OID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	other, ok := r.remotes[remote]
	if !ok {
		return fmt.Errorf("remote %q: %w", remote, vcs.ErrNoRemote)
	}

	tip, exists := r.refs[branch]
	if !exists {
		return fmt.Errorf("branch %q: %w", branch, vcs.ErrRefNotFound)
	}

	other.mu.Lock()
	defer other.mu.Unlock()

	current, remoteExists := other.refs[branch]
	if expected.IsZero() {
		if remoteExists {
			return fmt.Errorf("branch %q on %q: %w", branch, remote, vcs.ErrPushRejected)
		}
	} else if !remoteExists || current != expected {
		return fmt.Errorf("branch %q on %q: %w", branch, remote, vcs.ErrPushRejected)
	}

	copyReachable(r, other, tip)
	other.refs[branch] = tip
	return nil
}

// copyReachable copies every object reachable from tip between two
// already-locked repositories.
func copyReachable(src, dst *Repo, tip vcs.OID) {
	seen := make(map[vcs.OID]bool)
	var walk func(id vcs.OID)
	walk = func(id vcs.OID) {
		if id.IsZero() || seen[id] {
			return
		}
		seen[id] = true

		obj, ok := src.objects[id]
		if !ok {
			return
		}
		dst.objects[id] = obj

		switch obj.kind {
		case "commit":
			c, err := decodeCommit(id, obj.body)
			if err != nil {
				return
			}
			walk(c.Tree)
			for _, p := range c.Parents {
				walk(p)
			}
		case "tree":
			entries, err := decodeTree(obj.body)
			if err != nil {
				return
			}
			for _, e := range entries {
				walk(e.OID)
			}
		}
	}
	walk(tip)
}

// ancestorsLocked returns every commit reachable from tip, inclusive.
func (r *Repo) ancestorsLocked(tip vcs.OID) (map[vcs.OID]bool, error) {
	seen := make(map[vcs.OID]bool)
	queue := []vcs.OID{tip}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id.IsZero() || seen[id] {
			continue
		}
		seen[id] = true

		c, err := r.readCommitLocked(id)
		if err != nil {
			return nil, err
		}
		queue = append(queue, c.Parents...)
	}
	return seen, nil
}

// Log returns commits reachable from include but not exclude, newest first.
func (r *Repo) Log(_ context.Context, include, exclude vcs.OID) ([]vcs.Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if include.IsZero() {
		return nil, nil
	}

	excluded := make(map[vcs.OID]bool)
	if !exclude.IsZero() {
		var err error
		excluded, err = r.ancestorsLocked(exclude)
		if err != nil {
			return nil, err
		}
	}

	reachable, err := r.ancestorsLocked(include)
	if err != nil {
		return nil, err
	}

	var commits []vcs.Commit
	for id := range reachable {
		if excluded[id] {
			continue
		}
		c, err := r.readCommitLocked(id)
		if err != nil {
			return nil, err
		}
		commits = append(commits, *c)
	}

	sort.Slice(commits, func(i, j int) bool {
		if !commits[i].Time.Equal(commits[j].Time) {
			return commits[i].Time.After(commits[j].Time)
		}
		return commits[i].OID > commits[j].OID
	})
	return commits, nil
}
