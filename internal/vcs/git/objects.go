package git

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/highlab/entomologist/internal/vcs"
)

// ReadBlob returns the content of a blob object.
func (g *Git) ReadBlob(ctx context.Context, blob vcs.OID) ([]byte, error) {
	output, err := g.run(ctx, "cat-file", "blob", string(blob))
	if err != nil {
		if strings.Contains(err.Error(), "Not a valid object name") ||
			strings.Contains(err.Error(), "could not get object info") {
			return nil, fmt.Errorf("blob %s: %w", blob.Short(), vcs.ErrObjectNotFound)
		}
		return nil, err
	}
	return output, nil
}

// WriteBlob stores a blob and returns its content id.
func (g *Git) WriteBlob(ctx context.Context, data []byte) (vcs.OID, error) {
	output, err := g.runInput(ctx, data, "hash-object", "-w", "--stdin")
	if err != nil {
		return vcs.ZeroOID, err
	}
	return vcs.OID(strings.TrimSpace(string(output))), nil
}

// ReadTree returns the entries of one tree object, sorted by name.
func (g *Git) ReadTree(ctx context.Context, tree vcs.OID) ([]vcs.TreeEntry, error) {
	output, err := g.run(ctx, "ls-tree", "-z", string(tree))
	if err != nil {
		if strings.Contains(err.Error(), "Not a valid object name") {
			return nil, fmt.Errorf("tree %s: %w", tree.Short(), vcs.ErrObjectNotFound)
		}
		return nil, err
	}

	var entries []vcs.TreeEntry
	for _, line := range strings.Split(string(output), "\x00") {
		if line == "" {
			continue
		}
		// Format: "<mode> <type> <oid>\t<name>"
		tab := strings.IndexByte(line, '\t')
		if tab < 0 {
			continue
		}
		name := line[tab+1:]
		fields := strings.Fields(line[:tab])
		if len(fields) != 3 {
			return nil, fmt.Errorf("unexpected ls-tree entry: %q", line)
		}

		var kind vcs.EntryKind
		switch fields[1] {
		case "blob":
			kind = vcs.KindBlob
		case "tree":
			kind = vcs.KindTree
		default:
			// Submodules and symlinks never occur in the data branch.
			continue
		}
		entries = append(entries, vcs.TreeEntry{
			Name: name,
			Kind: kind,
			OID:  vcs.OID(fields[2]),
		})
	}
	return entries, nil
}

// WriteTree stores a tree object built from entries via git mktree.
func (g *Git) WriteTree(ctx context.Context, entries []vcs.TreeEntry) (vcs.OID, error) {
	var b strings.Builder
	for _, e := range entries {
		switch e.Kind {
		case vcs.KindBlob:
			fmt.Fprintf(&b, "100644 blob %s\t%s\x00", e.OID, e.Name)
		case vcs.KindTree:
			fmt.Fprintf(&b, "040000 tree %s\t%s\x00", e.OID, e.Name)
		default:
			return vcs.ZeroOID, fmt.Errorf("unknown entry kind %d for %q", e.Kind, e.Name)
		}
	}

	output, err := g.runInput(ctx, []byte(b.String()), "mktree", "-z")
	if err != nil {
		return vcs.ZeroOID, err
	}
	return vcs.OID(strings.TrimSpace(string(output))), nil
}

// ReadCommit decodes the commit with the given id.
func (g *Git) ReadCommit(ctx context.Context, id vcs.OID) (*vcs.Commit, error) {
	// %H hash, %T tree, %P parents, %an/%ae author, %at author time, %B body
	format := "%H%x00%T%x00%P%x00%an <%ae>%x00%at%x00%B"
	output, err := g.run(ctx, "show", "-s", "--format="+format, string(id))
	if err != nil {
		if strings.Contains(err.Error(), "Not a valid object name") ||
			strings.Contains(err.Error(), "bad revision") {
			return nil, fmt.Errorf("commit %s: %w", id.Short(), vcs.ErrObjectNotFound)
		}
		return nil, err
	}
	return parseCommitRecord(string(output))
}

func parseCommitRecord(record string) (*vcs.Commit, error) {
	fields := strings.SplitN(record, "\x00", 6)
	if len(fields) != 6 {
		return nil, fmt.Errorf("unexpected commit record: %q", record)
	}

	c := &vcs.Commit{
		OID:     vcs.OID(fields[0]),
		Tree:    vcs.OID(fields[1]),
		Author:  fields[3],
		Message: strings.TrimRight(fields[5], "\n"),
	}
	for _, p := range strings.Fields(fields[2]) {
		c.Parents = append(c.Parents, vcs.OID(p))
	}
	if ts, err := strconv.ParseInt(fields[4], 10, 64); err == nil {
		c.Time = time.Unix(ts, 0).UTC()
	}
	return c, nil
}

// WriteCommit stores a commit pointing at tree with the given parents.
// Author identity comes from the repository's normal git configuration.
func (g *Git) WriteCommit(ctx context.Context, tree vcs.OID, parents []vcs.OID, message string) (vcs.OID, error) {
	args := []string{"commit-tree", string(tree)}
	for _, p := range parents {
		args = append(args, "-p", string(p))
	}
	args = append(args, "-m", message)

	output, err := g.run(ctx, args...)
	if err != nil {
		return vcs.ZeroOID, err
	}
	return vcs.OID(strings.TrimSpace(string(output))), nil
}

// Log returns commits reachable from include but not exclude, newest first.
func (g *Git) Log(ctx context.Context, include, exclude vcs.OID) ([]vcs.Commit, error) {
	if include.IsZero() {
		return nil, nil
	}

	// Unit separator between fields, NUL (-z) between records; commit
	// subjects cannot contain either.
	format := "%H%x1f%T%x1f%P%x1f%an <%ae>%x1f%at%x1f%s"
	args := []string{"log", "-z", "--format=" + format}
	if exclude.IsZero() {
		args = append(args, string(include))
	} else {
		args = append(args, fmt.Sprintf("%s..%s", exclude, include))
	}

	output, err := g.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	var commits []vcs.Commit
	for _, record := range strings.Split(string(output), "\x00") {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		c, err := parseCommitRecord(strings.ReplaceAll(record, "\x1f", "\x00"))
		if err != nil {
			return nil, err
		}
		commits = append(commits, *c)
	}
	return commits, nil
}
