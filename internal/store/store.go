// Package store implements the issue store on top of the repository
// adapter. It owns the data branch layout exclusively; no other package
// writes trees under the branch.
//
// Every mutation is a re-read-then-write cycle: read the current branch
// tip, build the new tree against it, commit, then advance the ref with a
// compare-and-swap. Losing the swap to a concurrent local writer re-runs
// the cycle against the new tip.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/highlab/entomologist/internal/issue"
	"github.com/highlab/entomologist/internal/vcs"
)

// DefaultBranch is the dedicated data branch name.
const DefaultBranch = "entomologist-data"

// casRetries bounds how often a mutation re-runs after losing the ref
// compare-and-swap to another local writer.
const casRetries = 3

const readmeContent = `# Issue database

This branch is managed by entomologist. Do not edit it by hand; use the
ent command instead.
`

// Store reads and writes issues on the data branch.
type Store struct {
	repo   vcs.Repo
	branch string
	author string
	logger *log.Logger
}

// Options configures a Store.
type Options struct {
	// Branch is the data branch name. Defaults to DefaultBranch.
	Branch string

	// Author identifies the local user, as "Name <email>".
	Author string

	// Logger receives warnings about skipped malformed entries.
	// Defaults to the standard logger.
	Logger *log.Logger
}

// New creates a Store over the given repository.
func New(repo vcs.Repo, opts Options) *Store {
	if opts.Branch == "" {
		opts.Branch = DefaultBranch
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Store{
		repo:   repo,
		branch: opts.Branch,
		author: opts.Author,
		logger: opts.Logger,
	}
}

// Branch returns the data branch name.
func (s *Store) Branch() string {
	return s.branch
}

// Repo returns the underlying repository adapter.
func (s *Store) Repo() vcs.Repo {
	return s.repo
}

// Init creates the data branch as an orphan history holding only the
// branch marker. It fails if the branch already exists.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.repo.ResolveRef(ctx, s.branch)
	if err == nil {
		return ErrAlreadyInitialized
	}
	if !errors.Is(err, vcs.ErrRefNotFound) {
		return err
	}

	builder := vcs.NewTreeBuilder(s.repo, vcs.ZeroOID)
	if err := builder.PutBytes(ctx, readmeFile, []byte(readmeContent)); err != nil {
		return err
	}
	tree, err := builder.Write(ctx)
	if err != nil {
		return err
	}

	commit, err := s.repo.WriteCommit(ctx, tree, nil, "initialize issue database")
	if err != nil {
		return err
	}

	if err := s.repo.UpdateRef(ctx, s.branch, vcs.ZeroOID, commit); err != nil {
		if errors.Is(err, vcs.ErrStaleRef) {
			return ErrAlreadyInitialized
		}
		return err
	}
	return nil
}

// head returns the branch tip and a snapshot of its tree.
func (s *Store) head(ctx context.Context) (vcs.OID, *vcs.Snapshot, error) {
	tip, err := s.repo.ResolveRef(ctx, s.branch)
	if err != nil {
		if errors.Is(err, vcs.ErrRefNotFound) {
			return vcs.ZeroOID, nil, ErrNotInitialized
		}
		return vcs.ZeroOID, nil, err
	}

	commit, err := s.repo.ReadCommit(ctx, tip)
	if err != nil {
		return vcs.ZeroOID, nil, err
	}
	return tip, vcs.NewSnapshot(s.repo, commit.Tree), nil
}

// Snapshot returns a read-only view of the current branch tip.
func (s *Store) Snapshot(ctx context.Context) (*vcs.Snapshot, error) {
	_, snap, err := s.head(ctx)
	return snap, err
}

// mutate runs one re-read-then-write cycle, retrying when the ref moves
// underneath it. apply builds the change against the current snapshot.
func (s *Store) mutate(ctx context.Context, message string, apply func(snap *vcs.Snapshot, b *vcs.TreeBuilder) error) error {
	for attempt := 0; attempt < casRetries; attempt++ {
		tip, snap, err := s.head(ctx)
		if err != nil {
			return err
		}

		cfg, err := s.readConfig(ctx, snap)
		if err != nil {
			return err
		}
		if cfg.ReadOnly {
			return ErrReadOnly
		}

		builder := vcs.NewTreeBuilder(s.repo, snap.Root())
		if err := apply(snap, builder); err != nil {
			return err
		}
		tree, err := builder.Write(ctx)
		if err != nil {
			return err
		}
		if tree == snap.Root() {
			return nil // nothing changed
		}

		commit, err := s.repo.WriteCommit(ctx, tree, []vcs.OID{tip}, message)
		if err != nil {
			return err
		}

		err = s.repo.UpdateRef(ctx, s.branch, tip, commit)
		if err == nil {
			return nil
		}
		if !errors.Is(err, vcs.ErrStaleRef) {
			return err
		}
		s.logger.Printf("[store] lost ref race on %s, retrying (%d/%d)",
			s.branch, attempt+1, casRetries)
	}
	return ErrConcurrentUpdate
}

// CreateIssue creates a new issue and returns it. An empty title takes
// the first line of the description.
func (s *Store) CreateIssue(ctx context.Context, title, description string) (*issue.Issue, error) {
	description = strings.TrimSpace(description)
	title = strings.TrimSpace(title)
	if title == "" {
		title, _, _ = strings.Cut(description, "\n")
	}
	if title == "" {
		return nil, fmt.Errorf("issue needs a title or a description")
	}

	now := time.Now().UTC()
	created := &issue.Issue{
		ID:          issue.NewID(title, description, now),
		Title:       title,
		Description: description,
		State:       issue.StateNew,
		Author:      s.author,
		CreatedAt:   now,
	}

	err := s.mutate(ctx, fmt.Sprintf("new issue %s: %s", shortID(created.ID), title),
		func(snap *vcs.Snapshot, b *vcs.TreeBuilder) error {
			id := created.ID
			if err := b.PutBytes(ctx, metaPath(id, fileTitle), line(title)); err != nil {
				return err
			}
			if description != "" {
				if err := b.PutBytes(ctx, metaPath(id, fileDescription), line(description)); err != nil {
					return err
				}
			}
			if err := b.PutBytes(ctx, metaPath(id, fileState), line(string(issue.StateNew))); err != nil {
				return err
			}
			if err := b.PutBytes(ctx, metaPath(id, fileAuthor), line(s.author)); err != nil {
				return err
			}
			return b.PutBytes(ctx, metaPath(id, fileCreatedAt), line(now.Format(time.RFC3339)))
		})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ImportIssue writes a complete issue record under its existing id,
// preserving authorship and timestamps. Used by import; attachments
// carry only names in the record and are not restored.
func (s *Store) ImportIssue(ctx context.Context, iss *issue.Issue) error {
	if !issue.ValidID(iss.ID) {
		return fmt.Errorf("invalid issue id %q", iss.ID)
	}
	if _, err := issue.ParseState(string(iss.State)); err != nil {
		return err
	}

	return s.mutate(ctx, fmt.Sprintf("import issue %s: %s", shortID(iss.ID), iss.Title),
		func(snap *vcs.Snapshot, b *vcs.TreeBuilder) error {
			if err := s.requireIssue(ctx, snap, iss.ID); err == nil {
				return &NamingConflictError{IssueID: iss.ID, Name: metaDir}
			} else if !IsNotFound(err) {
				return err
			}

			id := iss.ID
			if err := b.PutBytes(ctx, metaPath(id, fileTitle), line(iss.Title)); err != nil {
				return err
			}
			if iss.Description != "" {
				if err := b.PutBytes(ctx, metaPath(id, fileDescription), line(iss.Description)); err != nil {
					return err
				}
			}
			if err := b.PutBytes(ctx, metaPath(id, fileState), line(string(iss.State))); err != nil {
				return err
			}
			if iss.Assignee != "" {
				if err := b.PutBytes(ctx, metaPath(id, fileAssignee), line(iss.Assignee)); err != nil {
					return err
				}
			}
			if iss.Author != "" {
				if err := b.PutBytes(ctx, metaPath(id, fileAuthor), line(iss.Author)); err != nil {
					return err
				}
			}
			if err := b.PutBytes(ctx, metaPath(id, fileCreatedAt), line(iss.CreatedAt.UTC().Format(time.RFC3339))); err != nil {
				return err
			}
			if iss.DoneAt != nil {
				if err := b.PutBytes(ctx, metaPath(id, fileDoneAt), line(iss.DoneAt.UTC().Format(time.RFC3339))); err != nil {
					return err
				}
			}
			for _, tag := range iss.Tags {
				if err := b.PutBytes(ctx, tagPath(id, tag), nil); err != nil {
					return err
				}
			}
			for _, dep := range iss.Deps {
				if !issue.ValidID(dep) {
					return fmt.Errorf("issue %s: invalid dependency id %q", shortID(id), dep)
				}
				if err := b.PutBytes(ctx, depPath(id, dep), nil); err != nil {
					return err
				}
			}
			for _, c := range iss.Comments {
				if !issue.ValidID(c.ID) {
					return fmt.Errorf("issue %s: invalid comment id %q", shortID(id), c.ID)
				}
				if err := b.PutBytes(ctx, commentPath(id, c.ID, fileAuthor), line(c.Author)); err != nil {
					return err
				}
				if err := b.PutBytes(ctx, commentPath(id, c.ID, fileCreatedAt), line(c.CreatedAt.UTC().Format(time.RFC3339))); err != nil {
					return err
				}
				if err := b.PutBytes(ctx, commentPath(id, c.ID, fileBody), line(c.Body)); err != nil {
					return err
				}
			}
			return nil
		})
}

// ReadIssue loads one issue by its full identifier.
func (s *Store) ReadIssue(ctx context.Context, id string) (*issue.Issue, error) {
	_, snap, err := s.head(ctx)
	if err != nil {
		return nil, err
	}
	return s.readIssue(ctx, snap, id)
}

func (s *Store) readIssue(ctx context.Context, snap *vcs.Snapshot, id string) (*issue.Issue, error) {
	entries, err := snap.List(ctx, path2(id, metaDir))
	if err != nil {
		if errors.Is(err, vcs.ErrObjectNotFound) {
			return nil, &NotFoundError{Kind: "issue", ID: id}
		}
		return nil, err
	}

	iss := &issue.Issue{ID: id, State: issue.StateNew}
	for _, entry := range entries {
		switch {
		case entry.Kind == vcs.KindBlob:
			data, err := snap.ReadFile(ctx, metaPath(id, entry.Name))
			if err != nil {
				return nil, err
			}
			value := strings.TrimSpace(string(data))
			switch entry.Name {
			case fileTitle:
				iss.Title = value
			case fileDescription:
				iss.Description = value
			case fileState:
				state, err := issue.ParseState(value)
				if err != nil {
					return nil, fmt.Errorf("issue %s: %w", shortID(id), err)
				}
				iss.State = state
			case fileAssignee:
				iss.Assignee = value
			case fileAuthor:
				iss.Author = value
			case fileCreatedAt:
				t, err := time.Parse(time.RFC3339, value)
				if err != nil {
					return nil, fmt.Errorf("issue %s: bad created_at: %w", shortID(id), err)
				}
				iss.CreatedAt = t
			case fileDoneAt:
				t, err := time.Parse(time.RFC3339, value)
				if err != nil {
					return nil, fmt.Errorf("issue %s: bad done_at: %w", shortID(id), err)
				}
				iss.DoneAt = &t
			}

		case entry.Name == tagsDir:
			tags, err := snap.List(ctx, path2(id, metaDir+"/"+tagsDir))
			if err != nil {
				return nil, err
			}
			for _, tag := range tags {
				iss.Tags = append(iss.Tags, unescapeTag(tag.Name))
			}

		case entry.Name == depsDir:
			deps, err := snap.List(ctx, path2(id, metaDir+"/"+depsDir))
			if err != nil {
				return nil, err
			}
			for _, dep := range deps {
				iss.Deps = append(iss.Deps, dep.Name)
			}
		}
	}

	if err := s.readComments(ctx, snap, iss); err != nil {
		return nil, err
	}
	if err := s.readAttachmentNames(ctx, snap, iss); err != nil {
		return nil, err
	}

	sort.Strings(iss.Tags)
	sort.Strings(iss.Deps)
	return iss, nil
}

func (s *Store) readComments(ctx context.Context, snap *vcs.Snapshot, iss *issue.Issue) error {
	dir := path2(iss.ID, commentsDir)
	if ok, err := snap.Exists(ctx, dir); err != nil || !ok {
		return err
	}

	entries, err := snap.List(ctx, dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Kind != vcs.KindTree {
			continue
		}
		comment, err := s.readComment(ctx, snap, iss.ID, entry.Name)
		if err != nil {
			s.logger.Printf("[store] skipping malformed comment %s on issue %s: %v",
				shortID(entry.Name), shortID(iss.ID), err)
			continue
		}
		iss.Comments = append(iss.Comments, *comment)
	}

	// Wall-clock ordering across authors is best effort; identical
	// stamps fall back to id order for determinism.
	sort.Slice(iss.Comments, func(i, j int) bool {
		a, b := iss.Comments[i], iss.Comments[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return nil
}

func (s *Store) readComment(ctx context.Context, snap *vcs.Snapshot, issueID, commentID string) (*issue.Comment, error) {
	comment := &issue.Comment{ID: commentID}

	body, err := snap.ReadFile(ctx, commentPath(issueID, commentID, fileBody))
	if err != nil {
		return nil, err
	}
	comment.Body = strings.TrimRight(string(body), "\n")

	author, err := snap.ReadFile(ctx, commentPath(issueID, commentID, fileAuthor))
	if err != nil {
		return nil, err
	}
	comment.Author = strings.TrimSpace(string(author))

	stamp, err := snap.ReadFile(ctx, commentPath(issueID, commentID, fileCreatedAt))
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(string(stamp)))
	if err != nil {
		return nil, fmt.Errorf("bad created_at: %w", err)
	}
	comment.CreatedAt = t

	return comment, nil
}

func (s *Store) readAttachmentNames(ctx context.Context, snap *vcs.Snapshot, iss *issue.Issue) error {
	dir := path2(iss.ID, attachmentsDir)
	if ok, err := snap.Exists(ctx, dir); err != nil || !ok {
		return err
	}
	entries, err := snap.List(ctx, dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Kind == vcs.KindBlob {
			iss.Attachments = append(iss.Attachments, entry.Name)
		}
	}
	return nil
}

// ListIssues returns every issue on the branch, sorted by creation time
// then id. Directories that do not parse as issues are skipped with a
// warning rather than failing the whole listing.
func (s *Store) ListIssues(ctx context.Context) ([]*issue.Issue, error) {
	_, snap, err := s.head(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := snap.List(ctx, "")
	if err != nil {
		return nil, err
	}

	var issues []*issue.Issue
	for _, entry := range entries {
		if entry.Kind != vcs.KindTree {
			continue
		}
		if !issue.ValidID(entry.Name) {
			s.logger.Printf("[store] skipping unrecognized directory %q on %s", entry.Name, s.branch)
			continue
		}
		iss, err := s.readIssue(ctx, snap, entry.Name)
		if err != nil {
			s.logger.Printf("[store] skipping malformed issue %s: %v", shortID(entry.Name), err)
			continue
		}
		issues = append(issues, iss)
	}

	sort.Slice(issues, func(i, j int) bool {
		if !issues[i].CreatedAt.Equal(issues[j].CreatedAt) {
			return issues[i].CreatedAt.Before(issues[j].CreatedAt)
		}
		return issues[i].ID < issues[j].ID
	})
	return issues, nil
}

// ResolveID expands an identifier prefix to the full issue id.
func (s *Store) ResolveID(ctx context.Context, prefix string) (string, error) {
	if issue.ValidID(prefix) {
		return prefix, nil
	}

	_, snap, err := s.head(ctx)
	if err != nil {
		return "", err
	}
	entries, err := snap.List(ctx, "")
	if err != nil {
		return "", err
	}

	var matches []string
	for _, entry := range entries {
		if entry.Kind != vcs.KindTree || !issue.ValidID(entry.Name) {
			continue
		}
		if issue.MatchesID(entry.Name, prefix) {
			matches = append(matches, entry.Name)
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{Kind: "issue", ID: prefix}
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", &AmbiguousIDError{Prefix: prefix, Matches: matches}
	}
}

// AddComment appends a comment to an issue and returns it.
func (s *Store) AddComment(ctx context.Context, issueID, body string) (*issue.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("comment body is empty")
	}

	now := time.Now().UTC()
	comment := &issue.Comment{
		ID:        issue.NewCommentID(s.author, body, now),
		Author:    s.author,
		CreatedAt: now,
		Body:      body,
	}

	err := s.mutate(ctx, fmt.Sprintf("comment on %s", shortID(issueID)),
		func(snap *vcs.Snapshot, b *vcs.TreeBuilder) error {
			if err := s.requireIssue(ctx, snap, issueID); err != nil {
				return err
			}
			if err := b.PutBytes(ctx, commentPath(issueID, comment.ID, fileAuthor), line(s.author)); err != nil {
				return err
			}
			if err := b.PutBytes(ctx, commentPath(issueID, comment.ID, fileCreatedAt), line(now.Format(time.RFC3339))); err != nil {
				return err
			}
			return b.PutBytes(ctx, commentPath(issueID, comment.ID, fileBody), line(body))
		})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// EditComment replaces the body of an existing comment.
func (s *Store) EditComment(ctx context.Context, issueID, commentID, body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return fmt.Errorf("comment body is empty")
	}

	return s.mutate(ctx, fmt.Sprintf("edit comment %s on %s", shortID(commentID), shortID(issueID)),
		func(snap *vcs.Snapshot, b *vcs.TreeBuilder) error {
			bodyPath := commentPath(issueID, commentID, fileBody)
			if ok, err := snap.Exists(ctx, bodyPath); err != nil {
				return err
			} else if !ok {
				return &NotFoundError{Kind: "comment", ID: commentID}
			}
			return b.PutBytes(ctx, bodyPath, line(body))
		})
}

// AddAttachment stores a named file on an issue. Names are unique per
// issue; re-adding an existing name fails with NamingConflictError.
func (s *Store) AddAttachment(ctx context.Context, issueID, name string, data []byte) error {
	if name == "" || strings.ContainsAny(name, "/\x00") || name == "." || name == ".." {
		return fmt.Errorf("invalid attachment name %q", name)
	}

	return s.mutate(ctx, fmt.Sprintf("attach %s to %s", name, shortID(issueID)),
		func(snap *vcs.Snapshot, b *vcs.TreeBuilder) error {
			if err := s.requireIssue(ctx, snap, issueID); err != nil {
				return err
			}
			target := attachmentPath(issueID, name)
			if ok, err := snap.Exists(ctx, target); err != nil {
				return err
			} else if ok {
				return &NamingConflictError{IssueID: issueID, Name: name}
			}
			return b.PutBytes(ctx, target, data)
		})
}

// Attachment returns the content of a named attachment.
func (s *Store) Attachment(ctx context.Context, issueID, name string) ([]byte, error) {
	_, snap, err := s.head(ctx)
	if err != nil {
		return nil, err
	}

	data, err := snap.ReadFile(ctx, attachmentPath(issueID, name))
	if err != nil {
		if errors.Is(err, vcs.ErrObjectNotFound) {
			return nil, &NotFoundError{Kind: "attachment", ID: name}
		}
		return nil, err
	}
	return data, nil
}

// requireIssue fails with NotFoundError when the issue does not exist in
// the snapshot.
func (s *Store) requireIssue(ctx context.Context, snap *vcs.Snapshot, id string) error {
	ok, err := snap.Exists(ctx, path2(id, metaDir))
	if err != nil {
		return err
	}
	if !ok {
		return &NotFoundError{Kind: "issue", ID: id}
	}
	return nil
}

// line terminates a field value with a newline, matching how the files
// look when inspected with git directly.
func line(value string) []byte {
	return []byte(value + "\n")
}

func path2(a, b string) string {
	return a + "/" + b
}
