package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/highlab/entomologist/internal/issue"
	"github.com/highlab/entomologist/internal/vcs"
)

// SetState transitions an issue to the given state. Entering done stamps
// done_at; leaving done clears it. Any state can move to any other state.
func (s *Store) SetState(ctx context.Context, issueID string, state issue.State) error {
	return s.mutate(ctx, fmt.Sprintf("set state of %s to %s", shortID(issueID), state),
		func(snap *vcs.Snapshot, b *vcs.TreeBuilder) error {
			if err := s.requireIssue(ctx, snap, issueID); err != nil {
				return err
			}
			if err := b.PutBytes(ctx, metaPath(issueID, fileState), line(string(state))); err != nil {
				return err
			}
			if state == issue.StateDone {
				stamp := time.Now().UTC().Format(time.RFC3339)
				return b.PutBytes(ctx, metaPath(issueID, fileDoneAt), line(stamp))
			}
			b.Delete(metaPath(issueID, fileDoneAt))
			return nil
		})
}

// Assign sets the issue's assignee. An empty assignee unassigns, which
// removes the field rather than writing an empty file.
func (s *Store) Assign(ctx context.Context, issueID, assignee string) error {
	assignee = strings.TrimSpace(assignee)

	message := fmt.Sprintf("assign %s to %s", shortID(issueID), assignee)
	if assignee == "" {
		message = fmt.Sprintf("unassign %s", shortID(issueID))
	}

	return s.mutate(ctx, message,
		func(snap *vcs.Snapshot, b *vcs.TreeBuilder) error {
			if err := s.requireIssue(ctx, snap, issueID); err != nil {
				return err
			}
			if assignee == "" {
				b.Delete(metaPath(issueID, fileAssignee))
				return nil
			}
			return b.PutBytes(ctx, metaPath(issueID, fileAssignee), line(assignee))
		})
}

// AddTag attaches a tag to an issue. Adding a tag the issue already
// carries is a no-op.
func (s *Store) AddTag(ctx context.Context, issueID, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return fmt.Errorf("tag is empty")
	}
	if strings.Contains(tag, ",") {
		return fmt.Errorf("tag %q must not contain a comma", tag)
	}

	return s.mutate(ctx, fmt.Sprintf("tag %s with %s", shortID(issueID), tag),
		func(snap *vcs.Snapshot, b *vcs.TreeBuilder) error {
			if err := s.requireIssue(ctx, snap, issueID); err != nil {
				return err
			}
			return b.PutBytes(ctx, tagPath(issueID, tag), nil)
		})
}

// RemoveTag detaches a tag from an issue. Removing an absent tag is a
// silent no-op.
func (s *Store) RemoveTag(ctx context.Context, issueID, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return fmt.Errorf("tag is empty")
	}

	return s.mutate(ctx, fmt.Sprintf("untag %s from %s", tag, shortID(issueID)),
		func(snap *vcs.Snapshot, b *vcs.TreeBuilder) error {
			if err := s.requireIssue(ctx, snap, issueID); err != nil {
				return err
			}
			b.Delete(tagPath(issueID, tag))
			return nil
		})
}

// SetTitle replaces the issue's title.
func (s *Store) SetTitle(ctx context.Context, issueID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title is empty")
	}

	return s.mutate(ctx, fmt.Sprintf("retitle %s: %s", shortID(issueID), title),
		func(snap *vcs.Snapshot, b *vcs.TreeBuilder) error {
			if err := s.requireIssue(ctx, snap, issueID); err != nil {
				return err
			}
			return b.PutBytes(ctx, metaPath(issueID, fileTitle), line(title))
		})
}

// SetDescription replaces the issue's description. An empty description
// removes the field.
func (s *Store) SetDescription(ctx context.Context, issueID, description string) error {
	description = strings.TrimSpace(description)

	return s.mutate(ctx, fmt.Sprintf("edit description of %s", shortID(issueID)),
		func(snap *vcs.Snapshot, b *vcs.TreeBuilder) error {
			if err := s.requireIssue(ctx, snap, issueID); err != nil {
				return err
			}
			if description == "" {
				b.Delete(metaPath(issueID, fileDescription))
				return nil
			}
			return b.PutBytes(ctx, metaPath(issueID, fileDescription), line(description))
		})
}

// AddDep records that issueID depends on depID. Both issues must exist.
func (s *Store) AddDep(ctx context.Context, issueID, depID string) error {
	if issueID == depID {
		return fmt.Errorf("issue cannot depend on itself")
	}

	return s.mutate(ctx, fmt.Sprintf("%s depends on %s", shortID(issueID), shortID(depID)),
		func(snap *vcs.Snapshot, b *vcs.TreeBuilder) error {
			if err := s.requireIssue(ctx, snap, issueID); err != nil {
				return err
			}
			if err := s.requireIssue(ctx, snap, depID); err != nil {
				return err
			}
			return b.PutBytes(ctx, depPath(issueID, depID), nil)
		})
}

// RemoveDep drops a dependency. Removing an absent one is a no-op.
func (s *Store) RemoveDep(ctx context.Context, issueID, depID string) error {
	return s.mutate(ctx, fmt.Sprintf("%s no longer depends on %s", shortID(issueID), shortID(depID)),
		func(snap *vcs.Snapshot, b *vcs.TreeBuilder) error {
			if err := s.requireIssue(ctx, snap, issueID); err != nil {
				return err
			}
			b.Delete(depPath(issueID, depID))
			return nil
		})
}
