package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotInitialized is returned when the data branch does not exist.
	ErrNotInitialized = errors.New("issue database not initialized (run init)")

	// ErrAlreadyInitialized is returned by Init when the branch exists.
	ErrAlreadyInitialized = errors.New("issue database already initialized")

	// ErrReadOnly is returned for mutations against a database whose
	// branch config marks it read-only.
	ErrReadOnly = errors.New("issue database is read-only")

	// ErrConcurrentUpdate is returned when a mutation keeps losing the
	// ref compare-and-swap to other local writers.
	ErrConcurrentUpdate = errors.New("concurrent update, retries exhausted")
)

// NotFoundError reports a missing issue, comment, or attachment.
type NotFoundError struct {
	Kind string // "issue", "comment", "attachment"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// IsNotFound reports whether err is a NotFoundError of any kind.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// NamingConflictError reports an attachment name that already exists on
// the issue. Attachments are never silently overwritten.
type NamingConflictError struct {
	IssueID string
	Name    string
}

func (e *NamingConflictError) Error() string {
	return fmt.Sprintf("attachment %q already exists on issue %s", e.Name, shortID(e.IssueID))
}

// AmbiguousIDError reports an identifier prefix matching several issues.
type AmbiguousIDError struct {
	Prefix  string
	Matches []string
}

func (e *AmbiguousIDError) Error() string {
	short := make([]string, len(e.Matches))
	for i, m := range e.Matches {
		short[i] = shortID(m)
	}
	return fmt.Sprintf("id %q is ambiguous, matches %s", e.Prefix, strings.Join(short, ", "))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
