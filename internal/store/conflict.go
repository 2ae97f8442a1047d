package store

import (
	"fmt"
	"strings"

	"github.com/highlab/entomologist/internal/issue"
)

// Conflict maps one conflicted branch path back to the entity it
// belongs to, so that merge conflicts can be reported in issue terms
// instead of raw paths.
type Conflict struct {
	Path    string
	IssueID string // empty for paths outside any issue
	Field   string // human description of what collided
}

// DescribeConflict interprets a conflicted path from a merge.
func DescribeConflict(path string) Conflict {
	c := Conflict{Path: path}

	parts := strings.Split(path, "/")
	if len(parts) == 0 || !issue.ValidID(parts[0]) {
		c.Field = path
		return c
	}
	c.IssueID = parts[0]

	switch {
	case len(parts) >= 3 && parts[1] == metaDir && parts[2] == tagsDir:
		c.Field = fmt.Sprintf("tag %q", unescapeTag(parts[len(parts)-1]))
	case len(parts) >= 3 && parts[1] == metaDir && parts[2] == depsDir:
		c.Field = fmt.Sprintf("dependency on %s", shortID(parts[len(parts)-1]))
	case len(parts) == 3 && parts[1] == metaDir:
		c.Field = parts[2]
	case len(parts) == 4 && parts[1] == commentsDir:
		c.Field = fmt.Sprintf("comment %s (%s)", shortID(parts[2]), parts[3])
	case len(parts) == 3 && parts[1] == attachmentsDir:
		c.Field = fmt.Sprintf("attachment %q", parts[2])
	default:
		c.Field = strings.Join(parts[1:], "/")
	}
	return c
}

func (c Conflict) String() string {
	if c.IssueID == "" {
		return c.Field
	}
	return fmt.Sprintf("issue %s: %s", shortID(c.IssueID), c.Field)
}
