// Package issue defines the issue data model shared by the store, the
// filter evaluator, and the CLI.
package issue

import (
	"fmt"
	"strings"
	"time"
)

// State is the lifecycle state of an issue.
type State string

const (
	StateNew        State = "new"
	StateBacklog    State = "backlog"
	StateInProgress State = "inprogress"
	StateDone       State = "done"
	StateWontDo     State = "wontdo"
)

// States lists every valid state in lifecycle order.
var States = []State{StateNew, StateBacklog, StateInProgress, StateDone, StateWontDo}

// ParseState parses a state name case-insensitively.
func ParseState(s string) (State, error) {
	normalized := State(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range States {
		if normalized == valid {
			return valid, nil
		}
	}
	return "", fmt.Errorf("invalid state %q (valid: %s)", s, stateNames())
}

func stateNames() string {
	names := make([]string, len(States))
	for i, s := range States {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// String returns the lowercase serialized form.
func (s State) String() string {
	return string(s)
}

// Closed reports whether the state is terminal.
func (s State) Closed() bool {
	return s == StateDone || s == StateWontDo
}

// Issue is one tracked issue. The zero Assignee means unassigned; a nil
// DoneAt means the issue has never reached the done state.
type Issue struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	State       State      `json:"state" yaml:"state"`
	Assignee    string     `json:"assignee,omitempty" yaml:"assignee,omitempty"`
	Author      string     `json:"author" yaml:"author"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	DoneAt      *time.Time `json:"done_at,omitempty" yaml:"done_at,omitempty"`
	Tags        []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
	Deps        []string   `json:"deps,omitempty" yaml:"deps,omitempty"`
	Comments    []Comment  `json:"comments,omitempty" yaml:"comments,omitempty"`
	Attachments []string   `json:"attachments,omitempty" yaml:"attachments,omitempty"`
}

// Comment is one comment on an issue.
type Comment struct {
	ID        string    `json:"id" yaml:"id"`
	Author    string    `json:"author" yaml:"author"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Body      string    `json:"body" yaml:"body"`
}

// HasTag reports whether the issue carries the given tag.
func (i *Issue) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Summary returns the title, falling back to the first line of the
// description for issues created before titles were split out.
func (i *Issue) Summary() string {
	if i.Title != "" {
		return i.Title
	}
	line, _, _ := strings.Cut(i.Description, "\n")
	return line
}
