// Package filter implements the issue filter expression language.
//
// An expression is colon-separated clauses, each "field=value[,value...]".
// Clauses are ANDed; values within a clause are ORed. A trailing comma
// adds "or the field is unset" to the clause, so "assignee=alice," keeps
// both alice's issues and unassigned ones. Tag values starting with "-"
// exclude that tag. The done-time field takes an RFC 3339 range written
// "start..end", either side optional.
//
//	state=new,backlog
//	assignee=alice,:tag=ui,-wontfix
//	state=done:done-time=2026-01-01T00:00:00Z..
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/highlab/entomologist/internal/issue"
)

// ParseError describes a malformed filter expression. Pos is the byte
// offset of the offending clause within the expression.
type ParseError struct {
	Expr   string
	Clause string
	Pos    int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Clause == "" {
		return fmt.Sprintf("invalid filter %q: %s", e.Expr, e.Reason)
	}
	return fmt.Sprintf("invalid filter clause %q at offset %d: %s", e.Clause, e.Pos, e.Reason)
}

// Filter is a parsed expression.
type Filter struct {
	expr    string
	clauses []clause
}

type clause interface {
	match(iss *issue.Issue) bool
}

// Parse parses a filter expression. The empty expression is an error;
// callers that want "match everything" pass no filter at all.
func Parse(expr string) (*Filter, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, &ParseError{Expr: expr, Reason: "empty expression"}
	}

	f := &Filter{expr: expr}
	pos := 0
	for _, raw := range strings.Split(expr, ":") {
		clausePos := pos
		pos += len(raw) + 1

		text := strings.TrimSpace(raw)
		if text == "" {
			return nil, &ParseError{Expr: expr, Clause: raw, Pos: clausePos, Reason: "empty clause"}
		}

		field, value, found := strings.Cut(text, "=")
		if !found {
			return nil, &ParseError{Expr: expr, Clause: text, Pos: clausePos,
				Reason: "expected field=value"}
		}

		c, reason := parseClause(field, value)
		if reason != "" {
			return nil, &ParseError{Expr: expr, Clause: text, Pos: clausePos, Reason: reason}
		}
		f.clauses = append(f.clauses, c)
	}
	return f, nil
}

func parseClause(field, value string) (clause, string) {
	switch field {
	case "state":
		return parseStateClause(value)
	case "assignee":
		return parseAssigneeClause(value)
	case "tag":
		return parseTagClause(value)
	case "done-time":
		return parseDoneTimeClause(value)
	default:
		return nil, fmt.Sprintf("unknown field %q", field)
	}
}

// String returns the original expression.
func (f *Filter) String() string {
	return f.expr
}

// Match reports whether the issue satisfies every clause.
func (f *Filter) Match(iss *issue.Issue) bool {
	for _, c := range f.clauses {
		if !c.match(iss) {
			return false
		}
	}
	return true
}

// Apply returns the issues that match, preserving order.
func (f *Filter) Apply(issues []*issue.Issue) []*issue.Issue {
	var out []*issue.Issue
	for _, iss := range issues {
		if f.Match(iss) {
			out = append(out, iss)
		}
	}
	return out
}

// stateClause matches issues whose state is one of the listed values.
type stateClause struct {
	states map[issue.State]bool
}

func parseStateClause(value string) (clause, string) {
	c := &stateClause{states: make(map[issue.State]bool)}
	for _, v := range strings.Split(value, ",") {
		if v == "" {
			// Issues always carry a state, there is no "unset".
			return nil, "empty state value"
		}
		state, err := issue.ParseState(v)
		if err != nil {
			return nil, err.Error()
		}
		c.states[state] = true
	}
	return c, ""
}

func (c *stateClause) match(iss *issue.Issue) bool {
	return c.states[iss.State]
}

// assigneeClause matches issues assigned to one of the listed users.
// The empty value (from a trailing comma) matches unassigned issues.
type assigneeClause struct {
	assignees map[string]bool
}

func parseAssigneeClause(value string) (clause, string) {
	c := &assigneeClause{assignees: make(map[string]bool)}
	for _, v := range strings.Split(value, ",") {
		c.assignees[v] = true
	}
	return c, ""
}

func (c *assigneeClause) match(iss *issue.Issue) bool {
	return c.assignees[iss.Assignee]
}

// tagClause matches issues carrying any of the included tags and none of
// the excluded ones. includeUnset (trailing comma) also matches issues
// with no tags at all.
type tagClause struct {
	include      map[string]bool
	exclude      map[string]bool
	includeUnset bool
}

func parseTagClause(value string) (clause, string) {
	c := &tagClause{include: make(map[string]bool), exclude: make(map[string]bool)}
	values := strings.Split(value, ",")
	for i, v := range values {
		switch {
		case v == "" && i == len(values)-1:
			c.includeUnset = true
		case v == "":
			return nil, "empty tag value"
		case v == "-":
			return nil, "empty excluded tag"
		case strings.HasPrefix(v, "-"):
			c.exclude[v[1:]] = true
		default:
			c.include[v] = true
		}
	}
	return c, ""
}

func (c *tagClause) match(iss *issue.Issue) bool {
	for tag := range c.exclude {
		if iss.HasTag(tag) {
			return false
		}
	}
	if len(c.include) == 0 && !c.includeUnset {
		return true // exclusion-only clause
	}
	for tag := range c.include {
		if iss.HasTag(tag) {
			return true
		}
	}
	return c.includeUnset && len(iss.Tags) == 0
}

// doneTimeClause matches issues completed within a time range.
// Issues that never reached done do not match.
type doneTimeClause struct {
	start, end *time.Time
}

func parseDoneTimeClause(value string) (clause, string) {
	start, end, found := strings.Cut(value, "..")
	if !found {
		return nil, "expected start..end"
	}
	if strings.Contains(end, "..") {
		return nil, "more than one .. in range"
	}

	c := &doneTimeClause{}
	if start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return nil, fmt.Sprintf("bad start time: %v", err)
		}
		c.start = &t
	}
	if end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return nil, fmt.Sprintf("bad end time: %v", err)
		}
		c.end = &t
	}
	return c, ""
}

func (c *doneTimeClause) match(iss *issue.Issue) bool {
	if iss.DoneAt == nil {
		return false
	}
	if c.start != nil && iss.DoneAt.Before(*c.start) {
		return false
	}
	if c.end != nil && iss.DoneAt.After(*c.end) {
		return false
	}
	return true
}
