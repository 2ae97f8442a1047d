// Package export moves issues between the data branch and flat files.
//
// The interchange format is JSONL, one issue object per line, with the
// full record (comments, tags, dependencies) inlined. It is the escape
// hatch for backups and for feeding the database into other tools.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/highlab/entomologist/internal/issue"
	"github.com/highlab/entomologist/internal/store"
)

// Result contains statistics about an export or import run.
type Result struct {
	IssuesWritten int
	IssuesRead    int
	Skipped       []string
}

// Write streams issues to w as JSONL.
func Write(w io.Writer, issues []*issue.Issue) (*Result, error) {
	result := &Result{}
	enc := json.NewEncoder(w)
	for _, is := range issues {
		if err := enc.Encode(is); err != nil {
			return result, fmt.Errorf("failed to encode issue %s: %w", is.ID, err)
		}
		result.IssuesWritten++
	}
	return result, nil
}

// WriteFile exports issues to path, atomically via a temp file.
func WriteFile(path string, issues []*issue.Issue) (*Result, error) {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}

	result, err := Write(f, issues)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return nil, err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to rename temp file: %w", err)
	}
	return result, nil
}

// Read parses JSONL from r into issues. Records that do not carry a
// valid ID are rejected; a truncated trailing line is an error.
func Read(r io.Reader) ([]*issue.Issue, error) {
	var issues []*issue.Issue
	dec := json.NewDecoder(r)
	line := 0
	for {
		var is issue.Issue
		if err := dec.Decode(&is); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("invalid JSON at record %d: %w", line+1, err)
		}
		line++
		if !issue.ValidID(is.ID) {
			return nil, fmt.Errorf("record %d: invalid issue id %q", line, is.ID)
		}
		issues = append(issues, &is)
	}
	return issues, nil
}

// ReadFile imports issues from a JSONL file.
func ReadFile(path string) ([]*issue.Issue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Import writes issues into the store, preserving their IDs and
// timestamps. Issues already present are skipped, not overwritten.
func Import(ctx context.Context, s *store.Store, issues []*issue.Issue) (*Result, error) {
	result := &Result{}
	for _, is := range issues {
		_, err := s.ReadIssue(ctx, is.ID)
		if err == nil {
			result.Skipped = append(result.Skipped, is.ID)
			continue
		}
		if !store.IsNotFound(err) {
			return result, err
		}
		if err := s.ImportIssue(ctx, is); err != nil {
			return result, fmt.Errorf("failed to import issue %s: %w", is.ID, err)
		}
		result.IssuesRead++
	}
	return result, nil
}
