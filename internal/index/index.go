// Package index maintains a rebuildable SQLite cache of the issue
// database for fast read-only queries.
//
// The branch remains the single source of truth; the cache is derived
// state and can be deleted at any time. Rebuild replaces the whole cache
// from a branch snapshot in one transaction, which keeps readers (the
// dashboard, stats) consistent without any incremental bookkeeping.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/highlab/entomologist/internal/issue"
)

// DB wraps the SQLite cache connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) the cache at path and ensures the schema.
// The caller must Close() when done.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping cache: %w", err)
	}

	// WAL keeps the dashboard's readers unblocked during rebuilds.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the cache connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	err := db.conn.Close()
	db.conn = nil
	return err
}

func (db *DB) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS issues (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		state TEXT NOT NULL,
		assignee TEXT,
		author TEXT,
		created_at TEXT NOT NULL,
		done_at TEXT,
		comment_count INTEGER NOT NULL DEFAULT 0,
		attachment_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS issue_tags (
		issue_id TEXT NOT NULL,
		tag TEXT NOT NULL,
		PRIMARY KEY (issue_id, tag),
		FOREIGN KEY (issue_id) REFERENCES issues(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS issue_deps (
		issue_id TEXT NOT NULL,
		depends_on TEXT NOT NULL,
		PRIMARY KEY (issue_id, depends_on),
		FOREIGN KEY (issue_id) REFERENCES issues(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_issues_state ON issues(state);
	CREATE INDEX IF NOT EXISTS idx_issues_assignee ON issues(assignee);
	CREATE INDEX IF NOT EXISTS idx_tags_tag ON issue_tags(tag);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Rebuild replaces the whole cache with the given issues.
func (db *DB) Rebuild(ctx context.Context, issues []*issue.Issue) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rebuild: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"issue_tags", "issue_deps", "issues"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	insertIssue, err := tx.PrepareContext(ctx, `
		INSERT INTO issues (id, title, description, state, assignee, author,
			created_at, done_at, comment_count, attachment_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insertIssue.Close()

	insertTag, err := tx.PrepareContext(ctx,
		"INSERT INTO issue_tags (issue_id, tag) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer insertTag.Close()

	insertDep, err := tx.PrepareContext(ctx,
		"INSERT INTO issue_deps (issue_id, depends_on) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer insertDep.Close()

	for _, iss := range issues {
		var doneAt any
		if iss.DoneAt != nil {
			doneAt = iss.DoneAt.Format(time.RFC3339)
		}
		_, err := insertIssue.ExecContext(ctx,
			iss.ID, iss.Title, iss.Description, string(iss.State),
			iss.Assignee, iss.Author, iss.CreatedAt.Format(time.RFC3339),
			doneAt, len(iss.Comments), len(iss.Attachments))
		if err != nil {
			return fmt.Errorf("failed to insert issue %s: %w", iss.ID, err)
		}

		for _, tag := range iss.Tags {
			if _, err := insertTag.ExecContext(ctx, iss.ID, tag); err != nil {
				return fmt.Errorf("failed to insert tag: %w", err)
			}
		}
		for _, dep := range iss.Deps {
			if _, err := insertDep.ExecContext(ctx, iss.ID, dep); err != nil {
				return fmt.Errorf("failed to insert dep: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rebuild: %w", err)
	}
	return nil
}

// Summary is one cached issue row, enough for listings and dashboards.
type Summary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	State       string `json:"state"`
	Assignee    string `json:"assignee,omitempty"`
	Tags        string `json:"tags,omitempty"` // comma-joined
	CommentCnt  int    `json:"comments"`
	CreatedAt   string `json:"created_at"`
	DoneAt      string `json:"done_at,omitempty"`
}

// Issues returns cached summaries, optionally restricted to one state,
// ordered by creation time.
func (db *DB) Issues(ctx context.Context, state string) ([]Summary, error) {
	query := `
		SELECT i.id, i.title, i.state, COALESCE(i.assignee, ''),
		       COALESCE(GROUP_CONCAT(t.tag, ','), ''),
		       i.comment_count, i.created_at, COALESCE(i.done_at, '')
		FROM issues i
		LEFT JOIN issue_tags t ON t.issue_id = i.id`
	var args []any
	if state != "" {
		query += " WHERE i.state = ?"
		args = append(args, state)
	}
	query += " GROUP BY i.id ORDER BY i.created_at, i.id"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Title, &s.State, &s.Assignee,
			&s.Tags, &s.CommentCnt, &s.CreatedAt, &s.DoneAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountsByState returns how many issues sit in each state.
func (db *DB) CountsByState(ctx context.Context) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT state, COUNT(*) FROM issues GROUP BY state")
	if err != nil {
		return nil, fmt.Errorf("failed to count issues: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

// Search returns summaries whose title or description contains the term.
func (db *DB) Search(ctx context.Context, term string) ([]Summary, error) {
	pattern := "%" + strings.ReplaceAll(term, "%", "\\%") + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT i.id, i.title, i.state, COALESCE(i.assignee, ''),
		       COALESCE(GROUP_CONCAT(t.tag, ','), ''),
		       i.comment_count, i.created_at, COALESCE(i.done_at, '')
		FROM issues i
		LEFT JOIN issue_tags t ON t.issue_id = i.id
		WHERE i.title LIKE ? ESCAPE '\' OR i.description LIKE ? ESCAPE '\'
		GROUP BY i.id ORDER BY i.created_at, i.id`, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search issues: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Title, &s.State, &s.Assignee,
			&s.Tags, &s.CommentCnt, &s.CreatedAt, &s.DoneAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
