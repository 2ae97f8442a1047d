package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/highlab/entomologist/internal/vcs"
)

// BranchConfig holds per-database options stored in config.toml at the
// branch root. The file is optional; a missing file means defaults.
type BranchConfig struct {
	// DefaultFilter is applied by listings when the user gives none.
	DefaultFilter string `toml:"default_filter"`

	// ReadOnly rejects every local mutation. Useful for mirrored
	// databases that only receive changes through synchronization.
	ReadOnly bool `toml:"read_only"`
}

// Config returns the database options at the current branch tip.
func (s *Store) Config(ctx context.Context) (*BranchConfig, error) {
	_, snap, err := s.head(ctx)
	if err != nil {
		return nil, err
	}
	return s.readConfig(ctx, snap)
}

func (s *Store) readConfig(ctx context.Context, snap *vcs.Snapshot) (*BranchConfig, error) {
	cfg := &BranchConfig{}

	data, err := snap.ReadFile(ctx, configFile)
	if err != nil {
		if errors.Is(err, vcs.ErrObjectNotFound) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid %s on %s: %w", configFile, s.branch, err)
	}
	return cfg, nil
}

// WriteConfig replaces the database options. This is the one mutation
// that ignores an existing read-only flag, otherwise the flag could
// never be cleared.
func (s *Store) WriteConfig(ctx context.Context, cfg *BranchConfig) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tip, snap, err := s.head(ctx)
	if err != nil {
		return err
	}

	builder := vcs.NewTreeBuilder(s.repo, snap.Root())
	if err := builder.PutBytes(ctx, configFile, buf.Bytes()); err != nil {
		return err
	}
	tree, err := builder.Write(ctx)
	if err != nil {
		return err
	}
	if tree == snap.Root() {
		return nil
	}

	commit, err := s.repo.WriteCommit(ctx, tree, []vcs.OID{tip}, "update database options")
	if err != nil {
		return err
	}
	return s.repo.UpdateRef(ctx, s.branch, tip, commit)
}
