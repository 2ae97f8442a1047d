// Command ent is a distributed issue tracker whose database lives on a
// dedicated branch of the repository it tracks.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/highlab/entomologist/internal/config"
	"github.com/highlab/entomologist/internal/logging"
	"github.com/highlab/entomologist/internal/store"
	"github.com/highlab/entomologist/internal/vcs/git"
)

var (
	branchFlag string
	remoteFlag string
	authorFlag string
	quietFlag  bool

	cfg    *config.Config
	logger *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ent",
	Short: "Track issues on a branch of your repository",
	Long: `ent keeps an issue database on a dedicated orphan branch of the
repository you run it in. Issues travel with the repository: work
offline, then reconcile with your team through the normal git remote
using ent sync.

The data branch never touches your working tree. ent writes git
objects directly, so there is nothing to check out and nothing to
stash.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if branchFlag != "" {
			cfg.Branch = branchFlag
		}
		if remoteFlag != "" {
			cfg.Remote = remoteFlag
		}
		if authorFlag != "" {
			cfg.Author = authorFlag
		}
		logger = logging.New(logging.Options{
			Component: "ent",
			Quiet:     quietFlag,
			File:      cfg.LogFile,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&branchFlag, "branch", "", "data branch name (default entomologist-data)")
	rootCmd.PersistentFlags().StringVar(&remoteFlag, "remote", "", "remote used by sync (default origin)")
	rootCmd.PersistentFlags().StringVar(&authorFlag, "author", "", "author identity, overrides git config")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "suppress log output")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openStore wires a store over the repository containing the current
// directory. Identity comes from --author, ENT_AUTHOR, or git config,
// in that order.
func openStore(ctx context.Context) (*store.Store, *git.Git, error) {
	repo, err := git.New(".")
	if err != nil {
		return nil, nil, err
	}

	author := cfg.Author
	if author == "" {
		author, err = repo.Author(ctx)
		if err != nil {
			return nil, nil, err
		}
	}

	s := store.New(repo, store.Options{
		Branch: cfg.Branch,
		Author: author,
		Logger: logger,
	})
	return s, repo, nil
}

// cachePath returns where the SQLite read cache lives for this
// repository. It sits under the git metadata directory so that clones
// do not carry it around.
func cachePath(repo *git.Git) string {
	if cfg.CacheDir != "" {
		return filepath.Join(cfg.CacheDir, "cache.db")
	}
	return filepath.Join(repo.GitDir(), "entomologist", "cache.db")
}
