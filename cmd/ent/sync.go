package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/highlab/entomologist/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the issue database with the remote",
	Long: `Fetch the remote's data branch, merge it with local work, and push
the result. A cycle that finds nothing to reconcile is a no-op, so
syncing repeatedly is always safe.

When the same field of the same issue changed on both sides the sync
stops and lists the conflicts. Re-apply one side's intent (for example
set the state again) and sync once more.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, repo, err := openStore(ctx)
		if err != nil {
			return err
		}

		engine := sync.New(repo, s.Branch(), cfg.Remote, logger)
		result, err := engine.Sync(ctx)

		var conflictErr *sync.ConflictError
		if errors.As(err, &conflictErr) {
			fmt.Printf("sync stopped: %d conflicting changes\n", len(conflictErr.Conflicts))
			for _, c := range conflictErr.Conflicts {
				fmt.Printf("  %s\n", c.String())
			}
			fmt.Println("\nRe-apply the change you want to keep, then run ent sync again.")
			return fmt.Errorf("merge conflicts")
		}
		if err != nil {
			return err
		}

		switch {
		case result.UpToDate():
			fmt.Println("already up to date")
		case result.FastForwarded:
			fmt.Printf("updated to remote %s\n", result.Remote.Short())
		case !result.Merged.IsZero():
			fmt.Printf("merged %d local and %d remote changes, pushed\n",
				len(result.Divergence.LocalOnly), len(result.Divergence.RemoteOnly))
		case result.Pushed && len(result.Divergence.LocalOnly) > 0:
			fmt.Printf("pushed %d local changes\n", len(result.Divergence.LocalOnly))
		case result.Pushed:
			fmt.Printf("published %s to %s\n", s.Branch(), cfg.Remote)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
