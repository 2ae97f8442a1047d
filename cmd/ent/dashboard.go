package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/highlab/entomologist/internal/dashboard"
	"github.com/highlab/entomologist/internal/index"
)

var dashboardAddr string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Serve a live read-only view of the database",
	Long: `Serve the issue database over HTTP and WebSocket. The server answers
queries from a local SQLite cache, rebuilds the cache whenever the
data branch moves, and pushes a refresh to connected clients.

Endpoints:
  /api/issues    issue summaries, ?state= to restrict
  /api/search    ?q= full-text search over titles and descriptions
  /api/stats     per-state counts
  /ws            refresh and stats pushes
  /health        liveness probe

The dashboard never writes to the branch.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, repo, err := openStore(ctx)
		if err != nil {
			return err
		}

		db, err := index.Open(cachePath(repo))
		if err != nil {
			return err
		}
		defer db.Close()

		rebuild := func(ctx context.Context) error {
			issues, err := s.ListIssues(ctx)
			if err != nil {
				return err
			}
			return db.Rebuild(ctx, issues)
		}
		if err := rebuild(ctx); err != nil {
			return err
		}

		addr := cfg.DashboardAddr
		if dashboardAddr != "" {
			addr = dashboardAddr
		}
		server := dashboard.NewServer(addr, db, logger)
		if err := server.Start(); err != nil {
			return err
		}

		watcher, err := dashboard.NewRefWatcher(repo.GitDir(), s.Branch(),
			func(ctx context.Context) {
				if err := rebuild(ctx); err != nil {
					logger.Printf("cache rebuild failed: %v", err)
					return
				}
				server.NotifyRefresh(ctx)
			}, logger)
		if err != nil {
			_ = server.Stop()
			return err
		}
		if err := watcher.Start(); err != nil {
			_ = server.Stop()
			return err
		}

		fmt.Printf("dashboard on http://%s (Ctrl+C to stop)\n", server.Addr())
		<-ctx.Done()

		fmt.Println("\nshutting down")
		if err := watcher.Stop(); err != nil {
			logger.Printf("watcher shutdown: %v", err)
		}
		return server.Stop()
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(dashboardCmd)
}
