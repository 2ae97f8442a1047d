package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/highlab/entomologist/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the database as JSONL",
	Long: `Export every issue as JSONL, one issue per line with comments, tags
and dependencies inlined. Writes to stdout when no file is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, _, err := openStore(ctx)
		if err != nil {
			return err
		}

		issues, err := s.ListIssues(ctx)
		if err != nil {
			return err
		}

		if len(args) == 0 {
			_, err := export.Write(os.Stdout, issues)
			return err
		}

		result, err := export.WriteFile(args[0], issues)
		if err != nil {
			return err
		}
		fmt.Printf("exported %d issues to %s\n", result.IssuesWritten, args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import issues from a JSONL export",
	Long: `Import issues from a JSONL export, keeping their ids and timestamps.
Issues already in the database are skipped, never overwritten.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, _, err := openStore(ctx)
		if err != nil {
			return err
		}

		issues, err := export.ReadFile(args[0])
		if err != nil {
			return err
		}
		result, err := export.Import(ctx, s, issues)
		if err != nil {
			return err
		}

		fmt.Printf("imported %d issues", result.IssuesRead)
		if len(result.Skipped) > 0 {
			fmt.Printf(", skipped %d already present", len(result.Skipped))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
