package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "Manage issue dependencies",
}

var depAddCmd = &cobra.Command{
	Use:   "add <id> <depends-on>",
	Short: "Record that one issue depends on another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, _, err := openStore(ctx)
		if err != nil {
			return err
		}

		id, err := s.ResolveID(ctx, args[0])
		if err != nil {
			return err
		}
		depID, err := s.ResolveID(ctx, args[1])
		if err != nil {
			return err
		}
		if err := s.AddDep(ctx, id, depID); err != nil {
			return err
		}
		fmt.Printf("%s depends on %s\n", renderMuted(shortID(id)), renderMuted(shortID(depID)))
		return nil
	},
}

var depRmCmd = &cobra.Command{
	Use:   "rm <id> <depends-on>",
	Short: "Drop a dependency",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, _, err := openStore(ctx)
		if err != nil {
			return err
		}

		id, err := s.ResolveID(ctx, args[0])
		if err != nil {
			return err
		}
		depID, err := s.ResolveID(ctx, args[1])
		if err != nil {
			return err
		}
		if err := s.RemoveDep(ctx, id, depID); err != nil {
			return err
		}
		fmt.Printf("%s no longer depends on %s\n", renderMuted(shortID(id)), renderMuted(shortID(depID)))
		return nil
	},
}

func init() {
	depCmd.AddCommand(depAddCmd)
	depCmd.AddCommand(depRmCmd)
	rootCmd.AddCommand(depCmd)
}
