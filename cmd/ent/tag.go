package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage issue tags",
}

var tagAddCmd = &cobra.Command{
	Use:   "add <id> <tag>...",
	Short: "Attach tags to an issue",
	Args:  cobra.MinimumNArgs(2),
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
		for _, tag := range args[1:] {
			if err := s.AddTag(ctx, id, tag); err != nil {
				return err
			}
		}
		fmt.Printf("%s tagged\n", renderMuted(shortID(id)))
		return nil
	},
}

var tagRmCmd = &cobra.Command{
	Use:   "rm <id> <tag>...",
	Short: "Detach tags from an issue",
	Args:  cobra.MinimumNArgs(2),
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
		for _, tag := range args[1:] {
			if err := s.RemoveTag(ctx, id, tag); err != nil {
				return err
			}
		}
		fmt.Printf("%s untagged\n", renderMuted(shortID(id)))
		return nil
	},
}

func init() {
	tagCmd.AddCommand(tagAddCmd)
	tagCmd.AddCommand(tagRmCmd)
	rootCmd.AddCommand(tagCmd)
}
