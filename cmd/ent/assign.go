package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var assignClear bool

var assignCmd = &cobra.Command{
	Use:   "assign <id> [who]",
	Short: "Assign an issue",
	Long: `Assign an issue to someone. With no name and --clear the issue
becomes unassigned.`,
	Args: cobra.RangeArgs(1, 2),
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

		who := ""
		if len(args) == 2 {
			who = args[1]
		}
		if who == "" && !assignClear {
			return fmt.Errorf("give an assignee or pass --clear to unassign")
		}

		if err := s.Assign(ctx, id, who); err != nil {
			return err
		}
		if who == "" {
			fmt.Printf("%s unassigned\n", renderMuted(shortID(id)))
		} else {
			fmt.Printf("%s assigned to %s\n", renderMuted(shortID(id)), who)
		}
		return nil
	},
}

func init() {
	assignCmd.Flags().BoolVar(&assignClear, "clear", false, "remove the assignee")
	rootCmd.AddCommand(assignCmd)
}
