package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	editTitle       string
	editDescription string
	editClearDesc   bool
)

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit an issue's title or description",
	Args:  cobra.ExactArgs(1),
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

		changed := false
		if editTitle != "" {
			if err := s.SetTitle(ctx, id, editTitle); err != nil {
				return err
			}
			changed = true
		}
		if editDescription != "" || editClearDesc {
			if err := s.SetDescription(ctx, id, editDescription); err != nil {
				return err
			}
			changed = true
		}
		if !changed {
			return fmt.Errorf("nothing to change; pass --title or --description")
		}

		fmt.Printf("%s updated\n", renderMuted(shortID(id)))
		return nil
	},
}

func init() {
	editCmd.Flags().StringVar(&editTitle, "title", "", "new title")
	editCmd.Flags().StringVarP(&editDescription, "description", "d", "", "new description")
	editCmd.Flags().BoolVar(&editClearDesc, "clear-description", false, "remove the description")
	rootCmd.AddCommand(editCmd)
}
