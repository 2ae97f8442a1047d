package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	newDescription string
	newTags        []string
	newAssignee    string
)

var newCmd = &cobra.Command{
	Use:   "new [title]",
	Short: "File a new issue",
	Long: `File a new issue. With no title argument the first line of the
description becomes the title.`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, _, err := openStore(ctx)
		if err != nil {
			return err
		}

		title := strings.Join(args, " ")
		iss, err := s.CreateIssue(ctx, title, newDescription)
		if err != nil {
			return err
		}

		for _, tag := range newTags {
			if err := s.AddTag(ctx, iss.ID, tag); err != nil {
				return err
			}
		}
		if newAssignee != "" {
			if err := s.Assign(ctx, iss.ID, newAssignee); err != nil {
				return err
			}
		}

		fmt.Printf("%s %s\n", renderMuted(shortID(iss.ID)), iss.Title)
		return nil
	},
}

func init() {
	newCmd.Flags().StringVarP(&newDescription, "description", "d", "", "longer description of the issue")
	newCmd.Flags().StringSliceVarP(&newTags, "tag", "t", nil, "tag to attach (repeatable)")
	newCmd.Flags().StringVarP(&newAssignee, "assign", "a", "", "assign the new issue")
	rootCmd.AddCommand(newCmd)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
