package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/highlab/entomologist/internal/issue"
	"github.com/highlab/entomologist/internal/store"
)

var commentMessage string

var commentCmd = &cobra.Command{
	Use:   "comment <id> [body]",
	Short: "Comment on an issue",
	Args:  cobra.RangeArgs(1, 2),
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

		body := commentMessage
		if len(args) == 2 {
			body = args[1]
		}
		comment, err := s.AddComment(ctx, id, body)
		if err != nil {
			return err
		}
		fmt.Printf("comment %s added to %s\n",
			renderMuted(shortID(comment.ID)), renderMuted(shortID(id)))
		return nil
	},
}

var commentEditCmd = &cobra.Command{
	Use:   "edit <issue-id> <comment-id> <body>",
	Short: "Rewrite one of your comments",
	Args:  cobra.ExactArgs(3),
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
		commentID, err := resolveCommentID(ctx, s, id, args[1])
		if err != nil {
			return err
		}
		if err := s.EditComment(ctx, id, commentID, args[2]); err != nil {
			return err
		}
		fmt.Printf("comment %s updated\n", renderMuted(shortID(commentID)))
		return nil
	},
}

// resolveCommentID expands a comment id prefix against the issue's
// comments.
func resolveCommentID(ctx context.Context, s *store.Store, issueID, prefix string) (string, error) {
	if issue.ValidID(prefix) {
		return prefix, nil
	}

	iss, err := s.ReadIssue(ctx, issueID)
	if err != nil {
		return "", err
	}

	var matches []string
	for _, c := range iss.Comments {
		if issue.MatchesID(c.ID, prefix) {
			matches = append(matches, c.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no comment matches %q on issue %s", prefix, shortID(issueID))
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("comment id %q is ambiguous", prefix)
	}
}

func init() {
	commentCmd.Flags().StringVarP(&commentMessage, "message", "m", "", "comment body")
	commentCmd.AddCommand(commentEditCmd)
	rootCmd.AddCommand(commentCmd)
}
