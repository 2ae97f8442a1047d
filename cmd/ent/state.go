package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/highlab/entomologist/internal/issue"
)

var stateCmd = &cobra.Command{
	Use:   "state <id> <state>",
	Short: "Move an issue to another state",
	Long: fmt.Sprintf(`Move an issue to another state. Any transition is allowed.

States: %s

Entering done records the finish time; leaving done clears it.`,
		strings.Join(stateNames(), ", ")),
	Args: cobra.ExactArgs(2),
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
		state, err := issue.ParseState(args[1])
		if err != nil {
			return err
		}

		if err := s.SetState(ctx, id, state); err != nil {
			return err
		}
		fmt.Printf("%s -> %s\n", renderMuted(shortID(id)), renderState(state))
		return nil
	},
}

func stateNames() []string {
	names := make([]string, len(issue.States))
	for i, s := range issue.States {
		names[i] = string(s)
	}
	return names
}

func init() {
	rootCmd.AddCommand(stateCmd)
}
