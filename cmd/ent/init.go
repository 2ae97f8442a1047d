package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var initYes bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the issue database branch",
	Long: `Create the data branch in the current repository. The branch starts
as an orphan history, unrelated to your code's commits, and holds
nothing but the issue database.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, _, err := openStore(ctx)
		if err != nil {
			return err
		}

		if !initYes && term.IsTerminal(int(os.Stdin.Fd())) {
			confirmed := false
			form := huh.NewForm(huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Create issue database on branch %q?", s.Branch())).
					Description("The branch is an orphan history; your code commits are unaffected.").
					Value(&confirmed),
			))
			if err := form.Run(); err != nil {
				return err
			}
			if !confirmed {
				return fmt.Errorf("aborted")
			}
		}

		if err := s.Init(ctx); err != nil {
			return err
		}
		fmt.Printf("Initialized issue database on branch %s\n", s.Branch())
		fmt.Printf("Publish it with: ent sync\n")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(initCmd)
}
