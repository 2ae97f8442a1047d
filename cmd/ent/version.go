package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/highlab/entomologist/internal/vcs"
	"github.com/highlab/entomologist/internal/vcs/git"
)

// version is set at build time via -ldflags.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and environment information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("ent %s\n", version)

		gitVersion, err := git.Version()
		if err != nil {
			fmt.Printf("git: not available (%v)\n", err)
		} else {
			fmt.Printf("git: %s\n", gitVersion)
		}

		fmt.Printf("adapters: %v\n", vcs.RegisteredTypes())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
