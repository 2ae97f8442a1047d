package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Manage issue attachments",
}

var attachAddCmd = &cobra.Command{
	Use:   "add <id> <file>",
	Short: "Attach a file to an issue",
	Long: `Attach a file to an issue. The file is stored under its base name;
names are unique per issue.`,
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
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}

		name := filepath.Base(args[1])
		if err := s.AddAttachment(ctx, id, name, data); err != nil {
			return err
		}
		fmt.Printf("attached %s to %s\n", name, renderMuted(shortID(id)))
		return nil
	},
}

var attachGetCmd = &cobra.Command{
	Use:   "get <id> <name> [out]",
	Short: "Retrieve an attachment",
	Long: `Retrieve an attachment. The content goes to the named output file,
or to stdout when none is given.`,
	Args: cobra.RangeArgs(2, 3),
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
		data, err := s.Attachment(ctx, id, args[1])
		if err != nil {
			return err
		}

		if len(args) == 3 {
			return os.WriteFile(args[2], data, 0o644)
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func init() {
	attachCmd.AddCommand(attachAddCmd)
	attachCmd.AddCommand(attachGetCmd)
	rootCmd.AddCommand(attachCmd)
}
