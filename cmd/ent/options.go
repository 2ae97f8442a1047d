package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/highlab/entomologist/internal/filter"
)

var (
	optionsFilter   string
	optionsReadOnly string
)

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "Show or change database options",
	Long: `Show or change options stored with the database itself (in
config.toml on the data branch). These travel to every clone through
sync, unlike ENT_* environment settings which are per machine.

  ent options                             show current options
  ent options --default-filter state=new  set the listing default
  ent options --default-filter ""         clear it
  ent options --read-only on              reject local edits`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, _, err := openStore(ctx)
		if err != nil {
			return err
		}

		branchCfg, err := s.Config(ctx)
		if err != nil {
			return err
		}

		changed := false
		if cmd.Flags().Changed("default-filter") {
			if optionsFilter != "" {
				if _, err := filter.Parse(optionsFilter); err != nil {
					return err
				}
			}
			branchCfg.DefaultFilter = optionsFilter
			changed = true
		}
		if cmd.Flags().Changed("read-only") {
			switch optionsReadOnly {
			case "on", "true":
				branchCfg.ReadOnly = true
			case "off", "false":
				branchCfg.ReadOnly = false
			default:
				return fmt.Errorf("read-only wants on or off, got %q", optionsReadOnly)
			}
			changed = true
		}

		if changed {
			if err := s.WriteConfig(ctx, branchCfg); err != nil {
				return err
			}
		}

		fmt.Printf("default-filter: %s\n", orNone(branchCfg.DefaultFilter))
		fmt.Printf("read-only:      %t\n", branchCfg.ReadOnly)
		return nil
	},
}

func orNone(s string) string {
	if s == "" {
		return renderMuted("(none)")
	}
	return s
}

func init() {
	optionsCmd.Flags().StringVar(&optionsFilter, "default-filter", "", "filter applied by list when none is given")
	optionsCmd.Flags().StringVar(&optionsReadOnly, "read-only", "", "reject local edits: on or off")
	rootCmd.AddCommand(optionsCmd)
}
