package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/highlab/entomologist/internal/filter"
	"github.com/highlab/entomologist/internal/issue"
)

var (
	listFormat    string
	listDoneSince string
	listDoneUntil string
	listNoDefault bool
)

var listCmd = &cobra.Command{
	Use:   "list [filter]",
	Short: "List issues",
	Long: `List issues, optionally restricted by a filter expression.

A filter is colon-separated clauses, all of which must match:

  state=new,inprogress        issues that are new or in progress
  assignee=alice,             assigned to alice, or unassigned
  tag=ui:-wontfix             tagged ui and not tagged wontfix
  done-time=2026-01-01T00:00:00Z..   finished since new year

Without an argument the database's default filter applies, if one is
configured. --done-since and --done-until accept natural language
("last monday", "3 days ago") and tighten the filter further.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, _, err := openStore(ctx)
		if err != nil {
			return err
		}

		expr := ""
		if len(args) == 1 {
			expr = args[0]
		} else if !listNoDefault {
			branchCfg, err := s.Config(ctx)
			if err != nil {
				return err
			}
			expr = branchCfg.DefaultFilter
		}

		doneClause, err := doneTimeClause(listDoneSince, listDoneUntil)
		if err != nil {
			return err
		}
		if doneClause != "" {
			if expr == "" {
				expr = doneClause
			} else {
				expr += ":" + doneClause
			}
		}

		issues, err := s.ListIssues(ctx)
		if err != nil {
			return err
		}
		if expr != "" {
			f, err := filter.Parse(expr)
			if err != nil {
				return err
			}
			issues = f.Apply(issues)
		}

		switch listFormat {
		case "plain":
			printIssueTable(issues)
			return nil
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(issues)
		case "yaml":
			return yaml.NewEncoder(os.Stdout).Encode(issues)
		default:
			return fmt.Errorf("unknown format %q (want plain, json, or yaml)", listFormat)
		}
	},
}

func init() {
	listCmd.Flags().StringVarP(&listFormat, "format", "f", "plain", "output format: plain, json, or yaml")
	listCmd.Flags().StringVar(&listDoneSince, "done-since", "", "only issues finished after this time")
	listCmd.Flags().StringVar(&listDoneUntil, "done-until", "", "only issues finished before this time")
	listCmd.Flags().BoolVar(&listNoDefault, "no-default-filter", false, "ignore the database's default filter")
	rootCmd.AddCommand(listCmd)
}

// doneTimeClause turns natural-language bounds into a done-time filter
// clause.
func doneTimeClause(since, until string) (string, error) {
	if since == "" && until == "" {
		return "", nil
	}

	var start, end string
	if since != "" {
		t, err := parseNaturalTime(since)
		if err != nil {
			return "", fmt.Errorf("--done-since: %w", err)
		}
		start = t.Format(time.RFC3339)
	}
	if until != "" {
		t, err := parseNaturalTime(until)
		if err != nil {
			return "", fmt.Errorf("--done-until: %w", err)
		}
		end = t.Format(time.RFC3339)
	}
	return fmt.Sprintf("done-time=%s..%s", start, end), nil
}

func parseNaturalTime(s string) (time.Time, error) {
	// Exact stamps bypass the natural language parser.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	result, err := w.Parse(s, time.Now())
	if err != nil {
		return time.Time{}, err
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("cannot understand %q as a time", s)
	}
	return result.Time, nil
}

func printIssueTable(issues []*issue.Issue) {
	if len(issues) == 0 {
		fmt.Println("no issues")
		return
	}

	for _, iss := range issues {
		extras := ""
		if iss.Assignee != "" {
			extras += " @" + iss.Assignee
		}
		if len(iss.Tags) > 0 {
			extras += " [" + strings.Join(iss.Tags, ",") + "]"
		}
		if n := len(iss.Comments); n > 0 {
			extras += fmt.Sprintf(" (%d comments)", n)
		}
		// Pad before styling so escape codes do not skew the column.
		state := fmt.Sprintf("%-10s", string(iss.State))
		if colorEnabled() {
			if style, ok := stateStyles[iss.State]; ok {
				state = style.Render(state)
			}
		}
		fmt.Printf("%s  %s  %s%s\n",
			renderMuted(shortID(iss.ID)),
			state,
			renderTitle(iss.Title),
			renderMuted(extras))
	}
}
