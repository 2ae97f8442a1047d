package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var showFormat string

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one issue in full",
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
		iss, err := s.ReadIssue(ctx, id)
		if err != nil {
			return err
		}

		switch showFormat {
		case "plain":
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(iss)
		case "yaml":
			return yaml.NewEncoder(os.Stdout).Encode(iss)
		default:
			return fmt.Errorf("unknown format %q (want plain, json, or yaml)", showFormat)
		}

		fmt.Printf("%s %s\n", renderHeader(iss.Title), renderMuted(shortID(iss.ID)))
		fmt.Printf("state:    %s\n", renderState(iss.State))
		if iss.Assignee != "" {
			fmt.Printf("assignee: %s\n", iss.Assignee)
		}
		if iss.Author != "" {
			fmt.Printf("author:   %s\n", iss.Author)
		}
		fmt.Printf("created:  %s\n", iss.CreatedAt.Local().Format(time.RFC1123))
		if iss.DoneAt != nil {
			fmt.Printf("finished: %s\n", iss.DoneAt.Local().Format(time.RFC1123))
		}
		if len(iss.Tags) > 0 {
			fmt.Printf("tags:     %s\n", strings.Join(iss.Tags, ", "))
		}
		if len(iss.Deps) > 0 {
			deps := make([]string, len(iss.Deps))
			for i, dep := range iss.Deps {
				deps[i] = shortID(dep)
			}
			fmt.Printf("depends:  %s\n", strings.Join(deps, ", "))
		}
		if len(iss.Attachments) > 0 {
			fmt.Printf("files:    %s\n", strings.Join(iss.Attachments, ", "))
		}

		if iss.Description != "" {
			fmt.Printf("\n%s\n", iss.Description)
		}

		for _, c := range iss.Comments {
			fmt.Printf("\n%s %s %s\n",
				renderHeader(c.Author),
				renderMuted(c.CreatedAt.Local().Format(time.RFC1123)),
				renderMuted(shortID(c.ID)))
			fmt.Println(c.Body)
		}
		return nil
	},
}

func init() {
	showCmd.Flags().StringVarP(&showFormat, "format", "f", "plain", "output format: plain, json, or yaml")
	rootCmd.AddCommand(showCmd)
}
