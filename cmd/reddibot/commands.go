package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/salcido/reddibot/internal/app"
)

func newRunCmd(ctx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.app()
			if err != nil {
				return err
			}
			err = a.Run(cmd.Context())
			if errors.Is(err, app.ErrAlreadyRunning) {
				return fmt.Errorf("%w (lock %s)", err, ctx.cfg.Lock.Path)
			}
			return err
		},
	}
}

func newTickCmd(ctx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run a single publish cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.app()
			if err != nil {
				return err
			}
			ev, err := a.TickOnce(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "outcome: %s\n", ev.Kind)
			if ev.Title != "" {
				fmt.Fprintf(out, "title:   %s\n", ev.Title)
				fmt.Fprintf(out, "group:   %s\n", ev.Group)
			}
			if ev.Reason != "" {
				fmt.Fprintf(out, "reason:  %s\n", ev.Reason)
			}
			if ev.Error != "" {
				fmt.Fprintf(out, "error:   %s\n", ev.Error)
			}
			return nil
		},
	}
}

func newPreviewCmd(ctx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Show the ranked queue the next refill would build",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.app()
			if err != nil {
				return err
			}
			rows, stats, err := a.Preview(cmd.Context())
			if err != nil {
				return err
			}

			tableRows := make([][]string, 0, len(rows))
			for i, r := range rows {
				dup := ""
				if r.Duplicate {
					dup = "yes"
				}
				tableRows = append(tableRows, []string{
					strconv.Itoa(i + 1),
					r.Item.GroupKey,
					r.Item.Category.String(),
					strconv.Itoa(r.Item.ScoreSignal),
					truncate(r.Item.Title, 60),
					dup,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Subreddit", "Kind", "Score", "Title", "Dup"},
				tableRows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))

			reasons := make([]string, 0, len(stats.Rejected))
			for reason, n := range stats.Rejected {
				reasons = append(reasons, fmt.Sprintf("%s=%d", reason, n))
			}
			fmt.Fprintf(out, "accepted %d, malformed %d, rejected [%s]\n", stats.Accepted, stats.Malformed, strings.Join(sortedCopy(reasons), " "))
			return nil
		},
	}
}

func newConfigCmd(ctx *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			data, err := cfg.Dump()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reddibot version %s\n", version)
		},
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
