package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"meridian-hq/veristat/pkg/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and manage recorded validation runs",
}

var historyLimit int

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent validation runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		storage, err := openHistory()
		if err != nil {
			return err
		}
		defer storage.Close()

		runs, err := storage.ListRuns(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs recorded")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN ID\tSTARTED\tRECORDS\tVIOLATIONS")
		for _, run := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n",
				run.ID,
				run.StartedAt.Format(time.RFC3339),
				run.RecordCount,
				run.ViolationCount,
			)
		}
		return tw.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its violations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		storage, err := openHistory()
		if err != nil {
			return err
		}
		defer storage.Close()

		run, err := storage.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Run:        %s\n", run.ID)
		fmt.Printf("Rule root:  %s\n", run.RuleRoot)
		fmt.Printf("Started:    %s\n", run.StartedAt.Format(time.RFC3339))
		if !run.CompletedAt.IsZero() {
			fmt.Printf("Completed:  %s\n", run.CompletedAt.Format(time.RFC3339))
		}
		fmt.Printf("Records:    %d\n", run.RecordCount)
		fmt.Printf("Violations: %d\n", run.ViolationCount)

		violations, err := storage.ListViolations(cmd.Context(), run.ID)
		if err != nil {
			return err
		}
		if len(violations) == 0 {
			return nil
		}

		fmt.Println()
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RECORD\tCATEGORY\tINSTRUMENT\tFIELD\tRULE\tMESSAGE")
		for _, v := range violations {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				v.RecordID, v.Category, v.Instrument, v.Field, v.Rule, v.Message)
		}
		return tw.Flush()
	},
}

var pruneDays int

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete runs older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		storage, err := openHistory()
		if err != nil {
			return err
		}
		defer storage.Close()

		days := cfg.History.RetentionDays
		if pruneDays > 0 {
			days = pruneDays
		}

		pruner := history.NewPruner(storage, &history.RetentionConfig{
			RetentionDays: days,
		}, slog.Default())

		deleted, err := pruner.Prune(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d run(s) older than %d days\n", deleted, days)
		return nil
	},
}

func init() {
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to list")
	historyPruneCmd.Flags().IntVar(&pruneDays, "days", 0, "retention window in days (overrides config)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}

// openHistory opens the configured history database.
func openHistory() (history.Storage, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	sqliteCfg := history.DefaultSQLiteConfig()
	sqliteCfg.Path = cfg.History.Path
	return history.NewSQLiteStorage(sqliteCfg, slog.Default())
}
