package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/franz/dataset-curator/internal/journal"
	"github.com/franz/dataset-curator/internal/report"
	"github.com/franz/dataset-curator/internal/util"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [operation-id]",
	Short: "Show recorded bulk runs",
	Long: `List the bulk runs recorded in the operation journal, newest first.

With an operation id, show the per-image results of that run. --report
writes the Markdown summary of the run again.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntP("limit", "n", 20, "number of runs to list")
	historyCmd.Flags().Bool("report", false, "write the Markdown report of the given run")
	historyCmd.Flags().Bool("failed", false, "show only failed items of the given run")
}

func runHistory(cmd *cobra.Command, args []string) error {
	path := GetConfigString("journal", "dsc-journal.db")
	if !util.FileExists(path) {
		util.InfoLog("No journal at %s yet", path)
		return nil
	}
	db, err := journal.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer db.Close()

	if len(args) == 1 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return usageError(fmt.Errorf("invalid operation id %q", args[0]))
		}
		return showOperation(cmd, db, id)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	ops, err := db.RecentOperations(limit)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	if len(ops) == 0 {
		util.InfoLog("No runs recorded")
		return nil
	}

	fmt.Printf("%5s  %-14s  %-16s  %6s  %6s  %6s  %6s  %s\n", "ID", "OPERATION", "STARTED", "TOTAL", "DONE", "SKIP", "FAIL", "FOLDER")
	for _, op := range ops {
		status := ""
		switch {
		case !op.Finished():
			status = " (unfinished)"
		case op.Cancelled:
			status = " (cancelled)"
		case op.Error != "":
			status = " (error)"
		}
		fmt.Printf("%5d  %-14s  %-16s  %6d  %6d  %6d  %6d  %s%s\n",
			op.ID, op.Kind, util.FormatAgo(op.StartedAt), op.Total, op.Processed, op.Skipped, op.Failed,
			truncate(op.Folder, 50), status)
	}
	return nil
}

func showOperation(cmd *cobra.Command, db *journal.Journal, id int64) error {
	op, err := db.GetOperation(id)
	if err != nil {
		return usageError(err)
	}

	fmt.Printf("Operation:  %d (%s)\n", op.ID, op.Kind)
	fmt.Printf("Folder:     %s\n", op.Folder)
	if op.OutputFolder != "" && op.OutputFolder != op.Folder {
		fmt.Printf("Output:     %s\n", op.OutputFolder)
	}
	if op.Params != "" && op.Params != "null" {
		fmt.Printf("Parameters: %s\n", op.Params)
	}
	fmt.Printf("Started:    %s (%s)\n", op.StartedAt.Format(time.RFC3339), util.FormatAgo(op.StartedAt))
	if op.Finished() {
		fmt.Printf("Duration:   %s\n", op.FinishedAt.Sub(op.StartedAt).Round(time.Millisecond))
	}
	fmt.Printf("Totals:     %d total, %d processed, %d skipped, %d failed, %d created\n",
		op.Total, op.Processed, op.Skipped, op.Failed, op.Created)
	if op.Error != "" {
		fmt.Printf("Error:      %s\n", op.Error)
	}
	fmt.Println()

	failedOnly, _ := cmd.Flags().GetBool("failed")
	items, err := db.Items(id)
	if err != nil {
		return fmt.Errorf("failed to read items: %w", err)
	}
	for _, item := range items {
		if failedOnly && item.Status != journal.StatusFailed {
			continue
		}
		fmt.Printf("  %-9s  %-40s  %s\n", item.Status, item.Filename, item.Detail)
	}

	if writeReport, _ := cmd.Flags().GetBool("report"); writeReport {
		summary, err := report.GenerateSummaryReport(db, id, "")
		if err != nil {
			return fmt.Errorf("failed to generate report: %w", err)
		}
		dir := GetConfigString("events-dir", "artifacts")
		path := report.ReportPath(filepath.Clean(dir), op.Kind, op.StartedAt)
		if err := report.WriteMarkdownReport(summary, path); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		util.SuccessLog("Report written to %s", path)
	}
	return nil
}
