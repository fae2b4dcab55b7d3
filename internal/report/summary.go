package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/franz/dataset-curator/internal/journal"
	"github.com/franz/dataset-curator/internal/util"
)

// SummaryReport describes one finished bulk operation
type SummaryReport struct {
	GeneratedAt time.Time
	Duration    time.Duration

	Operation    string
	Folder       string
	OutputFolder string
	Params       string

	Total     int
	Processed int
	Skipped   int
	Failed    int
	Created   int
	Renamed   int
	Cancelled bool
	RunError  string

	TopErrors []ErrorSummary
	Failures  []FailureInfo

	JournalPath  string
	EventLogPath string
}

// ErrorSummary represents an error with its count
type ErrorSummary struct {
	Error string
	Count int
}

// FailureInfo is one failed file
type FailureInfo struct {
	Filename string
	Reason   string
}

// maxFailuresListed bounds the per-file failure table
const maxFailuresListed = 50

// GenerateSummaryReport builds the report of run opID from the journal
func GenerateSummaryReport(db *journal.Journal, opID int64, eventLogPath string) (*SummaryReport, error) {
	op, err := db.GetOperation(opID)
	if err != nil {
		return nil, err
	}

	report := &SummaryReport{
		GeneratedAt:  time.Now(),
		Operation:    op.Kind,
		Folder:       op.Folder,
		OutputFolder: op.OutputFolder,
		Params:       op.Params,
		Total:        op.Total,
		Processed:    op.Processed,
		Skipped:      op.Skipped,
		Failed:       op.Failed,
		Created:      op.Created,
		Cancelled:    op.Cancelled,
		RunError:     op.Error,
		JournalPath:  db.Path(),
		EventLogPath: eventLogPath,
		TopErrors:    make([]ErrorSummary, 0),
		Failures:     make([]FailureInfo, 0),
	}
	if op.Finished() {
		report.Duration = op.FinishedAt.Sub(op.StartedAt)
	}

	report.Renamed, _ = db.CountItemsByStatus(opID, journal.StatusRenamed)

	top, err := db.TopErrors(opID, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to gather errors: %w", err)
	}
	for _, ec := range top {
		report.TopErrors = append(report.TopErrors, ErrorSummary{Error: ec.Detail, Count: ec.Count})
	}

	items, err := db.Items(opID)
	if err != nil {
		return nil, fmt.Errorf("failed to gather items: %w", err)
	}
	for _, item := range items {
		if item.Status != journal.StatusFailed {
			continue
		}
		report.Failures = append(report.Failures, FailureInfo{Filename: item.Filename, Reason: item.Detail})
		if len(report.Failures) >= maxFailuresListed {
			break
		}
	}

	return report, nil
}

// ReportPath returns the Markdown path for a run inside dir
func ReportPath(dir, operation string, at time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("report-%s-%s.md", operation, at.Format("20060102-150405")))
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var md strings.Builder

	md.WriteString(fmt.Sprintf("# Dataset Curator - %s Report\n\n", report.Operation))
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))

	if report.JournalPath != "" {
		md.WriteString(fmt.Sprintf("**Journal:** `%s`\n\n", report.JournalPath))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}

	md.WriteString("---\n\n")

	md.WriteString("## Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Folder | `%s` |\n", report.Folder))
	if report.OutputFolder != "" && report.OutputFolder != report.Folder {
		md.WriteString(fmt.Sprintf("| Output | `%s` |\n", report.OutputFolder))
	}
	if report.Params != "" {
		md.WriteString(fmt.Sprintf("| Parameters | %s |\n", report.Params))
	}
	md.WriteString(fmt.Sprintf("| Images in Scope | %d |\n", report.Total))
	md.WriteString(fmt.Sprintf("| Processed | %d |\n", report.Processed))
	if report.Skipped > 0 {
		md.WriteString(fmt.Sprintf("| Skipped | %d |\n", report.Skipped))
	}
	if report.Created > 0 {
		md.WriteString(fmt.Sprintf("| Files Created | %d |\n", report.Created))
	}
	if report.Renamed > 0 {
		md.WriteString(fmt.Sprintf("| Files Renamed | %d |\n", report.Renamed))
	}
	if report.Failed > 0 {
		md.WriteString(fmt.Sprintf("| Failed | %d |\n", report.Failed))
	}
	if report.Duration > 0 {
		md.WriteString(fmt.Sprintf("| Duration | %s |\n", report.Duration.Round(time.Millisecond)))
	}
	md.WriteString("\n")

	if report.Cancelled {
		md.WriteString("> Operation was cancelled before all images were processed.\n\n")
	}
	if report.RunError != "" {
		md.WriteString(fmt.Sprintf("> Operation aborted: %s\n\n", report.RunError))
	}

	if len(report.TopErrors) > 0 {
		md.WriteString("## Top Errors\n\n")
		md.WriteString("| Count | Error |\n")
		md.WriteString("|-------|-------|\n")
		for _, err := range report.TopErrors {
			md.WriteString(fmt.Sprintf("| %d | %s |\n", err.Count, err.Error))
		}
		md.WriteString("\n")
	}

	if len(report.Failures) > 0 {
		md.WriteString("## Failed Images\n\n")
		md.WriteString("| Image | Reason |\n")
		md.WriteString("|-------|--------|\n")
		for _, f := range report.Failures {
			md.WriteString(fmt.Sprintf("| `%s` | %s |\n", truncatePath(f.Filename, 60), f.Reason))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by dsc - Dataset Curator*\n")

	if err := util.WriteFileAtomic(outputPath, []byte(md.String()), nil); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

// truncatePath truncates a file path to a maximum length
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	// Truncate from the middle, keeping start and end
	start := maxLen/2 - 2
	end := len(path) - (maxLen/2 - 2)
	return path[:start] + "..." + path[end:]
}
