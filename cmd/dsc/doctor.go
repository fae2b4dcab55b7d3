package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/franz/dataset-curator/internal/catalog"
	"github.com/franz/dataset-curator/internal/groups"
	"github.com/franz/dataset-curator/internal/journal"
	"github.com/franz/dataset-curator/internal/rephrase"
	"github.com/franz/dataset-curator/internal/tags"
	"github.com/franz/dataset-curator/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and dataset",
	Long: `Run diagnostic checks to ensure dsc can operate correctly.

This command checks:
- SQLite version and journal integrity
- Dataset folder readability and image count
- tags.json and groups.json (parse errors, group consistency)
- Write access to the output and events directories
- Disk space availability
- Rephrase service reachability (with --rephrase)

Use this command to troubleshoot issues before running bulk operations.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().StringP("output", "o", "", "Output folder to check (optional)")
	doctorCmd.Flags().Bool("rephrase", false, "Also check that the rephrase service answers")
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	util.InfoLog("=== DSC Doctor - Dataset Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{checkSQLite()}
	results = append(results, checkJournal(viper.GetString("journal")))

	folder := viper.GetString("folder")
	if folder != "" {
		results = append(results, checkDatasetFolder(folder))
		results = append(results, checkTagsFile(folder))
		results = append(results, checkGroupsFile(folder)...)
		results = append(results, checkDiskSpace(folder, "dataset"))
	} else {
		results = append(results, checkResult{
			name:    "Dataset folder",
			warning: true,
			message: "no folder specified (use --folder or DSC_FOLDER)",
		})
	}

	if eventsDir := viper.GetString("events-dir"); eventsDir != "" {
		results = append(results, checkWritableDirectory(eventsDir, "Events directory"))
	}

	output, _ := cmd.Flags().GetString("output")
	if output != "" {
		results = append(results, checkWritableDirectory(output, "Output directory"))
		if folder == "" || !util.SameDir(output, folder) {
			results = append(results, checkDiskSpace(output, "output"))
		}
	}

	if checkService, _ := cmd.Flags().GetBool("rephrase"); checkService {
		results = append(results, checkRephraseService(cmd.Context(), rephraseConfig()))
	}

	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors, hasWarnings := printResults(results)

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("❌ Some critical checks failed. Please resolve errors before running dsc.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("⚠️  Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("✅ All checks passed! Dataset is ready for dsc operations.")
	}

	return nil
}

func printResults(results []checkResult) (hasErrors, hasWarnings bool) {
	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}
	return hasErrors, hasWarnings
}

// checkSQLite verifies the embedded SQLite engine answers
func checkSQLite() checkResult {
	version := journal.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkJournal verifies the operation journal is readable and intact
func checkJournal(path string) checkResult {
	if path == "" {
		return checkResult{
			name:    "Journal",
			warning: true,
			message: "no journal path specified (use --journal or config)",
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Journal",
				message: fmt.Sprintf("%s (will be created on first bulk run)", path),
			}
		}
		return checkResult{
			name:    "Journal",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Journal",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", path),
		}
	}

	j, err := journal.Open(path)
	if err != nil {
		return checkResult{
			name:    "Journal",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", path, err),
		}
	}
	defer j.Close()

	if err := j.CheckIntegrity(); err != nil {
		return checkResult{
			name:    "Journal",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	count, _ := j.CountOperations()
	return checkResult{
		name:    "Journal",
		message: fmt.Sprintf("%s (%s, %d operations)", path, util.FormatBytes(info.Size()), count),
	}
}

// checkDatasetFolder verifies the dataset folder is readable
func checkDatasetFolder(path string) checkResult {
	if err := util.CheckDir(path); err != nil {
		return checkResult{
			name:    "Dataset folder",
			error:   true,
			message: fmt.Sprintf("%s: %v", path, err),
		}
	}

	images, err := catalog.ListImageFiles(path)
	if err != nil {
		return checkResult{
			name:    "Dataset folder",
			error:   true,
			message: fmt.Sprintf("cannot read %s: %v", path, err),
		}
	}
	if len(images) == 0 {
		return checkResult{
			name:    "Dataset folder",
			warning: true,
			message: fmt.Sprintf("%s (no images)", path),
		}
	}

	return checkResult{
		name:    "Dataset folder",
		message: fmt.Sprintf("%s (%d images)", path, len(images)),
	}
}

// checkTagsFile verifies tags.json parses when present
func checkTagsFile(folder string) checkResult {
	store := tags.NewStore()
	found, err := store.Load(folder)
	if err != nil {
		return checkResult{
			name:    "Tags file",
			error:   true,
			message: err.Error(),
		}
	}
	if !found {
		return checkResult{
			name:    "Tags file",
			message: "not present (legacy description mode)",
		}
	}

	stats := store.Statistics()
	msg := fmt.Sprintf("%d tags, %d tagged images", stats.TotalTags, stats.ImagesWithTags)
	if kw := store.Keyword(); kw != "" {
		msg += fmt.Sprintf(", keyword %q", kw)
	}
	return checkResult{name: "Tags file", message: msg}
}

// checkGroupsFile verifies groups.json parses and is self-consistent. Each
// consistency issue is reported as its own warning.
func checkGroupsFile(folder string) []checkResult {
	store := groups.NewStore()
	found, err := store.Load(folder)
	if err != nil {
		return []checkResult{{
			name:    "Groups file",
			error:   true,
			message: err.Error(),
		}}
	}
	if !found {
		return []checkResult{{name: "Groups file", message: "not present"}}
	}

	stats := store.Statistics()
	results := []checkResult{{
		name:    "Groups file",
		message: fmt.Sprintf("%d groups, %d grouped images", stats.TotalGroups, stats.TotalGroupedImages),
	}}
	for _, issue := range store.ValidateConsistency() {
		results = append(results, checkResult{
			name:    "Groups consistency",
			warning: true,
			message: issue,
		})
	}
	return results
}

// checkWritableDirectory verifies a directory exists (creating it if needed)
// and accepts new files
func checkWritableDirectory(path, label string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(path, 0755); err != nil {
				return checkResult{
					name:    label,
					error:   true,
					message: fmt.Sprintf("cannot create %s: %v", path, err),
				}
			}
			return checkResult{
				name:    label,
				message: fmt.Sprintf("%s (created)", path),
			}
		}
		return checkResult{
			name:    label,
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.IsDir() {
		return checkResult{
			name:    label,
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	testFile := filepath.Join(path, ".dsc_write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return checkResult{
			name:    label,
			error:   true,
			message: fmt.Sprintf("cannot write to %s: %v", path, err),
		}
	}
	f.Close()
	os.Remove(testFile)

	return checkResult{
		name:    label,
		message: fmt.Sprintf("%s (writable)", path),
	}
}

// checkDiskSpace verifies available disk space
func checkDiskSpace(path string, label string) checkResult {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return checkResult{
			name:    fmt.Sprintf("Disk space (%s)", label),
			warning: true,
			message: fmt.Sprintf("cannot determine disk space: %v", err),
		}
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	totalBytes := stat.Blocks * uint64(stat.Bsize)
	usedBytes := totalBytes - (stat.Bfree * uint64(stat.Bsize))

	usedPercent := 0.0
	if totalBytes > 0 {
		usedPercent = float64(usedBytes) / float64(totalBytes) * 100
	}

	// Warn under 1GB free or above 95% used
	warning := false
	warningMsg := ""
	if availBytes < 1<<30 {
		warning = true
		warningMsg = " (low space!)"
	} else if usedPercent > 95 {
		warning = true
		warningMsg = " (>95% used)"
	}

	return checkResult{
		name:    fmt.Sprintf("Disk space (%s)", label),
		warning: warning,
		message: fmt.Sprintf("%s available%s", util.FormatBytes(int64(availBytes)), warningMsg),
	}
}

// checkRephraseService asks the configured model for a short answer. An
// unreachable service is only a warning since rephrasing is optional.
func checkRephraseService(ctx context.Context, cfg rephrase.Config) checkResult {
	if cfg.Model == "" {
		return checkResult{
			name:    "Rephrase service",
			warning: true,
			message: "no model configured (set rephrase.model)",
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client := rephrase.New(cfg)
	answer, err := client.Test(ctx)
	if err != nil {
		return checkResult{
			name:    "Rephrase service",
			warning: true,
			message: fmt.Sprintf("%s: %v", client.BaseURL(), err),
		}
	}

	return checkResult{
		name:    "Rephrase service",
		message: fmt.Sprintf("%s (%s answered %q)", client.BaseURL(), client.Model(), strings.TrimSpace(truncate(answer, 40))),
	}
}
