package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/franz/dataset-curator/internal/bulk"
	"github.com/franz/dataset-curator/internal/imaging"
	"github.com/franz/dataset-curator/internal/journal"
	"github.com/franz/dataset-curator/internal/project"
	"github.com/franz/dataset-curator/internal/rephrase"
	"github.com/franz/dataset-curator/internal/report"
	"github.com/franz/dataset-curator/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var fixImagesCmd = &cobra.Command{
	Use:   "fix-images",
	Short: "Resize images so the longest side matches a target size",
	Long: `Resize every image in scope so its longest side equals --size.

Without --keep-aspect the result is padded to a centered square on white.
Images smaller than 512x512 fail unless --upscale is given, in which case
they are upscaled first. Images already at the target shape are copied
unchanged and counted as skipped. Sidecar .txt files and JSON metadata are
copied when --output differs from the dataset folder.`,
	Args: cobra.NoArgs,
	RunE: runFixImages,
}

var duplicateCmd = &cobra.Command{
	Use:   "duplicate",
	Short: "Create transformed copies of images for augmentation",
	Long: `Create one variant per requested transform for every image in scope:

  flip_horizontal  -> {name}_flipHor{ext}
  rotate_90_left   -> {name}_rotLeft{ext}
  rotate_90_right  -> {name}_rotRight{ext}
  rotate_180       -> {name}_flipVert{ext}

Without --transforms a plain copy {name}_dup{ext} is made. Variants share
the description and tags of their source. With a separate --output the
originals are copied too and the description JSON is written as
{json}_augmented.json.`,
	Args: cobra.NoArgs,
	RunE: runDuplicate,
}

var renameCmd = &cobra.Command{
	Use:   "rename",
	Short: "Rename images to {prefix}_{seq}{ext}",
	Long: `Rename every image in scope to {prefix}_{seq}{ext}, with the sequence
zero-padded to at least 3 digits. --scramble inserts a random uppercase
letter before the sequence number.

The batch is checked before anything moves: if a new name is taken by a
file outside the batch, nothing is renamed. Sidecars, JSON description
files, tags and groups follow the new names.`,
	Args: cobra.NoArgs,
	RunE: runRename,
}

var scrambleTagsCmd = &cobra.Command{
	Use:   "scramble-tags",
	Short: "Shuffle the tag order of images",
	Args:  cobra.NoArgs,
	RunE:  runScrambleTags,
}

var rephraseCmd = &cobra.Command{
	Use:   "rephrase",
	Short: "Rewrite descriptions with a local text-generation service",
	Long: `Send the description of every image in scope to the configured
text-generation service (Ollama API) and store the answer. In tag mode the
answer is parsed into tags. Failed images are reported and skipped.

Configure the service with rephrase.host, rephrase.port, rephrase.model,
rephrase.timeout and rephrase.prompt ({description} placeholder).`,
	Args: cobra.NoArgs,
	RunE: runRephrase,
}

var rephraseTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Check that the rephrase service answers",
	Args:  cobra.NoArgs,
	RunE:  runRephraseTest,
}

var rephraseModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models of the rephrase service",
	Args:  cobra.NoArgs,
	RunE:  runRephraseModels,
}

func init() {
	rootCmd.AddCommand(fixImagesCmd, duplicateCmd, renameCmd, scrambleTagsCmd, rephraseCmd)
	rephraseCmd.AddCommand(rephraseTestCmd, rephraseModelsCmd)

	for _, cmd := range []*cobra.Command{fixImagesCmd, duplicateCmd, renameCmd, scrambleTagsCmd, rephraseCmd} {
		cmd.Flags().StringSlice("files", nil, "limit the operation to these images (default: all, in display order)")
	}

	fixImagesCmd.Flags().Int("size", 1024, "target size of the longest side")
	fixImagesCmd.Flags().Bool("keep-aspect", false, "keep the aspect ratio instead of padding to a square")
	fixImagesCmd.Flags().StringP("output", "o", "", "output folder (default: overwrite in place)")
	fixImagesCmd.Flags().Bool("upscale", false, "upscale images smaller than 512x512 instead of rejecting them")

	duplicateCmd.Flags().StringSlice("transforms", nil, "flip_horizontal, rotate_90_left, rotate_90_right, rotate_180")
	duplicateCmd.Flags().StringP("output", "o", "", "output folder (default: the dataset folder)")

	renameCmd.Flags().String("prefix", "", "new filename prefix (required)")
	renameCmd.Flags().Bool("scramble", false, "insert a random letter before the sequence number")
	renameCmd.MarkFlagRequired("prefix")

	scrambleTagsCmd.Flags().Bool("preserve-first", false, "keep the keyword (or first tag) in front")

	rephraseCmd.PersistentFlags().String("host", "", "rephrase service host (default localhost)")
	rephraseCmd.PersistentFlags().Int("port", 0, "rephrase service port (default 11434)")
	rephraseCmd.PersistentFlags().String("model", "", "model name")
	rephraseCmd.PersistentFlags().Duration("timeout", 0, "request timeout (default 30s)")
	viper.BindPFlag("rephrase.host", rephraseCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("rephrase.port", rephraseCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("rephrase.model", rephraseCmd.PersistentFlags().Lookup("model"))
	viper.BindPFlag("rephrase.timeout", rephraseCmd.PersistentFlags().Lookup("timeout"))
}

// bulkRun holds what every bulk command needs
type bulkRun struct {
	project *project.Project
	orch    *bulk.Orchestrator
	events  *report.EventLogger
	journal *journal.Journal
	done    func()
}

func startBulk(description string) (*bulkRun, error) {
	p, err := openProject()
	if err != nil {
		return nil, err
	}

	// Create event logger with appropriate log level
	logLevel := report.ParseLevel(GetConfigString("event-level", "info"))
	if util.IsQuiet() {
		logLevel = report.LevelWarning // Only warnings and errors
	} else if util.IsVerbose() {
		logLevel = report.LevelDebug // Everything
	}
	events, err := report.NewEventLogger(GetConfigString("events-dir", "artifacts"), logLevel)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		events = report.NullLogger()
	}
	if events.Path() != "" {
		util.DebugLog("Event log: %s", events.Path())
	}

	var db *journal.Journal
	if path := GetConfigString("journal", ""); path != "" {
		db, err = journal.Open(path)
		if err != nil {
			util.WarnLog("Journal unavailable, the run will not be recorded: %v", err)
			db = nil
		}
	}

	progress, done := newProgress(description)
	return &bulkRun{
		project: p,
		orch: bulk.New(&bulk.Config{
			Project:  p,
			Events:   events,
			Journal:  db,
			Progress: progress,
		}),
		events:  events,
		journal: db,
		done:    done,
	}, nil
}

func (b *bulkRun) close() {
	b.done()
	b.events.Close()
	b.journal.Close()
}

// conclude prints the outcome of a bulk run, writes its Markdown report and
// maps it onto the exit code
func (b *bulkRun) conclude(rep *bulk.Report, err error) error {
	b.done()
	if rep == nil {
		if bulk.IsValidation(err) {
			return usageError(err)
		}
		return err
	}

	util.InfoLog("")
	util.InfoLog("=== %s ===", rep.Operation)
	util.InfoLog("Total: %d", rep.Total)
	util.InfoLog("Processed: %d", rep.Processed)
	if rep.Created > 0 {
		util.InfoLog("Created: %d", rep.Created)
	}
	if len(rep.Renamed) > 0 {
		util.InfoLog("Renamed: %d", len(rep.Renamed))
	}
	if rep.Skipped > 0 {
		util.InfoLog("Skipped: %d", rep.Skipped)
	}
	if rep.Failed > 0 {
		util.WarnLog("Failed: %d", rep.Failed)
		for _, item := range rep.Invalid {
			util.WarnLog("  %s: %s", item.Filename, item.Reason)
		}
	}
	if rep.Cancelled {
		util.WarnLog("Cancelled before all images were processed")
	}
	util.InfoLog("Duration: %s", rep.Duration().Round(time.Millisecond))

	if b.journal != nil && rep.OperationID != 0 {
		summary, sumErr := report.GenerateSummaryReport(b.journal, rep.OperationID, b.events.Path())
		if sumErr == nil {
			path := report.ReportPath(GetConfigString("events-dir", "artifacts"), rep.Operation, rep.Started)
			if sumErr = report.WriteMarkdownReport(summary, path); sumErr == nil {
				util.InfoLog("Report: %s", path)
			}
		}
		if sumErr != nil {
			util.WarnLog("Could not write the report: %v", sumErr)
		}
	}

	if err != nil {
		return err
	}
	if rep.Failed > 0 {
		if rep.Processed+rep.Skipped+rep.Created == 0 {
			return &exitError{code: exitHard, err: fmt.Errorf("all %d item(s) failed", rep.Failed)}
		}
		return partialFailure("%d item(s) failed", rep.Failed)
	}
	util.SuccessLog("%s complete", rep.Operation)
	return nil
}

// scopeFromFlags builds the scope from --files
func scopeFromFlags(cmd *cobra.Command) bulk.Scope {
	files, _ := cmd.Flags().GetStringSlice("files")
	if len(files) == 0 {
		return bulk.AllImages()
	}
	return bulk.Selection(files...)
}

// signalContext is cancelled on Ctrl-C so bulk runs stop between images
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runFixImages(cmd *cobra.Command, args []string) error {
	size, _ := cmd.Flags().GetInt("size")
	keepAspect, _ := cmd.Flags().GetBool("keep-aspect")
	output, _ := cmd.Flags().GetString("output")
	upscale, _ := cmd.Flags().GetBool("upscale")

	b, err := startBulk("Resizing")
	if err != nil {
		return err
	}
	defer b.close()

	ctx, cancel := signalContext()
	defer cancel()

	util.InfoLog("=== Fix Images ===")
	util.InfoLog("Target: %dpx, keep aspect: %t, upscale: %t", size, keepAspect, upscale)
	rep, err := b.orch.FixImages(ctx, bulk.FixOptions{
		TargetSize:   size,
		KeepAspect:   keepAspect,
		OutputFolder: output,
		AllowUpscale: upscale,
	}, scopeFromFlags(cmd))
	return b.conclude(rep, err)
}

func runDuplicate(cmd *cobra.Command, args []string) error {
	names, _ := cmd.Flags().GetStringSlice("transforms")
	output, _ := cmd.Flags().GetString("output")

	var transforms []imaging.Transform
	for _, name := range names {
		t, err := imaging.ParseTransform(name)
		if err != nil {
			return usageError(err)
		}
		transforms = append(transforms, t)
	}

	b, err := startBulk("Duplicating")
	if err != nil {
		return err
	}
	defer b.close()

	ctx, cancel := signalContext()
	defer cancel()

	plan := imaging.Plan(transforms)
	util.InfoLog("=== Duplicate ===")
	util.InfoLog("Transforms: %v", plan)
	rep, err := b.orch.CreateDuplicates(ctx, bulk.DuplicateOptions{
		OutputFolder: output,
		Transforms:   transforms,
	}, scopeFromFlags(cmd))
	return b.conclude(rep, err)
}

func runRename(cmd *cobra.Command, args []string) error {
	prefix, _ := cmd.Flags().GetString("prefix")
	scramble, _ := cmd.Flags().GetBool("scramble")

	b, err := startBulk("Renaming")
	if err != nil {
		return err
	}
	defer b.close()

	ctx, cancel := signalContext()
	defer cancel()

	util.InfoLog("=== Rename ===")
	rep, err := b.orch.MassRename(ctx, bulk.RenameOptions{Prefix: prefix, Scramble: scramble}, scopeFromFlags(cmd))
	if errors.Is(err, util.ErrConflict) {
		util.ErrorLog("Nothing was renamed")
	}
	return b.conclude(rep, err)
}

func runScrambleTags(cmd *cobra.Command, args []string) error {
	preserveFirst, _ := cmd.Flags().GetBool("preserve-first")

	b, err := startBulk("Scrambling")
	if err != nil {
		return err
	}
	defer b.close()

	ctx, cancel := signalContext()
	defer cancel()

	rep, err := b.orch.ScrambleTags(ctx, bulk.ScrambleOptions{PreserveFirst: preserveFirst}, scopeFromFlags(cmd))
	return b.conclude(rep, err)
}

func runRephrase(cmd *cobra.Command, args []string) error {
	cfg := rephraseConfig()
	if cfg.Model == "" {
		return usageError(fmt.Errorf("no model configured: set rephrase.model or --model"))
	}
	client := rephrase.New(cfg)

	b, err := startBulk("Rephrasing")
	if err != nil {
		return err
	}
	defer b.close()

	ctx, cancel := signalContext()
	defer cancel()

	util.InfoLog("=== Rephrase ===")
	util.InfoLog("Service: %s, model: %s", client.BaseURL(), client.Model())
	rep, err := b.orch.Rephrase(ctx, client, scopeFromFlags(cmd))
	return b.conclude(rep, err)
}

func runRephraseTest(cmd *cobra.Command, args []string) error {
	cfg := rephraseConfig()
	if cfg.Model == "" {
		return usageError(fmt.Errorf("no model configured: set rephrase.model or --model"))
	}
	client := rephrase.New(cfg)

	ctx, cancel := signalContext()
	defer cancel()

	util.InfoLog("Testing %s with model %s", client.BaseURL(), client.Model())
	answer, err := client.Test(ctx)
	if err != nil {
		switch {
		case errors.Is(err, rephrase.ErrTimeout):
			util.ErrorLog("The service did not answer within %s", cfg.Timeout)
		case errors.Is(err, rephrase.ErrUnavailable):
			util.ErrorLog("The service is not reachable; is it running?")
		}
		return &exitError{code: exitHard, err: err}
	}
	util.SuccessLog("Service answered: %s", answer)
	return nil
}

func runRephraseModels(cmd *cobra.Command, args []string) error {
	client := rephrase.New(rephraseConfig())

	ctx, cancel := signalContext()
	defer cancel()

	models, err := client.ListModels(ctx)
	if err != nil {
		return &exitError{code: exitHard, err: err}
	}
	if len(models) == 0 {
		util.InfoLog("No models installed")
		return nil
	}
	for _, m := range models {
		fmt.Printf("%-40s  %10s\n", m.Name, util.FormatBytes(m.Size))
	}
	return nil
}
