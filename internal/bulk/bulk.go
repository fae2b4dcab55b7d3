// Package bulk runs the batch dataset operations: resizing, augmentation by
// duplication, mass renaming, tag scrambling and rephrasing.
//
// Operations walk their scope one image at a time, in scope order. A failure
// of one image is recorded in the Report and the batch continues. Nothing is
// rolled back: a cancelled or crashed run leaves completed items applied.
package bulk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/franz/dataset-curator/internal/catalog"
	"github.com/franz/dataset-curator/internal/imaging"
	"github.com/franz/dataset-curator/internal/journal"
	"github.com/franz/dataset-curator/internal/project"
	"github.com/franz/dataset-curator/internal/report"
	"github.com/franz/dataset-curator/internal/util"
)

// Operation names used in reports, events and the journal
const (
	OpFixImages   = "fix-images"
	OpDuplicate   = "duplicate"
	OpRename      = "rename"
	OpScrambleTag = "scramble-tags"
	OpRephrase    = "rephrase"
)

// ProgressFunc is called after every item
type ProgressFunc func(done, total int, filename string)

// Config holds orchestrator configuration
type Config struct {
	Project   *project.Project
	Processor imaging.Processor   // nil = imaging.NewDefault()
	Events    *report.EventLogger // nil disables the event log
	Journal   *journal.Journal    // nil disables the journal
	Retry     *util.RetryConfig   // nil = project retry settings
	Progress  ProgressFunc
	Rand      *rand.Rand // random source for scrambling (nil = global)
}

// Orchestrator runs bulk operations against one project
type Orchestrator struct {
	project   *project.Project
	processor imaging.Processor
	events    *report.EventLogger
	journal   *journal.Journal
	retry     *util.RetryConfig
	progress  ProgressFunc
	rng       *rand.Rand
}

// New creates an Orchestrator
func New(cfg *Config) *Orchestrator {
	if cfg.Processor == nil {
		cfg.Processor = imaging.NewDefault()
	}
	if cfg.Retry == nil && cfg.Project != nil {
		cfg.Retry = cfg.Project.Retry()
	}
	return &Orchestrator{
		project:   cfg.Project,
		processor: cfg.Processor,
		events:    cfg.Events,
		journal:   cfg.Journal,
		retry:     cfg.Retry,
		progress:  cfg.Progress,
		rng:       cfg.Rand,
	}
}

// Scope selects the images an operation applies to
type Scope struct {
	all   bool
	names []string
}

// AllImages is every catalog image, in display order
func AllImages() Scope {
	return Scope{all: true}
}

// Selection is an explicit list of filenames, processed in the given order
func Selection(filenames ...string) Scope {
	return Scope{names: filenames}
}

// IsAll reports whether the scope covers the whole catalog
func (s Scope) IsAll() bool {
	return s.all
}

// resolve maps the scope onto catalog records. Unknown names and an empty
// result are validation errors.
func (s Scope) resolve(c *catalog.Catalog) ([]*catalog.ImageRecord, error) {
	var records []*catalog.ImageRecord
	if s.all {
		records = c.Records()
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].DisplayIndex < records[j].DisplayIndex
		})
	} else {
		seen := make(map[string]bool, len(s.names))
		for _, name := range s.names {
			rec := c.Lookup(name)
			if rec == nil {
				return nil, fmt.Errorf("image %q: %w", name, util.ErrNotFound)
			}
			if seen[rec.Filename] {
				continue
			}
			seen[rec.Filename] = true
			records = append(records, rec)
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no images in scope: %w", util.ErrEmpty)
	}
	return records, nil
}

// ItemError is one failed item
type ItemError struct {
	Filename string
	Reason   string
}

// Report is the outcome of one bulk operation
type Report struct {
	Operation   string
	OperationID int64 // journal id, 0 without a journal
	Total       int
	Processed   int
	Skipped     int
	Failed      int
	Created     int
	Invalid     []ItemError
	Renamed     map[string]string // old filename -> new filename
	Variants    map[string]string // file written to the output folder -> source filename
	Cancelled   bool
	Started     time.Time
	Finished    time.Time
}

// Duration is the wall time of the run
func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// HasFailures reports whether any item failed
func (r *Report) HasFailures() bool {
	return r.Failed > 0
}

// run tracks one operation: counters, progress, event log and journal
type run struct {
	o      *Orchestrator
	report *Report
	done   int
}

func (o *Orchestrator) begin(op, outputFolder string, total int, params interface{}) *run {
	r := &run{
		o: o,
		report: &Report{
			Operation: op,
			Total:     total,
			Renamed:   make(map[string]string),
			Variants:  make(map[string]string),
			Started:   time.Now(),
		},
	}

	folder := o.project.Folder()
	o.events.LogStart(op, folder, total)
	if o.journal != nil {
		encoded, _ := json.Marshal(params)
		id, err := o.journal.BeginOperation(op, folder, outputFolder, string(encoded))
		if err != nil {
			util.WarnLog("Journal unavailable: %v", err)
		} else {
			r.report.OperationID = id
		}
	}
	util.InfoLog("Starting %s on %d image(s)", op, total)
	return r
}

// cancelled checks ctx between items
func (r *run) cancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		if !r.report.Cancelled {
			util.WarnLog("%s cancelled after %d of %d image(s)", r.report.Operation, r.done, r.report.Total)
		}
		r.report.Cancelled = true
		return true
	}
	return false
}

func (r *run) record(filename, status, detail string) {
	if r.o.journal == nil || r.report.OperationID == 0 {
		return
	}
	if err := r.o.journal.RecordItem(r.report.OperationID, filename, status, detail); err != nil {
		util.DebugLog("Journal write failed: %v", err)
	}
}

func (r *run) processed(filename, src, dest string, bytes int64, started time.Time) {
	r.report.Processed++
	r.o.events.LogItem(r.report.Operation, report.EventProcess, filename, src, dest, bytes, time.Since(started), nil)
	r.record(filename, journal.StatusProcessed, dest)
}

func (r *run) created(source, filename, dest string, bytes int64, started time.Time) {
	r.report.Created++
	r.report.Variants[filename] = source
	r.o.events.LogItem(r.report.Operation, report.EventCreate, filename, "", dest, bytes, time.Since(started), nil)
	r.record(filename, journal.StatusCreated, source)
}

func (r *run) skipped(filename, reason string) {
	r.report.Skipped++
	r.o.events.LogSkip(r.report.Operation, filename, reason)
	r.record(filename, journal.StatusSkipped, reason)
}

func (r *run) renamed(oldName, newName string) {
	r.report.Renamed[oldName] = newName
	r.o.events.LogItem(r.report.Operation, report.EventRename, oldName, oldName, newName, 0, 0, nil)
	r.record(oldName, journal.StatusRenamed, newName)
}

func (r *run) fail(filename string, err error) {
	r.report.Failed++
	r.report.Invalid = append(r.report.Invalid, ItemError{Filename: filename, Reason: err.Error()})
	r.o.events.LogError(r.report.Operation, filename, err)
	r.record(filename, journal.StatusFailed, err.Error())
	util.DebugLog("%s: %s failed: %v", r.report.Operation, filename, err)
}

func (r *run) step(filename string) {
	r.done++
	if r.o.progress != nil {
		r.o.progress(r.done, r.report.Total, filename)
	}
}

// finish closes the run; runErr is an error that ended the batch as a whole
func (r *run) finish(runErr error) *Report {
	rep := r.report
	rep.Finished = time.Now()
	r.o.events.LogFinish(rep.Operation, rep.Processed, rep.Skipped, rep.Failed, rep.Duration(), rep.Cancelled)
	if r.o.journal != nil && rep.OperationID != 0 {
		counts := journal.Counts{
			Total:     rep.Total,
			Processed: rep.Processed,
			Skipped:   rep.Skipped,
			Failed:    rep.Failed,
			Created:   rep.Created,
			Cancelled: rep.Cancelled,
		}
		if err := r.o.journal.FinishOperation(rep.OperationID, counts, runErr); err != nil {
			util.DebugLog("Journal write failed: %v", err)
		}
	}
	return rep
}

// validationError marks input errors raised before any item was touched
func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), util.ErrInvalidArgument)
}

// IsValidation reports whether err stopped an operation before it started
func IsValidation(err error) bool {
	return errors.Is(err, util.ErrInvalidArgument) ||
		errors.Is(err, util.ErrNotFound) ||
		errors.Is(err, util.ErrEmpty) ||
		errors.Is(err, util.ErrNotADirectory) ||
		errors.Is(err, util.ErrConflict)
}
