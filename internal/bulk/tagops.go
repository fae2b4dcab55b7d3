package bulk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/franz/dataset-curator/internal/journal"
	"github.com/franz/dataset-curator/internal/report"
	"github.com/franz/dataset-curator/internal/tags"
	"github.com/franz/dataset-curator/internal/util"
)

// ScrambleOptions configures ScrambleTags
type ScrambleOptions struct {
	PreserveFirst bool `json:"preserve_first"`
}

// ScrambleTags shuffles the tag order of every image in scope that has at
// least two tags. Images with fewer tags are skipped.
func (o *Orchestrator) ScrambleTags(ctx context.Context, opts ScrambleOptions, scope Scope) (*Report, error) {
	if !o.project.TagMode() {
		return nil, validationError("project has no tags; run 'dsc tag migrate' first")
	}
	records, err := scope.resolve(o.project.Catalog)
	if err != nil {
		return nil, err
	}

	r := o.begin(OpScrambleTag, "", len(records), opts)
	for _, rec := range records {
		if r.cancelled(ctx) {
			break
		}
		started := time.Now()
		order, ok := o.project.Tags.Scramble(rec.Filename, opts.PreserveFirst, o.rng)
		if !ok {
			r.skipped(rec.Filename, "fewer than two tags")
		} else {
			r.report.Processed++
			o.events.LogItem(OpScrambleTag, report.EventScramble, rec.Filename, "", tags.JoinTags(order), 0, time.Since(started), nil)
			r.record(rec.Filename, journal.StatusProcessed, tags.JoinTags(order))
		}
		r.step(rec.Filename)
	}

	runErr := o.project.Commit()
	return r.finish(runErr), runErr
}

// Rephraser rewrites one description
type Rephraser interface {
	Rephrase(ctx context.Context, description string) (string, error)
}

// Rephrase sends the description of every image in scope to the rephrasing
// service and stores the answer. In tag mode the answer is parsed into the
// image's tags. Images without a description are skipped; service errors
// fail the image and the batch continues.
func (o *Orchestrator) Rephrase(ctx context.Context, client Rephraser, scope Scope) (*Report, error) {
	if client == nil {
		return nil, validationError("no rephrase client configured")
	}
	records, err := scope.resolve(o.project.Catalog)
	if err != nil {
		return nil, err
	}

	r := o.begin(OpRephrase, "", len(records), nil)
	for _, rec := range records {
		if r.cancelled(ctx) {
			break
		}
		started := time.Now()
		if strings.TrimSpace(rec.Description) == "" {
			r.skipped(rec.Filename, "no description")
			r.step(rec.Filename)
			continue
		}

		answer, err := client.Rephrase(ctx, rec.Description)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				r.cancelled(ctx)
				break
			}
			r.fail(rec.Filename, err)
			r.step(rec.Filename)
			continue
		}

		if o.project.TagMode() {
			parsed := tags.ParseTags(answer)
			if len(parsed) == 0 {
				r.fail(rec.Filename, fmt.Errorf("answer has no tags: %w", util.ErrEmpty))
				r.step(rec.Filename)
				continue
			}
			o.project.Tags.ApplyTags(rec.Filename, parsed)
			answer = o.project.Tags.FormatDescription(o.project.Tags.TagsFor(rec.Filename))
		}
		o.project.Catalog.UpdateDescription(o.project.Catalog.IndexOf(rec.Filename), answer)

		r.report.Processed++
		o.events.LogItem(OpRephrase, report.EventRephrase, rec.Filename, "", "", int64(len(answer)), time.Since(started), nil)
		r.record(rec.Filename, journal.StatusProcessed, answer)
		r.step(rec.Filename)
	}

	runErr := o.project.Commit()
	return r.finish(runErr), runErr
}
