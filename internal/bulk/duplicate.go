package bulk

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/franz/dataset-curator/internal/catalog"
	"github.com/franz/dataset-curator/internal/imaging"
	"github.com/franz/dataset-curator/internal/report"
	"github.com/franz/dataset-curator/internal/sidecar"
	"github.com/franz/dataset-curator/internal/util"
)

// DuplicateOptions configures CreateDuplicates
type DuplicateOptions struct {
	OutputFolder string              `json:"output_folder"` // "" = project folder
	Transforms   []imaging.Transform `json:"transforms"`    // empty = plain duplicate
}

// CreateDuplicates writes one variant per requested transform for every image
// in scope, named {base}{suffix}{ext}. With a separate output folder the
// untouched originals are copied too. Variants share the description of
// their source: .txt sidecars are copied and the description JSON gains an
// entry per variant. Variants inherit the source's tags.
func (o *Orchestrator) CreateDuplicates(ctx context.Context, opts DuplicateOptions, scope Scope) (*Report, error) {
	records, err := scope.resolve(o.project.Catalog)
	if err != nil {
		return nil, err
	}
	folder := o.project.Folder()
	output, err := o.prepareOutput(opts.OutputFolder)
	if err != nil {
		return nil, err
	}
	plan := imaging.Plan(opts.Transforms)
	opts.OutputFolder = output
	opts.Transforms = plan
	separate := !util.SameDir(folder, output)

	jsonName, legacy, err := sidecar.FindLegacyFile(folder, o.project.Catalog.Filenames())
	if err != nil {
		util.WarnLog("Could not read description files: %v", err)
	}
	augmented := sidecar.NewDescriptions()
	if !separate && legacy != nil {
		augmented = legacy
	}

	r := o.begin(OpDuplicate, output, len(records), opts)
	for _, rec := range records {
		if r.cancelled(ctx) {
			break
		}
		description := rec.Description
		if legacy != nil {
			if d, ok := legacy.Get(rec.Filename); ok {
				description = d
			}
		}

		written, ok := o.duplicateOne(r, rec, output, plan, separate)
		for _, name := range written {
			augmented.Set(name, description)
		}
		if ok {
			r.report.Processed++
		}
		r.step(rec.Filename)
	}

	var runErr error
	if jsonName != "" && augmented.Len() > 0 {
		dest := filepath.Join(folder, jsonName)
		if separate {
			dest = filepath.Join(output, sidecar.AugmentedName(jsonName))
		}
		if err := sidecar.WriteDescriptionsFile(dest, augmented, o.retry); err != nil {
			runErr = fmt.Errorf("failed to write %s: %w", filepath.Base(dest), err)
			util.ErrorLog("%v", runErr)
		} else {
			util.DebugLog("Wrote %d descriptions to %s", augmented.Len(), dest)
		}
	}

	if err := o.project.AdoptVariants(output, r.report.Variants); err != nil {
		util.ErrorLog("Could not carry tags over to the variants: %v", err)
		if runErr == nil {
			runErr = err
		}
	}
	return r.finish(runErr), runErr
}

// duplicateOne writes the variants of one image and returns the filenames
// written to output. ok is false when any of them failed.
func (o *Orchestrator) duplicateOne(r *run, rec *catalog.ImageRecord, output string, plan []imaging.Transform, separate bool) (files []string, ok bool) {
	started := time.Now()
	base, ext := util.SplitExt(rec.Filename)

	if separate {
		dest := filepath.Join(output, rec.Filename)
		written, err := util.CopyFile(rec.Path, dest, o.retry)
		if err != nil {
			r.fail(rec.Filename, fmt.Errorf("failed to copy original: %w", err))
			return nil, false
		}
		o.copyText(rec.Filename, output, rec.Filename)
		r.report.Variants[rec.Filename] = rec.Filename
		o.events.LogItem(r.report.Operation, report.EventProcess, rec.Filename, rec.Path, dest, written, time.Since(started), nil)
		files = append(files, rec.Filename)
	}

	var img image.Image
	ok = true
	for _, t := range plan {
		started := time.Now()
		name := base + t.Suffix() + ext
		dest := filepath.Join(output, name)

		var written int64
		var err error
		switch {
		case t == imaging.Duplicate:
			written, err = util.CopyFile(rec.Path, dest, o.retry)
		case !imaging.CanEncode(rec.Filename):
			err = fmt.Errorf("cannot write %s: %w", ext, util.ErrUnsupported)
		default:
			if img == nil {
				img, err = o.processor.Decode(rec.Path)
			}
			if err == nil {
				written, err = o.encodeReplace(dest, o.processor.Apply(img, t))
			}
		}
		if err != nil {
			r.fail(name, err)
			ok = false
			continue
		}

		o.copyText(rec.Filename, output, name)
		r.created(rec.Filename, name, dest, written, started)
		files = append(files, name)
	}
	return files, ok
}
