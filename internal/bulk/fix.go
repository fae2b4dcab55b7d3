package bulk

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/franz/dataset-curator/internal/catalog"
	"github.com/franz/dataset-curator/internal/imaging"
	"github.com/franz/dataset-curator/internal/util"
)

// FixOptions configures FixImages
type FixOptions struct {
	TargetSize   int    `json:"target_size"`
	KeepAspect   bool   `json:"keep_aspect"`
	OutputFolder string `json:"output_folder"` // "" = project folder
	AllowUpscale bool   `json:"allow_upscale"`
}

// FixImages resizes every image in scope so its longest side equals
// TargetSize, padding to a white square unless KeepAspect is set. Images
// below imaging.MinDimension fail unless AllowUpscale is set, in which case
// they are upscaled first. Images already at the target shape are copied
// verbatim and counted as skipped.
func (o *Orchestrator) FixImages(ctx context.Context, opts FixOptions, scope Scope) (*Report, error) {
	if opts.TargetSize <= 0 {
		return nil, validationError("target size must be positive, got %d", opts.TargetSize)
	}
	records, err := scope.resolve(o.project.Catalog)
	if err != nil {
		return nil, err
	}
	folder := o.project.Folder()
	output, err := o.prepareOutput(opts.OutputFolder)
	if err != nil {
		return nil, err
	}
	opts.OutputFolder = output
	separate := !util.SameDir(folder, output)

	r := o.begin(OpFixImages, output, len(records), opts)
	for _, rec := range records {
		if r.cancelled(ctx) {
			break
		}
		o.fixOne(r, rec, opts, separate)
		r.step(rec.Filename)
	}

	if separate {
		o.copyMetadata(folder, output)
	}
	return r.finish(nil), nil
}

func (o *Orchestrator) fixOne(r *run, rec *catalog.ImageRecord, opts FixOptions, separate bool) {
	started := time.Now()
	dest := filepath.Join(opts.OutputFolder, rec.Filename)

	w, h, err := o.processor.Dimensions(rec.Path)
	if err != nil {
		r.fail(rec.Filename, err)
		return
	}
	small := w < imaging.MinDimension || h < imaging.MinDimension
	if small && !opts.AllowUpscale {
		r.fail(rec.Filename, fmt.Errorf("%dx%d is below %dx%d: %w", w, h, imaging.MinDimension, imaging.MinDimension, util.ErrTooSmall))
		return
	}

	if atTarget(w, h, opts.TargetSize, opts.KeepAspect) {
		if separate {
			if _, err := util.CopyFile(rec.Path, dest, o.retry); err != nil {
				r.fail(rec.Filename, err)
				return
			}
			o.copyText(rec.Filename, opts.OutputFolder, rec.Filename)
		}
		r.skipped(rec.Filename, fmt.Sprintf("already %dx%d", w, h))
		return
	}

	if !imaging.CanEncode(rec.Filename) {
		r.fail(rec.Filename, fmt.Errorf("cannot write %s: %w", filepath.Ext(rec.Filename), util.ErrUnsupported))
		return
	}

	img, err := o.processor.Decode(rec.Path)
	if err != nil {
		r.fail(rec.Filename, err)
		return
	}
	if small {
		img = o.processor.Upscale(img, imaging.MinDimension)
	}
	img = o.processor.Fit(img, opts.TargetSize, opts.KeepAspect)

	written, err := o.encodeReplace(dest, img)
	if err != nil {
		r.fail(rec.Filename, err)
		return
	}
	if separate {
		o.copyText(rec.Filename, opts.OutputFolder, rec.Filename)
	}
	r.processed(rec.Filename, rec.Path, dest, written, started)
}

// atTarget reports whether an image already has the requested shape
func atTarget(w, h, target int, keepAspect bool) bool {
	if keepAspect {
		return max(w, h) == target
	}
	return w == target && h == target
}
