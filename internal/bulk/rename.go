package bulk

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/franz/dataset-curator/internal/sidecar"
	"github.com/franz/dataset-curator/internal/util"
)

// RenameOptions configures MassRename
type RenameOptions struct {
	Prefix   string `json:"prefix"`
	Scramble bool   `json:"scramble"`
}

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// SequenceWidth is the zero-padded width of rename sequence numbers
func SequenceWidth(n int) int {
	return max(3, len(strconv.Itoa(n)))
}

// letterSource deals letters without replacement and reshuffles once the
// alphabet is used up
type letterSource struct {
	rng  *rand.Rand
	pool []byte
}

func (l *letterSource) next() byte {
	if len(l.pool) == 0 {
		var perm []int
		if l.rng != nil {
			perm = l.rng.Perm(len(alphabet))
		} else {
			perm = rand.Perm(len(alphabet))
		}
		l.pool = make([]byte, len(perm))
		for i, p := range perm {
			l.pool[i] = alphabet[p]
		}
	}
	c := l.pool[0]
	l.pool = l.pool[1:]
	return c
}

// renameTarget is one planned rename
type renameTarget struct {
	from string
	to   string
	temp string
}

// ProposeNames returns the new filename of every entry of filenames, in
// order: {prefix}_{seq}{ext}, or {prefix}_{letter}{seq}{ext} when scrambling.
func ProposeNames(filenames []string, prefix string, scramble bool, rng *rand.Rand) []string {
	width := SequenceWidth(len(filenames))
	letters := &letterSource{rng: rng}
	out := make([]string, len(filenames))
	for i, name := range filenames {
		_, ext := util.SplitExt(name)
		seq := fmt.Sprintf("%0*d", width, i+1)
		if scramble {
			out[i] = fmt.Sprintf("%s_%c%s%s", prefix, letters.next(), seq, ext)
		} else {
			out[i] = fmt.Sprintf("%s_%s%s", prefix, seq, ext)
		}
	}
	return out
}

// MassRename renames every image in scope to a sequential name built from
// prefix. The whole batch is checked first: if any new name is held by a
// file outside the batch nothing is renamed and the error wraps
// util.ErrConflict. Files move through temporary names so the batch may
// reuse names its own members hold. Sidecars, JSON description files and
// the tag and group stores follow the rename.
func (o *Orchestrator) MassRename(ctx context.Context, opts RenameOptions, scope Scope) (*Report, error) {
	opts.Prefix = strings.TrimSpace(opts.Prefix)
	if opts.Prefix == "" {
		return nil, validationError("prefix must not be empty")
	}
	if strings.ContainsAny(opts.Prefix, `/\`) {
		return nil, validationError("prefix %q must not contain path separators", opts.Prefix)
	}
	records, err := scope.resolve(o.project.Catalog)
	if err != nil {
		return nil, err
	}
	folder := o.project.Folder()

	names := make([]string, len(records))
	for i, rec := range records {
		names[i] = rec.Filename
	}
	proposed := ProposeNames(names, opts.Prefix, opts.Scramble, o.rng)

	targets := make([]renameTarget, len(names))
	for i := range names {
		targets[i] = renameTarget{
			from: names[i],
			to:   proposed[i],
			temp: fmt.Sprintf(".dsc-rename-%d-%s", i, names[i]),
		}
	}
	if err := o.preflight(folder, targets); err != nil {
		return nil, err
	}

	r := o.begin(OpRename, "", len(targets), opts)

	// phase 1: move every member out of the way
	var moved []renameTarget
	for _, t := range targets {
		if r.cancelled(ctx) {
			break
		}
		if t.from == t.to {
			r.skipped(t.from, "name unchanged")
			r.step(t.from)
			continue
		}
		if err := o.moveWithText(folder, t.from, t.temp); err != nil {
			r.fail(t.from, err)
			r.step(t.from)
			continue
		}
		moved = append(moved, t)
	}

	// phase 2: runs to completion even when cancelled so no temporary
	// names are left behind
	for _, t := range moved {
		var err error
		if util.FileExists(filepath.Join(folder, t.to)) {
			// held by a member that was never moved out (cancelled run)
			err = fmt.Errorf("%s is still taken: %w", t.to, util.ErrConflict)
		} else {
			err = o.moveWithText(folder, t.temp, t.to)
		}
		if err != nil {
			if restoreErr := o.moveWithText(folder, t.temp, t.from); restoreErr != nil {
				err = fmt.Errorf("%w (file left as %s)", err, t.temp)
			}
			r.fail(t.from, err)
			r.step(t.from)
			continue
		}
		r.renamed(t.from, t.to)
		r.report.Processed++
		r.step(t.from)
	}

	var runErr error
	if len(r.report.Renamed) > 0 {
		updated, err := sidecar.RenameInDescriptionFiles(folder, r.report.Renamed, o.retry)
		if err != nil {
			util.ErrorLog("Could not update description files: %v", err)
			runErr = err
		}
		for _, name := range updated {
			util.DebugLog("Updated filenames in %s", name)
		}
		if err := o.project.ApplyRenames(r.report.Renamed); err != nil {
			util.ErrorLog("Could not save the renamed project: %v", err)
			if runErr == nil {
				runErr = err
			}
		}
	}
	return r.finish(runErr), runErr
}

// preflight fails when a proposed name is taken by a file that is not part
// of the batch, checking both the image and its .txt sidecar
func (o *Orchestrator) preflight(folder string, targets []renameTarget) error {
	inBatch := make(map[string]bool, len(targets)*2)
	for _, t := range targets {
		inBatch[t.from] = true
		inBatch[sidecar.TextName(t.from)] = true
	}

	var conflicts []string
	for _, t := range targets {
		for _, name := range []string{t.to, sidecar.TextName(t.to)} {
			if inBatch[name] {
				continue
			}
			if util.FileExists(filepath.Join(folder, name)) {
				conflicts = append(conflicts, name)
				o.events.LogConflict(OpRename, t.from, name, "target exists outside the batch")
			}
		}
	}
	if len(conflicts) > 0 {
		return fmt.Errorf("%d target name(s) already exist (%s): %w",
			len(conflicts), strings.Join(conflicts, ", "), util.ErrConflict)
	}
	return nil
}

// moveWithText renames an image and its .txt sidecar. A failed sidecar move
// is reported as a warning.
func (o *Orchestrator) moveWithText(folder, from, to string) error {
	if err := util.RetryableRename(filepath.Join(folder, from), filepath.Join(folder, to), o.retry); err != nil {
		return fmt.Errorf("failed to rename %s: %w", from, err)
	}
	textFrom := sidecar.TextPath(folder, from)
	if !util.FileExists(textFrom) {
		return nil
	}
	if err := util.RetryableRename(textFrom, sidecar.TextPath(folder, to), o.retry); err != nil {
		util.WarnLog("Could not rename %s: %v", sidecar.TextName(from), err)
	}
	return nil
}
