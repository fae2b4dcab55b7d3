// Package project ties the catalog, tag store and group store of one
// dataset folder together and keeps them in sync with the files on disk.
//
// Every mutating method saves the project before returning. Rename and
// removal of images fan out to all three stores.
package project

import (
	"fmt"
	"path/filepath"

	"github.com/franz/dataset-curator/internal/catalog"
	"github.com/franz/dataset-curator/internal/groups"
	"github.com/franz/dataset-curator/internal/sidecar"
	"github.com/franz/dataset-curator/internal/tags"
	"github.com/franz/dataset-curator/internal/util"
)

// Options configures a project
type Options struct {
	Retry *util.RetryConfig
	// Sink receives store-level trace messages (nil disables them)
	Sink util.LogSink
	// ManualSave disables the save after every mutation
	ManualSave bool
}

// OpenResult describes what Open found on disk
type OpenResult struct {
	Images      int
	TagsFound   bool
	GroupsFound bool
	Migrated    int
	TagMode     bool
}

// SaveResult describes what Save wrote
type SaveResult struct {
	TextWritten      int
	TextRemoved      int
	ConsolidatedPath string
	TagsWritten      bool
}

// Stats combines the statistics of all stores
type Stats struct {
	Catalog catalog.Stats
	Tags    tags.Statistics
	Groups  groups.Statistics
}

// Project is an opened dataset folder
type Project struct {
	folder  string
	Catalog *catalog.Catalog
	Tags    *tags.Store
	Groups  *groups.Store

	tagMode bool
	opts    Options
}

// Open loads folder into a new project
func Open(folder string, opts Options) (*Project, OpenResult, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, OpenResult{}, err
	}
	if err := util.CheckDir(abs); err != nil {
		return nil, OpenResult{}, err
	}
	if opts.Retry == nil {
		opts.Retry = util.DefaultRetryConfig()
	}

	p := &Project{
		folder:  abs,
		Catalog: catalog.New(),
		Tags:    tags.NewStore(),
		Groups:  groups.NewStore(),
		opts:    opts,
	}
	p.Tags.SetSink(opts.Sink)
	p.Groups.SetSink(opts.Sink)

	result, err := p.load()
	if err != nil {
		return nil, result, err
	}
	return p, result, nil
}

// load re-derives all in-memory state from disk
func (p *Project) load() (OpenResult, error) {
	var result OpenResult

	records, err := p.Catalog.LoadFolder(p.folder)
	if err != nil {
		return result, err
	}
	result.Images = len(records)

	if result.GroupsFound, err = p.Groups.Load(p.folder); err != nil {
		return result, err
	}
	if result.TagsFound, err = p.Tags.Load(p.folder); err != nil {
		return result, err
	}
	if !result.TagsFound {
		result.Migrated = p.Tags.MigrateFromDescriptions(records)
		if result.Migrated > 0 {
			util.DebugLog("Migrated %d descriptions to tags", result.Migrated)
		}
	}

	p.tagMode = result.TagsFound || p.Tags.HasAnyImageTags()
	result.TagMode = p.tagMode
	if p.tagMode {
		p.Tags.ExportToDescriptions(records)
	} else {
		for _, rec := range records {
			rec.Tags = nil
		}
	}

	if issues := p.Groups.ValidateConsistency(); len(issues) > 0 {
		util.WarnLog("groups.json has %d consistency issue(s); run 'dsc group check'", len(issues))
	}
	p.refreshDisplayOrder()
	return result, nil
}

// Folder returns the absolute project folder
func (p *Project) Folder() string {
	return p.folder
}

// Retry returns the retry settings for file operations
func (p *Project) Retry() *util.RetryConfig {
	return p.opts.Retry
}

// TagMode reports whether descriptions are derived from tags
func (p *Project) TagMode() bool {
	return p.tagMode
}

// Reload discards in-memory state and reads the folder again
func (p *Project) Reload() (OpenResult, error) {
	return p.load()
}

// Save writes every project file:
//   - tags.json (tag mode only) and groups.json
//   - one .txt per image; in tag mode untagged images lose their stale .txt
//   - the consolidated {folder}_descriptions.json export
func (p *Project) Save() (SaveResult, error) {
	var result SaveResult
	cfg := p.opts.Retry
	records := p.Catalog.Records()

	if !p.tagMode && p.Tags.HasAnyImageTags() {
		p.tagMode = true
	}

	if p.tagMode {
		p.Tags.ExportToDescriptions(records)
		if err := p.Tags.Save(p.folder, cfg); err != nil {
			return result, err
		}
		result.TagsWritten = true
	}
	if err := p.Groups.Save(p.folder, cfg); err != nil {
		return result, err
	}

	entries := make([]sidecar.Entry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, sidecar.Entry{FileName: rec.Filename, Description: rec.Description})

		if rec.Description == "" && p.tagMode {
			removed, err := sidecar.RemoveText(p.folder, rec.Filename, cfg)
			if err != nil {
				return result, fmt.Errorf("failed to remove stale %s: %w", sidecar.TextName(rec.Filename), err)
			}
			if removed {
				result.TextRemoved++
			}
			continue
		}
		if err := sidecar.WriteText(p.folder, rec.Filename, rec.Description, cfg); err != nil {
			return result, fmt.Errorf("failed to write %s: %w", sidecar.TextName(rec.Filename), err)
		}
		result.TextWritten++
	}

	path, err := sidecar.WriteConsolidated(p.folder, entries, cfg)
	if err != nil {
		return result, fmt.Errorf("failed to write %s: %w", sidecar.ConsolidatedName(p.folder), err)
	}
	result.ConsolidatedPath = path

	util.DebugLog("Saved %d descriptions (%d .txt removed)", result.TextWritten, result.TextRemoved)
	return result, nil
}

// autosave persists after a mutation unless saving is manual
func (p *Project) autosave() error {
	if p.opts.ManualSave {
		return nil
	}
	_, err := p.Save()
	return err
}

// Commit saves changes made directly through the stores
func (p *Project) Commit() error {
	p.refreshDisplayOrder()
	return p.autosave()
}

// Stats returns the statistics of every store
func (p *Project) Stats() Stats {
	return Stats{
		Catalog: p.Catalog.Stats(),
		Tags:    p.Tags.Statistics(),
		Groups:  p.Groups.Statistics(),
	}
}

// DisplayOrder returns the group-aware render order of the catalog
func (p *Project) DisplayOrder() []groups.Entry {
	return p.Groups.DisplayOrder(p.Catalog.Filenames())
}

// refreshDisplayOrder aligns catalog display indices with the group layout.
// Members of collapsed groups keep their place behind the group header.
func (p *Project) refreshDisplayOrder() {
	var order []string
	for _, entry := range p.DisplayOrder() {
		switch entry.Kind {
		case groups.KindImage:
			order = append(order, entry.Data)
		case groups.KindGroup:
			if g := p.Groups.Group(entry.Data); g != nil && !g.Expanded {
				order = append(order, g.ImageFilenames...)
			}
		}
	}
	p.Catalog.SetDisplayOrder(order)
}

// resolve maps a user-supplied filename onto the catalog spelling
func (p *Project) resolve(filename string) (*catalog.ImageRecord, error) {
	rec := p.Catalog.Lookup(filename)
	if rec == nil {
		return nil, fmt.Errorf("image %q: %w", filename, util.ErrNotFound)
	}
	return rec, nil
}

func (p *Project) resolveAll(filenames []string) ([]string, error) {
	out := make([]string, 0, len(filenames))
	for _, name := range filenames {
		rec, err := p.resolve(name)
		if err != nil {
			return nil, err
		}
		out = append(out, rec.Filename)
	}
	return out, nil
}
