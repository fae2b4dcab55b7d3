package project

import (
	"fmt"
	"sort"

	"github.com/franz/dataset-curator/internal/sidecar"
	"github.com/franz/dataset-curator/internal/tags"
	"github.com/franz/dataset-curator/internal/util"
)

// UpdateDescription replaces the description of filename. In tag mode the
// text is parsed into the image's tag list.
func (p *Project) UpdateDescription(filename, text string) error {
	rec, err := p.resolve(filename)
	if err != nil {
		return err
	}
	p.Catalog.UpdateDescription(p.Catalog.IndexOf(rec.Filename), text)
	if p.tagMode {
		p.Tags.ApplyTags(rec.Filename, tags.ParseTags(rec.Description))
	}
	return p.autosave()
}

// AppendKeywordToAll appends word to every description. In tag mode word
// is added as a tag to every image instead.
func (p *Project) AppendKeywordToAll(word string) (int, error) {
	return p.AppendKeyword(word, nil)
}

// AppendKeyword appends word to the named images, or to every image when
// filenames is empty. In tag mode word is added as a tag instead.
func (p *Project) AppendKeyword(word string, filenames []string) (int, error) {
	targets := p.Catalog.Filenames()
	if len(filenames) > 0 {
		resolved, err := p.resolveAll(filenames)
		if err != nil {
			return 0, err
		}
		targets = resolved
	}

	if !p.tagMode {
		n := p.Catalog.AppendKeyword(word, targets)
		if n == 0 {
			return 0, nil
		}
		return n, p.autosave()
	}

	parsed := tags.ParseTags(word)
	if len(parsed) == 0 || len(targets) == 0 {
		return 0, nil
	}
	for _, name := range targets {
		p.Tags.AddTags(name, parsed)
	}
	return len(targets), p.autosave()
}

// ApplyTags replaces the tag list of filename
func (p *Project) ApplyTags(filename string, list []string) error {
	rec, err := p.resolve(filename)
	if err != nil {
		return err
	}
	p.Tags.ApplyTags(rec.Filename, list)
	p.tagMode = true
	return p.autosave()
}

// AddTags merges tags into the tag list of filename
func (p *Project) AddTags(filename string, list []string) error {
	rec, err := p.resolve(filename)
	if err != nil {
		return err
	}
	p.Tags.AddTags(rec.Filename, list)
	p.tagMode = true
	return p.autosave()
}

// RemoveTag removes one tag from filename
func (p *Project) RemoveTag(filename, tag string) error {
	rec, err := p.resolve(filename)
	if err != nil {
		return err
	}
	if !p.Tags.RemoveTag(rec.Filename, tag) {
		return fmt.Errorf("tag %q on %s: %w", tag, rec.Filename, util.ErrNotFound)
	}
	return p.autosave()
}

// RegisterTag adds tag to the vocabulary
func (p *Project) RegisterTag(tag, category string) (string, error) {
	if tags.HasSeparator(tag) {
		return "", fmt.Errorf("tag %q contains ',' or ';': %w", tag, util.ErrInvalidArgument)
	}
	clean := p.Tags.AddTag(tag, category)
	if clean == "" {
		return "", fmt.Errorf("empty tag: %w", util.ErrInvalidArgument)
	}
	return clean, p.autosave()
}

// DeleteTag deregisters tag everywhere
func (p *Project) DeleteTag(tag string) error {
	if !p.Tags.DeleteTag(tag) {
		return fmt.Errorf("tag %q: %w", tag, util.ErrNotFound)
	}
	return p.autosave()
}

// SetKeyword pins tag to the front of every tag list
func (p *Project) SetKeyword(tag string) error {
	if err := p.Tags.SetKeyword(tag); err != nil {
		return err
	}
	return p.autosave()
}

// ClearKeyword unpins the keyword
func (p *Project) ClearKeyword() error {
	p.Tags.ClearKeyword()
	return p.autosave()
}

// ToggleKeyword sets or clears tag as the keyword
func (p *Project) ToggleKeyword(tag string) error {
	if err := p.Tags.ToggleKeyword(tag); err != nil {
		return err
	}
	return p.autosave()
}

// MigrateFromDescriptions parses every description into tags and switches
// the project to tag mode
func (p *Project) MigrateFromDescriptions() (int, error) {
	n := p.Tags.MigrateFromDescriptions(p.Catalog.Records())
	if n > 0 {
		p.tagMode = true
	}
	return n, p.autosave()
}

// ExportToDescriptions rewrites every description from its tags
func (p *Project) ExportToDescriptions() (int, error) {
	n := p.Tags.ExportToDescriptions(p.Catalog.Records())
	return n, p.autosave()
}

// CreateGroup groups filenames under name
func (p *Project) CreateGroup(name string, filenames []string) (string, error) {
	resolved, err := p.resolveAll(filenames)
	if err != nil {
		return "", err
	}
	if len(resolved) == 0 {
		return "", fmt.Errorf("group %q has no images: %w", name, util.ErrInvalidArgument)
	}
	id := p.Groups.CreateGroup(name, resolved)
	return id, p.Commit()
}

// DeleteGroup ungroups the members of a group and removes it
func (p *Project) DeleteGroup(id string) error {
	if !p.Groups.DeleteGroup(id) {
		return fmt.Errorf("group %q: %w", id, util.ErrNotFound)
	}
	return p.Commit()
}

// RenameGroup changes the name of a group
func (p *Project) RenameGroup(id, name string) error {
	if !p.Groups.RenameGroup(id, name) {
		return fmt.Errorf("group %q: %w", id, util.ErrNotFound)
	}
	return p.Commit()
}

// AddToGroup moves filenames into a group
func (p *Project) AddToGroup(id string, filenames []string) error {
	resolved, err := p.resolveAll(filenames)
	if err != nil {
		return err
	}
	if !p.Groups.AddImagesToGroup(id, resolved) {
		return fmt.Errorf("group %q: %w", id, util.ErrNotFound)
	}
	return p.Commit()
}

// RemoveFromGroup ungroups filenames
func (p *Project) RemoveFromGroup(id string, filenames []string) error {
	resolved, err := p.resolveAll(filenames)
	if err != nil {
		return err
	}
	if !p.Groups.RemoveImagesFromGroup(id, resolved) {
		return fmt.Errorf("group %q: %w", id, util.ErrNotFound)
	}
	return p.Commit()
}

// SetGroupExpanded expands or collapses a group; an empty id applies to all
func (p *Project) SetGroupExpanded(id string, expanded bool) error {
	switch {
	case id == "" && expanded:
		p.Groups.ExpandAll()
	case id == "":
		p.Groups.CollapseAll()
	case !p.Groups.SetExpanded(id, expanded):
		return fmt.Errorf("group %q: %w", id, util.ErrNotFound)
	}
	return p.Commit()
}

// RenameImage relabels one image in every store. The file itself must
// already have been renamed.
func (p *Project) RenameImage(oldName, newName string) error {
	return p.ApplyRenames(map[string]string{oldName: newName})
}

// ApplyRenames relabels images in every store after a batch rename.
// Entries are moved through temporary keys so chains like a->b, b->c
// resolve correctly.
func (p *Project) ApplyRenames(mapping map[string]string) error {
	olds := make([]string, 0, len(mapping))
	for old := range mapping {
		if _, err := p.resolve(old); err != nil {
			return err
		}
		olds = append(olds, old)
	}
	sort.Strings(olds)

	temps := make([]string, len(olds))
	for i, old := range olds {
		temps[i] = fmt.Sprintf("\x00rename-%d", i)
		p.relabel(old, temps[i])
	}
	for i, old := range olds {
		p.relabel(temps[i], mapping[old])
	}

	return p.Commit()
}

func (p *Project) relabel(oldName, newName string) {
	p.Catalog.RenameImage(oldName, newName)
	p.Tags.RenameImage(oldName, newName)
	p.Groups.RenameImage(oldName, newName)
}

// RemoveImage drops filename from every store. With fromDisk the image and
// its .txt sidecar are deleted too.
func (p *Project) RemoveImage(filename string, fromDisk bool) error {
	rec, err := p.resolve(filename)
	if err != nil {
		return err
	}
	name := rec.Filename

	if fromDisk {
		if err := util.RetryableRemove(rec.Path, p.opts.Retry); err != nil {
			return fmt.Errorf("failed to delete %s: %w", name, err)
		}
		if _, err := sidecar.RemoveText(p.folder, name, p.opts.Retry); err != nil {
			util.WarnLog("Could not delete %s: %v", sidecar.TextName(name), err)
		}
	}

	p.Catalog.RemoveImage(p.Catalog.IndexOf(name))
	p.Tags.RemoveImage(name)
	p.Groups.RemoveImage(name)
	return p.Commit()
}

// AdoptVariants takes over tags for files created from existing images.
// variants maps each new filename to its source filename. Variants written
// into the project folder are loaded into the catalog and inherit the
// source's tags; for another folder a tags.json holding the copied tags is
// written there.
func (p *Project) AdoptVariants(outputFolder string, variants map[string]string) error {
	if len(variants) == 0 {
		return nil
	}

	if util.SameDir(outputFolder, p.folder) {
		if _, err := p.Reload(); err != nil {
			return err
		}
		if p.tagMode {
			for variant, src := range variants {
				p.Tags.CopyImageTags(src, variant)
			}
		}
		return p.Commit()
	}

	if !p.tagMode {
		return nil
	}
	return p.Tags.Subset(variants).Save(outputFolder, p.opts.Retry)
}
