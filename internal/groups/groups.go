// Package groups clusters images into named, collapsible groups.
//
// Every filename belongs to at most one group. The store keeps a
// bidirectional index (group members and filename -> group id) and reports
// mismatches through ValidateConsistency instead of repairing them.
package groups

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/franz/dataset-curator/internal/util"
)

// Group is a named set of images
type Group struct {
	ID               string
	Name             string
	ImageFilenames   []string
	Expanded         bool
	CreatedTimestamp string
}

// Len returns the number of members
func (g *Group) Len() int {
	return len(g.ImageFilenames)
}

func (g *Group) has(filename string) bool {
	for _, name := range g.ImageFilenames {
		if name == filename {
			return true
		}
	}
	return false
}

func (g *Group) add(filename string) {
	if !g.has(filename) {
		g.ImageFilenames = append(g.ImageFilenames, filename)
	}
}

func (g *Group) remove(filename string) {
	out := g.ImageFilenames[:0]
	for _, name := range g.ImageFilenames {
		if name != filename {
			out = append(out, name)
		}
	}
	g.ImageFilenames = out
}

// EntryKind distinguishes display rows
type EntryKind string

const (
	KindGroup EntryKind = "group"
	KindImage EntryKind = "image"
)

// Entry is one row of the display order. Data is a group id for group rows
// and a filename for image rows.
type Entry struct {
	Kind   EntryKind
	Data   string
	Member bool
}

// Statistics summarizes group usage
type Statistics struct {
	TotalGroups        int
	TotalGroupedImages int
	LargestGroupSize   int
	AverageGroupSize   int
}

// Store is a single-writer group store
type Store struct {
	groups       map[string]*Group
	imageToGroup map[string]string
	sink         util.LogSink
	now          func() time.Time
	newID        func() string
}

// NewStore creates an empty group store
func NewStore() *Store {
	return &Store{
		groups:       make(map[string]*Group),
		imageToGroup: make(map[string]string),
		now:          time.Now,
		newID:        func() string { return uuid.NewString() },
	}
}

// SetSink attaches a diagnostic sink (nil disables tracing)
func (s *Store) SetSink(sink util.LogSink) {
	s.sink = sink
}

func (s *Store) debugf(format string, args ...interface{}) {
	if s.sink != nil {
		s.sink.Debugf(format, args...)
	}
}

// CreateGroup creates a group owning exactly filenames. Each filename is
// detached from its prior group first.
func (s *Store) CreateGroup(name string, filenames []string) string {
	for _, filename := range filenames {
		s.detach(filename)
	}

	group := &Group{
		ID:               s.newID(),
		Name:             name,
		Expanded:         true,
		CreatedTimestamp: s.now().UTC().Format(time.RFC3339),
	}
	for _, filename := range filenames {
		group.add(filename)
		s.imageToGroup[filename] = group.ID
	}
	s.groups[group.ID] = group

	s.debugf("groups: created %s %q with %d images", group.ID, name, group.Len())
	return group.ID
}

// RenameGroup changes the display name of a group
func (s *Store) RenameGroup(id, name string) bool {
	group, ok := s.groups[id]
	if !ok {
		return false
	}
	group.Name = name
	return true
}

// DeleteGroup removes a group. Its members become ungrouped.
func (s *Store) DeleteGroup(id string) bool {
	group, ok := s.groups[id]
	if !ok {
		return false
	}
	for _, filename := range group.ImageFilenames {
		if s.imageToGroup[filename] == id {
			delete(s.imageToGroup, filename)
		}
	}
	delete(s.groups, id)
	s.debugf("groups: deleted %s (%d members ungrouped)", id, group.Len())
	return true
}

// AddImagesToGroup moves filenames into group id
func (s *Store) AddImagesToGroup(id string, filenames []string) bool {
	group, ok := s.groups[id]
	if !ok {
		return false
	}
	for _, filename := range filenames {
		s.detach(filename)
		group.add(filename)
		s.imageToGroup[filename] = id
	}
	return true
}

// RemoveImagesFromGroup detaches filenames from group id
func (s *Store) RemoveImagesFromGroup(id string, filenames []string) bool {
	group, ok := s.groups[id]
	if !ok {
		return false
	}
	for _, filename := range filenames {
		group.remove(filename)
		if s.imageToGroup[filename] == id {
			delete(s.imageToGroup, filename)
		}
	}
	return true
}

// detach removes filename from whatever group holds it
func (s *Store) detach(filename string) bool {
	id, ok := s.imageToGroup[filename]
	if !ok {
		return false
	}
	if group, ok := s.groups[id]; ok {
		group.remove(filename)
	} else {
		s.debugf("groups: %s mapped to missing group %s", filename, id)
	}
	delete(s.imageToGroup, filename)
	return true
}

// Group returns the group with id, or nil
func (s *Store) Group(id string) *Group {
	return s.groups[id]
}

// GroupFor returns the group holding filename, or nil
func (s *Store) GroupFor(filename string) *Group {
	id, ok := s.imageToGroup[filename]
	if !ok {
		return nil
	}
	return s.groups[id]
}

// FindByName returns the groups whose name matches case-insensitively
func (s *Store) FindByName(name string) []*Group {
	var out []*Group
	for _, group := range s.All() {
		if strings.EqualFold(group.Name, name) {
			out = append(out, group)
		}
	}
	return out
}

// All returns every group sorted by name (case-insensitive), ties by id
func (s *Store) All() []*Group {
	out := make([]*Group, 0, len(s.groups))
	for _, group := range s.groups {
		out = append(out, group)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Ungrouped returns the filenames of all that are not in any group
func (s *Store) Ungrouped(all []string) []string {
	var out []string
	for _, filename := range all {
		if _, ok := s.imageToGroup[filename]; !ok {
			out = append(out, filename)
		}
	}
	return out
}

// ToggleExpanded flips the expanded flag of a group
func (s *Store) ToggleExpanded(id string) bool {
	group, ok := s.groups[id]
	if !ok {
		return false
	}
	group.Expanded = !group.Expanded
	return true
}

// SetExpanded sets the expanded flag of a group
func (s *Store) SetExpanded(id string, expanded bool) bool {
	group, ok := s.groups[id]
	if !ok {
		return false
	}
	group.Expanded = expanded
	return true
}

// IsExpanded reports the expanded flag; unknown groups count as expanded
func (s *Store) IsExpanded(id string) bool {
	if group, ok := s.groups[id]; ok {
		return group.Expanded
	}
	return true
}

// ExpandAll expands every group
func (s *Store) ExpandAll() {
	for _, group := range s.groups {
		group.Expanded = true
	}
}

// CollapseAll collapses every group
func (s *Store) CollapseAll() {
	for _, group := range s.groups {
		group.Expanded = false
	}
}

// CleanupEmpty deletes groups without members and returns how many
func (s *Store) CleanupEmpty() int {
	removed := 0
	for id, group := range s.groups {
		if group.Len() == 0 {
			s.DeleteGroup(id)
			removed++
		}
	}
	return removed
}

// RenameImage relabels filename inside its group, keeping its position
func (s *Store) RenameImage(oldName, newName string) bool {
	id, ok := s.imageToGroup[oldName]
	if !ok {
		return false
	}
	if group, ok := s.groups[id]; ok {
		for i, name := range group.ImageFilenames {
			if name == oldName {
				group.ImageFilenames[i] = newName
			}
		}
	}
	delete(s.imageToGroup, oldName)
	s.imageToGroup[newName] = id
	s.debugf("groups: renamed %s -> %s in %s", oldName, newName, id)
	return true
}

// RemoveImage detaches filename and deletes groups left empty
func (s *Store) RemoveImage(filename string) {
	if s.detach(filename) {
		s.debugf("groups: removed %s", filename)
	}
	s.CleanupEmpty()
}

// DisplayOrder returns the render order: each group header (sorted by
// name), its present members when expanded, then every ungrouped image.
func (s *Store) DisplayOrder(all []string) []Entry {
	present := make(map[string]bool, len(all))
	for _, filename := range all {
		present[filename] = true
	}

	var order []Entry
	for _, group := range s.All() {
		order = append(order, Entry{Kind: KindGroup, Data: group.ID})
		if !group.Expanded {
			continue
		}
		for _, filename := range group.ImageFilenames {
			if present[filename] {
				order = append(order, Entry{Kind: KindImage, Data: filename, Member: true})
			}
		}
	}
	for _, filename := range s.Ungrouped(all) {
		order = append(order, Entry{Kind: KindImage, Data: filename})
	}
	return order
}

// ValidateConsistency lists every index mismatch without repairing it
func (s *Store) ValidateConsistency() []string {
	var issues []string

	filenames := make([]string, 0, len(s.imageToGroup))
	for filename := range s.imageToGroup {
		filenames = append(filenames, filename)
	}
	sort.Strings(filenames)
	for _, filename := range filenames {
		id := s.imageToGroup[filename]
		if _, ok := s.groups[id]; !ok {
			issues = append(issues, fmt.Sprintf("image %s mapped to non-existent group %s", filename, id))
		}
	}

	for _, group := range s.All() {
		for _, filename := range group.ImageFilenames {
			if s.imageToGroup[filename] != group.ID {
				issues = append(issues, fmt.Sprintf("group %s contains %s but mapping is inconsistent", group.ID, filename))
			}
		}
	}
	return issues
}

// Statistics returns group usage statistics
func (s *Store) Statistics() Statistics {
	stats := Statistics{
		TotalGroups:        len(s.groups),
		TotalGroupedImages: len(s.imageToGroup),
	}
	for _, group := range s.groups {
		if group.Len() > stats.LargestGroupSize {
			stats.LargestGroupSize = group.Len()
		}
	}
	if stats.TotalGroups > 0 {
		stats.AverageGroupSize = stats.TotalGroupedImages / stats.TotalGroups
	}
	return stats
}

// Clear removes every group
func (s *Store) Clear() {
	s.groups = make(map[string]*Group)
	s.imageToGroup = make(map[string]string)
}
