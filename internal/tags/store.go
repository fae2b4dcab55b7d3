// Package tags keeps the tag vocabulary of a project and the tag lists of
// its images.
//
// Tag lists are stored in insertion order. The keyword tag is an overlay
// applied at read time: TagsFor moves it to the front of any list holding it.
package tags

import (
	"fmt"
	"sort"

	"github.com/franz/dataset-curator/internal/catalog"
	"github.com/franz/dataset-curator/internal/util"
)

// DefaultCategory is the category normal flows register tags under
const DefaultCategory = "general"

// Statistics summarizes tag usage
type Statistics struct {
	TotalTags           int
	ImagesWithTags      int
	TotalTagAssignments int
	UnusedTags          int
	HasKeyword          bool
}

// Store is a single-writer tag store
type Store struct {
	available  map[string]struct{}
	categories map[string][]string
	imageTags  map[string][]string
	keyword    string
	sink       util.LogSink
}

// NewStore creates an empty tag store
func NewStore() *Store {
	return &Store{
		available:  make(map[string]struct{}),
		categories: make(map[string][]string),
		imageTags:  make(map[string][]string),
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

// AddTag registers tag under category. Returns the cleaned tag, or "" if
// blank or holding a separator.
func (s *Store) AddTag(tag, category string) string {
	tag = cleanTag(tag)
	if tag == "" || HasSeparator(tag) {
		return ""
	}
	if category == "" {
		category = DefaultCategory
	}

	s.available[tag] = struct{}{}
	for _, existing := range s.categories[category] {
		if existing == tag {
			return tag
		}
	}
	s.categories[category] = append(s.categories[category], tag)
	return tag
}

// HasTag reports whether tag is registered
func (s *Store) HasTag(tag string) bool {
	_, ok := s.available[tag]
	return ok
}

// DeleteTag deregisters tag, strips it from every image and clears the
// keyword if it was the keyword. Returns false if the tag was unknown.
func (s *Store) DeleteTag(tag string) bool {
	if !s.HasTag(tag) {
		return false
	}
	delete(s.available, tag)

	for category, list := range s.categories {
		s.categories[category] = without(list, tag)
	}
	for filename, list := range s.imageTags {
		s.imageTags[filename] = without(list, tag)
	}
	if s.keyword == tag {
		s.keyword = ""
	}
	s.debugf("tags: deleted %q", tag)
	return true
}

// AllTags returns every registered tag, sorted
func (s *Store) AllTags() []string {
	out := make([]string, 0, len(s.available))
	for tag := range s.available {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Categories returns a copy of the category mapping
func (s *Store) Categories() map[string][]string {
	out := make(map[string][]string, len(s.categories))
	for category, list := range s.categories {
		out[category] = append([]string(nil), list...)
	}
	return out
}

// ApplyTags replaces the tag list of filename, keeping the given order.
// Entries holding ',' or ';' are split the way ParseTags splits text. New
// tags are registered.
func (s *Store) ApplyTags(filename string, tags []string) {
	clean := splitTags(tags)
	s.imageTags[filename] = clean
	for _, tag := range clean {
		if !s.HasTag(tag) {
			s.AddTag(tag, DefaultCategory)
		}
	}
}

// AddTags merges tags into the tag list of filename without duplicates
func (s *Store) AddTags(filename string, tags []string) {
	merged := append([]string(nil), s.imageTags[filename]...)
	present := make(map[string]bool, len(merged))
	for _, tag := range merged {
		present[tag] = true
	}
	for _, tag := range splitTags(tags) {
		if present[tag] {
			continue
		}
		present[tag] = true
		merged = append(merged, tag)
	}
	s.ApplyTags(filename, merged)
}

// RemoveTag removes tag from one image. The tag stays registered.
func (s *Store) RemoveTag(filename, tag string) bool {
	list, ok := s.imageTags[filename]
	if !ok || !contains(list, tag) {
		return false
	}
	s.imageTags[filename] = without(list, tag)
	return true
}

// RawTags returns the tag list of filename in insertion order
func (s *Store) RawTags(filename string) []string {
	return append([]string(nil), s.imageTags[filename]...)
}

// TagsFor returns the tag list of filename in presentation order
func (s *Store) TagsFor(filename string) []string {
	return s.presentationOrder(s.imageTags[filename])
}

func (s *Store) presentationOrder(list []string) []string {
	out := make([]string, 0, len(list))
	if s.keyword == "" || !contains(list, s.keyword) {
		return append(out, list...)
	}
	out = append(out, s.keyword)
	for _, tag := range list {
		if tag != s.keyword {
			out = append(out, tag)
		}
	}
	return out
}

// FormatDescription renders tags as a description, keyword first
func (s *Store) FormatDescription(tags []string) string {
	return JoinTags(s.presentationOrder(tags))
}

// Keyword returns the keyword tag, or "" when none is set
func (s *Store) Keyword() string {
	return s.keyword
}

// IsKeyword reports whether tag is the keyword
func (s *Store) IsKeyword(tag string) bool {
	return s.keyword != "" && s.keyword == tag
}

// SetKeyword makes tag the keyword. The tag must be registered.
func (s *Store) SetKeyword(tag string) error {
	if !s.HasTag(tag) {
		return fmt.Errorf("keyword %q: %w", tag, util.ErrNotFound)
	}
	s.keyword = tag
	return nil
}

// ClearKeyword unsets the keyword
func (s *Store) ClearKeyword() {
	s.keyword = ""
}

// ToggleKeyword clears the keyword if tag is the keyword, else sets it
func (s *Store) ToggleKeyword(tag string) error {
	if s.IsKeyword(tag) {
		s.ClearKeyword()
		return nil
	}
	return s.SetKeyword(tag)
}

// MigrateFromDescriptions converts every non-blank description into a tag
// list. Returns the number of records migrated.
func (s *Store) MigrateFromDescriptions(records []*catalog.ImageRecord) int {
	migrated := 0
	for _, rec := range records {
		parsed := ParseTags(rec.Description)
		if len(parsed) == 0 {
			continue
		}
		s.ApplyTags(rec.Filename, parsed)
		rec.Tags = s.TagsFor(rec.Filename)
		migrated++
	}
	return migrated
}

// ExportToDescriptions rewrites every description from the record's tags,
// keyword first. Records without tags get an empty description.
// Returns the number of records that have tags.
func (s *Store) ExportToDescriptions(records []*catalog.ImageRecord) int {
	withTags := 0
	for _, rec := range records {
		rec.Tags = s.TagsFor(rec.Filename)
		if len(rec.Tags) == 0 {
			rec.Description = ""
			continue
		}
		rec.Description = JoinTags(rec.Tags)
		withTags++
	}
	return withTags
}

// ImageCountForTag returns how many images carry tag
func (s *Store) ImageCountForTag(tag string) int {
	count := 0
	for _, list := range s.imageTags {
		if contains(list, tag) {
			count++
		}
	}
	return count
}

// UnusedTags returns registered tags no image carries, sorted
func (s *Store) UnusedTags() []string {
	used := make(map[string]bool)
	for _, list := range s.imageTags {
		for _, tag := range list {
			used[tag] = true
		}
	}
	var unused []string
	for _, tag := range s.AllTags() {
		if !used[tag] {
			unused = append(unused, tag)
		}
	}
	return unused
}

// HasAnyImageTags reports whether at least one image carries a tag
func (s *Store) HasAnyImageTags() bool {
	for _, list := range s.imageTags {
		if len(list) > 0 {
			return true
		}
	}
	return false
}

// Images returns the filenames that have a tag list, sorted
func (s *Store) Images() []string {
	out := make([]string, 0, len(s.imageTags))
	for filename := range s.imageTags {
		out = append(out, filename)
	}
	sort.Strings(out)
	return out
}

// ClearImage drops the tag list of filename
func (s *Store) ClearImage(filename string) {
	delete(s.imageTags, filename)
}

// RenameImage moves the tag list of oldName to newName
func (s *Store) RenameImage(oldName, newName string) bool {
	list, ok := s.imageTags[oldName]
	if !ok {
		return false
	}
	delete(s.imageTags, oldName)
	s.imageTags[newName] = list
	s.debugf("tags: renamed %s -> %s", oldName, newName)
	return true
}

// RemoveImage forgets filename
func (s *Store) RemoveImage(filename string) {
	if _, ok := s.imageTags[filename]; ok {
		delete(s.imageTags, filename)
		s.debugf("tags: removed %s", filename)
	}
}

// CopyImageTags gives dst the same raw tag list as src.
// Returns false when src has no tag list.
func (s *Store) CopyImageTags(src, dst string) bool {
	list, ok := s.imageTags[src]
	if !ok {
		return false
	}
	s.imageTags[dst] = append([]string(nil), list...)
	return true
}

// Subset returns a new store with the same vocabulary and keyword holding
// the tag lists named in mapping (destination -> source filename). One source
// may feed several destinations.
func (s *Store) Subset(mapping map[string]string) *Store {
	out := NewStore()
	for category, list := range s.categories {
		out.categories[category] = append([]string(nil), list...)
	}
	for tag := range s.available {
		out.available[tag] = struct{}{}
	}
	out.keyword = s.keyword
	for dst, src := range mapping {
		if list, ok := s.imageTags[src]; ok {
			out.imageTags[dst] = append([]string(nil), list...)
		}
	}
	return out
}

// Statistics returns tag usage statistics
func (s *Store) Statistics() Statistics {
	stats := Statistics{
		TotalTags:  len(s.available),
		UnusedTags: len(s.UnusedTags()),
		HasKeyword: s.keyword != "",
	}
	for _, list := range s.imageTags {
		if len(list) > 0 {
			stats.ImagesWithTags++
		}
		stats.TotalTagAssignments += len(list)
	}
	return stats
}

// Clear removes every tag, assignment and the keyword
func (s *Store) Clear() {
	s.available = make(map[string]struct{})
	s.categories = make(map[string][]string)
	s.imageTags = make(map[string][]string)
	s.keyword = ""
}

func contains(list []string, tag string) bool {
	for _, existing := range list {
		if existing == tag {
			return true
		}
	}
	return false
}

func without(list []string, tag string) []string {
	out := make([]string, 0, len(list))
	for _, existing := range list {
		if existing != tag {
			out = append(out, existing)
		}
	}
	return out
}
