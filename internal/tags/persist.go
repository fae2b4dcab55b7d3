package tags

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/franz/dataset-curator/internal/sidecar"
	"github.com/franz/dataset-curator/internal/util"
)

// FileVersion is written to every tags.json
const FileVersion = "2.0"

type tagsFile struct {
	AvailableTags []string            `json:"availableTags"`
	TagCategories map[string][]string `json:"tagCategories"`
	ImageTags     map[string][]string `json:"imageTags"`
	KeywordTag    *string             `json:"keywordTag"`
	Version       string              `json:"version"`
}

// legacyTagsFile accepts the snake_case layout of older projects
type legacyTagsFile struct {
	tagsFile
	LegacyAvailableTags []string            `json:"available_tags"`
	LegacyTagCategories map[string][]string `json:"tag_categories"`
	LegacyImageTags     map[string][]string `json:"image_tags"`
	LegacyKeywordTag    *string             `json:"keyword_tag"`
}

// Path returns the tags.json path for folder
func Path(folder string) string {
	return filepath.Join(folder, sidecar.TagsFile)
}

// Save writes the store to folder/tags.json
func (s *Store) Save(folder string, cfg *util.RetryConfig) error {
	doc := tagsFile{
		AvailableTags: s.AllTags(),
		TagCategories: s.Categories(),
		ImageTags:     make(map[string][]string, len(s.imageTags)),
		Version:       FileVersion,
	}
	for filename, list := range s.imageTags {
		doc.ImageTags[filename] = append([]string{}, list...)
	}
	if s.keyword != "" {
		keyword := s.keyword
		doc.KeywordTag = &keyword
	}

	data, err := sidecar.EncodeJSON(doc)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	if err := util.WriteFileAtomic(Path(folder), data, cfg); err != nil {
		return fmt.Errorf("failed to save tags: %w", err)
	}
	s.debugf("tags: saved %d tags, %d images", len(doc.AvailableTags), len(doc.ImageTags))
	return nil
}

// Load replaces the store contents with folder/tags.json.
// Returns false with a nil error when the file does not exist; the store is
// then left empty.
func (s *Store) Load(folder string) (bool, error) {
	s.Clear()

	data, err := os.ReadFile(Path(folder))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read tags: %w", err)
	}

	var doc legacyTagsFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, fmt.Errorf("%s: %w: %v", sidecar.TagsFile, util.ErrCorrupt, err)
	}
	doc.merge()

	// hand-edited files may hold "a, b" as one entry; split like ParseTags
	for category, list := range doc.TagCategories {
		for _, tag := range splitTags(list) {
			s.AddTag(tag, category)
		}
	}
	for _, tag := range splitTags(doc.AvailableTags) {
		if !s.HasTag(tag) {
			s.AddTag(tag, DefaultCategory)
		}
	}

	filenames := make([]string, 0, len(doc.ImageTags))
	for filename := range doc.ImageTags {
		filenames = append(filenames, filename)
	}
	sort.Strings(filenames)
	for _, filename := range filenames {
		s.ApplyTags(filename, doc.ImageTags[filename])
	}

	if doc.KeywordTag != nil && *doc.KeywordTag != "" {
		keyword := cleanTag(*doc.KeywordTag)
		if HasSeparator(keyword) {
			s.debugf("tags: ignoring keyword %q with a separator", keyword)
		} else {
			if !s.HasTag(keyword) {
				s.AddTag(keyword, DefaultCategory)
			}
			s.keyword = keyword
		}
	}

	s.debugf("tags: loaded %d tags, %d images", len(s.available), len(s.imageTags))
	return true, nil
}

// merge fills the camelCase fields from snake_case ones when absent
func (doc *legacyTagsFile) merge() {
	if doc.AvailableTags == nil {
		doc.AvailableTags = doc.LegacyAvailableTags
	}
	if doc.TagCategories == nil {
		doc.TagCategories = doc.LegacyTagCategories
	}
	if doc.ImageTags == nil {
		doc.ImageTags = doc.LegacyImageTags
	}
	if doc.KeywordTag == nil {
		doc.KeywordTag = doc.LegacyKeywordTag
	}
}
