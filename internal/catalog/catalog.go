// Package catalog holds the in-memory list of images of a dataset folder.
//
// The catalog is the source of truth for which images exist. Tag and group
// indices are keyed by Filename and are kept in sync by the project layer.
package catalog

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/franz/dataset-curator/internal/sidecar"
	"github.com/franz/dataset-curator/internal/util"
)

// ImageExtensions are the supported image file extensions (matched case-insensitively)
var ImageExtensions = []string{
	".jpg",
	".jpeg",
	".png",
	".webp",
}

// ImageRecord is one image of the catalog
type ImageRecord struct {
	Filename     string
	Path         string
	Description  string
	Tags         []string
	DisplayIndex int
}

// Stats summarizes the descriptions of a catalog
type Stats struct {
	TotalImages          int
	WithDescriptions     int
	WithoutDescriptions  int
	AvgDescriptionLength float64
}

// Catalog is a single-writer store of image records
type Catalog struct {
	folder  string
	records []*ImageRecord
}

// New creates an empty catalog
func New() *Catalog {
	return &Catalog{}
}

// IsImageFile reports whether name has a supported image extension
func IsImageFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, supported := range ImageExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}

// ListImageFiles returns the supported image files of folder, sorted lexicographically.
// The error wraps util.ErrNotFound or util.ErrNotADirectory for a bad folder.
func ListImageFiles(folder string) ([]string, error) {
	if err := util.CheckDir(folder); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !IsImageFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// LoadFolder replaces the catalog contents with the images of folder.
// Descriptions come from the legacy JSON description file when it has an
// entry for the image, else from the image's .txt sidecar, else "".
func (c *Catalog) LoadFolder(folder string) ([]*ImageRecord, error) {
	names, err := ListImageFiles(folder)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%s: %w", folder, util.ErrEmpty)
	}

	jsonName, legacy, err := sidecar.FindLegacyFile(folder, names)
	if err != nil {
		util.WarnLog("Could not scan description files in %s: %v", folder, err)
	}
	if jsonName != "" {
		util.DebugLog("Loaded %d descriptions from %s", legacy.Len(), jsonName)
	}

	records := make([]*ImageRecord, 0, len(names))
	for i, name := range names {
		description := ""
		found := false
		if legacy != nil {
			description, found = legacy.Get(name)
		}
		if !found {
			text, ok, err := sidecar.ReadText(folder, name)
			if err != nil {
				util.WarnLog("Error reading %s: %v", sidecar.TextName(name), err)
			} else if ok {
				description = text
			}
		}

		records = append(records, &ImageRecord{
			Filename:     name,
			Path:         filepath.Join(folder, name),
			Description:  description,
			DisplayIndex: i,
		})
	}

	c.folder = folder
	c.records = records
	return c.Records(), nil
}

// Folder returns the folder the catalog was loaded from
func (c *Catalog) Folder() string {
	return c.folder
}

// Len returns the number of records
func (c *Catalog) Len() int {
	return len(c.records)
}

// Records returns the records in catalog order.
// The slice is a copy; the records are shared.
func (c *Catalog) Records() []*ImageRecord {
	out := make([]*ImageRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Get returns the record at catalog index i, or nil
func (c *Catalog) Get(i int) *ImageRecord {
	if i < 0 || i >= len(c.records) {
		return nil
	}
	return c.records[i]
}

// IndexOf returns the catalog index of filename, or -1.
// Names are compared in Unicode NFC so composed and decomposed spellings match.
func (c *Catalog) IndexOf(filename string) int {
	for i, rec := range c.records {
		if rec.Filename == filename {
			return i
		}
	}
	want := norm.NFC.String(filename)
	for i, rec := range c.records {
		if norm.NFC.String(rec.Filename) == want {
			return i
		}
	}
	return -1
}

// Lookup returns the record for filename, or nil
func (c *Catalog) Lookup(filename string) *ImageRecord {
	return c.Get(c.IndexOf(filename))
}

// Filenames returns every filename in catalog order
func (c *Catalog) Filenames() []string {
	names := make([]string, len(c.records))
	for i, rec := range c.records {
		names[i] = rec.Filename
	}
	return names
}

// UpdateDescription replaces the description at index after trimming whitespace
func (c *Catalog) UpdateDescription(index int, text string) bool {
	rec := c.Get(index)
	if rec == nil {
		return false
	}
	rec.Description = strings.TrimSpace(text)
	return true
}

// RemoveImage removes the record at index and closes the gap in display indices
func (c *Catalog) RemoveImage(index int) bool {
	rec := c.Get(index)
	if rec == nil {
		return false
	}

	c.records = append(c.records[:index], c.records[index+1:]...)
	for _, other := range c.records {
		if other.DisplayIndex > rec.DisplayIndex {
			other.DisplayIndex--
		}
	}
	return true
}

// FindByDisplayIndex returns the catalog index and record shown at row, or (-1, nil)
func (c *Catalog) FindByDisplayIndex(row int) (int, *ImageRecord) {
	for i, rec := range c.records {
		if rec.DisplayIndex == row {
			return i, rec
		}
	}
	return -1, nil
}

// SetDisplayOrder assigns display indices following order. Filenames missing
// from order keep their catalog order after the listed ones, so indices stay a
// permutation of [0, N).
func (c *Catalog) SetDisplayOrder(order []string) {
	assigned := make(map[string]int, len(order))
	next := 0
	for _, name := range order {
		if _, seen := assigned[name]; seen {
			continue
		}
		if c.IndexOf(name) < 0 {
			continue
		}
		assigned[name] = next
		next++
	}
	for _, rec := range c.records {
		if idx, ok := assigned[rec.Filename]; ok {
			rec.DisplayIndex = idx
			continue
		}
		rec.DisplayIndex = next
		next++
	}
}

// Reindex resets display indices to catalog order
func (c *Catalog) Reindex() {
	for i, rec := range c.records {
		rec.DisplayIndex = i
	}
}

// RenameImage relabels a record after its file was renamed on disk
func (c *Catalog) RenameImage(oldName, newName string) bool {
	rec := c.Lookup(oldName)
	if rec == nil {
		return false
	}
	rec.Filename = newName
	rec.Path = filepath.Join(filepath.Dir(rec.Path), newName)
	return true
}

// AppendKeywordToAll appends word to every description, separated by a space.
// Returns the number of records updated.
func (c *Catalog) AppendKeywordToAll(word string) int {
	return c.AppendKeyword(word, c.Filenames())
}

// AppendKeyword appends word to the descriptions of the named images.
// Unknown names are skipped. Returns the number of records updated.
func (c *Catalog) AppendKeyword(word string, filenames []string) int {
	word = strings.TrimSpace(word)
	if word == "" {
		return 0
	}

	n := 0
	for _, name := range filenames {
		rec := c.Lookup(name)
		if rec == nil {
			continue
		}
		if rec.Description == "" {
			rec.Description = word
		} else {
			rec.Description = rec.Description + " " + word
		}
		n++
	}
	return n
}

// Stats returns description statistics
func (c *Catalog) Stats() Stats {
	stats := Stats{TotalImages: len(c.records)}

	totalLength := 0
	for _, rec := range c.records {
		if strings.TrimSpace(rec.Description) == "" {
			continue
		}
		stats.WithDescriptions++
		totalLength += utf8.RuneCountInString(rec.Description)
	}
	stats.WithoutDescriptions = stats.TotalImages - stats.WithDescriptions

	if stats.WithDescriptions > 0 {
		avg := float64(totalLength) / float64(stats.WithDescriptions)
		stats.AvgDescriptionLength = math.Round(avg*10) / 10
	}
	return stats
}
