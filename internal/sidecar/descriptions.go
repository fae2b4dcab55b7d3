// Package sidecar reads and writes the legacy description files that live
// next to the images of a dataset folder: per-image .txt files and the
// combined JSON description files used by older tooling.
package sidecar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/franz/dataset-curator/internal/util"
)

const (
	// TagsFile holds the tag store of a project folder
	TagsFile = "tags.json"
	// GroupsFile holds the group store of a project folder
	GroupsFile = "groups.json"

	consolidatedSuffix = "_descriptions.json"
	augmentedSuffix    = "_augmented.json"
)

// Format identifies which of the two legacy JSON layouts a file used
type Format int

const (
	// FormatList is a list of {fileName, description} objects
	FormatList Format = iota
	// FormatMap is a flat {filename: description} object
	FormatMap
)

// Entry is one element of the list layout
type Entry struct {
	FileName    string `json:"fileName"`
	Description string `json:"description"`
}

// Descriptions is the normalized form of a legacy description file.
// Both layouts decode into the same filename -> description map; Order keeps
// the on-disk order so a rewrite does not shuffle the file.
type Descriptions struct {
	Format Format
	Order  []string
	ByName map[string]string
}

// NewDescriptions returns an empty list-layout description set
func NewDescriptions() *Descriptions {
	return &Descriptions{Format: FormatList, ByName: make(map[string]string)}
}

// Set adds or replaces the description of filename
func (d *Descriptions) Set(filename, description string) {
	if _, ok := d.ByName[filename]; !ok {
		d.Order = append(d.Order, filename)
	}
	d.ByName[filename] = description
}

// Get returns the description of filename
func (d *Descriptions) Get(filename string) (string, bool) {
	desc, ok := d.ByName[filename]
	return desc, ok
}

// Len returns the number of entries
func (d *Descriptions) Len() int {
	return len(d.Order)
}

// Entries returns the descriptions in file order
func (d *Descriptions) Entries() []Entry {
	entries := make([]Entry, 0, len(d.Order))
	for _, name := range d.Order {
		entries = append(entries, Entry{FileName: name, Description: d.ByName[name]})
	}
	return entries
}

// Rename relabels entries according to mapping (old -> new).
// Returns the number of entries renamed.
func (d *Descriptions) Rename(mapping map[string]string) int {
	renamed := 0
	byName := make(map[string]string, len(d.ByName))
	for i, name := range d.Order {
		desc := d.ByName[name]
		if newName, ok := mapping[name]; ok {
			d.Order[i] = newName
			name = newName
			renamed++
		}
		byName[name] = desc
	}
	d.ByName = byName
	return renamed
}

// ParseDescriptions decodes either legacy layout
func ParseDescriptions(data []byte) (*Descriptions, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty description file: %w", util.ErrCorrupt)
	}

	switch trimmed[0] {
	case '[':
		var items []map[string]interface{}
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("failed to parse description list: %w", err)
		}
		d := NewDescriptions()
		for _, item := range items {
			name, okName := item["fileName"].(string)
			desc, okDesc := item["description"].(string)
			if !okName || !okDesc {
				continue
			}
			d.Set(name, desc)
		}
		return d, nil

	case '{':
		var flat map[string]string
		if err := json.Unmarshal(trimmed, &flat); err != nil {
			return nil, fmt.Errorf("failed to parse description map: %w", err)
		}
		d := &Descriptions{Format: FormatMap, ByName: make(map[string]string, len(flat))}
		names := make([]string, 0, len(flat))
		for name := range flat {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			d.Set(name, flat[name])
		}
		return d, nil
	}

	return nil, fmt.Errorf("unrecognized description layout: %w", util.ErrCorrupt)
}

// Marshal encodes the descriptions in the layout they were read with
func (d *Descriptions) Marshal() ([]byte, error) {
	if d.Format == FormatMap {
		flat := make(map[string]string, len(d.ByName))
		for name, desc := range d.ByName {
			flat[name] = desc
		}
		return EncodeJSON(flat)
	}
	return EncodeJSON(d.Entries())
}

// ReadDescriptionsFile reads and parses a legacy description file
func ReadDescriptionsFile(path string) (*Descriptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := ParseDescriptions(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return d, nil
}

// WriteDescriptionsFile writes d to path, replacing the file
func WriteDescriptionsFile(path string, d *Descriptions, cfg *util.RetryConfig) error {
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	return util.WriteFileAtomic(path, data, cfg)
}

// EncodeJSON marshals v with two-space indentation and without HTML escaping
func EncodeJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ConsolidatedName returns the name of the export file written on every save
func ConsolidatedName(folder string) string {
	return filepath.Base(filepath.Clean(folder)) + consolidatedSuffix
}

// AugmentedName returns the name of the augmented copy of a description file
func AugmentedName(jsonFilename string) string {
	base, _ := util.SplitExt(jsonFilename)
	return base + augmentedSuffix
}

// IsProjectFile reports whether name is one of the store files (tags/groups)
func IsProjectFile(name string) bool {
	return name == TagsFile || name == GroupsFile
}

// ListJSONFiles returns every *.json file in folder, sorted
func ListJSONFiles(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// FindLegacyFile locates the description file of a folder. Candidates are
// the consolidated export, then every other JSON file in name order. The
// first candidate describing at least one of images wins; when none does,
// the first candidate that parses is used. Returns "" and nil when there is
// none.
func FindLegacyFile(folder string, images []string) (string, *Descriptions, error) {
	names, err := ListJSONFiles(folder)
	if err != nil {
		return "", nil, err
	}

	consolidated := ConsolidatedName(folder)
	candidates := make([]string, 0, len(names))
	for _, name := range names {
		if IsProjectFile(name) || strings.HasSuffix(name, augmentedSuffix) {
			continue
		}
		if name == consolidated {
			candidates = append([]string{name}, candidates...)
			continue
		}
		candidates = append(candidates, name)
	}

	fallbackName := ""
	var fallback *Descriptions
	for _, name := range candidates {
		d, err := ReadDescriptionsFile(filepath.Join(folder, name))
		if err != nil {
			util.WarnLog("Ignoring description file %s: %v", name, err)
			continue
		}
		if d.describesAny(images) {
			return name, d, nil
		}
		if fallback == nil {
			fallbackName, fallback = name, d
		}
	}
	if fallback != nil {
		util.DebugLog("No description file matches the images, using %s", fallbackName)
	}
	return fallbackName, fallback, nil
}

func (d *Descriptions) describesAny(images []string) bool {
	for _, name := range images {
		if _, ok := d.Get(name); ok {
			return true
		}
	}
	return false
}

// RenameInDescriptionFiles rewrites every description-shaped JSON file in
// folder, replacing filenames according to mapping. Files that do not parse
// as description data (tags.json, groups.json, foreign JSON) are left alone.
// Returns the names of the files that changed.
func RenameInDescriptionFiles(folder string, mapping map[string]string, cfg *util.RetryConfig) ([]string, error) {
	if len(mapping) == 0 {
		return nil, nil
	}
	names, err := ListJSONFiles(folder)
	if err != nil {
		return nil, err
	}

	var updated []string
	for _, name := range names {
		if IsProjectFile(name) {
			continue
		}
		path := filepath.Join(folder, name)
		d, err := ReadDescriptionsFile(path)
		if err != nil {
			continue
		}
		if d.Rename(mapping) == 0 {
			continue
		}
		if err := WriteDescriptionsFile(path, d, cfg); err != nil {
			return updated, fmt.Errorf("failed to update %s: %w", name, err)
		}
		updated = append(updated, name)
	}
	return updated, nil
}
