package groups

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

// FileVersion is written to every groups.json
const FileVersion = "1.0"

type groupRecord struct {
	GroupID          string   `json:"group_id"`
	Name             string   `json:"name"`
	ImageFilenames   []string `json:"image_filenames"`
	Expanded         *bool    `json:"expanded"`
	CreatedTimestamp *string  `json:"created_timestamp"`
}

type groupsFile struct {
	Groups       map[string]groupRecord `json:"groups"`
	ImageToGroup map[string]string      `json:"image_to_group"`
	Version      string                 `json:"version"`
}

// Path returns the groups.json path for folder
func Path(folder string) string {
	return filepath.Join(folder, sidecar.GroupsFile)
}

// Save writes the store to folder/groups.json
func (s *Store) Save(folder string, cfg *util.RetryConfig) error {
	doc := groupsFile{
		Groups:       make(map[string]groupRecord, len(s.groups)),
		ImageToGroup: make(map[string]string, len(s.imageToGroup)),
		Version:      FileVersion,
	}
	for id, group := range s.groups {
		expanded := group.Expanded
		rec := groupRecord{
			GroupID:        group.ID,
			Name:           group.Name,
			ImageFilenames: append([]string{}, group.ImageFilenames...),
			Expanded:       &expanded,
		}
		if group.CreatedTimestamp != "" {
			created := group.CreatedTimestamp
			rec.CreatedTimestamp = &created
		}
		doc.Groups[id] = rec
	}
	for filename, id := range s.imageToGroup {
		doc.ImageToGroup[filename] = id
	}

	data, err := sidecar.EncodeJSON(doc)
	if err != nil {
		return fmt.Errorf("failed to encode groups: %w", err)
	}
	if err := util.WriteFileAtomic(Path(folder), data, cfg); err != nil {
		return fmt.Errorf("failed to save groups: %w", err)
	}
	s.debugf("groups: saved %d groups", len(doc.Groups))
	return nil
}

// Load replaces the store contents with folder/groups.json.
// Returns false with a nil error when the file does not exist.
// Groups are stored under their group_id. Index entries that name a
// group by its map key are pointed at the group_id; other
// inconsistencies are loaded as stored and surface via
// ValidateConsistency.
func (s *Store) Load(folder string) (bool, error) {
	s.Clear()

	data, err := os.ReadFile(Path(folder))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read groups: %w", err)
	}

	var doc groupsFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, fmt.Errorf("%s: %w: %v", sidecar.GroupsFile, util.ErrCorrupt, err)
	}

	keys := make([]string, 0, len(doc.Groups))
	for key := range doc.Groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	// groups are keyed by group_id; the map key is only a fallback
	renamed := make(map[string]string)
	for _, key := range keys {
		rec := doc.Groups[key]
		group := &Group{
			ID:             rec.GroupID,
			Name:           rec.Name,
			ImageFilenames: append([]string(nil), rec.ImageFilenames...),
			Expanded:       true,
		}
		if group.ID == "" {
			group.ID = key
		}
		if _, taken := s.groups[group.ID]; taken {
			s.debugf("groups: duplicate group_id %s, keeping %s under its key", group.ID, key)
			group.ID = key
		}
		if group.ID != key {
			s.debugf("groups: key %s holds group_id %s", key, group.ID)
			renamed[key] = group.ID
		}
		if rec.Expanded != nil {
			group.Expanded = *rec.Expanded
		}
		if rec.CreatedTimestamp != nil {
			group.CreatedTimestamp = *rec.CreatedTimestamp
		}
		s.groups[group.ID] = group
	}
	for filename, id := range doc.ImageToGroup {
		if _, ok := s.groups[id]; !ok && renamed[id] != "" {
			id = renamed[id]
		}
		s.imageToGroup[filename] = id
	}

	s.debugf("groups: loaded %d groups", len(s.groups))
	return true, nil
}
