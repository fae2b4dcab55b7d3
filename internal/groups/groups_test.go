package groups

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/franz/dataset-curator/internal/util"
)

// newTestStore returns a store with predictable ids and timestamps
func newTestStore() *Store {
	s := NewStore()
	next := 0
	s.newID = func() string {
		next++
		return fmt.Sprintf("g%d", next)
	}
	s.now = func() time.Time {
		return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	}
	return s
}

func assertConsistent(t *testing.T, s *Store) {
	t.Helper()
	if issues := s.ValidateConsistency(); len(issues) != 0 {
		t.Fatalf("Expected consistent store, got %q", issues)
	}
	seen := make(map[string]string)
	for _, group := range s.All() {
		for _, filename := range group.ImageFilenames {
			if other, ok := seen[filename]; ok {
				t.Fatalf("%s is in groups %s and %s", filename, other, group.ID)
			}
			seen[filename] = group.ID
		}
	}
}

func TestCreateGroup(t *testing.T) {
	s := newTestStore()
	id := s.CreateGroup("Portraits", []string{"a.jpg", "b.jpg"})

	group := s.Group(id)
	if group == nil {
		t.Fatal("Expected group to exist")
	}
	if !group.Expanded {
		t.Error("New groups should be expanded")
	}
	if group.CreatedTimestamp != "2024-05-01T12:00:00Z" {
		t.Errorf("Unexpected timestamp %q", group.CreatedTimestamp)
	}
	if s.GroupFor("a.jpg") != group {
		t.Error("a.jpg should map to the new group")
	}
	assertConsistent(t, s)
}

func TestCreateGroup_MovesImagesOut(t *testing.T) {
	s := newTestStore()
	first := s.CreateGroup("first", []string{"a.jpg", "b.jpg"})
	second := s.CreateGroup("second", []string{"b.jpg", "c.jpg"})

	if got := s.Group(first).ImageFilenames; !reflect.DeepEqual(got, []string{"a.jpg"}) {
		t.Errorf("Expected first group to keep only a.jpg, got %q", got)
	}
	if s.GroupFor("b.jpg").ID != second {
		t.Error("b.jpg should belong to the second group")
	}
	assertConsistent(t, s)
}

func TestMembershipSequence(t *testing.T) {
	s := newTestStore()
	g1 := s.CreateGroup("one", []string{"a.jpg", "b.jpg"})
	g2 := s.CreateGroup("two", []string{"c.jpg"})

	steps := []func(){
		func() { s.AddImagesToGroup(g2, []string{"a.jpg", "d.jpg"}) },
		func() { s.RemoveImagesFromGroup(g1, []string{"b.jpg"}) },
		func() { s.AddImagesToGroup(g1, []string{"c.jpg", "a.jpg"}) },
		func() { s.RemoveImagesFromGroup(g2, []string{"a.jpg"}) },
		func() { s.CreateGroup("three", []string{"a.jpg", "d.jpg", "e.jpg"}) },
		func() { s.DeleteGroup(g2) },
	}
	for i, step := range steps {
		step()
		if issues := s.ValidateConsistency(); len(issues) != 0 {
			t.Fatalf("Step %d left issues: %q", i, issues)
		}
	}
	assertConsistent(t, s)
}

func TestAddRemove_UnknownGroup(t *testing.T) {
	s := newTestStore()
	if s.AddImagesToGroup("missing", []string{"a.jpg"}) {
		t.Error("Expected false for unknown group")
	}
	if s.RemoveImagesFromGroup("missing", []string{"a.jpg"}) {
		t.Error("Expected false for unknown group")
	}
	if s.GroupFor("a.jpg") != nil {
		t.Error("a.jpg should stay ungrouped")
	}
}

func TestDeleteGroup_UngroupsMembers(t *testing.T) {
	s := newTestStore()
	id := s.CreateGroup("x", []string{"a.jpg", "b.jpg"})

	if !s.DeleteGroup(id) {
		t.Fatal("Expected DeleteGroup to succeed")
	}
	if got := s.Ungrouped([]string{"a.jpg", "b.jpg"}); !reflect.DeepEqual(got, []string{"a.jpg", "b.jpg"}) {
		t.Errorf("Expected members to be ungrouped, got %q", got)
	}
	if s.DeleteGroup(id) {
		t.Error("Deleting twice should return false")
	}
}

func TestRenameImage_KeepsPosition(t *testing.T) {
	s := newTestStore()
	id := s.CreateGroup("x", []string{"a.jpg", "b.jpg", "c.jpg"})

	if !s.RenameImage("b.jpg", "z.jpg") {
		t.Fatal("Expected rename to succeed")
	}
	if got := s.Group(id).ImageFilenames; !reflect.DeepEqual(got, []string{"a.jpg", "z.jpg", "c.jpg"}) {
		t.Errorf("Unexpected members %q", got)
	}
	if s.RenameImage("nope.jpg", "x.jpg") {
		t.Error("Renaming an ungrouped image should return false")
	}
	assertConsistent(t, s)
}

func TestRemoveImage_CleansEmptyGroups(t *testing.T) {
	s := newTestStore()
	solo := s.CreateGroup("solo", []string{"a.jpg"})
	pair := s.CreateGroup("pair", []string{"b.jpg", "c.jpg"})

	s.RemoveImage("a.jpg")
	if s.Group(solo) != nil {
		t.Error("Empty group should be removed")
	}
	s.RemoveImage("b.jpg")
	if s.Group(pair) == nil {
		t.Error("Non-empty group should survive")
	}
	assertConsistent(t, s)
}

func TestDisplayOrder(t *testing.T) {
	s := newTestStore()
	beta := s.CreateGroup("beta", []string{"c.jpg", "gone.jpg"})
	alpha := s.CreateGroup("Alpha", []string{"b.jpg"})
	collapsed := s.CreateGroup("collapsed", []string{"d.jpg"})
	s.SetExpanded(collapsed, false)

	all := []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"}
	want := []Entry{
		{Kind: KindGroup, Data: alpha},
		{Kind: KindImage, Data: "b.jpg", Member: true},
		{Kind: KindGroup, Data: beta},
		{Kind: KindImage, Data: "c.jpg", Member: true},
		{Kind: KindGroup, Data: collapsed},
		{Kind: KindImage, Data: "a.jpg"},
		{Kind: KindImage, Data: "e.jpg"},
	}

	got := s.DisplayOrder(all)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DisplayOrder mismatch\n got: %+v\nwant: %+v", got, want)
	}
}

func TestExpansion(t *testing.T) {
	s := newTestStore()
	a := s.CreateGroup("a", []string{"1.jpg"})
	b := s.CreateGroup("b", []string{"2.jpg"})

	s.ToggleExpanded(a)
	if s.IsExpanded(a) {
		t.Error("Expected a collapsed after toggle")
	}
	s.ExpandAll()
	if !s.IsExpanded(a) || !s.IsExpanded(b) {
		t.Error("Expected all expanded")
	}
	s.CollapseAll()
	if s.IsExpanded(a) || s.IsExpanded(b) {
		t.Error("Expected all collapsed")
	}
	if !s.IsExpanded("missing") {
		t.Error("Unknown groups count as expanded")
	}
	if s.ToggleExpanded("missing") {
		t.Error("Toggling an unknown group should return false")
	}
}

func TestValidateConsistency_ReportsWithoutRepair(t *testing.T) {
	s := newTestStore()
	id := s.CreateGroup("x", []string{"a.jpg"})

	s.imageToGroup["ghost.jpg"] = "missing"
	s.groups[id].ImageFilenames = append(s.groups[id].ImageFilenames, "stray.jpg")

	issues := s.ValidateConsistency()
	if len(issues) != 2 {
		t.Fatalf("Expected 2 issues, got %q", issues)
	}
	if _, ok := s.imageToGroup["ghost.jpg"]; !ok {
		t.Error("Validation must not repair the index")
	}
}

func TestStatistics(t *testing.T) {
	s := newTestStore()
	s.CreateGroup("a", []string{"1.jpg", "2.jpg", "3.jpg"})
	s.CreateGroup("b", []string{"4.jpg"})

	stats := s.Statistics()
	if stats.TotalGroups != 2 || stats.TotalGroupedImages != 4 {
		t.Errorf("Unexpected totals: %+v", stats)
	}
	if stats.LargestGroupSize != 3 {
		t.Errorf("Expected largest 3, got %d", stats.LargestGroupSize)
	}
	if stats.AverageGroupSize != 2 {
		t.Errorf("Expected average 2, got %d", stats.AverageGroupSize)
	}
}

func TestSink(t *testing.T) {
	s := newTestStore()
	sink := &util.RecordingSink{}
	s.SetSink(sink)

	s.CreateGroup("x", []string{"a.jpg"})
	s.RemoveImage("a.jpg")

	if len(sink.Messages) < 2 {
		t.Errorf("Expected trace messages, got %q", sink.Messages)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore()
	a := s.CreateGroup("a", []string{"1.jpg", "2.jpg"})
	s.CreateGroup("b", []string{"3.jpg"})
	s.SetExpanded(a, false)

	if err := s.Save(dir, util.DefaultRetryConfig()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := NewStore()
	found, err := loaded.Load(dir)
	if err != nil || !found {
		t.Fatalf("Load failed: found=%v err=%v", found, err)
	}

	if !reflect.DeepEqual(loaded.groups, s.groups) {
		t.Errorf("Groups differ after round trip")
	}
	if !reflect.DeepEqual(loaded.imageToGroup, s.imageToGroup) {
		t.Errorf("Index differs after round trip")
	}
	assertConsistent(t, loaded)
}

func TestLoad_DefaultsAndErrors(t *testing.T) {
	dir := t.TempDir()

	found, err := NewStore().Load(dir)
	if err != nil || found {
		t.Fatalf("Expected not found without error, got found=%v err=%v", found, err)
	}

	doc := `{"groups": {"g1": {"group_id": "g1", "name": "x", "image_filenames": ["a.jpg"], "created_timestamp": null}},
"image_to_group": {"a.jpg": "g1"}, "version": "1.0"}`
	if err := os.WriteFile(filepath.Join(dir, "groups.json"), []byte(doc), 0644); err != nil {
		t.Fatalf("Failed to write groups.json: %v", err)
	}
	s := NewStore()
	if _, err := s.Load(dir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !s.IsExpanded("g1") {
		t.Error("Missing expanded flag should default to true")
	}

	if err := os.WriteFile(filepath.Join(dir, "groups.json"), []byte("[broken"), 0644); err != nil {
		t.Fatalf("Failed to write groups.json: %v", err)
	}
	if _, err := NewStore().Load(dir); !errors.Is(err, util.ErrCorrupt) {
		t.Errorf("Expected ErrCorrupt, got %v", err)
	}
}

func TestLoad_KeysGroupsByGroupID(t *testing.T) {
	dir := t.TempDir()
	doc := `{"groups": {
  "k1": {"group_id": "g1", "name": "renamed", "image_filenames": ["a.jpg", "b.jpg"]},
  "k2": {"group_id": "g1", "name": "dup", "image_filenames": ["c.jpg"]}},
"image_to_group": {"a.jpg": "g1", "b.jpg": "k1", "c.jpg": "k2"}, "version": "1.0"}`
	if err := os.WriteFile(filepath.Join(dir, "groups.json"), []byte(doc), 0644); err != nil {
		t.Fatalf("Failed to write groups.json: %v", err)
	}

	s := NewStore()
	if _, err := s.Load(dir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	group := s.Group("g1")
	if group == nil || group.Name != "renamed" {
		t.Fatalf("Expected group g1 by its group_id, got %+v", group)
	}
	if s.Group("k1") != nil {
		t.Error("Expected no group under the stale key k1")
	}
	if dup := s.Group("k2"); dup == nil || dup.Name != "dup" {
		t.Errorf("Expected duplicate group_id kept under key k2, got %+v", dup)
	}
	assertConsistent(t, s)

	for _, entry := range s.DisplayOrder([]string{"a.jpg", "b.jpg", "c.jpg"}) {
		if entry.Kind == KindGroup && s.Group(entry.Data) == nil {
			t.Errorf("Display order names unknown group %s", entry.Data)
		}
	}

	if !s.DeleteGroup("g1") {
		t.Fatal("Expected DeleteGroup(g1) to succeed")
	}
	if s.Group("g1") != nil {
		t.Error("Expected g1 gone after delete")
	}
	if _, ok := s.imageToGroup["a.jpg"]; ok {
		t.Error("Expected a.jpg ungrouped after delete")
	}
	if _, ok := s.imageToGroup["b.jpg"]; ok {
		t.Error("Expected b.jpg ungrouped after delete")
	}
}
