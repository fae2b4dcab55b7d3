package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/dataset-curator/internal/util"
)

func createTestFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
}

func setupFolder(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		createTestFile(t, filepath.Join(dir, name), "img")
	}
	return dir
}

func assertContiguous(t *testing.T, c *Catalog) {
	t.Helper()
	seen := make(map[int]bool)
	for _, rec := range c.Records() {
		if rec.DisplayIndex < 0 || rec.DisplayIndex >= c.Len() {
			t.Errorf("DisplayIndex %d out of range [0,%d)", rec.DisplayIndex, c.Len())
		}
		if seen[rec.DisplayIndex] {
			t.Errorf("Duplicate DisplayIndex %d", rec.DisplayIndex)
		}
		seen[rec.DisplayIndex] = true
	}
}

func TestLoadFolder_ThreeImagesNoSidecars(t *testing.T) {
	dir := setupFolder(t, "c.jpg", "a.jpg", "b.jpg", "notes.md")

	c := New()
	records, err := c.LoadFolder(dir)
	if err != nil {
		t.Fatalf("LoadFolder failed: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	for i, want := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		if records[i].Filename != want {
			t.Errorf("Record %d: expected %s, got %s", i, want, records[i].Filename)
		}
		if records[i].DisplayIndex != i {
			t.Errorf("Record %d: expected DisplayIndex %d, got %d", i, i, records[i].DisplayIndex)
		}
		if records[i].Description != "" {
			t.Errorf("Record %d: expected empty description, got %q", i, records[i].Description)
		}
		if records[i].Path != filepath.Join(dir, want) {
			t.Errorf("Record %d: unexpected path %s", i, records[i].Path)
		}
	}
}

func TestLoadFolder_ExtensionsCaseInsensitive(t *testing.T) {
	dir := setupFolder(t, "a.JPG", "b.Jpeg", "c.png", "d.WEBP", "e.gif", "f.txt")

	c := New()
	records, err := c.LoadFolder(dir)
	if err != nil {
		t.Fatalf("LoadFolder failed: %v", err)
	}
	if len(records) != 4 {
		t.Errorf("Expected 4 supported images, got %d", len(records))
	}
}

func TestLoadFolder_Errors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.jpg")
	createTestFile(t, file, "img")
	empty := t.TempDir()
	createTestFile(t, filepath.Join(empty, "readme.txt"), "hello")

	testCases := []struct {
		name string
		path string
		want error
	}{
		{"missing folder", filepath.Join(dir, "missing"), util.ErrNotFound},
		{"file instead of folder", file, util.ErrNotADirectory},
		{"no images", empty, util.ErrEmpty},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := New()
			if _, err := c.LoadFolder(tc.path); !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadFolder_DescriptionSources(t *testing.T) {
	dir := setupFolder(t, "a.jpg", "b.jpg", "c.jpg")
	createTestFile(t, filepath.Join(dir, "legacy.json"), `[{"fileName": "a.jpg", "description": "from json"}]`)
	createTestFile(t, filepath.Join(dir, "a.txt"), "from text a")
	createTestFile(t, filepath.Join(dir, "b.txt"), "  from text b  \n")

	c := New()
	records, err := c.LoadFolder(dir)
	if err != nil {
		t.Fatalf("LoadFolder failed: %v", err)
	}

	expected := []string{"from json", "from text b", ""}
	for i, want := range expected {
		if records[i].Description != want {
			t.Errorf("%s: expected %q, got %q", records[i].Filename, want, records[i].Description)
		}
	}
}

func TestUpdateDescription(t *testing.T) {
	c := New()
	if _, err := c.LoadFolder(setupFolder(t, "a.jpg")); err != nil {
		t.Fatalf("LoadFolder failed: %v", err)
	}

	if !c.UpdateDescription(0, "  red hair \n") {
		t.Fatal("UpdateDescription failed")
	}
	if got := c.Get(0).Description; got != "red hair" {
		t.Errorf("Expected trimmed description, got %q", got)
	}
	if c.UpdateDescription(5, "x") || c.UpdateDescription(-1, "x") {
		t.Error("Expected out-of-range update to fail")
	}
}

func TestRemoveImage_KeepsIndicesContiguous(t *testing.T) {
	c := New()
	if _, err := c.LoadFolder(setupFolder(t, "a.jpg", "b.jpg", "c.jpg", "d.jpg")); err != nil {
		t.Fatalf("LoadFolder failed: %v", err)
	}
	before := c.Stats().TotalImages

	if !c.RemoveImage(1) {
		t.Fatal("RemoveImage failed")
	}
	if got := c.Stats().TotalImages; got != before-1 {
		t.Errorf("Expected %d images, got %d", before-1, got)
	}
	assertContiguous(t, c)

	if c.RemoveImage(10) {
		t.Error("Expected invalid index to fail")
	}

	// Remove after a custom display order
	c.SetDisplayOrder([]string{"d.jpg", "a.jpg", "c.jpg"})
	if !c.RemoveImage(c.IndexOf("a.jpg")) {
		t.Fatal("RemoveImage failed")
	}
	assertContiguous(t, c)
	if _, rec := c.FindByDisplayIndex(0); rec == nil || rec.Filename != "d.jpg" {
		t.Errorf("Expected d.jpg at row 0, got %+v", rec)
	}
}

func TestFindByDisplayIndex(t *testing.T) {
	c := New()
	if _, err := c.LoadFolder(setupFolder(t, "a.jpg", "b.jpg")); err != nil {
		t.Fatalf("LoadFolder failed: %v", err)
	}

	idx, rec := c.FindByDisplayIndex(1)
	if idx != 1 || rec.Filename != "b.jpg" {
		t.Errorf("Expected (1, b.jpg), got (%d, %v)", idx, rec)
	}
	if idx, rec := c.FindByDisplayIndex(7); idx != -1 || rec != nil {
		t.Errorf("Expected not-found sentinel, got (%d, %v)", idx, rec)
	}
}

func TestAppendKeywordToAll(t *testing.T) {
	c := New()
	dir := setupFolder(t, "a.jpg", "b.jpg")
	createTestFile(t, filepath.Join(dir, "a.txt"), "red hair")
	if _, err := c.LoadFolder(dir); err != nil {
		t.Fatalf("LoadFolder failed: %v", err)
	}

	if n := c.AppendKeywordToAll("1girl"); n != 2 {
		t.Errorf("Expected 2 updates, got %d", n)
	}
	if got := c.Get(0).Description; got != "red hair 1girl" {
		t.Errorf("Expected 'red hair 1girl', got %q", got)
	}
	if got := c.Get(1).Description; got != "1girl" {
		t.Errorf("Expected '1girl', got %q", got)
	}

	if n := c.AppendKeywordToAll("   "); n != 0 {
		t.Errorf("Expected blank word to be a no-op, got %d", n)
	}
	if n := New().AppendKeywordToAll("x"); n != 0 {
		t.Errorf("Expected empty catalog to be a no-op, got %d", n)
	}
}

func TestAppendKeyword_Selection(t *testing.T) {
	c := New()
	dir := setupFolder(t, "a.jpg", "b.jpg", "c.jpg")
	if _, err := c.LoadFolder(dir); err != nil {
		t.Fatalf("LoadFolder failed: %v", err)
	}

	if n := c.AppendKeyword("smile", []string{"b.jpg", "missing.jpg"}); n != 1 {
		t.Errorf("Expected 1 update, got %d", n)
	}
	for _, name := range []string{"a.jpg", "c.jpg"} {
		if got := c.Lookup(name).Description; got != "" {
			t.Errorf("Expected %s untouched, got %q", name, got)
		}
	}
	if got := c.Lookup("b.jpg").Description; got != "smile" {
		t.Errorf("Expected 'smile', got %q", got)
	}
}

func TestStats(t *testing.T) {
	c := New()
	dir := setupFolder(t, "a.jpg", "b.jpg", "c.jpg")
	createTestFile(t, filepath.Join(dir, "a.txt"), "abcd")
	createTestFile(t, filepath.Join(dir, "b.txt"), "abcdefg")
	if _, err := c.LoadFolder(dir); err != nil {
		t.Fatalf("LoadFolder failed: %v", err)
	}

	stats := c.Stats()
	if stats.TotalImages != 3 || stats.WithDescriptions != 2 || stats.WithoutDescriptions != 1 {
		t.Errorf("Unexpected counts: %+v", stats)
	}
	if stats.AvgDescriptionLength != 5.5 {
		t.Errorf("Expected average 5.5, got %v", stats.AvgDescriptionLength)
	}

	if empty := New().Stats(); empty.AvgDescriptionLength != 0 || empty.TotalImages != 0 {
		t.Errorf("Expected zero stats, got %+v", empty)
	}
}

func TestRenameImage(t *testing.T) {
	c := New()
	dir := setupFolder(t, "a.jpg")
	if _, err := c.LoadFolder(dir); err != nil {
		t.Fatalf("LoadFolder failed: %v", err)
	}

	if !c.RenameImage("a.jpg", "img_001.jpg") {
		t.Fatal("RenameImage failed")
	}
	rec := c.Lookup("img_001.jpg")
	if rec == nil || rec.Path != filepath.Join(dir, "img_001.jpg") {
		t.Errorf("Unexpected record after rename: %+v", rec)
	}
	if c.RenameImage("missing.jpg", "x.jpg") {
		t.Error("Expected rename of unknown image to fail")
	}
}

func TestIndexOf_NormalizesUnicode(t *testing.T) {
	decomposed := "cafe\u0301.jpg"
	composed := "caf\u00e9.jpg"

	c := New()
	if _, err := c.LoadFolder(setupFolder(t, decomposed)); err != nil {
		t.Fatalf("LoadFolder failed: %v", err)
	}
	if c.IndexOf(composed) != 0 {
		t.Error("Expected composed spelling to match decomposed filename")
	}
}
