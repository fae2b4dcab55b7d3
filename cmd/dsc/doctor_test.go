package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/franz/dataset-curator/internal/groups"
	"github.com/franz/dataset-curator/internal/journal"
	"github.com/franz/dataset-curator/internal/rephrase"
	"github.com/franz/dataset-curator/internal/tags"
	"github.com/franz/dataset-curator/internal/util"
)

func TestCheckSQLite(t *testing.T) {
	result := checkSQLite()

	if result.error {
		t.Errorf("SQLite check failed: %s", result.message)
	}

	if result.message == "" {
		t.Error("expected version information in message")
	}
}

func TestCheckJournal_NonExistent(t *testing.T) {
	result := checkJournal(filepath.Join(t.TempDir(), "nonexistent.db"))

	// Should not error - the journal is created on the first bulk run
	if result.error {
		t.Errorf("non-existent journal check should not error: %s", result.message)
	}
}

func TestCheckJournal_Existing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := journal.Open(path)
	if err != nil {
		t.Fatalf("failed to create test journal: %v", err)
	}
	if _, err := j.BeginOperation("fix-images", "/data", "", ""); err != nil {
		t.Fatalf("failed to record operation: %v", err)
	}
	j.Close()

	result := checkJournal(path)

	if result.error || result.warning {
		t.Errorf("journal check failed: %s", result.message)
	}
}

func TestCheckJournal_Empty(t *testing.T) {
	result := checkJournal("")

	if !result.warning {
		t.Error("expected warning for empty journal path")
	}
}

func TestCheckJournal_Directory(t *testing.T) {
	result := checkJournal(t.TempDir())

	if !result.error {
		t.Error("expected error when the journal path is a directory")
	}
}

func TestCheckDatasetFolder(t *testing.T) {
	dir := t.TempDir()

	if result := checkDatasetFolder(dir); !result.warning {
		t.Error("expected warning for a folder without images")
	}

	if err := os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	result := checkDatasetFolder(dir)
	if result.error || result.warning {
		t.Errorf("dataset folder check failed: %s", result.message)
	}

	if result := checkDatasetFolder("/nonexistent/path/that/does/not/exist"); !result.error {
		t.Error("expected error for non-existent folder")
	}
}

func TestCheckTagsFile(t *testing.T) {
	dir := t.TempDir()

	if result := checkTagsFile(dir); result.error || result.warning {
		t.Errorf("missing tags.json should pass, got %s", result.message)
	}

	store := tags.NewStore()
	store.ApplyTags("a.jpg", []string{"cat", "outdoor"})
	if err := store.Save(dir, util.DefaultRetryConfig()); err != nil {
		t.Fatalf("failed to save tags: %v", err)
	}
	if result := checkTagsFile(dir); result.error {
		t.Errorf("tags check failed: %s", result.message)
	}

	if err := os.WriteFile(tags.Path(dir), []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to corrupt tags.json: %v", err)
	}
	if result := checkTagsFile(dir); !result.error {
		t.Error("expected error for corrupt tags.json")
	}
}

func TestCheckGroupsFile(t *testing.T) {
	dir := t.TempDir()

	results := checkGroupsFile(dir)
	if len(results) != 1 || results[0].error {
		t.Errorf("missing groups.json should pass, got %+v", results)
	}

	store := groups.NewStore()
	store.CreateGroup("cats", []string{"a.jpg", "b.jpg"})
	if err := store.Save(dir, util.DefaultRetryConfig()); err != nil {
		t.Fatalf("failed to save groups: %v", err)
	}
	results = checkGroupsFile(dir)
	for _, r := range results {
		if r.error || r.warning {
			t.Errorf("groups check failed: %s", r.message)
		}
	}

	if err := os.WriteFile(groups.Path(dir), []byte("[]garbage"), 0644); err != nil {
		t.Fatalf("failed to corrupt groups.json: %v", err)
	}
	results = checkGroupsFile(dir)
	if len(results) != 1 || !results[0].error {
		t.Errorf("expected a single error for corrupt groups.json, got %+v", results)
	}
}

func TestCheckWritableDirectory_Create(t *testing.T) {
	newDir := filepath.Join(t.TempDir(), "newdir")

	result := checkWritableDirectory(newDir, "Output directory")

	if result.error {
		t.Errorf("output directory check failed: %s", result.message)
	}
	if _, err := os.Stat(newDir); os.IsNotExist(err) {
		t.Error("expected directory to be created")
	}
	if _, err := os.Stat(filepath.Join(newDir, ".dsc_write_test")); !os.IsNotExist(err) {
		t.Error("Expected write test file to be removed")
	}
}

func TestCheckWritableDirectory_File(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(filePath, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	result := checkWritableDirectory(filePath, "Output directory")

	if !result.error {
		t.Error("expected error when path is a file, not a directory")
	}
}

func TestCheckDiskSpace(t *testing.T) {
	result := checkDiskSpace(t.TempDir(), "test")

	if result.error {
		t.Errorf("disk space check failed: %s", result.message)
	}
	if result.message == "" {
		t.Error("expected message with disk space info")
	}
}

func TestCheckDiskSpace_NonExistent(t *testing.T) {
	result := checkDiskSpace("/nonexistent/path", "test")

	if !result.warning {
		t.Error("expected warning for non-existent path")
	}
}

func TestCheckRephraseService(t *testing.T) {
	if result := checkRephraseService(context.Background(), rephrase.Config{}); !result.warning {
		t.Error("expected warning without a model")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"llama3","response":"ok","done":true}`))
	}))
	defer srv.Close()

	cfg := rephrase.Config{Host: srv.URL, Model: "llama3", Timeout: 2 * time.Second}
	if result := checkRephraseService(context.Background(), cfg); result.error || result.warning {
		t.Errorf("rephrase check failed: %s", result.message)
	}

	srv.Close()
	// Unreachable service is optional
	result := checkRephraseService(context.Background(), cfg)
	if result.error || !result.warning {
		t.Errorf("expected warning for unreachable service, got %+v", result)
	}
}
