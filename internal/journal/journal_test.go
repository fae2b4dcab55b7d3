package journal

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/franz/dataset-curator/internal/util"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpenAndMigrate(t *testing.T) {
	j := openTestJournal(t)

	version, err := j.getSchemaVersion()
	if err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("expected schema version %d, got %d", currentSchemaVersion, version)
	}

	for _, table := range []string{"operations", "items", "schema_version"} {
		var count int
		err := j.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("expected table %s to exist", table)
		}
	}

	if err := j.CheckIntegrity(); err != nil {
		t.Errorf("integrity check failed: %v", err)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	if _, err := j.BeginOperation("rename", "/data", "", ""); err != nil {
		t.Fatalf("BeginOperation failed: %v", err)
	}
	j.Close()

	j, err = Open(path)
	if err != nil {
		t.Fatalf("failed to reopen journal: %v", err)
	}
	defer j.Close()

	ops, err := j.RecentOperations(10)
	if err != nil {
		t.Fatalf("RecentOperations failed: %v", err)
	}
	if len(ops) != 1 {
		t.Errorf("expected 1 operation after reopen, got %d", len(ops))
	}
}

func TestOperationLifecycle(t *testing.T) {
	j := openTestJournal(t)

	opID, err := j.BeginOperation("fix-images", "/data/in", "/data/out", "size=1024")
	if err != nil {
		t.Fatalf("BeginOperation failed: %v", err)
	}

	op, err := j.GetOperation(opID)
	if err != nil {
		t.Fatalf("GetOperation failed: %v", err)
	}
	if op.Finished() {
		t.Error("operation should not be finished yet")
	}

	items := []struct{ name, status, detail string }{
		{"a.jpg", StatusProcessed, ""},
		{"b.jpg", StatusSkipped, "already 1024px"},
		{"c.jpg", StatusFailed, "image too small"},
		{"d.jpg", StatusFailed, "image too small"},
		{"e.jpg", StatusFailed, "corrupt"},
	}
	for _, it := range items {
		if err := j.RecordItem(opID, it.name, it.status, it.detail); err != nil {
			t.Fatalf("RecordItem failed: %v", err)
		}
	}

	counts := Counts{Total: 5, Processed: 1, Skipped: 1, Failed: 3}
	if err := j.FinishOperation(opID, counts, nil); err != nil {
		t.Fatalf("FinishOperation failed: %v", err)
	}

	op, err = j.GetOperation(opID)
	if err != nil {
		t.Fatalf("GetOperation failed: %v", err)
	}
	if !op.Finished() {
		t.Error("operation should be finished")
	}
	if op.Counts != counts {
		t.Errorf("expected counts %+v, got %+v", counts, op.Counts)
	}
	if op.OutputFolder != "/data/out" || op.Params != "size=1024" {
		t.Errorf("unexpected operation %+v", op)
	}

	stored, err := j.Items(opID)
	if err != nil {
		t.Fatalf("Items failed: %v", err)
	}
	if len(stored) != len(items) || stored[0].Filename != "a.jpg" {
		t.Errorf("unexpected items %+v", stored)
	}

	failed, err := j.CountItemsByStatus(opID, StatusFailed)
	if err != nil || failed != 3 {
		t.Errorf("expected 3 failed items, got %d (%v)", failed, err)
	}

	top, err := j.TopErrors(opID, 10)
	if err != nil {
		t.Fatalf("TopErrors failed: %v", err)
	}
	if len(top) != 2 || top[0].Detail != "image too small" || top[0].Count != 2 {
		t.Errorf("unexpected top errors %+v", top)
	}
}

func TestFinishOperation_Unknown(t *testing.T) {
	j := openTestJournal(t)
	err := j.FinishOperation(42, Counts{}, nil)
	if !errors.Is(err, util.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := j.GetOperation(42); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecentOperations_NewestFirst(t *testing.T) {
	j := openTestJournal(t)
	var ids []int64
	for _, kind := range []string{"fix-images", "duplicate", "rename"} {
		id, err := j.BeginOperation(kind, "/data", "", "")
		if err != nil {
			t.Fatalf("BeginOperation failed: %v", err)
		}
		ids = append(ids, id)
	}

	ops, err := j.RecentOperations(2)
	if err != nil {
		t.Fatalf("RecentOperations failed: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(ops))
	}
	if ops[0].ID != ids[2] || ops[1].ID != ids[1] {
		t.Errorf("expected newest first, got %d, %d", ops[0].ID, ops[1].ID)
	}

	count, err := j.CountOperations()
	if err != nil {
		t.Fatalf("CountOperations failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 operations, got %d", count)
	}
}

func TestSQLiteVersion(t *testing.T) {
	if v := SQLiteVersion(); !strings.HasPrefix(v, "3.") {
		t.Errorf("expected a 3.x version, got %q", v)
	}
}
