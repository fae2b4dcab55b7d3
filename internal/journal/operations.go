package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/franz/dataset-curator/internal/util"
)

// Item statuses
const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusCreated   = "created"
	StatusRenamed   = "renamed"
	StatusFailed    = "failed"
)

// Operation is one recorded bulk run
type Operation struct {
	ID           int64
	Kind         string
	Folder       string
	OutputFolder string
	Params       string
	StartedAt    time.Time
	FinishedAt   time.Time
	Counts
	Error string
}

// Finished reports whether the run was closed with FinishOperation
func (o *Operation) Finished() bool {
	return !o.FinishedAt.IsZero()
}

// Counts are the totals of a finished run
type Counts struct {
	Total     int
	Processed int
	Skipped   int
	Failed    int
	Created   int
	Cancelled bool
}

// Item is the outcome of one file in a run
type Item struct {
	ID          int64
	OperationID int64
	Filename    string
	Status      string
	Detail      string
	RecordedAt  time.Time
}

// ErrorCount is a distinct failure reason and how often it occurred
type ErrorCount struct {
	Detail string
	Count  int
}

// BeginOperation opens a new run and returns its id
func (j *Journal) BeginOperation(kind, folder, outputFolder, params string) (int64, error) {
	res, err := j.db.Exec(`
		INSERT INTO operations (kind, folder, output_folder, params, started_unix_ms)
		VALUES (?, ?, ?, ?, ?)
	`, kind, folder, outputFolder, params, time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to begin operation: %w", err)
	}
	return res.LastInsertId()
}

// RecordItem stores the outcome of one file
func (j *Journal) RecordItem(opID int64, filename, status, detail string) error {
	_, err := j.db.Exec(`
		INSERT INTO items (operation_id, filename, status, detail, recorded_unix_ms)
		VALUES (?, ?, ?, ?, ?)
	`, opID, filename, status, detail, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record item: %w", err)
	}
	return nil
}

// FinishOperation closes a run with its totals. runErr is stored when the
// run aborted as a whole.
func (j *Journal) FinishOperation(opID int64, counts Counts, runErr error) error {
	cancelled := 0
	if counts.Cancelled {
		cancelled = 1
	}
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}

	res, err := j.db.Exec(`
		UPDATE operations
		SET finished_unix_ms = ?, total = ?, processed = ?, skipped = ?, failed = ?,
		    created = ?, cancelled = ?, error = ?
		WHERE id = ?
	`, time.Now().UnixMilli(), counts.Total, counts.Processed, counts.Skipped, counts.Failed,
		counts.Created, cancelled, errMsg, opID)
	if err != nil {
		return fmt.Errorf("failed to finish operation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("operation %d: %w", opID, util.ErrNotFound)
	}
	return nil
}

const operationColumns = `
	id, kind, folder, COALESCE(output_folder, ''), COALESCE(params, ''),
	started_unix_ms, COALESCE(finished_unix_ms, 0),
	total, processed, skipped, failed, created, cancelled, COALESCE(error, '')`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOperation(row scanner) (*Operation, error) {
	var op Operation
	var started, finished int64
	var cancelled int

	err := row.Scan(&op.ID, &op.Kind, &op.Folder, &op.OutputFolder, &op.Params,
		&started, &finished,
		&op.Total, &op.Processed, &op.Skipped, &op.Failed, &op.Created, &cancelled, &op.Error)
	if err != nil {
		return nil, err
	}

	op.StartedAt = time.UnixMilli(started)
	if finished > 0 {
		op.FinishedAt = time.UnixMilli(finished)
	}
	op.Cancelled = cancelled == 1
	return &op, nil
}

// GetOperation returns the run with id, or an error wrapping util.ErrNotFound
func (j *Journal) GetOperation(opID int64) (*Operation, error) {
	row := j.db.QueryRow(`SELECT `+operationColumns+` FROM operations WHERE id = ?`, opID)
	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("operation %d: %w", opID, util.ErrNotFound)
	}
	return op, err
}

// RecentOperations returns the newest runs first
func (j *Journal) RecentOperations(limit int) ([]*Operation, error) {
	rows, err := j.db.Query(`
		SELECT `+operationColumns+`
		FROM operations
		ORDER BY started_unix_ms DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// Items returns the items of a run in recording order
func (j *Journal) Items(opID int64) ([]*Item, error) {
	rows, err := j.db.Query(`
		SELECT id, operation_id, filename, status, COALESCE(detail, ''), recorded_unix_ms
		FROM items
		WHERE operation_id = ?
		ORDER BY id
	`, opID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		var item Item
		var recorded int64
		if err := rows.Scan(&item.ID, &item.OperationID, &item.Filename, &item.Status, &item.Detail, &recorded); err != nil {
			return nil, err
		}
		item.RecordedAt = time.UnixMilli(recorded)
		items = append(items, &item)
	}
	return items, rows.Err()
}

// CountItemsByStatus counts the items of a run with status
func (j *Journal) CountItemsByStatus(opID int64, status string) (int, error) {
	var count int
	err := j.db.QueryRow(`
		SELECT COUNT(*) FROM items WHERE operation_id = ? AND status = ?
	`, opID, status).Scan(&count)
	return count, err
}

// TopErrors returns the most frequent failure details of a run
func (j *Journal) TopErrors(opID int64, limit int) ([]ErrorCount, error) {
	rows, err := j.db.Query(`
		SELECT COALESCE(detail, ''), COUNT(*) AS n
		FROM items
		WHERE operation_id = ? AND status = ?
		GROUP BY detail
		ORDER BY n DESC, detail
		LIMIT ?
	`, opID, StatusFailed, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ErrorCount
	for rows.Next() {
		var ec ErrorCount
		if err := rows.Scan(&ec.Detail, &ec.Count); err != nil {
			return nil, err
		}
		out = append(out, ec)
	}
	return out, rows.Err()
}

// CountOperations returns the number of recorded runs
func (j *Journal) CountOperations() (int, error) {
	var count int
	err := j.db.QueryRow(`SELECT COUNT(*) FROM operations`).Scan(&count)
	return count, err
}
