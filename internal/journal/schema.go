package journal

// Schema v1 - operations and their items
const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- One row per bulk run
CREATE TABLE IF NOT EXISTS operations (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  kind TEXT NOT NULL,
  folder TEXT NOT NULL,
  output_folder TEXT,
  params TEXT,
  started_unix_ms INTEGER NOT NULL,
  finished_unix_ms INTEGER,
  total INTEGER DEFAULT 0,
  processed INTEGER DEFAULT 0,
  skipped INTEGER DEFAULT 0,
  failed INTEGER DEFAULT 0,
  created INTEGER DEFAULT 0,
  cancelled INTEGER DEFAULT 0,
  error TEXT
);

-- Per-item outcome of a run
CREATE TABLE IF NOT EXISTS items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  operation_id INTEGER NOT NULL REFERENCES operations(id) ON DELETE CASCADE,
  filename TEXT NOT NULL,
  status TEXT NOT NULL,
  detail TEXT,
  recorded_unix_ms INTEGER NOT NULL
);
`

// Schema v2 - indexes for history queries
const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_operations_started ON operations(started_unix_ms);
CREATE INDEX IF NOT EXISTS idx_operations_kind ON operations(kind);
CREATE INDEX IF NOT EXISTS idx_items_operation ON items(operation_id, status);
`
