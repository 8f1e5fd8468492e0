package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the audit database schema.
// Timestamps and durations are stored as nanoseconds so both SQLite drivers
// round-trip them identically.
const Schema = `
-- One row per verification
CREATE TABLE IF NOT EXISTS traces (
    id TEXT PRIMARY KEY,
    request_id TEXT,
    patient_id TEXT NOT NULL,
    visit_id TEXT NOT NULL,
    recorded_at INTEGER NOT NULL,
    is_safe_to_file INTEGER NOT NULL,
    score REAL NOT NULL,
    protocol_version TEXT,
    protocol_digest TEXT,
    duration_ns INTEGER NOT NULL,
    digest TEXT
);

-- Alerts of each verification, in emission order
CREATE TABLE IF NOT EXISTS trace_alerts (
    trace_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    rule_id TEXT NOT NULL,
    severity TEXT NOT NULL,
    message TEXT NOT NULL,
    field TEXT,
    PRIMARY KEY (trace_id, position)
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_traces_recorded_at ON traces(recorded_at);
CREATE INDEX IF NOT EXISTS idx_traces_patient_id ON traces(patient_id);
CREATE INDEX IF NOT EXISTS idx_traces_visit_id ON traces(visit_id);
CREATE INDEX IF NOT EXISTS idx_trace_alerts_rule_id ON trace_alerts(rule_id);
`

// InsertSchemaVersion records the schema version.
const InsertSchemaVersion = `INSERT INTO schema_version (version, applied_at) VALUES (?, ?) ON CONFLICT(version) DO NOTHING`

// GetSchemaVersion retrieves the current schema version.
const GetSchemaVersion = `SELECT version FROM schema_version ORDER BY version DESC LIMIT 1`

const insertTrace = `INSERT INTO traces (
    id, request_id, patient_id, visit_id, recorded_at, is_safe_to_file, score,
    protocol_version, protocol_digest, duration_ns, digest
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertAlert = `INSERT INTO trace_alerts (trace_id, position, rule_id, severity, message, field) VALUES (?, ?, ?, ?, ?, ?)`

const traceColumns = `id, request_id, patient_id, visit_id, recorded_at, is_safe_to_file, score, protocol_version, protocol_digest, duration_ns, digest`
