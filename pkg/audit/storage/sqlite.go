package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"clinical-guardrails/guardrails/pkg/audit"
	"clinical-guardrails/guardrails/pkg/clinical"
)

// SQLite driver names. DriverCGO is github.com/mattn/go-sqlite3 and
// DriverPure is modernc.org/sqlite.
const (
	DriverCGO  = "sqlite3"
	DriverPure = "sqlite"
)

const backendSQLite = "sqlite"

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Driver is the database/sql driver name, DriverCGO or DriverPure.
	// Default: DriverPure
	Driver string

	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Driver:       DriverPure,
		Path:         "data/audit.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLStorage implements audit.Storage on a SQL database.
type SQLStorage struct {
	db        *sql.DB
	backend   string
	logger    *slog.Logger
	closeOnce sync.Once
}

// NewSQLStorage wraps an open database. The schema is not created; call
// Migrate for a fresh database.
func NewSQLStorage(db *sql.DB, backend string) *SQLStorage {
	return &SQLStorage{
		db:      db,
		backend: backend,
		logger:  slog.Default().With("component", "audit.storage."+backend),
	}
}

// NewSQLiteStorage opens a SQLite database and creates its schema.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	driver := config.Driver
	if driver == "" {
		driver = DriverPure
	}
	if driver != DriverCGO && driver != DriverPure {
		return nil, audit.NewStorageError(backendSQLite, "open", fmt.Errorf("unknown driver %q (want %s or %s)", driver, DriverCGO, DriverPure))
	}

	db, err := sql.Open(driver, config.Path)
	if err != nil {
		return nil, audit.NewStorageError(backendSQLite, "open", err)
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	s := NewSQLStorage(db, backendSQLite)
	if err := s.pragmas(config); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("SQLite storage initialized",
		"driver", driver,
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)
	return s, nil
}

func (s *SQLStorage) pragmas(config *SQLiteConfig) error {
	if config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return audit.NewStorageError(s.backend, "enable_wal", err)
		}
	}
	if config.BusyTimeout > 0 {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", config.BusyTimeout.Milliseconds())); err != nil {
			return audit.NewStorageError(s.backend, "set_busy_timeout", err)
		}
	}
	return nil
}

// Migrate creates the schema and verifies its version.
func (s *SQLStorage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return audit.NewStorageError(s.backend, "create_schema", err)
	}
	if _, err := s.db.ExecContext(ctx, InsertSchemaVersion, SchemaVersion, time.Now().UnixNano()); err != nil {
		return audit.NewStorageError(s.backend, "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, GetSchemaVersion).Scan(&version); err != nil {
		return audit.NewStorageError(s.backend, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return audit.NewStorageError(s.backend, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Store persists a trace record and its alerts in one transaction.
func (s *SQLStorage) Store(ctx context.Context, record *audit.TraceRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return audit.NewStorageError(s.backend, "store", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, insertTrace,
		record.ID, nullString(record.RequestID), record.PatientID, record.VisitID,
		record.RecordedAt.UnixNano(), boolToInt(record.IsSafeToFile), record.Score,
		nullString(record.ProtocolVersion), nullString(record.ProtocolDigest),
		int64(record.Duration), nullString(record.Digest),
	)
	if err != nil {
		return audit.NewStorageError(s.backend, "store", err)
	}

	for i, a := range record.Alerts {
		_, err = tx.ExecContext(ctx, insertAlert,
			record.ID, i, a.RuleID, string(a.Severity), a.Message, nullString(a.Field))
		if err != nil {
			return audit.NewStorageError(s.backend, "store_alert", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return audit.NewStorageError(s.backend, "commit", err)
	}
	return nil
}

// Query retrieves matching records ordered by RecordedAt.
func (s *SQLStorage) Query(ctx context.Context, query *audit.Query) ([]*audit.TraceRecord, error) {
	if query == nil {
		query = &audit.Query{}
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	where, args := buildWhereClause(query)
	order := "DESC"
	if query.SortOrder == "asc" {
		order = "ASC"
	}

	sqlQuery := "SELECT " + traceColumns + " FROM traces" + where +
		fmt.Sprintf(" ORDER BY recorded_at %s, id %s", order, order)
	switch {
	case query.Limit > 0:
		sqlQuery += fmt.Sprintf(" LIMIT %d", query.Limit)
	case query.Offset > 0:
		sqlQuery += " LIMIT -1"
	}
	if query.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", query.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, audit.NewStorageError(s.backend, "query", err)
	}
	defer rows.Close()

	records := []*audit.TraceRecord{}
	byID := make(map[string]*audit.TraceRecord)
	for rows.Next() {
		record, err := scanTrace(rows)
		if err != nil {
			return nil, audit.NewStorageError(s.backend, "scan", err)
		}
		records = append(records, record)
		byID[record.ID] = record
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError(s.backend, "query", err)
	}

	if err := s.loadAlerts(ctx, byID); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *SQLStorage) loadAlerts(ctx context.Context, byID map[string]*audit.TraceRecord) error {
	if len(byID) == 0 {
		return nil
	}

	ids := make([]any, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")

	rows, err := s.db.QueryContext(ctx,
		"SELECT trace_id, rule_id, severity, message, field FROM trace_alerts WHERE trace_id IN ("+
			placeholders+") ORDER BY trace_id, position", ids...)
	if err != nil {
		return audit.NewStorageError(s.backend, "query_alerts", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			traceID, ruleID, severity, message string
			field                              sql.NullString
		)
		if err := rows.Scan(&traceID, &ruleID, &severity, &message, &field); err != nil {
			return audit.NewStorageError(s.backend, "scan_alert", err)
		}
		if r, ok := byID[traceID]; ok {
			r.Alerts = append(r.Alerts, clinical.ComplianceAlert{
				RuleID:   ruleID,
				Message:  message,
				Severity: clinical.Severity(severity),
				Field:    field.String,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return audit.NewStorageError(s.backend, "query_alerts", err)
	}
	return nil
}

// Count returns the number of matching records.
func (s *SQLStorage) Count(ctx context.Context, query *audit.Query) (int64, error) {
	where, args := buildWhereClause(query)

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM traces"+where, args...).Scan(&count); err != nil {
		return 0, audit.NewStorageError(s.backend, "count", err)
	}
	return count, nil
}

// Stats aggregates the matching records.
func (s *SQLStorage) Stats(ctx context.Context, query *audit.Query) (*audit.Stats, error) {
	where, args := buildWhereClause(query)
	stats := &audit.Stats{RuleCounts: make(map[string]int64)}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_safe_to_file = 0 THEN 1 ELSE 0 END), 0) FROM traces"+where,
		args...).Scan(&stats.TotalRuns, &stats.FailedCompliance)
	if err != nil {
		return nil, audit.NewStorageError(s.backend, "stats", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT a.rule_id, COUNT(*) FROM trace_alerts a JOIN traces ON traces.id = a.trace_id"+where+
			" GROUP BY a.rule_id", args...)
	if err != nil {
		return nil, audit.NewStorageError(s.backend, "stats", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ruleID string
			count  int64
		)
		if err := rows.Scan(&ruleID, &count); err != nil {
			return nil, audit.NewStorageError(s.backend, "stats", err)
		}
		stats.RuleCounts[ruleID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError(s.backend, "stats", err)
	}
	return stats, nil
}

// Delete removes matching records and their alerts.
func (s *SQLStorage) Delete(ctx context.Context, query *audit.Query) (deleted int64, err error) {
	where, args := buildWhereClause(query)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, audit.NewStorageError(s.backend, "delete", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		"DELETE FROM trace_alerts WHERE trace_id IN (SELECT id FROM traces"+where+")", args...)
	if err != nil {
		return 0, audit.NewStorageError(s.backend, "delete", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM traces"+where, args...)
	if err != nil {
		return 0, audit.NewStorageError(s.backend, "delete", err)
	}
	deleted, err = res.RowsAffected()
	if err != nil {
		return 0, audit.NewStorageError(s.backend, "delete", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, audit.NewStorageError(s.backend, "commit", err)
	}
	return deleted, nil
}

// Close closes the database.
func (s *SQLStorage) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if cerr := s.db.Close(); cerr != nil {
			err = audit.NewStorageError(s.backend, "close", cerr)
			return
		}
		s.logger.Info("SQL storage closed")
	})
	return err
}

// buildWhereClause builds " WHERE ..." (or "") and its arguments. Column
// references are qualified so the clause can be reused in joins.
func buildWhereClause(query *audit.Query) (string, []any) {
	if query == nil {
		return "", nil
	}

	var (
		conditions []string
		args       []any
	)
	if query.StartTime != nil {
		conditions = append(conditions, "traces.recorded_at >= ?")
		args = append(args, query.StartTime.UnixNano())
	}
	if query.EndTime != nil {
		conditions = append(conditions, "traces.recorded_at <= ?")
		args = append(args, query.EndTime.UnixNano())
	}
	if query.PatientID != "" {
		conditions = append(conditions, "traces.patient_id = ?")
		args = append(args, query.PatientID)
	}
	if query.VisitID != "" {
		conditions = append(conditions, "traces.visit_id = ?")
		args = append(args, query.VisitID)
	}
	if query.RuleID != "" {
		conditions = append(conditions,
			"EXISTS (SELECT 1 FROM trace_alerts ra WHERE ra.trace_id = traces.id AND ra.rule_id = ?)")
		args = append(args, query.RuleID)
	}
	switch query.Outcome {
	case audit.OutcomeSafe:
		conditions = append(conditions, "traces.is_safe_to_file = 1")
	case audit.OutcomeUnsafe:
		conditions = append(conditions, "traces.is_safe_to_file = 0")
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanTrace(rows *sql.Rows) (*audit.TraceRecord, error) {
	var (
		r                               audit.TraceRecord
		requestID, protocolVersion      sql.NullString
		protocolDigest, digest          sql.NullString
		recordedAt, durationNs, safeInt int64
	)
	err := rows.Scan(&r.ID, &requestID, &r.PatientID, &r.VisitID, &recordedAt, &safeInt, &r.Score,
		&protocolVersion, &protocolDigest, &durationNs, &digest)
	if err != nil {
		return nil, err
	}

	r.RequestID = requestID.String
	r.RecordedAt = time.Unix(0, recordedAt).UTC()
	r.IsSafeToFile = safeInt != 0
	r.ProtocolVersion = protocolVersion.String
	r.ProtocolDigest = protocolDigest.String
	r.Duration = time.Duration(durationNs)
	r.Digest = digest.String
	r.Alerts = []clinical.ComplianceAlert{}
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
