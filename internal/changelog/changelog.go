// Package changelog records every schema-changing action taken against
// a tenant database — migrations applied, functions deployed or
// dropped, extensions installed, seeders run — to an append-only table
// for audit and drift debugging.
package changelog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/gwerrors"
)

// ChangeType enumerates the kinds of changes the changelog tracks.
type ChangeType string

const (
	ChangeMigrationApplied  ChangeType = "migration_applied"
	ChangeFunctionDeployed  ChangeType = "function_deployed"
	ChangeFunctionDropped   ChangeType = "function_dropped"
	ChangeFunctionSkipped   ChangeType = "function_skipped"
	ChangeExtensionInstalled ChangeType = "extension_installed"
	ChangeExtensionSkipped  ChangeType = "extension_skipped"
	ChangeSeederRun         ChangeType = "seeder_run"
	ChangeSeederSkipped     ChangeType = "seeder_skipped"
	ChangeSeederValidated   ChangeType = "seeder_validated"
)

const tableName = "_stonescriptdb_gateway_changelog"

// Entry is one row to be logged.
type Entry struct {
	ChangeType ChangeType
	ObjectName string
	Details    map[string]any
	Forced     bool
}

// Record is a row read back from the changelog table.
type Record struct {
	ID           int32
	ChangeType   string
	ObjectName   string
	ChangeDetail map[string]any
	Forced       bool
	ExecutedAt   time.Time
}

// Manager writes and reads changelog entries against a tenant pool.
type Manager struct {
	logger *slog.Logger
}

// NewManager returns a changelog manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// EnsureTable creates the changelog table and its indexes if absent.
func (m *Manager) EnsureTable(ctx context.Context, pool *pgxpool.Pool, database string) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+tableName+` (
			id SERIAL PRIMARY KEY,
			change_type TEXT NOT NULL,
			object_name TEXT NOT NULL,
			change_detail JSONB,
			forced BOOLEAN DEFAULT FALSE,
			executed_at TIMESTAMPTZ DEFAULT NOW()
		)`)
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindMigrationFailed, err, "%s table creation", tableName).WithDatabase(database)
	}

	for _, idx := range []string{
		`CREATE INDEX IF NOT EXISTS idx_changelog_change_type ON ` + tableName + ` (change_type)`,
		`CREATE INDEX IF NOT EXISTS idx_changelog_object_name ON ` + tableName + ` (object_name)`,
		`CREATE INDEX IF NOT EXISTS idx_changelog_executed_at ON ` + tableName + ` (executed_at DESC)`,
	} {
		// Index creation is best-effort: a pre-existing index (from a
		// concurrent deploy, or a manually managed one) is not fatal.
		if _, err := pool.Exec(ctx, idx); err != nil {
			m.logger.Debug("changelog index creation skipped", "database", database, "error", err)
		}
	}

	m.logger.Debug("changelog table ensured", "database", database)
	return nil
}

// Log inserts one changelog entry.
func (m *Manager) Log(ctx context.Context, pool *pgxpool.Pool, database string, entry Entry) error {
	var detailJSON []byte
	if entry.Details != nil {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return gwerrors.Wrap(gwerrors.KindInternal, err, "serializing changelog details for %s", entry.ObjectName)
		}
		detailJSON = b
	}

	_, err := pool.Exec(ctx, `
		INSERT INTO `+tableName+` (change_type, object_name, change_detail, forced)
		VALUES ($1, $2, $3::jsonb, $4)`,
		string(entry.ChangeType), entry.ObjectName, nullableJSON(detailJSON), entry.Forced)
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindMigrationFailed, err, "logging changelog entry for %s", entry.ObjectName).WithDatabase(database)
	}

	m.logger.Debug("changelog entry logged", "change_type", entry.ChangeType, "object", entry.ObjectName, "forced", entry.Forced)
	return nil
}

func nullableJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

// LogMigration records a successfully applied migration.
func (m *Manager) LogMigration(ctx context.Context, pool *pgxpool.Pool, database, migrationName, checksum string) error {
	return m.Log(ctx, pool, database, Entry{
		ChangeType: ChangeMigrationApplied,
		ObjectName: migrationName,
		Details:    map[string]any{"checksum": checksum},
	})
}

// LogFunctionDeployed records a CREATE OR REPLACE / CREATE FUNCTION.
func (m *Manager) LogFunctionDeployed(ctx context.Context, pool *pgxpool.Pool, database, functionName, signature, checksum, sourceFile string) error {
	return m.Log(ctx, pool, database, Entry{
		ChangeType: ChangeFunctionDeployed,
		ObjectName: functionName,
		Details: map[string]any{
			"signature":   signature,
			"checksum":    checksum,
			"source_file": sourceFile,
		},
	})
}

// LogFunctionDropped records a DROP FUNCTION ahead of a signature change.
func (m *Manager) LogFunctionDropped(ctx context.Context, pool *pgxpool.Pool, database, functionName, oldSignature, reason string) error {
	return m.Log(ctx, pool, database, Entry{
		ChangeType: ChangeFunctionDropped,
		ObjectName: functionName,
		Details: map[string]any{
			"old_signature": oldSignature,
			"reason":        reason,
		},
	})
}

// LogFunctionSkipped records a function left untouched (checksum unchanged).
func (m *Manager) LogFunctionSkipped(ctx context.Context, pool *pgxpool.Pool, database, functionName string) error {
	return m.Log(ctx, pool, database, Entry{ChangeType: ChangeFunctionSkipped, ObjectName: functionName})
}

// LogExtensionInstalled records a CREATE EXTENSION.
func (m *Manager) LogExtensionInstalled(ctx context.Context, pool *pgxpool.Pool, database, extensionName, version, schema string) error {
	return m.Log(ctx, pool, database, Entry{
		ChangeType: ChangeExtensionInstalled,
		ObjectName: extensionName,
		Details: map[string]any{
			"version": version,
			"schema":  schema,
		},
	})
}

// LogExtensionSkipped records an extension already present.
func (m *Manager) LogExtensionSkipped(ctx context.Context, pool *pgxpool.Pool, database, extensionName string) error {
	return m.Log(ctx, pool, database, Entry{ChangeType: ChangeExtensionSkipped, ObjectName: extensionName})
}

// LogSeederRun records a seeder insertion pass.
func (m *Manager) LogSeederRun(ctx context.Context, pool *pgxpool.Pool, database, tableName string, inserted, skipped int) error {
	return m.Log(ctx, pool, database, Entry{
		ChangeType: ChangeSeederRun,
		ObjectName: tableName,
		Details: map[string]any{
			"inserted": inserted,
			"skipped":  skipped,
		},
	})
}

// LogSeederSkipped records a seeder skipped because the table was not empty.
func (m *Manager) LogSeederSkipped(ctx context.Context, pool *pgxpool.Pool, database, tableName, reason string) error {
	return m.Log(ctx, pool, database, Entry{
		ChangeType: ChangeSeederSkipped,
		ObjectName: tableName,
		Details:    map[string]any{"reason": reason},
	})
}

// LogSeederValidated records a post-seed row-count check.
func (m *Manager) LogSeederValidated(ctx context.Context, pool *pgxpool.Pool, database, tableName string, expected, found int) error {
	return m.Log(ctx, pool, database, Entry{
		ChangeType: ChangeSeederValidated,
		ObjectName: tableName,
		Details: map[string]any{
			"expected": expected,
			"found":    found,
		},
	})
}

// RecentEntries returns the most recent limit entries, newest first.
func (m *Manager) RecentEntries(ctx context.Context, pool *pgxpool.Pool, database string, limit int64) ([]Record, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, change_type, object_name, change_detail, forced, executed_at
		FROM `+tableName+`
		ORDER BY executed_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "querying changelog").WithDatabase(database)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// EntriesByType returns the most recent limit entries of the given
// change type, newest first.
func (m *Manager) EntriesByType(ctx context.Context, pool *pgxpool.Pool, database string, changeType ChangeType, limit int64) ([]Record, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, change_type, object_name, change_detail, forced, executed_at
		FROM `+tableName+`
		WHERE change_type = $1
		ORDER BY executed_at DESC
		LIMIT $2`, string(changeType), limit)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "querying changelog by type").WithDatabase(database)
	}
	defer rows.Close()
	return scanRecords(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRecords(rows rowScanner) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		var detail *string
		if err := rows.Scan(&r.ID, &r.ChangeType, &r.ObjectName, &detail, &r.Forced, &r.ExecutedAt); err != nil {
			return nil, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "scanning changelog row")
		}
		if detail != nil {
			var parsed map[string]any
			if err := json.Unmarshal([]byte(*detail), &parsed); err == nil {
				r.ChangeDetail = parsed
			}
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
