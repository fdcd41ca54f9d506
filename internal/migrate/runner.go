// Package migrate applies forward-only migration files to a tenant
// database in dependency order and gates destructive schema changes
// behind the type compatibility matrix before any migration runs.
package migrate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/artifact"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/depgraph"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/gwerrors"
)

const migrationsTable = "_stonescriptdb_gateway_migrations"

// File is one candidate migration file discovered on disk.
type File struct {
	Name     string // base filename, e.g. "0002_add_posts.pssql"
	Path     string
	Checksum string // raw SHA-256 of the file's exact bytes, unnormalized
	SQL      string
}

// Runner applies migration files and tracks which have been applied.
type Runner struct {
	logger *slog.Logger
}

// NewRunner returns a migration runner.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger}
}

// EnsureTable creates the migrations tracking table if absent.
func (r *Runner) EnsureTable(ctx context.Context, pool *pgxpool.Pool, database string) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+migrationsTable+` (
			id SERIAL PRIMARY KEY,
			migration_file TEXT NOT NULL UNIQUE,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`)
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindMigrationFailed, err, "%s table creation", migrationsTable).WithDatabase(database)
	}
	return nil
}

// AppliedMigrations returns the names of every migration already
// recorded, in application order.
func (r *Runner) AppliedMigrations(ctx context.Context, pool *pgxpool.Pool, database string) ([]string, error) {
	rows, err := pool.Query(ctx, `SELECT migration_file FROM `+migrationsTable+` ORDER BY id`)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindMigrationFailed, err, "querying applied migrations").WithDatabase(database)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, gwerrors.Wrap(gwerrors.KindMigrationFailed, err, "scanning applied migration").WithDatabase(database)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// FindFiles returns every *.pssql file in migrationsDir, sorted by
// filename, with its raw (unnormalized) SHA-256 checksum computed.
func FindFiles(migrationsDir string) ([]File, error) {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, gwerrors.Wrap(gwerrors.KindSchemaExtractionFailed, err, "reading migrations directory")
	}

	var files []File
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".pssql" {
			continue
		}
		path := filepath.Join(migrationsDir, e.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, gwerrors.Wrap(gwerrors.KindSchemaExtractionFailed, err, "reading migration file %s", e.Name())
		}
		files = append(files, File{
			Name:     e.Name(),
			Path:     path,
			Checksum: rawChecksum(content),
			SQL:      string(content),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func rawChecksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// OrderFiles orders migration files per spec: each file's CREATE TABLE
// statements are parsed to build a "defines" map, a migration-level DAG
// is built from cross-file FK references, and the DAG is topologically
// sorted with lexical tiebreak (internal/depgraph.OrderMigrations).
func OrderFiles(files []File) ([]File, error) {
	byName := make(map[string]File, len(files))
	candidates := make([]depgraph.MigrationCandidate, 0, len(files))

	for _, f := range files {
		byName[f.Name] = f

		// A migration file containing no CREATE TABLE statements (a
		// pure ALTER/DATA migration) simply defines and references
		// nothing, and sorts by lexical tiebreak alone.
		tableDefs, _ := artifact.ParseTableFile(f.Name, f.SQL)
		var defined, referenced []string
		for _, td := range tableDefs {
			defined = append(defined, td.Name)
			referenced = append(referenced, td.DependsOn...)
		}
		candidates = append(candidates, depgraph.MigrationCandidate{
			Name:             f.Name,
			DefinedTables:    defined,
			ReferencedTables: referenced,
		})
	}

	order, err := depgraph.OrderMigrations(candidates)
	if err != nil {
		return nil, err
	}

	ordered := make([]File, 0, len(order))
	for _, name := range order {
		ordered = append(ordered, byName[name])
	}
	return ordered, nil
}

// Run applies every unapplied migration file in migrationsDir, in
// dependency order, aborting on the first failure. Returns how many
// migrations were applied.
func (r *Runner) Run(ctx context.Context, pool *pgxpool.Pool, database, migrationsDir string) (int, error) {
	if err := r.EnsureTable(ctx, pool, database); err != nil {
		return 0, err
	}

	applied, err := r.AppliedMigrations(ctx, pool, database)
	if err != nil {
		return 0, err
	}
	appliedSet := make(map[string]bool, len(applied))
	for _, name := range applied {
		appliedSet[name] = true
	}

	files, err := FindFiles(migrationsDir)
	if err != nil {
		return 0, err
	}

	ordered, err := OrderFiles(files)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, f := range ordered {
		if appliedSet[f.Name] {
			r.logger.Debug("skipping already applied migration", "migration", f.Name, "database", database)
			continue
		}

		r.logger.Info("applying migration", "migration", f.Name, "database", database)

		if _, err := pool.Exec(ctx, f.SQL); err != nil {
			return count, gwerrors.Wrap(gwerrors.KindMigrationFailed, err, "applying migration %s", f.Name).WithDatabase(database)
		}

		if _, err := pool.Exec(ctx, `
			INSERT INTO `+migrationsTable+` (migration_file, checksum) VALUES ($1, $2)`,
			f.Name, f.Checksum); err != nil {
			return count, gwerrors.Wrap(gwerrors.KindMigrationFailed, err, "recording migration %s", f.Name).WithDatabase(database)
		}

		count++
		r.logger.Info("migration applied", "migration", f.Name, "checksum", f.Checksum, "database", database)
	}

	return count, nil
}

// VerifyChecksum reports whether migrationName's stored checksum
// matches expectedChecksum (false if the migration is not recorded at
// all, or its checksum has drifted from the on-disk file).
func (r *Runner) VerifyChecksum(ctx context.Context, pool *pgxpool.Pool, database, migrationName, expectedChecksum string) (bool, error) {
	var stored string
	err := pool.QueryRow(ctx, `
		SELECT checksum FROM `+migrationsTable+` WHERE migration_file = $1`, migrationName).Scan(&stored)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, gwerrors.Wrap(gwerrors.KindMigrationFailed, err, "checking checksum for %s", migrationName).WithDatabase(database)
	}

	if stored != expectedChecksum {
		r.logger.Warn("migration checksum drift", "migration", migrationName, "database", database, "stored", stored, "expected", expectedChecksum)
		return false, nil
	}
	return true, nil
}
