package deployer

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/artifact"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/gwerrors"
)

// SeederResult reports one seeder file's outcome.
type SeederResult struct {
	Table         string
	Inserted      int
	Skipped       int
	TotalExpected int
}

// runSeeders inserts every seeder file's rows into its target table, but
// only if that table is currently empty (spec §4.5.5, register-time
// only). All inserts within one seeder file run in a single transaction
// so a mid-file insert failure cannot leave the table partially seeded.
func (d *Deployer) runSeeders(ctx context.Context, pool *pgxpool.Pool, database, seedersDir string) ([]SeederResult, error) {
	files, err := scanDir(seedersDir, ".pssql", ".pgsql", ".sql")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		d.logger.Debug("no seeders to run", "database", database)
		return nil, nil
	}

	var results []SeederResult
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return results, gwerrors.Wrap(gwerrors.KindSchemaExtractionFailed, err, "reading seeder file %s", filepath.Base(path))
		}
		seeder, ok := artifact.ParseSeederFile(path, string(content))
		if !ok {
			d.logger.Warn("seeder file did not match a recognized shape, skipping", "file", filepath.Base(path))
			continue
		}

		result, err := d.runSeederIfEmpty(ctx, pool, database, seeder)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	return results, nil
}

func (d *Deployer) runSeederIfEmpty(ctx context.Context, pool *pgxpool.Pool, database string, seeder *artifact.Seeder) (SeederResult, error) {
	var count int64
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+quoteIdent(seeder.Table)).Scan(&count); err != nil {
		return SeederResult{}, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "checking row count for seeder target %s", seeder.Table).WithDatabase(database)
	}

	if count > 0 {
		d.logger.Info("skipping seeder, table already has rows", "table", seeder.Table, "rows", count, "database", database)
		d.logChange(database, d.changelog.LogSeederSkipped(ctx, pool, database, seeder.Table, "table not empty"))
		return SeederResult{Table: seeder.Table, Skipped: len(seeder.Rows), TotalExpected: len(seeder.Rows)}, nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return SeederResult{}, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "starting seeder transaction for %s", seeder.Table).WithDatabase(database)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, row := range seeder.Rows {
		insertSQL := "INSERT INTO " + quoteIdent(seeder.Table) + " (" + strings.Join(row.Columns, ", ") + ") VALUES (" + strings.Join(row.Values, ", ") + ")"
		if _, err := tx.Exec(ctx, insertSQL); err != nil {
			d.logger.Warn("seeder insert failed", "table", seeder.Table, "sql", insertSQL, "error", err)
			return SeederResult{}, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "inserting seeder row into %s", seeder.Table).WithDatabase(database)
		}
		inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return SeederResult{}, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "committing seeder transaction for %s", seeder.Table).WithDatabase(database)
	}

	d.logger.Info("seeder inserted rows", "table", seeder.Table, "inserted", inserted, "database", database)
	d.logChange(database, d.changelog.LogSeederRun(ctx, pool, database, seeder.Table, inserted, 0))
	return SeederResult{Table: seeder.Table, Inserted: inserted, TotalExpected: len(seeder.Rows)}, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
