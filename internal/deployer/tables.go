package deployer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/artifact"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/dbreader"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/depgraph"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/gwerrors"
)

const tablesTable = "_stonescriptdb_gateway_tables"

func ensureTablesTable(ctx context.Context, pool *pgxpool.Pool, database string) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+tablesTable+` (
			id SERIAL PRIMARY KEY,
			table_name TEXT NOT NULL UNIQUE,
			checksum TEXT NOT NULL,
			source_file TEXT NOT NULL,
			deployed_at TIMESTAMPTZ DEFAULT NOW()
		)`)
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindMigrationFailed, err, "%s table creation", tablesTable).WithDatabase(database)
	}
	return nil
}

func deployedTableChecksums(ctx context.Context, pool *pgxpool.Pool) (map[string]string, error) {
	rows, err := pool.Query(ctx, `SELECT table_name, checksum FROM `+tablesTable)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "querying deployed tables")
	}
	defer rows.Close()

	deployed := make(map[string]string)
	for rows.Next() {
		var name, checksum string
		if err := rows.Scan(&name, &checksum); err != nil {
			return nil, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "scanning deployed table")
		}
		deployed[name] = checksum
	}
	return deployed, rows.Err()
}

func upsertTableTracking(ctx context.Context, pool *pgxpool.Pool, def artifact.TableDefinition, sourceFile string) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO `+tablesTable+` (table_name, checksum, source_file, deployed_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (table_name) DO UPDATE SET
			checksum = EXCLUDED.checksum,
			source_file = EXCLUDED.source_file,
			deployed_at = NOW()`,
		def.Name, def.Checksum, sourceFile)
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindMigrationFailed, err, "updating table tracking for %s", def.Name)
	}
	return nil
}

// orderedTableDefinitions parses every table file in tablesDir and
// returns the TableDefinitions in FK-dependency order (spec §4.5.3,
// delegating the topological sort to internal/depgraph exactly as
// internal/migrate.OrderFiles does at the migration level).
func orderedTableDefinitions(tablesDir string) ([]artifact.TableDefinition, error) {
	files, err := scanDir(tablesDir, ".pssql", ".pgsql", ".sql")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	byName := make(map[string]artifact.TableDefinition)
	nodes := make([]depgraph.Node, 0, len(files))
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, gwerrors.Wrap(gwerrors.KindSchemaExtractionFailed, err, "reading table file %s", filepath.Base(path))
		}
		defs, err := artifact.ParseTableFile(path, string(content))
		if err != nil {
			return nil, gwerrors.Wrap(gwerrors.KindSchemaExtractionFailed, err, "parsing table file %s", filepath.Base(path))
		}
		for _, def := range defs {
			byName[def.Name] = def
			nodes = append(nodes, depgraph.Node{Name: def.Name, DependsOn: def.DependsOn})
		}
	}

	graph := depgraph.Build(nodes)
	order, err := graph.CreationOrder()
	if err != nil {
		return nil, err
	}

	ordered := make([]artifact.TableDefinition, 0, len(order))
	for _, name := range order {
		ordered = append(ordered, byName[name])
	}
	return ordered, nil
}

// deployTables parses, orders, and creates every table in tablesDir,
// adopting any table that is already present but untracked rather than
// re-executing its DDL (spec §4.5.3). A table present with a different
// checksum is flagged for the migrate path rather than altered here.
func (d *Deployer) deployTables(ctx context.Context, pool *pgxpool.Pool, database, tablesDir string) (int, error) {
	if err := ensureTablesTable(ctx, pool, database); err != nil {
		return 0, err
	}

	ordered, err := orderedTableDefinitions(tablesDir)
	if err != nil {
		return 0, err
	}
	if len(ordered) == 0 {
		d.logger.Debug("no tables to deploy", "database", database)
		return 0, nil
	}

	deployed, err := deployedTableChecksums(ctx, pool)
	if err != nil {
		return 0, err
	}
	reader := dbreader.New(pool, database, "")

	created := 0
	for _, def := range ordered {
		sourceFile := filepath.Base(def.FilePath)

		exists, err := reader.TableExists(ctx, def.Name)
		if err != nil {
			return created, err
		}
		if exists {
			if existingChecksum, tracked := deployed[def.Name]; tracked {
				if existingChecksum == def.Checksum {
					d.logger.Debug("table unchanged, skipping", "table", def.Name, "database", database)
					continue
				}
				d.logger.Warn("table already exists with a different definition, use the migrate endpoint for schema changes", "table", def.Name, "database", database)
				if err := upsertTableTracking(ctx, pool, def, sourceFile); err != nil {
					return created, err
				}
				continue
			}
			d.logger.Debug("table already exists, adopting into tracking", "table", def.Name, "database", database)
			if err := upsertTableTracking(ctx, pool, def, sourceFile); err != nil {
				return created, err
			}
			continue
		}

		d.logger.Debug("creating table", "table", def.Name, "database", database)
		if _, err := pool.Exec(ctx, def.SQL); err != nil {
			return created, gwerrors.Wrap(gwerrors.KindMigrationFailed, err, "creating table %s", def.Name).WithDatabase(database)
		}
		if err := upsertTableTracking(ctx, pool, def, sourceFile); err != nil {
			return created, err
		}
		d.logger.Info("created table", "table", def.Name, "database", database)
		created++
	}

	return created, nil
}
