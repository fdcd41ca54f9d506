package deployer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/artifact"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/gwerrors"
)

const typesTable = "_stonescriptdb_gateway_types"

func ensureTypesTable(ctx context.Context, pool *pgxpool.Pool, database string) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+typesTable+` (
			id SERIAL PRIMARY KEY,
			type_name TEXT NOT NULL UNIQUE,
			type_kind TEXT NOT NULL,
			checksum TEXT NOT NULL,
			source_file TEXT,
			deployed_at TIMESTAMPTZ DEFAULT NOW()
		)`)
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindMigrationFailed, err, "%s table creation", typesTable).WithDatabase(database)
	}
	return nil
}

func deployedTypeChecksums(ctx context.Context, pool *pgxpool.Pool) (map[string]string, error) {
	rows, err := pool.Query(ctx, `SELECT type_name, checksum FROM `+typesTable)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "querying deployed types")
	}
	defer rows.Close()

	deployed := make(map[string]string)
	for rows.Next() {
		var name, checksum string
		if err := rows.Scan(&name, &checksum); err != nil {
			return nil, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "scanning deployed type")
		}
		deployed[name] = checksum
	}
	return deployed, rows.Err()
}

func typeExistsLive(ctx context.Context, pool *pgxpool.Pool, name string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM pg_type t
			JOIN pg_namespace n ON t.typnamespace = n.oid
			WHERE t.typname = $1 AND n.nspname = 'public'
		)`, name).Scan(&exists)
	if err != nil {
		return false, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "checking live type %s", name)
	}
	return exists, nil
}

func upsertTypeTracking(ctx context.Context, pool *pgxpool.Pool, ct *artifact.CustomType, sourceFile string) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO `+typesTable+` (type_name, type_kind, checksum, source_file, deployed_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (type_name) DO UPDATE SET
			type_kind = EXCLUDED.type_kind,
			checksum = EXCLUDED.checksum,
			source_file = EXCLUDED.source_file,
			deployed_at = NOW()`,
		ct.Name, string(ct.Kind), ct.Checksum, sourceFile)
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindMigrationFailed, err, "updating type tracking for %s", ct.Name)
	}
	return nil
}

// deployTypes deploys every custom type found in typesDir. A type whose
// tracked checksum matches is skipped; a type that already exists live
// but under a changed definition is adopted (tracking updated) without
// touching the live type — enum value removal/rename is not automated,
// so this is the safe default (spec §4.5.2).
func (d *Deployer) deployTypes(ctx context.Context, pool *pgxpool.Pool, database, typesDir string) (int, error) {
	files, err := scanDir(typesDir, ".pssql", ".pgsql", ".sql")
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		d.logger.Debug("no custom types to deploy", "database", database)
		return 0, nil
	}

	if err := ensureTypesTable(ctx, pool, database); err != nil {
		return 0, err
	}
	deployed, err := deployedTypeChecksums(ctx, pool)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return count, gwerrors.Wrap(gwerrors.KindSchemaExtractionFailed, err, "reading type file %s", filepath.Base(path))
		}
		ct, ok := artifact.ParseTypeFile(path, string(content))
		if !ok {
			d.logger.Warn("type file did not match a recognized shape, skipping", "file", filepath.Base(path))
			continue
		}
		fileName := filepath.Base(path)

		if existingChecksum, tracked := deployed[ct.Name]; tracked {
			if existingChecksum == ct.Checksum {
				d.logger.Debug("type unchanged, skipping", "type", ct.Name, "database", database)
				continue
			}

			live, err := typeExistsLive(ctx, pool, ct.Name)
			if err != nil {
				return count, err
			}
			if live {
				d.logger.Warn("type already exists with a different definition, manual migration required", "type", ct.Name, "database", database)
				if err := upsertTypeTracking(ctx, pool, ct, fileName); err != nil {
					return count, err
				}
				count++
				continue
			}
		}

		live, err := typeExistsLive(ctx, pool, ct.Name)
		if err != nil {
			return count, err
		}
		if live {
			d.logger.Debug("type already exists live, adopting into tracking", "type", ct.Name, "database", database)
			if err := upsertTypeTracking(ctx, pool, ct, fileName); err != nil {
				return count, err
			}
			continue
		}

		d.logger.Debug("creating type", "type", ct.Name, "kind", ct.Kind, "database", database)
		if _, err := pool.Exec(ctx, ct.SQL); err != nil {
			return count, gwerrors.Wrap(gwerrors.KindMigrationFailed, err, "creating type %s", ct.Name).WithDatabase(database)
		}
		if err := upsertTypeTracking(ctx, pool, ct, fileName); err != nil {
			return count, err
		}
		d.logger.Info("created type", "type", ct.Name, "database", database)
		count++
	}

	return count, nil
}
