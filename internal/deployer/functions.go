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

const functionsTable = "_stonescriptdb_gateway_functions"

func ensureFunctionsTable(ctx context.Context, pool *pgxpool.Pool, database string) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+functionsTable+` (
			id SERIAL PRIMARY KEY,
			function_name TEXT NOT NULL,
			param_types TEXT NOT NULL,
			signature TEXT NOT NULL,
			return_type TEXT NOT NULL,
			checksum TEXT NOT NULL,
			source_file TEXT NOT NULL,
			deployed_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE (function_name, param_types)
		)`)
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindMigrationFailed, err, "%s table creation", functionsTable).WithDatabase(database)
	}
	return nil
}

type trackedFunction struct {
	id         int32
	name       string
	paramTypes string
	signature  string
	checksum   string
}

func trackedFunctionByKey(ctx context.Context, pool *pgxpool.Pool, name, paramTypes string) (*trackedFunction, error) {
	var tf trackedFunction
	err := pool.QueryRow(ctx, `
		SELECT id, function_name, param_types, signature, checksum
		FROM `+functionsTable+` WHERE function_name = $1 AND param_types = $2`,
		name, paramTypes).Scan(&tf.id, &tf.name, &tf.paramTypes, &tf.signature, &tf.checksum)
	if err != nil {
		if isNoRowsErr(err) {
			return nil, nil
		}
		return nil, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "looking up tracked function %s", name)
	}
	return &tf, nil
}

func trackedFunctionsBySourceFile(ctx context.Context, pool *pgxpool.Pool, sourceFile string) ([]trackedFunction, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, function_name, param_types, signature, checksum
		FROM `+functionsTable+` WHERE source_file = $1`, sourceFile)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "querying tracked functions for %s", sourceFile)
	}
	defer rows.Close()

	var all []trackedFunction
	for rows.Next() {
		var tf trackedFunction
		if err := rows.Scan(&tf.id, &tf.name, &tf.paramTypes, &tf.signature, &tf.checksum); err != nil {
			return nil, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "scanning tracked function")
		}
		all = append(all, tf)
	}
	return all, rows.Err()
}

func upsertFunctionTracking(ctx context.Context, pool *pgxpool.Pool, sig *artifact.FunctionSignature, paramTypes, sourceFile string) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO `+functionsTable+` (function_name, param_types, signature, return_type, checksum, source_file, deployed_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (function_name, param_types) DO UPDATE SET
			signature = EXCLUDED.signature,
			return_type = EXCLUDED.return_type,
			checksum = EXCLUDED.checksum,
			source_file = EXCLUDED.source_file,
			deployed_at = NOW()`,
		sig.Name, paramTypes, sig.DropSignature(), sig.ReturnType, sig.BodyChecksum, sourceFile)
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindFunctionDeployFailed, err, "updating function tracking for %s", sig.Name)
	}
	return nil
}

func deleteFunctionTracking(ctx context.Context, pool *pgxpool.Pool, id int32) error {
	_, err := pool.Exec(ctx, `DELETE FROM `+functionsTable+` WHERE id = $1`, id)
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindFunctionDeployFailed, err, "deleting stale function tracking row %d", id)
	}
	return nil
}

// deployFunctions deploys every function file in functionsDir in sorted
// order, dropping any previously tracked overload of the same file whose
// signature no longer matches before (re)creating it — PostgreSQL
// identifies functions by name+parameter-types, so a changed parameter
// list would otherwise leave the old overload resident (spec §4.5.4).
func (d *Deployer) deployFunctions(ctx context.Context, pool *pgxpool.Pool, database, functionsDir string) (int, error) {
	files, err := scanDir(functionsDir, ".pssql", ".pgsql", ".sql")
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		d.logger.Debug("no functions to deploy", "database", database)
		return 0, nil
	}

	if err := ensureFunctionsTable(ctx, pool, database); err != nil {
		return 0, err
	}

	deployed := 0
	for _, path := range files {
		sourceFile := filepath.Base(path)
		content, err := os.ReadFile(path)
		if err != nil {
			return deployed, gwerrors.Wrap(gwerrors.KindSchemaExtractionFailed, err, "reading function file %s", sourceFile)
		}
		sql := string(content)

		sig, ok := artifact.ParseFunctionFile(path, sql)
		if !ok {
			d.logger.Warn("function file did not match a recognized shape, executing raw (untracked)", "file", sourceFile)
			if _, err := pool.Exec(ctx, sql); err != nil {
				return deployed, gwerrors.Wrap(gwerrors.KindFunctionDeployFailed, err, "executing untracked function file %s", sourceFile).WithDatabase(database)
			}
			deployed++
			continue
		}

		paramTypes := strings.Join(sig.ParamTypes(), ",")

		if existing, err := trackedFunctionByKey(ctx, pool, sig.Name, paramTypes); err != nil {
			return deployed, err
		} else if existing != nil && existing.checksum == sig.BodyChecksum {
			d.logger.Debug("function unchanged, skipping", "function", sig.Name, "database", database)
			d.logChange(database, d.changelog.LogFunctionSkipped(ctx, pool, database, sig.Name))
			continue
		}

		stale, err := trackedFunctionsBySourceFile(ctx, pool, sourceFile)
		if err != nil {
			return deployed, err
		}
		for _, tf := range stale {
			if tf.name == sig.Name && tf.paramTypes == paramTypes {
				continue // same identity; body change alone, handled by CREATE OR REPLACE below
			}
			d.logger.Info("dropping stale function overload ahead of signature change", "function", tf.signature, "database", database)
			if _, err := pool.Exec(ctx, `DROP FUNCTION IF EXISTS `+tf.signature); err != nil {
				return deployed, gwerrors.Wrap(gwerrors.KindFunctionDeployFailed, err, "dropping stale overload %s", tf.signature).WithDatabase(database)
			}
			if err := deleteFunctionTracking(ctx, pool, tf.id); err != nil {
				return deployed, err
			}
			d.logChange(database, d.changelog.LogFunctionDropped(ctx, pool, database, sig.Name, tf.signature, "signature changed"))
		}

		d.logger.Debug("deploying function", "function", sig.Name, "database", database)
		if _, err := pool.Exec(ctx, sig.SQL); err != nil {
			return deployed, gwerrors.Wrap(gwerrors.KindFunctionDeployFailed, err, "deploying function %s", sig.Name).WithDatabase(database)
		}
		if err := upsertFunctionTracking(ctx, pool, sig, paramTypes, sourceFile); err != nil {
			return deployed, err
		}

		d.logger.Info("deployed function", "function", sig.Name, "database", database)
		d.logChange(database, d.changelog.LogFunctionDeployed(ctx, pool, database, sig.Name, sig.DropSignature(), sig.BodyChecksum, sourceFile))
		deployed++
	}

	return deployed, nil
}
