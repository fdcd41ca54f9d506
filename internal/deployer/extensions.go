package deployer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/artifact"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/gwerrors"
)

// installExtensions installs every extension descriptor found in
// extensionsDir, skipping any already present in pg_extension. A
// "control file missing" failure is reported as ExtensionNotAvailable so
// the caller can tell a misprovisioned cluster from a generic failure.
func (d *Deployer) installExtensions(ctx context.Context, pool *pgxpool.Pool, database, extensionsDir string) (int, error) {
	files, err := scanDir(extensionsDir, ".pssql", ".pgsql", ".sql", ".txt")
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		d.logger.Debug("no extensions to install", "database", database)
		return 0, nil
	}

	installed := 0
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return installed, gwerrors.Wrap(gwerrors.KindSchemaExtractionFailed, err, "reading extension file %s", filepath.Base(path))
		}
		ext := artifact.ParseExtensionFile(path, string(content))

		exists, err := extensionExists(ctx, pool, ext.Name)
		if err != nil {
			return installed, err
		}
		if exists {
			d.logger.Debug("extension already installed, skipping", "extension", ext.Name, "database", database)
			d.logChange(database, d.changelog.LogExtensionSkipped(ctx, pool, database, ext.Name))
			continue
		}

		sql := buildCreateExtensionSQL(ext.Name, ext.Schema, ext.Version)
		d.logger.Debug("installing extension", "extension", ext.Name, "database", database)

		if _, err := pool.Exec(ctx, sql); err != nil {
			msg := err.Error()
			if strings.Contains(msg, "could not open extension control file") ||
				(strings.Contains(msg, "extension") && strings.Contains(msg, "is not available")) {
				d.logger.Warn("extension not available on this server", "extension", ext.Name, "error", err)
				return installed, gwerrors.Wrap(gwerrors.KindExtensionNotAvailable, err, "extension %s not available", ext.Name).WithDatabase(database)
			}
			return installed, gwerrors.Wrap(gwerrors.KindExtensionInstallFailed, err, "installing extension %s", ext.Name).WithDatabase(database)
		}

		d.logger.Info("installed extension", "extension", ext.Name, "database", database)
		d.logChange(database, d.changelog.LogExtensionInstalled(ctx, pool, database, ext.Name, ext.Version, ext.Schema))
		installed++
	}

	return installed, nil
}

func extensionExists(ctx context.Context, pool *pgxpool.Pool, name string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = $1)`, name).Scan(&exists)
	if err != nil {
		return false, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "checking extension %s", name)
	}
	return exists, nil
}

func buildCreateExtensionSQL(name, schema, version string) string {
	sql := `CREATE EXTENSION IF NOT EXISTS "` + name + `"`
	if schema != "" {
		sql += ` SCHEMA "` + schema + `"`
	}
	if version != "" {
		sql += ` VERSION '` + version + `'`
	}
	return sql
}

// scanDir lists every file under dir whose extension matches one of
// exts, sorted by name. A missing directory yields an empty list, not
// an error — every declarative bundle directory is optional.
func scanDir(dir string, exts ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, gwerrors.Wrap(gwerrors.KindSchemaExtractionFailed, err, "reading directory %s", dir)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		for _, want := range exts {
			if ext == want {
				files = append(files, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}
