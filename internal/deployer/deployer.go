// Package deployer orchestrates the fresh-database deployment pipeline:
// extensions, custom types, tables, functions, and seeders, each tracked
// in its own per-database metadata table so redeployment is idempotent.
// Any failure after the database is created rolls back by dropping it.
package deployer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/changelog"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/poolcache"
)

// Dirs locates the declarative schema bundle's component directories.
type Dirs struct {
	Extensions string
	Types      string
	Tables     string
	Functions  string
	Seeders    string
}

// Result tallies what the pipeline did, for the caller's HTTP response.
type Result struct {
	ExtensionsInstalled int
	TypesDeployed       int
	TablesCreated       int
	FunctionsDeployed   int
	Seeders             []SeederResult
}

// Deployer runs the deployment pipeline against a single tenant database.
type Deployer struct {
	logger    *slog.Logger
	changelog *changelog.Manager
}

// New returns a deployer. logger defaults to slog.Default().
func New(logger *slog.Logger) *Deployer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployer{logger: logger, changelog: changelog.NewManager(logger)}
}

// DeployFresh runs the full pipeline (spec §4.5) against database, which
// must already exist (created by the caller via cache.CreateDatabase —
// step 0 uses the admin pool with a sanitized identifier, outside this
// method's scope). Any failure in the pipeline that runs after the
// changelog table is in place drops the database before returning; a
// failure to open the pool or to create the changelog table is returned
// without dropping it.
func (d *Deployer) DeployFresh(ctx context.Context, cache *poolcache.Cache, database string, dirs Dirs) (Result, error) {
	pool, err := cache.GetPool(ctx, database)
	if err != nil {
		return Result{}, err
	}

	if err := d.changelog.EnsureTable(ctx, pool, database); err != nil {
		return Result{}, err
	}

	result, err := d.runPipeline(ctx, pool, database, dirs)
	if err != nil {
		d.logger.Error("deployment failed, rolling back by dropping database", "database", database, "error", err)
		if dropErr := cache.DropDatabase(ctx, database); dropErr != nil {
			d.logger.Error("rollback drop failed", "database", database, "error", dropErr)
		}
		return Result{}, err
	}

	return result, nil
}

// DeployFunctions redeploys every function in functionsDir against an
// already-migrated database, independent of the fresh-creation pipeline.
// The stored-schema migration flow (spec §4.6) always redeploys
// functions after applying migrations/, reusing the same signature
// tracking DeployFresh uses on first creation.
func (d *Deployer) DeployFunctions(ctx context.Context, pool *pgxpool.Pool, database, functionsDir string) (int, error) {
	return d.deployFunctions(ctx, pool, database, functionsDir)
}

func (d *Deployer) runPipeline(ctx context.Context, pool *pgxpool.Pool, database string, dirs Dirs) (Result, error) {
	var result Result

	installed, err := d.installExtensions(ctx, pool, database, dirs.Extensions)
	if err != nil {
		return Result{}, err
	}
	result.ExtensionsInstalled = installed

	types, err := d.deployTypes(ctx, pool, database, dirs.Types)
	if err != nil {
		return Result{}, err
	}
	result.TypesDeployed = types

	tables, err := d.deployTables(ctx, pool, database, dirs.Tables)
	if err != nil {
		return Result{}, err
	}
	result.TablesCreated = tables

	functions, err := d.deployFunctions(ctx, pool, database, dirs.Functions)
	if err != nil {
		return Result{}, err
	}
	result.FunctionsDeployed = functions

	seeders, err := d.runSeeders(ctx, pool, database, dirs.Seeders)
	if err != nil {
		return Result{}, err
	}
	result.Seeders = seeders

	d.logger.Info("deployment complete", "database", database,
		"extensions", result.ExtensionsInstalled, "types", result.TypesDeployed,
		"tables", result.TablesCreated, "functions", result.FunctionsDeployed)

	return result, nil
}

// logChange records a changelog entry on a best-effort basis: a failure
// to write the audit trail must never fail the deployment it describes.
func (d *Deployer) logChange(database string, err error) {
	if err != nil {
		d.logger.Warn("changelog write failed", "database", database, "error", err)
	}
}

func isNoRowsErr(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
