package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/gwerrors"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/migrate"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/poolcache"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/verifier"
)

type migrateRequest struct {
	Platform   string `json:"platform"`
	SchemaName string `json:"schema_name"`
	DatabaseID string `json:"database_id"`
	Force      bool   `json:"force"`
}

type schemaChangeInfo struct {
	Table         string `json:"table"`
	ChangeType    string `json:"change_type"`
	Column        string `json:"column,omitempty"`
	FromType      string `json:"from_type,omitempty"`
	ToType        string `json:"to_type,omitempty"`
	Compatibility string `json:"compatibility"`
	Reason        string `json:"reason,omitempty"`
}

type schemaValidationInfo struct {
	SafeChanges         []schemaChangeInfo `json:"safe_changes"`
	DataLossChanges     []schemaChangeInfo `json:"dataloss_changes"`
	IncompatibleChanges []schemaChangeInfo `json:"incompatible_changes"`
}

type verificationInfo struct {
	Passed            bool    `json:"passed"`
	ExtensionsVerified bool   `json:"extensions_verified"`
	TypesVerified     bool    `json:"types_verified"`
	TablesVerified    bool    `json:"tables_verified"`
	SeedersVerified   bool    `json:"seeders_verified"`
	ErrorLog          string  `json:"error_log,omitempty"`
}

type migrateResponse struct {
	Status            string                `json:"status"`
	Platform          string                `json:"platform"`
	SchemaName        string                `json:"schema_name"`
	DatabasesUpdated  []string              `json:"databases_updated"`
	MigrationsApplied int                   `json:"migrations_applied"`
	FunctionsUpdated  int                   `json:"functions_updated"`
	SchemaValidation  *schemaValidationInfo `json:"schema_validation,omitempty"`
	Verification      *verificationInfo     `json:"verification,omitempty"`
}

// handleMigrate runs the stored-schema migration pipeline (spec §4.6):
// for a single database or every database under platform/schema, apply
// migrations/ in order and redeploy functions. On the first database it
// also runs the diff gate (rejecting unsafe changes unless force) and
// the post-migration verifier, surfacing both in the response.
func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	var req migrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body: %v", err)
		return
	}

	if !s.Registry.IsRegistered(req.Platform) {
		writeError(w, gwerrors.New(gwerrors.KindInvalidRequest, "platform %q is not registered", req.Platform))
		return
	}
	if !s.Store.Exists(req.Platform, req.SchemaName) {
		writeError(w, gwerrors.New(gwerrors.KindInvalidRequest, "schema %q not found for platform %q", req.SchemaName, req.Platform))
		return
	}

	databases, err := s.resolveMigrationTargets(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(databases) == 0 {
		writeError(w, gwerrors.New(gwerrors.KindInvalidRequest, "no databases found for platform %q schema %q", req.Platform, req.SchemaName))
		return
	}

	tablesDir := s.Store.TablesDir(req.Platform, req.SchemaName)
	functionsDir := s.Store.FunctionsDir(req.Platform, req.SchemaName)
	migrationsDir := s.Store.MigrationsDir(req.Platform, req.SchemaName)

	resp := migrateResponse{Platform: req.Platform, SchemaName: req.SchemaName}
	var verifyResult verifier.Result

	for i, dbName := range databases {
		pool, err := s.Cache.GetPool(r.Context(), dbName)
		if err != nil {
			writeError(w, err)
			return
		}

		if err := s.Changelog.EnsureTable(r.Context(), pool, dbName); err != nil {
			writeError(w, err)
			return
		}

		if i == 0 {
			diff, err := s.DiffGate.Validate(r.Context(), pool, dbName, tablesDir, req.Force)
			if err != nil {
				writeError(w, err)
				return
			}
			info := diffToValidationInfo(diff)
			resp.SchemaValidation = &info
		}

		applied, err := s.Migrate.Run(r.Context(), pool, dbName, migrationsDir)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.MigrationsApplied += applied

		functionsDeployed, err := s.Deployer.DeployFunctions(r.Context(), pool, dbName, functionsDir)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.FunctionsUpdated += functionsDeployed

		if i == 0 {
			verifyResult, err = s.Verifier.VerifySchema(r.Context(), pool, dbName, verifier.Dirs{
				Extensions: s.Store.ExtensionsDir(req.Platform, req.SchemaName),
				Types:      s.Store.TypesDir(req.Platform, req.SchemaName),
				Tables:     tablesDir,
				Seeders:    s.Store.SeedersDir(req.Platform, req.SchemaName),
			})
			if err != nil {
				writeError(w, err)
				return
			}

			info := verificationInfo{
				Passed:             verifyResult.Passed,
				ExtensionsVerified: len(verifyResult.Extensions.Missing) == 0,
				TypesVerified:      len(verifyResult.Types.Missing) == 0,
				TablesVerified:     len(verifyResult.Tables.Missing) == 0 && len(verifyResult.Tables.Mismatches) == 0,
				SeedersVerified:    len(verifyResult.Seeders.Missing) == 0,
			}
			if !verifyResult.Passed {
				info.ErrorLog = verifyResult.ErrorLog()
			}
			resp.Verification = &info

			if !verifyResult.Passed && !req.Force {
				writeError(w, gwerrors.Wrap(gwerrors.KindMigrationFailed, nil, "schema verification failed: %s", verifyResult.ErrorLog()).WithDatabase(dbName))
				return
			}
		}

		resp.DatabasesUpdated = append(resp.DatabasesUpdated, dbName)
	}

	resp.Status = "completed"
	if resp.Verification != nil && !resp.Verification.Passed {
		resp.Status = "completed_with_warnings"
	}

	s.Logger.Info("migration complete", "platform", req.Platform, "schema", req.SchemaName,
		"databases", len(resp.DatabasesUpdated), "migrations", resp.MigrationsApplied, "functions", resp.FunctionsUpdated)

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) resolveMigrationTargets(ctx context.Context, req migrateRequest) ([]string, error) {
	if req.DatabaseID != "" {
		dbName := poolcache.FormatDatabaseName(req.Platform, req.SchemaName, req.DatabaseID)
		exists, err := s.Cache.DatabaseExists(ctx, dbName)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, gwerrors.New(gwerrors.KindDatabaseNotFound, "database %q not found", dbName).WithDatabase(dbName)
		}
		return []string{dbName}, nil
	}

	records, err := s.Registry.ListDatabases(req.Platform, req.SchemaName)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(records))
	for _, rec := range records {
		names = append(names, rec.DatabaseName)
	}
	return names, nil
}

func diffToValidationInfo(diff migrate.Diff) schemaValidationInfo {
	convert := func(changes []migrate.Change) []schemaChangeInfo {
		out := make([]schemaChangeInfo, 0, len(changes))
		for _, c := range changes {
			out = append(out, schemaChangeInfo{
				Table:         c.Table,
				ChangeType:    string(c.Kind),
				Column:        c.Column,
				FromType:      c.FromType,
				ToType:        c.ToType,
				Compatibility: string(c.Outcome),
				Reason:        c.Reason,
			})
		}
		return out
	}
	return schemaValidationInfo{
		SafeChanges:         convert(diff.Safe),
		DataLossChanges:     convert(diff.DataLoss),
		IncompatibleChanges: convert(diff.Incompatible),
	}
}
