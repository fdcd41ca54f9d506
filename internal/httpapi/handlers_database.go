package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/deployer"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/gwerrors"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/poolcache"
)

type createDatabaseRequest struct {
	Platform   string `json:"platform"`
	SchemaName string `json:"schema_name"`
	DatabaseID string `json:"database_id"`
}

type createDatabaseResponse struct {
	Status              string                    `json:"status"`
	Platform            string                    `json:"platform"`
	SchemaName          string                    `json:"schema_name"`
	DatabaseName        string                    `json:"database_name"`
	ExtensionsInstalled int                       `json:"extensions_installed"`
	TypesDeployed       int                       `json:"types_deployed"`
	TablesCreated       int                       `json:"tables_created"`
	FunctionsDeployed   int                       `json:"functions_deployed"`
	Seeders             []deployer.SeederResult `json:"seeders"`
}

func (s *Server) handleCreateDatabase(w http.ResponseWriter, r *http.Request) {
	var req createDatabaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body: %v", err)
		return
	}

	if !s.Registry.IsRegistered(req.Platform) {
		writeError(w, gwerrors.New(gwerrors.KindInvalidRequest, "platform %q is not registered, register it first", req.Platform))
		return
	}
	if !s.Store.Exists(req.Platform, req.SchemaName) {
		writeError(w, gwerrors.New(gwerrors.KindInvalidRequest, "schema %q not found for platform %q, upload it first", req.SchemaName, req.Platform))
		return
	}

	dbName := poolcache.FormatDatabaseName(req.Platform, req.SchemaName, req.DatabaseID)

	exists, err := s.Cache.DatabaseExists(r.Context(), dbName)
	if err != nil {
		writeError(w, err)
		return
	}
	if exists {
		writeError(w, gwerrors.New(gwerrors.KindDatabaseAlreadyExists, "database %q already exists", dbName).WithDatabase(dbName))
		return
	}

	if err := s.Cache.CreateDatabase(r.Context(), dbName); err != nil {
		writeError(w, err)
		return
	}

	dirs := deployer.Dirs{
		Extensions: s.Store.ExtensionsDir(req.Platform, req.SchemaName),
		Types:      s.Store.TypesDir(req.Platform, req.SchemaName),
		Tables:     s.Store.TablesDir(req.Platform, req.SchemaName),
		Functions:  s.Store.FunctionsDir(req.Platform, req.SchemaName),
		Seeders:    s.Store.SeedersDir(req.Platform, req.SchemaName),
	}

	result, err := s.Deployer.DeployFresh(r.Context(), s.Cache, dbName, dirs)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.Registry.RecordDatabase(req.Platform, req.SchemaName, dbName); err != nil {
		writeError(w, err)
		return
	}

	s.Logger.Info("database created", "platform", req.Platform, "schema", req.SchemaName, "database", dbName,
		"extensions", result.ExtensionsInstalled, "tables", result.TablesCreated, "functions", result.FunctionsDeployed)

	writeJSON(w, http.StatusCreated, createDatabaseResponse{
		Status:              "created",
		Platform:            req.Platform,
		SchemaName:          req.SchemaName,
		DatabaseName:        dbName,
		ExtensionsInstalled: result.ExtensionsInstalled,
		TypesDeployed:       result.TypesDeployed,
		TablesCreated:       result.TablesCreated,
		FunctionsDeployed:   result.FunctionsDeployed,
		Seeders:             result.Seeders,
	})
}
