package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/gwerrors"
)

type registerPlatformRequest struct {
	Platform   string `json:"platform"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password"`
}

type registerPlatformResponse struct {
	Status   string `json:"status"`
	Platform string `json:"platform"`
}

func (s *Server) handleRegisterPlatform(w http.ResponseWriter, r *http.Request) {
	var req registerPlatformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body: %v", err)
		return
	}

	if _, err := s.Registry.Register(req.Platform); err != nil {
		writeError(w, err)
		return
	}

	s.Logger.Info("platform registered", "platform", req.Platform)
	writeJSON(w, http.StatusCreated, registerPlatformResponse{Status: "registered", Platform: req.Platform})
}

const maxSchemaArchiveBytes = 256 << 20 // 256MiB, generous for a declarative schema bundle

type uploadSchemaResponse struct {
	Status        string `json:"status"`
	Platform      string `json:"platform"`
	SchemaName    string `json:"schema_name"`
	Checksum      string `json:"checksum"`
	HasTables     bool   `json:"has_tables"`
	HasFunctions  bool   `json:"has_functions"`
	HasMigrations bool   `json:"has_migrations"`
}

func (s *Server) handleUploadSchema(w http.ResponseWriter, r *http.Request) {
	platform := mux.Vars(r)["platform"]
	if !s.Registry.IsRegistered(platform) {
		writeError(w, gwerrors.New(gwerrors.KindInvalidRequest, "platform %q is not registered", platform))
		return
	}

	if err := r.ParseMultipartForm(maxSchemaArchiveBytes); err != nil {
		badRequest(w, "invalid multipart form: %v", err)
		return
	}

	schemaName := r.FormValue("schema_name")
	if schemaName == "" {
		badRequest(w, "missing required field: schema_name")
		return
	}

	file, _, err := r.FormFile("schema")
	if err != nil {
		badRequest(w, "missing required field: schema")
		return
	}
	defer file.Close()

	archiveData, err := io.ReadAll(file)
	if err != nil {
		badRequest(w, "reading schema archive: %v", err)
		return
	}

	stored, err := s.Store.Store(platform, schemaName, archiveData)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.Registry.AddSchema(platform, schemaName); err != nil {
		writeError(w, err)
		return
	}

	s.Logger.Info("schema stored", "platform", platform, "schema", schemaName)
	writeJSON(w, http.StatusCreated, uploadSchemaResponse{
		Status:        "stored",
		Platform:      platform,
		SchemaName:    schemaName,
		Checksum:      stored.Checksum,
		HasTables:     stored.HasTables,
		HasFunctions:  stored.HasFunctions,
		HasMigrations: stored.HasMigrations,
	})
}

type listSchemasResponse struct {
	Platform string   `json:"platform"`
	Schemas  []string `json:"schemas"`
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	platform := mux.Vars(r)["platform"]
	if !s.Registry.IsRegistered(platform) {
		writeError(w, gwerrors.New(gwerrors.KindInvalidRequest, "platform %q is not registered", platform))
		return
	}

	schemas, err := s.Store.List(platform)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listSchemasResponse{Platform: platform, Schemas: schemas})
}

type listDatabasesResponse struct {
	Platform  string                    `json:"platform"`
	Databases []databaseRecordResponse `json:"databases"`
}

type databaseRecordResponse struct {
	SchemaName   string `json:"schema_name"`
	DatabaseName string `json:"database_name"`
	CreatedAt    string `json:"created_at"`
}

func (s *Server) handleListDatabases(w http.ResponseWriter, r *http.Request) {
	platform := mux.Vars(r)["platform"]
	if !s.Registry.IsRegistered(platform) {
		writeError(w, gwerrors.New(gwerrors.KindInvalidRequest, "platform %q is not registered", platform))
		return
	}

	records, err := s.Registry.ListDatabases(platform, r.URL.Query().Get("schema"))
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]databaseRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, databaseRecordResponse{
			SchemaName:   rec.SchemaName,
			DatabaseName: rec.DatabaseName,
			CreatedAt:    rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, listDatabasesResponse{Platform: platform, Databases: out})
}

type listPlatformsResponse struct {
	Platforms []string `json:"platforms"`
}

func (s *Server) handleListPlatforms(w http.ResponseWriter, r *http.Request) {
	platforms, err := s.Registry.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listPlatformsResponse{Platforms: platforms})
}
