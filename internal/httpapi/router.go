package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter builds the gateway's full route table. Every route passes
// through the IP allow-list; register/schema-upload/database-create/
// migrate/call additionally require admin authentication, matching the
// privileged-endpoint boundary of the original service's admin routes.
func NewRouter(s *Server) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.Handle("/platform/register", s.adminAuth(http.HandlerFunc(s.handleRegisterPlatform))).Methods(http.MethodPost)
	r.Handle("/platform/{platform}/schema", s.adminAuth(http.HandlerFunc(s.handleUploadSchema))).Methods(http.MethodPost)
	r.Handle("/database/create", s.adminAuth(http.HandlerFunc(s.handleCreateDatabase))).Methods(http.MethodPost)
	r.Handle("/v2/migrate", s.adminAuth(http.HandlerFunc(s.handleMigrate))).Methods(http.MethodPost)
	r.Handle("/call", s.adminAuth(http.HandlerFunc(s.handleCall))).Methods(http.MethodPost)

	r.HandleFunc("/platform/{platform}/schemas", s.handleListSchemas).Methods(http.MethodGet)
	r.HandleFunc("/platform/{platform}/databases", s.handleListDatabases).Methods(http.MethodGet)
	r.HandleFunc("/platforms", s.handleListPlatforms).Methods(http.MethodGet)

	return s.requestID(s.ipFilter(r))
}
