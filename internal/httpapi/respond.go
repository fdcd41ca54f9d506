package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/gwerrors"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps err to its gateway status code and writes the standard
// {error, message, database?, cause?} envelope.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, gwerrors.StatusCode(err), gwerrors.ToEnvelope(err))
}

func badRequest(w http.ResponseWriter, format string, args ...any) {
	writeError(w, gwerrors.New(gwerrors.KindInvalidRequest, format, args...))
}
