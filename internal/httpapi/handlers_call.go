package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/gwerrors"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/poolcache"
)

type callRequest struct {
	Platform string            `json:"platform"`
	TenantID string            `json:"tenant_id"`
	Function string            `json:"function"`
	Params   []json.RawMessage `json:"params"`
}

type callResponse struct {
	Rows            []map[string]any `json:"rows"`
	RowCount        int              `json:"row_count"`
	ExecutionTimeMs int64            `json:"execution_time_ms"`
}

// handleCall invokes a stored function on a tenant database (spec §6's
// /call): the function name is restricted to a safe identifier grammar
// since it is interpolated directly into the query, and parameters are
// serialized to SQL literals by their JSON type rather than bound, so
// Postgres can coerce them naturally against the function's signature.
func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body: %v", err)
		return
	}

	dbName := poolcache.FormatDatabaseName(req.Platform, "", req.TenantID)

	if !isValidFunctionName(req.Function) {
		writeError(w, gwerrors.New(gwerrors.KindInvalidRequest, "invalid function name: %s", req.Function))
		return
	}

	exists, err := s.Cache.DatabaseExists(r.Context(), dbName)
	if err != nil {
		writeError(w, err)
		return
	}
	if !exists {
		writeError(w, gwerrors.New(gwerrors.KindDatabaseNotFound, "database %q not found", dbName).WithDatabase(dbName))
		return
	}

	pool, err := s.Cache.GetPool(r.Context(), dbName)
	if err != nil {
		writeError(w, err)
		return
	}

	args := make([]string, 0, len(req.Params))
	for _, p := range req.Params {
		literal, err := jsonToSQLLiteral(p)
		if err != nil {
			badRequest(w, "invalid parameter: %v", err)
			return
		}
		args = append(args, literal)
	}

	query := fmt.Sprintf("SELECT * FROM %s(%s)", req.Function, strings.Join(args, ", "))

	rows, err := pool.Query(r.Context(), query)
	if err != nil {
		writeError(w, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "calling %s", req.Function).WithDatabase(dbName))
		return
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	result := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			writeError(w, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "reading result of %s", req.Function).WithDatabase(dbName))
			return
		}
		row := make(map[string]any, len(fields))
		for i, f := range fields {
			row[string(f.Name)] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		writeError(w, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "reading result of %s", req.Function).WithDatabase(dbName))
		return
	}

	s.Logger.Info("function called", "request_id", requestIDFromContext(r.Context()),
		"platform", req.Platform, "database", dbName, "function", req.Function,
		"params", len(req.Params), "rows", len(result))

	writeJSON(w, http.StatusOK, callResponse{
		Rows:            result,
		RowCount:        len(result),
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	})
}

// isValidFunctionName guards against injection through the function name,
// which is interpolated directly into the query rather than bound.
func isValidFunctionName(name string) bool {
	if name == "" || len(name) > 63 {
		return false
	}
	first := name[0]
	if !(first >= 'a' && first <= 'z') && first != '_' {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		if !isLower && !isDigit && c != '_' {
			return false
		}
	}
	return true
}

// jsonToSQLLiteral renders a single JSON parameter value as a SQL literal:
// scalars inline as-is (with strings quoted and escaped), arrays and
// objects cast to ::jsonb, matching how the original service passes
// function parameters without per-type bind variables.
func jsonToSQLLiteral(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}

	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if val {
			return "true", nil
		}
		return "false", nil
	case json.Number:
		return val.String(), nil
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'", nil
	case []any, map[string]any:
		escaped := strings.ReplaceAll(string(raw), "'", "''")
		return "'" + escaped + "'::jsonb", nil
	default:
		return "", fmt.Errorf("unsupported parameter type %T", v)
	}
}
