package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atlekbai/query_graph/internal/engine"
)

// ErrorResponse is the body of every failed request, and the per-document
// error of a batch.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message, details string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

// writeFailure reports a render error with the status classify assigns it.
func writeFailure(w http.ResponseWriter, err error) {
	status, resp := classify(err)
	writeJSON(w, status, resp)
}

// classify maps render errors to a status and body. Anything the engine
// rejects is the caller's fault, so nothing here is a 5xx.
func classify(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, errBadDialect):
		return http.StatusBadRequest, ErrorResponse{Error: "Unknown dialect", Code: "INVALID_DIALECT", Details: err.Error()}
	case errors.Is(err, errBadDocument):
		return http.StatusBadRequest, ErrorResponse{Error: "Invalid query document", Code: "INVALID_DOCUMENT", Details: err.Error()}
	case engine.IsValidationError(err):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: "Query failed validation", Code: "VALIDATION_FAILED", Details: err.Error()}
	}
	return http.StatusBadRequest, ErrorResponse{Error: "Query could not be rendered", Code: "RENDER_FAILED", Details: err.Error()}
}
