package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// maxJSONBody caps decoded request bodies. Photos are uploaded raw and have
// their own limit.
const maxJSONBody = 1 << 20

// Error codes let clients tell apart failures that share a status, such as
// a transfer that is already resolved and one that is being resolved.
const (
	codeValidation    = "validation"
	codeNotFound      = "not_found"
	codeNotRecipient  = "not_recipient"
	codeInvalidState  = "invalid_state"
	codeConcurrent    = "concurrent_operation"
	codeScanFormat    = "scan_format"
	codeLedgerMissing = "ledger_entry_not_found"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, errorResponse{Error: message})
}

// jsonErrorCode writes a JSON error response carrying a machine-readable code.
func jsonErrorCode(w http.ResponseWriter, status int, code, message string) {
	jsonResponse(w, status, errorResponse{Error: message, Code: code})
}

// decodeJSON decodes a JSON request body of at most maxJSONBody bytes into target.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(target)
}
