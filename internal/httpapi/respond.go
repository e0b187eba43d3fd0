package httpapi

import (
	"encoding/json"
	"net/http"

	"productsearch/internal/apperr"
	api "productsearch/pkg/api"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps an apperr.Error (or any other error, which falls back to
// 500) onto the standard error envelope (spec §7: never panic, always a
// typed disposition).
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.StatusCode(err), api.ErrorResponse{Error: err.Error()})
}
