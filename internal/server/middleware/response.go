package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/foliohq/folio/internal/model"
)

// writeFailure writes an error envelope. Middleware cannot use the handler
// package helpers without an import cycle.
func writeFailure(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.Failure(message))
}
