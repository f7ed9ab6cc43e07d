package json

import (
	"encoding/json"
	"net/http"
)

// WriteJSON encodes the response with the given status. Encoding failures
// fall back to a plain 500 without overriding the caller's status.
func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
