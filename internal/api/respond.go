package api

import (
	"encoding/json"
	"net/http"
)

// Error kinds returned in the "error" field of failed responses.
const (
	ErrKindBadRequest   = "BadRequest"
	ErrKindBadTemplate  = "BadTemplate"
	ErrKindUnsupported  = "UnsupportedFormat"
	ErrKindTooLarge     = "TooLarge"
	ErrKindUnauthorized = "Unauthorized"
	ErrKindNotFound     = "NotFound"
	ErrKindQueueFull    = "QueueFull"
	ErrKindUnavailable  = "Unavailable"
	ErrKindInternal     = "Internal"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, kind, msg string) {
	writeJSON(w, code, errorBody{Error: kind, Message: msg})
}
