package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// maxAuthBodySize bounds request bodies on auth endpoints.
const maxAuthBodySize = 16 * 1024

// unauthorizedMessage is the single message every authentication failure
// collapses into. Malformed, expired, revoked, and forged credentials
// must be indistinguishable to the client.
const unauthorizedMessage = "invalid or expired credentials"

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeUnauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, unauthorizedMessage)
}

// decodeJSON reads a bounded JSON body into T, writing a 400 on failure.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, maxSize int64) (T, bool) {
	var v T
	body := http.MaxBytesReader(w, r.Body, maxSize)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return v, false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return v, false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return v, false
	}
	return v, true
}
