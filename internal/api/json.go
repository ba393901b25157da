package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/neonbeat/back/internal/apperr"
)

const maxBodyBytes = 1 << 20 // 1MB, plenty for a team roster or a short playlist

// decodeJSON reads r.Body into dst, rejecting unknown fields per spec
// §6 ("Unknown query or JSON fields are rejected").
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return apperr.New(apperr.Validation, "request body is required")
		}
		return apperr.Wrap(apperr.Validation, err, "malformed request body")
	}
	if dec.More() {
		return apperr.New(apperr.Validation, "request body must contain a single JSON value")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
