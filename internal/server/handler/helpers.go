// Package handler holds the HTTP handlers of the control API.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// writeJSON marshals v and writes it with status. Marshal failures become a
// plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError sends {"error": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// pagination reads limit and offset from the query string.
func pagination(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit = defaultLimit
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		limit = min(n, maxLimit)
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n >= 0 {
		offset = n
	}
	return limit, offset
}
