// Package httpxtest has helpers for the fake auth backends used in tests.
package httpxtest

import (
	"encoding/json"
	"net/http"
	"strings"
)

// WriteJSON replies with status and v encoded as JSON. Responses are marked
// no-store like the backend's token responses.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// BearerToken returns the token of an "Authorization: Bearer" header, or ""
// for any other scheme.
func BearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
