package middleware

import (
	"encoding/json"
	"net/http"
)

// Error codes written by middleware. They match the codes used by the api package.
const (
	errCodeRateLimited = "rate_limited"
	errCodeAuthFailed  = "auth_failed"
	errCodeForbidden   = "forbidden"
)

// writeJSONError writes the {"error":{"code","message"}} envelope used across the API.
// Middleware cannot import the api package, so the shape is repeated here.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	UpdateResponseContext(w, SetErrorCode(r.Context(), code))

	body := map[string]map[string]string{
		"error": {"code": code, "message": message},
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
