package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/eventsupply/internal/auth"
)

// AdminTokenValidator validates bearer tokens that must carry the admin role.
// *auth.JWTService satisfies it.
type AdminTokenValidator interface {
	ValidateAdminToken(token string) (*auth.Claims, error)
}

// RequireAdmin rejects requests without a valid admin bearer token. Missing
// or invalid tokens get 401 auth_failed, valid non-admin tokens get 403
// forbidden. On success the token subject is stored with SetUserID.
func RequireAdmin(validator AdminTokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="eventsupply"`)
				writeJSONError(w, r, http.StatusUnauthorized, errCodeAuthFailed, "Missing bearer token")
				return
			}

			claims, err := validator.ValidateAdminToken(token)
			switch {
			case errors.Is(err, auth.ErrNotAdmin):
				slog.WarnContext(r.Context(), "non-admin token on admin route",
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()))
				writeJSONError(w, r, http.StatusForbidden, errCodeForbidden, "Admin role required")
				return
			case err != nil:
				w.Header().Set("WWW-Authenticate", `Bearer realm="eventsupply", error="invalid_token"`)
				writeJSONError(w, r, http.StatusUnauthorized, errCodeAuthFailed, "Invalid or expired token")
				return
			}

			ctx := SetUserID(r.Context(), claims.Subject)
			UpdateResponseContext(w, ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
