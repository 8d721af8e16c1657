package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/warp/attendance/auth"
)

// APIKeyHeader carries the admin API key for unattended sync jobs.
const APIKeyHeader = "X-API-Key"

// RequestLogger logs one line per request.
func RequestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			}
			switch {
			case status >= 500:
				logger.Error("request", fields...)
			case status >= 400:
				logger.Warn("request", fields...)
			default:
				logger.Info("request", fields...)
			}
		})
	}
}

// RequireAuth rejects requests without a valid bearer token and stores the
// identity in the request context.
func RequireAuth(authn auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := authenticate(r, authn)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized", err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(checker auth.AdminChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := auth.FromContext(r.Context())
			if id == nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
				return
			}
			ok, err := checker.IsAdmin(r.Context(), *id)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to check admin rights", err)
				return
			}
			if !ok {
				writeError(w, http.StatusForbidden, "Unauthorized - Admin access required", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdminOrAPIKey accepts either the configured API key or an admin
// session. An empty key disables key access.
func RequireAdminOrAPIKey(authn auth.Authenticator, checker auth.AdminChecker, apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validAPIKey(r.Header.Get(APIKeyHeader), apiKey) {
				next.ServeHTTP(w, r)
				return
			}
			id, err := authenticate(r, authn)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized - Admin access required", err)
				return
			}
			ok, err := checker.IsAdmin(r.Context(), *id)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to check admin rights", err)
				return
			}
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized - Admin access required", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

func authenticate(r *http.Request, authn auth.Authenticator) (*auth.Identity, error) {
	tok, err := auth.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return nil, err
	}
	return authn.Authenticate(r.Context(), tok)
}

func validAPIKey(got, want string) bool {
	if want == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
