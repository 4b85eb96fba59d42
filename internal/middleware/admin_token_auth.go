package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"neo4j-graphql/internal/observability"
)

// DefaultAdminTokenHeader carries the shared admin token.
const DefaultAdminTokenHeader = "X-Admin-Token"

// adminTokenSubject is the subject recorded for requests authorized by the
// shared token.
const adminTokenSubject = "admin_token"

// AdminTokenAuthConfig controls shared-token authentication for the admin
// endpoints (schema reload).
type AdminTokenAuthConfig struct {
	Token string
	// HeaderName defaults to X-Admin-Token. "Authorization: Bearer <token>"
	// is accepted as well.
	HeaderName string
	Metrics    *observability.SecurityMetrics
}

// AdminTokenAuthMiddleware rejects admin requests that do not present the
// configured token.
func AdminTokenAuthMiddleware(cfg AdminTokenAuthConfig) (func(http.Handler) http.Handler, error) {
	expected := strings.TrimSpace(cfg.Token)
	if expected == "" {
		return nil, errors.New("admin auth token is required")
	}
	expectedDigest := sha256.Sum256([]byte(expected))
	header := strings.TrimSpace(cfg.HeaderName)
	if header == "" {
		header = DefaultAdminTokenHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if cfg.Metrics != nil {
				cfg.Metrics.RecordAuthAttempt(ctx, r.URL.Path)
			}

			presented := adminTokenFromRequest(r, header)
			digest := sha256.Sum256([]byte(presented))
			if presented == "" || subtle.ConstantTimeCompare(digest[:], expectedDigest[:]) != 1 {
				if cfg.Metrics != nil {
					cfg.Metrics.RecordAuthFailure(ctx, r.URL.Path, "invalid_admin_token")
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"status":"error","message":"unauthorized"}`))
				return
			}

			if cfg.Metrics != nil {
				cfg.Metrics.RecordAuthSuccess(ctx, r.URL.Path, adminTokenSubject)
			}
			ctx = WithAuthContext(ctx, AuthContext{
				Subject: adminTokenSubject,
				Issuer:  adminTokenSubject,
				Claims:  map[string]interface{}{"auth_method": adminTokenSubject},
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}

func adminTokenFromRequest(r *http.Request, header string) string {
	if token := strings.TrimSpace(r.Header.Get(header)); token != "" {
		return token
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}
