package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImpersonationMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := ImpersonatedUserFromContext(r.Context()); ok {
			w.Header().Set("X-Impersonated", user)
		}
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name          string
		claims        map[string]interface{}
		allowedUsers  []string
		expectStatus  int
		expectUser    string
		expectMessage string
	}{
		{
			name:         "anonymous request runs as service user",
			expectStatus: http.StatusOK,
		},
		{
			name:         "missing claim runs as service user",
			claims:       map[string]interface{}{"sub": "u1"},
			expectStatus: http.StatusOK,
		},
		{
			name:          "non-string claim",
			claims:        map[string]interface{}{"neo4j_user": 42},
			expectStatus:  http.StatusBadRequest,
			expectMessage: "invalid neo4j_user claim",
		},
		{
			name:          "user outside allowlist",
			claims:        map[string]interface{}{"neo4j_user": "admin"},
			allowedUsers:  []string{"reader", "editor"},
			expectStatus:  http.StatusForbidden,
			expectMessage: "impersonation of admin is not allowed",
		},
		{
			name:         "allowed user",
			claims:       map[string]interface{}{"neo4j_user": "editor"},
			allowedUsers: []string{"reader", "editor"},
			expectStatus: http.StatusOK,
			expectUser:   "editor",
		},
		{
			name:         "empty allowlist accepts any user",
			claims:       map[string]interface{}{"neo4j_user": "anyone"},
			expectStatus: http.StatusOK,
			expectUser:   "anyone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
			if tt.claims != nil {
				req = req.WithContext(WithAuthContext(req.Context(), AuthContext{Claims: tt.claims}))
			}

			rec := httptest.NewRecorder()
			ImpersonationMiddleware("", tt.allowedUsers)(handler).ServeHTTP(rec, req)

			require.Equal(t, tt.expectStatus, rec.Code)
			assert.Equal(t, tt.expectUser, rec.Header().Get("X-Impersonated"))

			if tt.expectMessage != "" {
				var payload struct {
					Errors []struct {
						Message string `json:"message"`
					} `json:"errors"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
				require.Len(t, payload.Errors, 1)
				assert.Equal(t, tt.expectMessage, payload.Errors[0].Message)
			}
		})
	}
}

func TestImpersonationMiddlewareCustomClaim(t *testing.T) {
	var seen string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ImpersonatedUserFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req = req.WithContext(WithAuthContext(req.Context(), AuthContext{
		Claims: map[string]interface{}{"db_user": "reader"},
	}))
	ImpersonationMiddleware("db_user", nil)(handler).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "reader", seen)
}
