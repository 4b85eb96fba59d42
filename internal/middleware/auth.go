package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"neo4j-graphql/internal/logging"
	"neo4j-graphql/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type authContextKey struct{}

// AuthContext carries validated JWT claims.
type AuthContext struct {
	Subject  string
	Issuer   string
	Audience []string
	Claims   map[string]interface{}
}

// WithAuthContext attaches an authenticated principal to ctx.
func WithAuthContext(ctx context.Context, auth AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// AuthFromContext returns the auth context from a request context.
func AuthFromContext(ctx context.Context) (AuthContext, bool) {
	value := ctx.Value(authContextKey{})
	if value == nil {
		return AuthContext{}, false
	}
	auth, ok := value.(AuthContext)
	return auth, ok
}

// ClaimsFromContext returns the verified token claims of the request, for
// authorization rules evaluated during translation.
func ClaimsFromContext(ctx context.Context) (map[string]any, bool) {
	auth, ok := AuthFromContext(ctx)
	if !ok || auth.Claims == nil {
		return nil, false
	}
	return auth.Claims, true
}

// tokenVerifier turns a raw bearer token into an authenticated principal.
type tokenVerifier interface {
	verify(ctx context.Context, token string) (AuthContext, error)
	issuer() string
}

// errClaims marks verification failures that happened after the signature
// was accepted.
var errClaims = errors.New("invalid token claims")

type bearerAuthOptions struct {
	allowAnonymous bool
	logger         *logging.Logger
	metrics        *observability.SecurityMetrics
}

// bearerAuth is the request path shared by the token middlewares. Requests
// without a token pass through unauthenticated when allowAnonymous is set,
// leaving the decision to the schema's authentication rules.
func bearerAuth(verifier tokenVerifier, opts bearerAuthOptions) func(http.Handler) http.Handler {
	metrics := opts.metrics
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			endpoint := r.URL.Path
			if metrics != nil {
				metrics.RecordAuthAttempt(r.Context(), endpoint)
			}

			tokenString := bearerToken(r.Header.Get("Authorization"))
			if tokenString == "" {
				if opts.allowAnonymous {
					next.ServeHTTP(w, r)
					return
				}
				if metrics != nil {
					metrics.RecordAuthFailure(r.Context(), endpoint, "missing_token")
					metrics.RecordUnauthorizedAttempt(r.Context(), endpoint, "missing_token")
				}
				if opts.logger != nil {
					logging.FromContext(r.Context()).Warn("authentication failed: missing bearer token",
						slog.String("endpoint", endpoint),
						slog.String("remote_addr", r.RemoteAddr),
					)
				}
				writeUnauthorized(w, "missing bearer token")
				return
			}

			auth, err := verifier.verify(r.Context(), tokenString)
			if err != nil {
				reason := "token_verification_failed"
				message := "invalid token"
				if errors.Is(err, errClaims) {
					reason = "claims_validation_failed"
				}
				if metrics != nil {
					metrics.RecordAuthFailure(r.Context(), endpoint, reason)
					metrics.RecordTokenValidationError(r.Context(), reason)
					metrics.RecordUnauthorizedAttempt(r.Context(), endpoint, "invalid_token")
				}
				if opts.logger != nil {
					logging.FromContext(r.Context()).Warn("token validation failed",
						slog.String("error", err.Error()),
						slog.String("endpoint", endpoint),
						slog.String("remote_addr", r.RemoteAddr),
					)
				}
				writeUnauthorized(w, message)
				return
			}

			if metrics != nil {
				metrics.RecordAuthSuccess(r.Context(), endpoint, verifier.issuer())
			}
			if opts.logger != nil {
				logging.FromContext(r.Context()).Debug("authentication successful",
					slog.String("subject", auth.Subject),
					slog.String("issuer", auth.Issuer),
					slog.String("endpoint", endpoint),
				)
			}
			if span := trace.SpanFromContext(r.Context()); span.IsRecording() {
				span.SetAttributes(
					attribute.String("auth.subject", auth.Subject),
					attribute.String("auth.issuer", auth.Issuer),
					attribute.Bool("auth.authenticated", true),
				)
				if len(auth.Audience) > 0 {
					span.SetAttributes(attribute.StringSlice("auth.audience", auth.Audience))
				}
			}

			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), auth)))
		})
	}
}

func bearerToken(value string) string {
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeGraphQLError(w, http.StatusUnauthorized, message, "UNAUTHENTICATED")
}

func writeGraphQLError(w http.ResponseWriter, status int, message string, code string) {
	payload := map[string]any{
		"errors": []map[string]any{
			{
				"message": message,
				"extensions": map[string]any{
					"code": code,
				},
			},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func validateTimeClaims(claims map[string]interface{}, skew time.Duration) error {
	if skew <= 0 {
		return nil
	}

	now := time.Now()
	if exp, ok := numericDate(claims["exp"]); ok {
		if now.After(exp.Add(skew)) {
			return fmt.Errorf("%w: token expired", errClaims)
		}
	}
	if nbf, ok := numericDate(claims["nbf"]); ok {
		if now.Add(skew).Before(nbf) {
			return fmt.Errorf("%w: token not valid yet", errClaims)
		}
	}
	return nil
}

func numericDate(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case float64:
		return time.Unix(int64(v), 0), true
	case int64:
		return time.Unix(v, 0), true
	case int:
		return time.Unix(int64(v), 0), true
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(parsed, 0), true
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(parsed, 0), true
	default:
		return time.Time{}, false
	}
}

func extractAudience(claims map[string]interface{}) []string {
	raw, ok := claims["aud"]
	if !ok {
		return nil
	}

	switch val := raw.(type) {
	case string:
		return []string{val}
	case []string:
		return val
	case []interface{}:
		result := make([]string, 0, len(val))
		for _, item := range val {
			if str, ok := item.(string); ok {
				result = append(result, str)
			}
		}
		return result
	default:
		return nil
	}
}
