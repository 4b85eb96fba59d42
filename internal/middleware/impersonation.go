package middleware

import (
	"context"
	"fmt"
	"net/http"
)

// DefaultImpersonationClaim is the token claim naming the database user a
// request runs as.
const DefaultImpersonationClaim = "neo4j_user"

type impersonationContextKey struct{}

// WithImpersonatedUser attaches the database user to impersonate to ctx.
func WithImpersonatedUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, impersonationContextKey{}, user)
}

// ImpersonatedUserFromContext returns the database user set by
// ImpersonationMiddleware.
func ImpersonatedUserFromContext(ctx context.Context) (string, bool) {
	user, ok := ctx.Value(impersonationContextKey{}).(string)
	return user, ok && user != ""
}

// ImpersonationMiddleware maps a claim of the authenticated token onto the
// database user statements run as. Anonymous requests and tokens without the
// claim run as the service user. A non-empty allowedUsers list rejects any
// other value.
func ImpersonationMiddleware(claimName string, allowedUsers []string) func(http.Handler) http.Handler {
	if claimName == "" {
		claimName = DefaultImpersonationClaim
	}

	allowed := make(map[string]struct{}, len(allowedUsers))
	for _, user := range allowedUsers {
		allowed[user] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, authenticated := AuthFromContext(r.Context())
			if !authenticated {
				next.ServeHTTP(w, r)
				return
			}

			raw, ok := authCtx.Claims[claimName]
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			user, ok := raw.(string)
			if !ok || user == "" {
				writeGraphQLError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s claim", claimName), "BAD_USER_INPUT")
				return
			}

			if len(allowed) > 0 {
				if _, permitted := allowed[user]; !permitted {
					writeGraphQLError(w, http.StatusForbidden, fmt.Sprintf("impersonation of %s is not allowed", user), "FORBIDDEN")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithImpersonatedUser(r.Context(), user)))
		})
	}
}
