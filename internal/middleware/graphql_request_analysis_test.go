package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"neo4j-graphql/internal/gqlrequest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphQLRequestAnalysisMiddleware_PopulatesContextAndRewindsBody(t *testing.T) {
	var (
		seenAnalysis *gqlrequest.Analysis
		seenMeta     gqlrequest.ExecMeta
		seenMetaOK   bool
		bodyCopy     string
	)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenAnalysis = gqlrequest.AnalysisFromContext(r.Context())
		seenMeta, seenMetaOK = gqlrequest.ExecMetaFromContext(r.Context())
		bodyBytes, _ := io.ReadAll(r.Body)
		bodyCopy = string(bodyBytes)
		w.WriteHeader(http.StatusOK)
	})

	handler := GraphQLRequestAnalysisMiddleware(nil)(next)
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"mutation CreateMovie { createMovies(input: [{title: \"Heat\"}]) { movies { title } } }","operationName":"CreateMovie","variables":{"x":1}}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.NotNil(t, seenAnalysis)
	require.True(t, seenMetaOK)
	assert.Equal(t, "mutation", seenAnalysis.OperationType)
	assert.Equal(t, "mutation", seenMeta.OperationType)
	assert.NotEmpty(t, seenAnalysis.OperationHash)
	assert.False(t, seenMeta.Authenticated)
	assert.Contains(t, bodyCopy, `"operationName":"CreateMovie"`)
}

func TestGraphQLRequestAnalysisMiddleware_RecordsPrincipal(t *testing.T) {
	var seenMeta gqlrequest.ExecMeta
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenMeta, _ = gqlrequest.ExecMetaFromContext(r.Context())
	})

	handler := ImpersonationMiddleware("", nil)(GraphQLRequestAnalysisMiddleware(nil)(next))
	req := httptest.NewRequest(http.MethodGet, "/graphql?query=%7Bmovies%7Btitle%7D%7D", nil)
	req = req.WithContext(WithAuthContext(req.Context(), AuthContext{
		Subject: "u1",
		Claims:  map[string]interface{}{"sub": "u1", "neo4j_user": "reader"},
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, seenMeta.Authenticated)
	assert.Equal(t, "reader", seenMeta.ImpersonatedUser)
	assert.Equal(t, "query", seenMeta.OperationType)
}
