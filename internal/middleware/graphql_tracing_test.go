package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"neo4j-graphql/internal/gqlrequest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracing(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		otel.SetTracerProvider(previous)
	})
	return recorder
}

func spanAttributes(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	return attrs
}

func TestGraphQLTracingMiddleware_RecordsOperation(t *testing.T) {
	recorder := setupTracing(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"movies":[]},"errors":[{"message":"Forbidden"}]}`))
	})
	handler := GraphQLRequestAnalysisMiddleware(nil)(GraphQLTracingMiddleware()(next))

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"query Movies { movies { title actors { name } } }"}`))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "graphql.execute", spans[0].Name())
	attrs := spanAttributes(spans[0])
	assert.Equal(t, "query", attrs["graphql.operation.type"].AsString())
	assert.Equal(t, "Movies", attrs["graphql.operation.name"].AsString())
	assert.Equal(t, int64(3), attrs["graphql.query.depth"].AsInt64())
	assert.Equal(t, int64(http.StatusOK), attrs["http.response.status_code"].AsInt64())
	assert.True(t, attrs["graphql.response.has_errors"].AsBool())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestGraphQLTracingMiddleware_MarksServerErrors(t *testing.T) {
	recorder := setupTracing(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	handler := GraphQLRequestAnalysisMiddleware(nil)(GraphQLTracingMiddleware()(next))

	req := httptest.NewRequest(http.MethodGet, "/graphql?query=%7Bmovies%7Btitle%7D%7D", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestGraphQLTracingMiddleware_SkipsEmptyDocuments(t *testing.T) {
	recorder := setupTracing(t)
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	handler := GraphQLTracingMiddleware()(next)
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{}`))
	req = req.WithContext(gqlrequest.WithAnalysis(req.Context(), &gqlrequest.Analysis{}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, called)
	assert.Empty(t, recorder.Ended())
}
