package resolver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandlerPostJSON(t *testing.T) {
	exec := newFakeExecutor().on("MATCH (this:Movie)", rows("this", map[string]any{"title": "Heat"}))
	r := newTestResolver(t, exec)
	var gotClaims bool
	h := NewHandler(func() *Resolver { return r }, func(context.Context) (map[string]any, bool) {
		gotClaims = true
		return map[string]any{"sub": "alice"}, true
	})

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ movies { title } }"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.True(t, gotClaims)
	body := decodeResponse(t, rec)
	assert.Equal(t, map[string]any{"movies": []any{map[string]any{"title": "Heat"}}}, body["data"])
	assert.NotContains(t, body, "errors")
}

func TestHandlerRejectsMutationOverGet(t *testing.T) {
	r := newTestResolver(t, newFakeExecutor())
	h := NewHandler(func() *Resolver { return r }, nil)

	req := httptest.NewRequest(http.MethodGet, `/graphql?query=mutation%7BdeleteMovies%7BnodesDeleted%7D%7D`, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "POST", rec.Header().Get("Allow"))
}

func TestHandlerWithoutSchema(t *testing.T) {
	h := NewHandler(func() *Resolver { return nil }, nil)

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ movies { title } }"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	h := NewHandler(func() *Resolver { return nil }, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/graphql", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
