package serverapp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"neo4j-graphql/internal/config"
	"neo4j-graphql/internal/dbexec"
	"neo4j-graphql/internal/resolver"
)

type fakeChecker struct {
	failures int32
	calls    atomic.Int32
}

func (f *fakeChecker) VerifyConnectivity(context.Context) error {
	if f.calls.Add(1) <= f.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestWaitForNeo4j_RetriesUntilAvailable(t *testing.T) {
	cfg := &config.Config{Neo4j: config.Neo4jConfig{
		ConnectionTimeout:       time.Second,
		ConnectionRetryInterval: time.Millisecond,
	}}
	checker := &fakeChecker{failures: 2}

	if err := waitForNeo4j(context.Background(), cfg, testLogger(), checker); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := checker.calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestWaitForNeo4j_ZeroTimeoutTriesOnce(t *testing.T) {
	cfg := &config.Config{}
	checker := &fakeChecker{failures: 5}

	if err := waitForNeo4j(context.Background(), cfg, testLogger(), checker); err == nil {
		t.Fatalf("expected error")
	}
	if got := checker.calls.Load(); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestWaitForNeo4j_GivesUpAfterTimeout(t *testing.T) {
	cfg := &config.Config{Neo4j: config.Neo4jConfig{
		ConnectionTimeout:       20 * time.Millisecond,
		ConnectionRetryInterval: 5 * time.Millisecond,
	}}
	checker := &fakeChecker{failures: 1 << 30}

	err := waitForNeo4j(context.Background(), cfg, testLogger(), checker)
	if err == nil || !strings.Contains(err.Error(), "neo4j not available") {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestWaitForNeo4j_StopsOnCancel(t *testing.T) {
	cfg := &config.Config{Neo4j: config.Neo4jConfig{
		ConnectionTimeout:       time.Minute,
		ConnectionRetryInterval: time.Minute,
	}}
	ctx, cancel := context.WithCancel(context.Background())
	checker := &fakeChecker{failures: 1 << 30}

	done := make(chan error, 1)
	go func() { done <- waitForNeo4j(ctx, cfg, testLogger(), checker) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("waitForNeo4j did not stop after cancel")
	}
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name    string
		checker connectivityChecker
		status  int
		body    string
	}{
		{name: "healthy", checker: &fakeChecker{}, status: http.StatusOK, body: `"neo4j":"ok"`},
		{name: "unreachable", checker: &fakeChecker{failures: 1}, status: http.StatusServiceUnavailable, body: `"neo4j":"failed"`},
		{name: "no driver", checker: nil, status: http.StatusServiceUnavailable, body: `"status":"unhealthy"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			healthHandler(tt.checker, time.Second).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.body) {
				t.Fatalf("expected body to contain %s, got %s", tt.body, rec.Body.String())
			}
		})
	}
}

func TestBuildPlanLimits(t *testing.T) {
	if limits := buildPlanLimits(&config.Config{}); limits != nil {
		t.Fatalf("expected nil limits when none configured, got %+v", limits)
	}

	limits := buildPlanLimits(&config.Config{Translation: config.TranslationConfig{MaxDepth: 5, MaxRows: 100}})
	if limits == nil || limits.MaxDepth != 5 || limits.MaxRows != 100 || limits.MaxComplexity != 0 {
		t.Fatalf("unexpected limits: %+v", limits)
	}
}

func TestBuildQueryExecutor_Impersonation(t *testing.T) {
	plain := buildQueryExecutor(&config.Config{}, nil)
	if _, ok := plain.(*dbexec.Neo4jExecutor); !ok {
		t.Fatalf("expected plain Neo4j executor, got %T", plain)
	}

	cfg := &config.Config{Server: config.ServerConfig{Auth: config.AuthConfig{
		ImpersonationEnabled:      true,
		ImpersonationAllowedUsers: []string{"alice"},
	}}}
	wrapped := buildQueryExecutor(cfg, nil)
	if _, ok := wrapped.(*dbexec.ImpersonatingExecutor); !ok {
		t.Fatalf("expected impersonating executor, got %T", wrapped)
	}
}

func TestResolverTemplate(t *testing.T) {
	cfg := &config.Config{Translation: config.TranslationConfig{
		DefaultListLimit:   25,
		MaxMutationDepth:   4,
		MaxConcurrency:     2,
		SubscriptionEvents: true,
	}}
	rc := resolverTemplate(cfg, nil, nil)
	if rc.DefaultListLimit != 25 || rc.MaxMutationDepth != 4 || rc.MaxConcurrency != 2 {
		t.Fatalf("translation settings not carried over: %+v", rc)
	}
	if !rc.Subscriptions {
		t.Fatalf("expected subscriptions enabled")
	}
	if _, ok := rc.Events.(resolver.LogPublisher); !ok {
		t.Fatalf("expected log publisher, got %T", rc.Events)
	}

	rc = resolverTemplate(&config.Config{}, nil, nil)
	if rc.Subscriptions || rc.Events != nil {
		t.Fatalf("expected no change events by default: %+v", rc)
	}
}

func TestBuildGraphQLHandler_NoSchemaReturnsUnavailable(t *testing.T) {
	handler, err := buildGraphQLHandler(&config.Config{}, testLogger(), nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ movies { title } }"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header from logging middleware")
	}
}

func TestBuildGraphQLHandler_AuthRequiredWithoutAnonymous(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{Auth: config.AuthConfig{
		JWTEnabled: true,
		JWTSecret:  strings.Repeat("s", 32),
	}}}
	handler, err := buildGraphQLHandler(cfg, testLogger(), nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ movies { title } }"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}

	cfg.Server.Auth.AllowAnonymous = true
	handler, err = buildGraphQLHandler(cfg, testLogger(), nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ movies { title } }"}`)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("anonymous request should reach the resolver, got %d", rec.Code)
	}
}
