// Package neo4jtest connects integration tests to a live Neo4j instance.
package neo4jtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"neo4j-graphql/internal/dbexec"
)

// Environment variables read by Connect.
const (
	EnvURI      = "NEO4J_GRAPHQL_TEST_URI"
	EnvUser     = "NEO4J_GRAPHQL_TEST_USERNAME"
	EnvPassword = "NEO4J_GRAPHQL_TEST_PASSWORD"
	EnvDatabase = "NEO4J_GRAPHQL_TEST_DATABASE"
)

// Graph is a test connection to a database that is emptied before and
// after the test. Tests sharing a database must not run in parallel.
type Graph struct {
	Driver   neo4j.DriverWithContext
	Executor *dbexec.Neo4jExecutor
	Database string
	URI      string
	Username string
	Password string
}

// Connect opens a driver from the environment, skipping the test when no
// URI is configured.
func Connect(t *testing.T) *Graph {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	uri := os.Getenv(EnvURI)
	if uri == "" {
		t.Skipf("%s not set", EnvURI)
	}

	g := &Graph{
		URI:      uri,
		Username: getEnvOrDefault(EnvUser, "neo4j"),
		Password: os.Getenv(EnvPassword),
		Database: os.Getenv(EnvDatabase),
	}

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(g.Username, g.Password, ""))
	if err != nil {
		t.Fatalf("failed to create neo4j driver: %v", err)
	}
	g.Driver = driver
	g.Executor = dbexec.NewNeo4jExecutor(driver, g.Database)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := g.Executor.Verify(ctx); err != nil {
		_ = driver.Close(context.Background())
		t.Fatalf("failed to reach neo4j at %s: %v", uri, err)
	}

	g.Reset(t)
	t.Cleanup(func() {
		g.Reset(t)
		if err := driver.Close(context.Background()); err != nil {
			t.Logf("Warning: failed to close neo4j driver: %v", err)
		}
	})
	return g
}

// Reset deletes every node and relationship.
func (g *Graph) Reset(t *testing.T) {
	t.Helper()
	g.Exec(t, "MATCH (n) DETACH DELETE n", nil)
}

// Exec runs a statement and fails the test on error.
func (g *Graph) Exec(t *testing.T, cypher string, params map[string]any) []*neo4j.Record {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	result, err := neo4j.ExecuteQuery(ctx, g.Driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(g.Database),
	)
	if err != nil {
		t.Fatalf("failed to run %q: %v", cypher, err)
	}
	return result.Records
}

// Count returns the number of nodes with label.
func (g *Graph) Count(t *testing.T, label string) int64 {
	t.Helper()
	records := g.Exec(t, "MATCH (n) WHERE $label IN labels(n) RETURN count(n) AS c", map[string]any{"label": label})
	if len(records) == 0 {
		return 0
	}
	count, _, err := neo4j.GetRecordValue[int64](records[0], "c")
	if err != nil {
		t.Fatalf("failed to read count: %v", err)
	}
	return count
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
