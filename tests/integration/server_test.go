//go:build integration
// +build integration

package integration

import (
	"fmt"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"neo4j-graphql/internal/testutil/neo4jtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerServesGraphQLAndReloadsSchema(t *testing.T) {
	g := neo4jtest.Connect(t)
	g.Exec(t, `CREATE (:Movie {title: "Heat"}), (:Genre {name: "Crime"})`, nil)

	port := 18090
	typeDefsPath := writeTypeDefs(t, movieTypeDefs)
	env := append(serverEnv(g, typeDefsPath, port),
		"NEO4J_GRAPHQL_SERVER_ADMIN_SCHEMA_RELOAD_ENABLED=true",
		"NEO4J_GRAPHQL_SERVER_ADMIN_AUTH_TOKEN=integration-admin-token",
		"NEO4J_GRAPHQL_SCHEMA_REFRESH_MIN_INTERVAL=0s",
	)
	startTestServer(t, "../../bin/neo4j-graphql-test-reload", port, env...)

	graphqlURL := fmt.Sprintf("http://localhost:%d/graphql", port)
	status, body := postGraphQL(t, graphqlURL, `{ movies { title } }`, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"movies": []any{map[string]any{"title": "Heat"}}}, body["data"])

	status, body = postGraphQL(t, graphqlURL, `{ genres { name } }`, nil)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, body["errors"], "genres should not exist before reload")

	require.NoError(t, os.WriteFile(typeDefsPath, []byte(movieTypeDefs+"\ntype Genre { name: String }\n"), 0o600))

	reloadURL := fmt.Sprintf("http://localhost:%d/admin/reload-schema", port)
	req, err := http.NewRequest(http.MethodPost, reloadURL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err = http.NewRequest(http.MethodPost, reloadURL, nil)
	require.NoError(t, err)
	req.Header.Set("X-Admin-Token", "integration-admin-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	status, body = postGraphQL(t, graphqlURL, `{ genres { name } }`, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"genres": []any{map[string]any{"name": "Crime"}}}, body["data"])
}

func TestServerRejectsMutationOverGET(t *testing.T) {
	g := neo4jtest.Connect(t)

	port := 18091
	startTestServer(t, "../../bin/neo4j-graphql-test-get", port, serverEnv(g, writeTypeDefs(t, movieTypeDefs), port)...)

	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/graphql?query=mutation%%7BdeleteMovies%%7BnodesDeleted%%7D%%7D", port))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestGracefulShutdown(t *testing.T) {
	g := neo4jtest.Connect(t)

	port := 18092
	cmd := startTestServer(t, "../../bin/neo4j-graphql-test-shutdown", port, serverEnv(g, writeTypeDefs(t, movieTypeDefs), port)...)

	require.NoError(t, cmd.Process.Signal(syscall.SIGTERM), "Failed to send SIGTERM")

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		assert.NoError(t, err, "Server should exit cleanly (exit code 0) after SIGTERM")
	case <-time.After(35 * time.Second):
		t.Fatal("Server did not shut down within 35 seconds (timeout exceeded)")
	}
}
