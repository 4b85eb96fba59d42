//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"neo4j-graphql/internal/gqlrequest"
	"neo4j-graphql/internal/naming"
	"neo4j-graphql/internal/resolver"
	"neo4j-graphql/internal/schemarefresh"
	"neo4j-graphql/internal/testutil/neo4jtest"

	"github.com/stretchr/testify/require"
)

const movieTypeDefs = `
type Movie {
	title: String!
	released: Int
	tags: [String!]
	actors: [Actor!]! @relationship(type: "ACTED_IN", direction: IN, properties: "ActedIn")
}

type Actor {
	name: String!
	movies: [Movie!]! @relationship(type: "ACTED_IN", direction: OUT, properties: "ActedIn")
}

type ActedIn @relationshipProperties {
	role: String
}
`

func buildResolver(t *testing.T, g *neo4jtest.Graph, typeDefs string) *resolver.Resolver {
	t.Helper()
	result, err := schemarefresh.Build(context.Background(), schemarefresh.BuildConfig{
		TypeDefs: typeDefs,
		Naming:   naming.DefaultConfig(),
		Resolver: resolver.Config{Executor: g.Executor},
	})
	require.NoError(t, err)
	return result.Resolver
}

func execute(t *testing.T, r *resolver.Resolver, query string, vars map[string]any, claims map[string]any) *resolver.Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	analysis := gqlrequest.AnalyzeEnvelope(gqlrequest.Envelope{Query: query})
	return r.Execute(ctx, resolver.Request{Analysis: analysis, Variables: vars, Claims: claims})
}

func requireNoErrors(t *testing.T, resp *resolver.Response) {
	t.Helper()
	if len(resp.Errors) > 0 {
		messages := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			messages = append(messages, e.Message)
		}
		t.Fatalf("unexpected GraphQL errors: %s", strings.Join(messages, "; "))
	}
}

func writeTypeDefs(t *testing.T, typeDefs string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.graphql")
	require.NoError(t, os.WriteFile(path, []byte(typeDefs), 0o600))
	return path
}

func serverEnv(g *neo4jtest.Graph, typeDefsPath string, port int) []string {
	return []string{
		"NEO4J_GRAPHQL_NEO4J_URI=" + g.URI,
		"NEO4J_GRAPHQL_NEO4J_USERNAME=" + g.Username,
		"NEO4J_GRAPHQL_NEO4J_PASSWORD=" + g.Password,
		"NEO4J_GRAPHQL_NEO4J_DATABASE=" + g.Database,
		"NEO4J_GRAPHQL_SCHEMA_TYPEDEFS_FILE=" + typeDefsPath,
		fmt.Sprintf("NEO4J_GRAPHQL_SERVER_PORT=%d", port),
	}
}

func startTestServer(t *testing.T, binaryName string, port int, env ...string) *exec.Cmd {
	t.Helper()

	buildCmd := exec.Command("go", "build", "-o", binaryName, "../../cmd/server")
	require.NoError(t, buildCmd.Run(), "Failed to build server")

	cmd := exec.Command(binaryName)
	cmd.Env = mergeEnv(os.Environ(), env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	require.NoError(t, cmd.Start())

	t.Cleanup(func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		_ = os.Remove(binaryName)
	})

	waitForHealthyWithLogs(t, port, &stdout, &stderr)
	return cmd
}

func waitForHealthyWithLogs(t *testing.T, port int, stdout, stderr *bytes.Buffer) {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(200 * time.Millisecond)
		resp, err := http.Get(fmt.Sprintf("http://localhost:%d/health", port))
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
	}
	t.Fatalf("Server did not become ready within 15 seconds.\nSTDOUT:\n%s\nSTDERR:\n%s",
		tailString(stdout, 4000), tailString(stderr, 4000))
}

func postGraphQL(t *testing.T, url string, query string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	body, err := json.Marshal(map[string]any{"query": query})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func mergeEnv(base []string, overrides ...string) []string {
	if len(overrides) == 0 {
		return base
	}

	overrideKeys := make(map[string]struct{}, len(overrides))
	for _, kv := range overrides {
		key := strings.SplitN(kv, "=", 2)[0]
		overrideKeys[key] = struct{}{}
	}

	merged := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key := strings.SplitN(kv, "=", 2)[0]
		if _, exists := overrideKeys[key]; exists {
			continue
		}
		merged = append(merged, kv)
	}
	return append(merged, overrides...)
}

func tailString(buf *bytes.Buffer, max int) string {
	s := buf.String()
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
