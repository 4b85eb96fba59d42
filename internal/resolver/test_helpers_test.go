package resolver

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"neo4j-graphql/internal/cypher"
	"neo4j-graphql/internal/dbexec"
	"neo4j-graphql/internal/gqlrequest"
	"neo4j-graphql/internal/schema"
)

const typeDefs = `
type Movie {
	title: String!
	released: Int
	actors: [Actor!]! @relationship(type: "ACTED_IN", direction: IN)
}

type Actor {
	name: String!
}

type Secret @authentication {
	code: String
}
`

// fakeExecutor returns canned results keyed by a fragment of the statement.
type fakeExecutor struct {
	mu         sync.Mutex
	results    map[string]*dbexec.Result
	errs       map[string]error
	statements []cypher.Statement
	opts       []dbexec.RunOptions
	txCount    int
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{results: map[string]*dbexec.Result{}, errs: map[string]error{}}
}

func (f *fakeExecutor) on(fragment string, result *dbexec.Result) *fakeExecutor {
	f.results[fragment] = result
	return f
}

func (f *fakeExecutor) fail(fragment string, err error) *fakeExecutor {
	f.errs[fragment] = err
	return f
}

func (f *fakeExecutor) Run(_ context.Context, stmt cypher.Statement, opts dbexec.RunOptions) (*dbexec.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statements = append(f.statements, stmt)
	f.opts = append(f.opts, opts)
	for fragment, err := range f.errs {
		if strings.Contains(stmt.Cypher, fragment) {
			return nil, err
		}
	}
	for fragment, result := range f.results {
		if strings.Contains(stmt.Cypher, fragment) {
			return result, nil
		}
	}
	return &dbexec.Result{}, nil
}

func (f *fakeExecutor) WriteTx(_ context.Context, _ dbexec.RunOptions, fn func(dbexec.QueryExecutor) error) error {
	f.mu.Lock()
	f.txCount++
	f.mu.Unlock()
	return fn(f)
}

func rows(column string, values ...any) *dbexec.Result {
	result := &dbexec.Result{Keys: []string{column}}
	for _, v := range values {
		result.Records = append(result.Records, map[string]any{column: v})
	}
	return result
}

func newTestResolver(t *testing.T, exec dbexec.QueryExecutor, mutate ...func(*Config)) *Resolver {
	t.Helper()
	s, err := schema.Compile(typeDefs)
	require.NoError(t, err)
	cfg := Config{Schema: s, Executor: exec}
	for _, m := range mutate {
		m(&cfg)
	}
	r, err := NewResolver(cfg)
	require.NoError(t, err)
	return r
}

func execute(t *testing.T, r *Resolver, query string, vars map[string]any, claims map[string]any) *Response {
	t.Helper()
	analysis := gqlrequest.AnalyzeEnvelope(gqlrequest.Envelope{Query: query})
	return r.Execute(context.Background(), Request{Analysis: analysis, Variables: vars, Claims: claims})
}
