package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neo4j-graphql/internal/cursor"
	"neo4j-graphql/internal/dbexec"
	"neo4j-graphql/internal/gqlerrors"
	"neo4j-graphql/internal/planner"
)

func TestExecuteListQueryWithAliases(t *testing.T) {
	exec := newFakeExecutor().on("MATCH (this:Movie)", rows("this",
		map[string]any{"name": "Heat", "released": int64(1995)},
		map[string]any{"name": "Ronin", "released": int64(1998)},
	))
	r := newTestResolver(t, exec)

	resp := execute(t, r, `{ films: movies { name: title released } }`, nil, nil)
	require.Empty(t, resp.Errors)
	assert.Equal(t, []any{
		map[string]any{"name": "Heat", "released": int64(1995)},
		map[string]any{"name": "Ronin", "released": int64(1998)},
	}, resp.Data["films"])
	require.Len(t, exec.opts, 1)
	assert.Equal(t, dbexec.ReadMode, exec.opts[0].Mode)
	assert.Zero(t, exec.txCount)
}

func TestExecuteConnectionDerivesCursors(t *testing.T) {
	exec := newFakeExecutor().on("MATCH (this:Movie)", rows("this", map[string]any{
		"edges": []any{
			map[string]any{"node": map[string]any{"title": "A"}},
			map[string]any{"node": map[string]any{"title": "B"}},
		},
		"totalCount": int64(5),
	}))
	r := newTestResolver(t, exec)

	resp := execute(t, r, `{
		moviesConnection(first: 2) {
			totalCount
			pageInfo { hasNextPage hasPreviousPage startCursor endCursor }
			edges { cursor node { title } }
		}
	}`, nil, nil)
	require.Empty(t, resp.Errors)

	conn := resp.Data["moviesConnection"].(map[string]any)
	assert.Equal(t, int64(5), conn["totalCount"])
	assert.Equal(t, map[string]any{
		"hasNextPage":     true,
		"hasPreviousPage": false,
		"startCursor":     cursor.EncodeOffset(0),
		"endCursor":       cursor.EncodeOffset(1),
	}, conn["pageInfo"])
	assert.Equal(t, []any{
		map[string]any{"cursor": cursor.EncodeOffset(0), "node": map[string]any{"title": "A"}},
		map[string]any{"cursor": cursor.EncodeOffset(1), "node": map[string]any{"title": "B"}},
	}, conn["edges"])
}

func TestExecuteQueryFieldsFailIndependently(t *testing.T) {
	exec := newFakeExecutor().
		on("MATCH (this:Movie)", rows("this", map[string]any{"title": "Heat"})).
		fail(":Actor", errors.New("connection reset"))
	r := newTestResolver(t, exec)

	resp := execute(t, r, `{ movies { title } actors { name } }`, nil, nil)
	assert.Equal(t, []any{map[string]any{"title": "Heat"}}, resp.Data["movies"])
	assert.Nil(t, resp.Data["actors"])
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, []any{"actors"}, resp.Errors[0].Path)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", resp.Errors[0].Extensions["code"])
}

func TestExecuteUnauthenticatedNeverRuns(t *testing.T) {
	exec := newFakeExecutor()
	r := newTestResolver(t, exec)

	resp := execute(t, r, `{ secrets { code } }`, nil, nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "UNAUTHENTICATED", resp.Errors[0].Extensions["code"])
	assert.Empty(t, exec.statements)

	resp = execute(t, r, `{ secrets { code } }`, nil, map[string]any{"sub": "alice"})
	assert.Empty(t, resp.Errors)
	require.Len(t, exec.statements, 1)
}

func TestExecuteForbiddenHidesRule(t *testing.T) {
	exec := newFakeExecutor().fail("MATCH (this:Movie)", &neo4j.Neo4jError{
		Code: "Neo.ClientError.Procedure.ProcedureCallFailed",
		Msg:  "Failed to invoke function `apoc.util.validatePredicate`: " + gqlerrors.ForbiddenMarker,
	})
	r := newTestResolver(t, exec)

	resp := execute(t, r, `{ movies { title } }`, nil, nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "forbidden", resp.Errors[0].Message)
	assert.Equal(t, "FORBIDDEN", resp.Errors[0].Extensions["code"])
}

func TestExecuteVariables(t *testing.T) {
	exec := newFakeExecutor()
	r := newTestResolver(t, exec)

	resp := execute(t, r, `query Find($title: String) { movies(where: { title: $title }) { title } }`,
		map[string]any{"title": "Heat"}, nil)
	require.Empty(t, resp.Errors)
	assert.Equal(t, []any{}, resp.Data["movies"])
	require.Len(t, exec.statements, 1)
	assert.Contains(t, exec.statements[0].Params, "param0")
	assert.Equal(t, "Heat", exec.statements[0].Params["param0"])
}

func TestExecuteTypenameAndUnsupportedOperations(t *testing.T) {
	r := newTestResolver(t, newFakeExecutor())

	resp := execute(t, r, `{ __typename }`, nil, nil)
	require.Empty(t, resp.Errors)
	assert.Equal(t, "Query", resp.Data["__typename"])

	resp = execute(t, r, `subscription { movieCreated { title } }`, nil, nil)
	require.Len(t, resp.Errors, 1)
	assert.Nil(t, resp.Data)
	assert.Equal(t, "BAD_USER_INPUT", resp.Errors[0].Extensions["code"])

	resp = execute(t, r, `{ movies { title }`, nil, nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "BAD_USER_INPUT", resp.Errors[0].Extensions["code"])
}

func TestExecuteCreateReportsCounters(t *testing.T) {
	exec := newFakeExecutor().on("CREATE", &dbexec.Result{
		Keys:     []string{planner.DataColumn},
		Records:  []map[string]any{{planner.DataColumn: []any{map[string]any{"title": "A"}}}},
		Counters: dbexec.Counters{NodesCreated: 1, PropertiesSet: 1},
	})
	r := newTestResolver(t, exec)

	resp := execute(t, r, `mutation {
		createMovies(input: [{ title: "A" }]) {
			__typename
			info { nodesCreated relationshipsCreated }
			movies { title }
		}
	}`, nil, nil)
	require.Empty(t, resp.Errors)
	assert.Equal(t, map[string]any{
		"__typename": "CreateMoviesMutationResponse",
		"info":       map[string]any{"nodesCreated": 1, "relationshipsCreated": 0},
		"movies":     []any{map[string]any{"title": "A"}},
	}, resp.Data["createMovies"])
	assert.Equal(t, 1, exec.txCount)
	assert.Equal(t, dbexec.WriteMode, exec.opts[0].Mode)
}

func TestExecuteDeleteInfo(t *testing.T) {
	exec := newFakeExecutor().on("DETACH DELETE", &dbexec.Result{
		Records:  []map[string]any{{planner.DataColumn: int64(2)}},
		Counters: dbexec.Counters{NodesDeleted: 2, RelationshipsDeleted: 3},
	})
	r := newTestResolver(t, exec)

	resp := execute(t, r, `mutation { deleteMovies(where: { title: "A" }) { nodesDeleted relationshipsDeleted } }`, nil, nil)
	require.Empty(t, resp.Errors)
	assert.Equal(t, map[string]any{"nodesDeleted": 2, "relationshipsDeleted": 3}, resp.Data["deleteMovies"])
}

func TestExecuteMutationFailureDiscardsEarlierFields(t *testing.T) {
	exec := newFakeExecutor().
		on("CREATE", &dbexec.Result{Records: []map[string]any{{planner.DataColumn: []any{}}}}).
		fail("DETACH DELETE", errors.New(gqlerrors.CardinalityMessage("Movie", "actors", "must be connected")))
	r := newTestResolver(t, exec)

	resp := execute(t, r, `mutation {
		a: createMovies(input: [{ title: "A" }]) { info { nodesCreated } }
		b: deleteMovies { nodesDeleted }
		c: createMovies(input: [{ title: "C" }]) { info { nodesCreated } }
	}`, nil, nil)
	assert.Nil(t, resp.Data["a"])
	assert.Nil(t, resp.Data["b"])
	assert.Nil(t, resp.Data["c"])
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, []any{"b"}, resp.Errors[0].Path)
	assert.Equal(t, "RELATIONSHIP_CARDINALITY", resp.Errors[0].Extensions["code"])
	assert.Len(t, exec.statements, 2)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ChangeEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events []ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
}

func TestExecutePublishesEventsAfterCommit(t *testing.T) {
	exec := newFakeExecutor().on("CREATE", &dbexec.Result{
		Records: []map[string]any{{
			planner.DataColumn: []any{},
			planner.EventsColumn: []any{map[string]any{
				"event":      planner.EventCreate,
				"entityId":   "4:abc:1",
				"typename":   "Movie",
				"properties": map[string]any{"old": nil, "new": map[string]any{"title": "A"}},
				"timestamp":  int64(1700000000000),
			}},
		}},
	})
	publisher := &recordingPublisher{}
	r := newTestResolver(t, exec, func(cfg *Config) {
		cfg.Subscriptions = true
		cfg.Events = publisher
	})

	resp := execute(t, r, `mutation { createMovies(input: [{ title: "A" }]) { info { nodesCreated } } }`, nil, nil)
	require.Empty(t, resp.Errors)
	require.Len(t, publisher.events, 1)
	ev := publisher.events[0]
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, planner.EventCreate, ev.Event)
	assert.Equal(t, "Movie", ev.TypeName)
	assert.Equal(t, "4:abc:1", ev.EntityID)
	assert.Nil(t, ev.Old)
	assert.Equal(t, map[string]any{"title": "A"}, ev.New)
	assert.Equal(t, int64(1700000000000), ev.Timestamp)
	assert.Contains(t, exec.statements[0].Cypher, "AS events")
}

func TestNewResolverRequiresSchemaAndExecutor(t *testing.T) {
	_, err := NewResolver(Config{Executor: newFakeExecutor()})
	require.Error(t, err)
	r := newTestResolver(t, newFakeExecutor())
	_, err = NewResolver(Config{Schema: r.Schema()})
	require.Error(t, err)
}
