package dbexec

import (
	"context"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neo4j-graphql/internal/cypher"
)

type fakeCounters struct{}

func (fakeCounters) NodesCreated() int         { return 2 }
func (fakeCounters) NodesDeleted() int         { return 1 }
func (fakeCounters) RelationshipsCreated() int { return 3 }
func (fakeCounters) RelationshipsDeleted() int { return 4 }
func (fakeCounters) PropertiesSet() int        { return 5 }

func TestCountersFrom(t *testing.T) {
	assert.Equal(t, Counters{
		NodesCreated:         2,
		NodesDeleted:         1,
		RelationshipsCreated: 3,
		RelationshipsDeleted: 4,
		PropertiesSet:        5,
	}, countersFrom(fakeCounters{}))
	assert.Equal(t, Counters{}, countersFrom(nil))
}

func TestRecordMaps(t *testing.T) {
	records := []*neo4j.Record{
		{Keys: []string{"this"}, Values: []any{map[string]any{"title": "Heat"}}},
		nil,
		{Keys: []string{"this"}, Values: []any{map[string]any{"title": "Ronin"}}},
	}
	maps := recordMaps(records)
	require.Len(t, maps, 2)
	assert.Equal(t, map[string]any{"title": "Heat"}, maps[0]["this"])
	assert.Equal(t, map[string]any{"title": "Ronin"}, maps[1]["this"])
}

func TestNeo4jExecutorWithoutDriver(t *testing.T) {
	executor := NewNeo4jExecutor(nil, "neo4j")

	_, err := executor.Run(context.Background(), cypher.Statement{Cypher: "RETURN 1"}, RunOptions{})
	require.ErrorIs(t, err, ErrNoDriver)
	require.ErrorIs(t, executor.Verify(context.Background()), ErrNoDriver)
	require.ErrorIs(t, executor.WriteTx(context.Background(), RunOptions{}, func(QueryExecutor) error { return nil }), ErrNoDriver)
}

func TestDatabaseSelection(t *testing.T) {
	executor := NewNeo4jExecutor(nil, "movies")
	assert.Equal(t, "movies", executor.databaseFor(RunOptions{}))
	assert.Equal(t, "other", executor.databaseFor(RunOptions{Database: "other"}))
}
