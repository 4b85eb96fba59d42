package gqlrequest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeEnvelopeMeasuresOperation(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		opName    string
		wantType  string
		wantName  string
		wantRoots int
		wantCount int
		wantDepth int
		wantVars  int
	}{
		{
			name:      "anonymous list read",
			query:     `{ movies { title actors { name } } }`,
			wantType:  "query",
			wantName:  "<anonymous>",
			wantRoots: 1,
			wantCount: 4,
			wantDepth: 3,
		},
		{
			name: "named read with variables and two root fields",
			query: `query Catalog($title: String, $first: Int) {
				movies(where: { title: $title }) { title }
				actorsConnection(first: $first) { totalCount }
			}`,
			opName:    "Catalog",
			wantType:  "query",
			wantName:  "Catalog",
			wantRoots: 2,
			wantCount: 4,
			wantDepth: 2,
			wantVars:  2,
		},
		{
			name: "mutation with aliases",
			query: `mutation {
				a: createMovies(input: [{ title: "A" }]) { info { nodesCreated } }
				b: deleteMovies(where: { title: "B" }) { nodesDeleted }
			}`,
			wantType:  "mutation",
			wantName:  "<anonymous>",
			wantRoots: 2,
			wantCount: 5,
			wantDepth: 3,
		},
		{
			name:      "root fields selected through fragments",
			query:     `query { ...Roots ... on Query { actors { name } } } fragment Roots on Query { movies { title } }`,
			wantType:  "query",
			wantName:  "<anonymous>",
			wantRoots: 2,
			wantCount: 4,
			wantDepth: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := AnalyzeEnvelope(Envelope{Query: tt.query, OperationName: tt.opName})
			require.NoError(t, a.ParseError)
			require.NoError(t, a.SelectionError)
			require.NoError(t, a.CanonicalizeErr)
			require.NotNil(t, a.Operation)

			assert.Equal(t, tt.wantType, a.OperationType)
			assert.Equal(t, tt.wantName, a.OperationName)
			assert.Equal(t, tt.wantRoots, a.RootFieldCount)
			assert.Equal(t, tt.wantCount, a.FieldCount)
			assert.Equal(t, tt.wantDepth, a.SelectionDepth)
			assert.Equal(t, tt.wantVars, a.VariableCount)
			assert.Len(t, a.OperationHash, 64)
		})
	}
}

func TestAnalyzeEnvelopeErrors(t *testing.T) {
	a := AnalyzeEnvelope(Envelope{Query: `{ movies { `})
	assert.Error(t, a.ParseError)
	assert.Nil(t, a.Operation)

	a = AnalyzeEnvelope(Envelope{Query: `query A { movies { title } } query B { actors { name } }`})
	require.NoError(t, a.ParseError)
	assert.ErrorContains(t, a.SelectionError, "operationName is required")

	a = AnalyzeEnvelope(Envelope{Query: `query A { movies { title } }`, OperationName: "B"})
	assert.ErrorContains(t, a.SelectionError, `unknown operation named "B"`)

	a = AnalyzeEnvelope(Envelope{Query: `fragment F on Movie { title }`})
	assert.ErrorIs(t, a.SelectionError, errNoOperation)

	a = AnalyzeEnvelope(Envelope{Query: "   "})
	assert.NoError(t, a.ParseError)
	assert.NoError(t, a.SelectionError)
	assert.Nil(t, a.Operation)
}

func TestAnalyzeEnvelopeCyclicFragments(t *testing.T) {
	a := AnalyzeEnvelope(Envelope{Query: `
		fragment A on Movie { title ...B }
		fragment B on Movie { released ...A }
		{ movies { ...A } }
	`})
	require.NoError(t, a.SelectionError)
	assert.Equal(t, 3, a.FieldCount)
	assert.Equal(t, 1, a.RootFieldCount)
	assert.Contains(t, a.CanonicalOperation, "fragment A on Movie")
	assert.Contains(t, a.CanonicalOperation, "fragment B on Movie")
}

func TestOperationHashIgnoresFormatting(t *testing.T) {
	a := AnalyzeEnvelope(Envelope{Query: "query Q {\n  movies { title released }\n}", OperationName: "Q"})
	b := AnalyzeEnvelope(Envelope{Query: "# listing\nquery Q { movies { title, released } }", OperationName: "Q"})
	require.NotEmpty(t, a.OperationHash)
	assert.Equal(t, a.OperationHash, b.OperationHash)
}

func TestOperationHashDependsOnSelectedOperation(t *testing.T) {
	doc := `query A { movies { title } } query B { actors { name } }`
	a := AnalyzeEnvelope(Envelope{Query: doc, OperationName: "A"})
	b := AnalyzeEnvelope(Envelope{Query: doc, OperationName: "B"})
	require.NotEmpty(t, a.OperationHash)
	assert.NotEqual(t, a.OperationHash, b.OperationHash)
	assert.NotContains(t, a.CanonicalOperation, "actors")
}

func TestFramedHashSeparatesParts(t *testing.T) {
	assert.NotEqual(t, framedSHA256("ab", "c"), framedSHA256("a", "bc"))
	assert.Equal(t, framedSHA256("x"), framedSHA256("x"))
}
