package naming

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootNames(t *testing.T) {
	namer := Default()

	tests := []struct {
		typeName string
		plural   string
		expected RootNames
	}{
		{"Movie", "", RootNames{
			Plural: "movies", List: "movies", Connection: "moviesConnection", Aggregate: "moviesAggregate",
			Create: "createMovies", Update: "updateMovies", Delete: "deleteMovies",
		}},
		{"Person", "", RootNames{
			Plural: "people", List: "people", Connection: "peopleConnection", Aggregate: "peopleAggregate",
			Create: "createPeople", Update: "updatePeople", Delete: "deletePeople",
		}},
		{"Techie", "Techies", RootNames{
			Plural: "techies", List: "techies", Connection: "techiesConnection", Aggregate: "techiesAggregate",
			Create: "createTechies", Update: "updateTechies", Delete: "deleteTechies",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.typeName, func(t *testing.T) {
			assert.Equal(t, tt.expected, namer.RootNames(tt.typeName, tt.plural))
		})
	}
}

func TestPluralize(t *testing.T) {
	namer := New(Config{PluralOverrides: map[string]string{"Status": "Statuses"}}, nil)

	tests := []struct {
		input    string
		expected string
	}{
		{"Movie", "Movies"},
		{"Category", "Categories"},
		{"Status", "Statuses"},
		{"Genre", "Genres"},
		{"Person", "People"},
		{"StudioPerson", "StudioPeople"},
		{"DVDRelease", "DVDReleases"},
		{"MovieSeries", "MovieSeries"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, namer.Pluralize(tt.input))
		})
	}
}

func TestRootNamesCollision(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	namer := New(DefaultConfig(), logger)

	first := namer.RootNames("Movie", "")
	second := namer.RootNames("Film", "Movies")

	assert.Equal(t, "movies", first.List)
	assert.Equal(t, "movies2", second.List)
	assert.Equal(t, "createMovies2", second.Create)
	assert.Contains(t, buf.String(), "root field naming collision detected")

	namer.Reset()
	assert.Equal(t, "movies", namer.RootNames("Film", "Movies").List)
}

func TestRelationshipFieldNames(t *testing.T) {
	assert.Equal(t, "actorsConnection", ConnectionFieldName("actors"))
	assert.Equal(t, "actorsAggregate", AggregateFieldName("actors"))
}

func TestIsReservedTypeName(t *testing.T) {
	assert.True(t, IsReservedTypeName("Query"))
	assert.True(t, IsReservedTypeName("__Type"))
	assert.False(t, IsReservedTypeName("Movie"))
}
