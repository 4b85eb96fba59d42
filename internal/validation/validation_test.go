package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neo4j-graphql/internal/gqlerrors"
	"neo4j-graphql/internal/schema"
)

func compile(t *testing.T, sdl string) *schema.Schema {
	t.Helper()
	s, err := schema.Compile(sdl)
	require.NoError(t, err)
	return s
}

func TestValidatePassesWellFormedSchema(t *testing.T) {
	s := compile(t, `
		interface Production {
			title: String!
			actors: [Actor!]! @relationship(type: "ACTED_IN", direction: IN)
		}
		type Movie implements Production @limit(default: 10, max: 50) {
			id: ID! @id
			title: String!
			updatedAt: DateTime @timestamp
			actors: [Actor!]! @relationship(type: "ACTED_IN", direction: IN, properties: "ActedIn")
		}
		type Actor @authorization(filter: [{ where: { node: { name: "$jwt.sub" } } }]) {
			name: String!
		}
		type ActedIn @relationshipProperties {
			role: String
		}
	`)
	result := Validate(s)
	assert.False(t, result.HasErrors(), result.Err())
	assert.NoError(t, result.Err())
}

func TestValidateReportsIssues(t *testing.T) {
	tests := []struct {
		name string
		sdl  string
		want string
	}{
		{
			name: "unknown relationship target",
			sdl:  `type A { b: [B!]! @relationship(type: "R", direction: OUT) } type C { x: String }`,
			want: "A.b: relationship target B is not a node, interface or union",
		},
		{
			name: "bad direction",
			sdl:  `type A { b: [A!]! @relationship(type: "R", direction: SIDEWAYS) }`,
			want: `A.b: @relationship direction "SIDEWAYS" must be IN, OUT or UNDIRECTED`,
		},
		{
			name: "missing properties type",
			sdl:  `type A { b: [A!]! @relationship(type: "R", direction: OUT, properties: "Nope") }`,
			want: "relationship properties type Nope is not declared",
		},
		{
			name: "interface field missing",
			sdl:  `interface P { name: String! } type A implements P { id: ID }`,
			want: "A.name: missing field required by interface P",
		},
		{
			name: "interface relationship mismatch",
			sdl: `interface P { friends: [A!]! @relationship(type: "KNOWS", direction: OUT) }
				type A implements P { friends: [A!]! @relationship(type: "LIKES", direction: OUT) }`,
			want: "A.friends: @relationship type or direction differs from interface P",
		},
		{
			name: "limit default above max",
			sdl:  `type A @limit(default: 20, max: 10) { x: String }`,
			want: "A: @limit default 20 exceeds max 10",
		},
		{
			name: "empty cypher",
			sdl:  `type A { x: Int @cypher(statement: " ", columnName: "x") }`,
			want: "A.x: @cypher statement must not be empty",
		},
		{
			name: "cypher without column",
			sdl:  `type A { x: Int @cypher(statement: "RETURN 1 AS x") }`,
			want: "A.x: @cypher columnName is required",
		},
		{
			name: "empty alias",
			sdl:  `type A { x: Int @alias(property: "") }`,
			want: "A.x: @alias property must not be empty",
		},
		{
			name: "unknown operation",
			sdl:  `type A @authorization(validate: [{ operations: [READ, FLY], where: { jwt: { admin: true } } }]) { x: Int }`,
			want: "A: @authorization unknown operation FLY",
		},
		{
			name: "id on int",
			sdl:  `type A { x: Int @id }`,
			want: "A.x: @id requires an ID or String field, got Int",
		},
		{
			name: "timestamp on string",
			sdl:  `type A { x: String @timestamp }`,
			want: "A.x: @timestamp requires a DateTime field, got String",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(compile(t, tt.sdl))
			require.True(t, result.HasErrors())
			err := result.Err()
			assert.ErrorIs(t, err, gqlerrors.ErrSchemaMismatch)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateWarnsOnUnimplementedInterface(t *testing.T) {
	result := Validate(compile(t, `interface P { name: String } type A { x: String }`))
	assert.False(t, result.HasErrors())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "P: interface has no implementations", result.Warnings[0].Error())
}
