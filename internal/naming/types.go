package naming

// Names of the wrapper types generated around node types. The schema
// builder declares them and the planner reports them as __typename.

// PageInfoType is the Relay page info type.
const PageInfoType = "PageInfo"

// RootConnectionType names the connection of a root connection field.
// Example: "movies" -> "MoviesConnection"
func RootConnectionType(plural string) string {
	return UpperFirst(plural) + "Connection"
}

// RootEdgeType names the edges of a root connection.
// Example: "Movie" -> "MovieEdge"
func RootEdgeType(typeName string) string {
	return typeName + "Edge"
}

// RelationshipConnectionType names the connection of a relationship field.
// Example: ("Movie", "actors") -> "MovieActorsConnection"
func RelationshipConnectionType(owner, field string) string {
	return owner + UpperFirst(field) + "Connection"
}

// RelationshipEdgeType names the edges of a relationship connection.
// Example: ("Movie", "actors") -> "MovieActorsRelationship"
func RelationshipEdgeType(owner, field string) string {
	return owner + UpperFirst(field) + "Relationship"
}

// AggregateSelectionType names the result of a root aggregate field.
// Example: "Movie" -> "MovieAggregateSelection"
func AggregateSelectionType(typeName string) string {
	return typeName + "AggregateSelection"
}

// RelationshipAggregateType names the result of a relationship aggregate.
// Example: ("Movie", "Actor", "actors") -> "MovieActorActorsAggregationSelection"
func RelationshipAggregateType(owner, target, field string) string {
	return owner + target + UpperFirst(field) + "AggregationSelection"
}

// RelationshipAggregatePartType names the node or edge part of a
// relationship aggregate. part is "Node" or "Edge".
// Example: ("Movie", "Actor", "actors", "Node") -> "MovieActorActorsNodeAggregateSelection"
func RelationshipAggregatePartType(owner, target, field, part string) string {
	return owner + target + UpperFirst(field) + part + "AggregateSelection"
}

// FieldAggregateType names the aggregate of one scalar field.
// Example: "String" -> "StringAggregateSelection"
func FieldAggregateType(scalar string) string {
	return scalar + "AggregateSelection"
}

// MutationResponseType names the payload of a create or update field.
// Example: ("create", "movies") -> "CreateMoviesMutationResponse"
func MutationResponseType(verb, plural string) string {
	return UpperFirst(verb) + UpperFirst(plural) + "MutationResponse"
}

// InfoType names the counter object of a mutation payload.
// Example: "delete" -> "DeleteInfo"
func InfoType(verb string) string {
	return UpperFirst(verb) + "Info"
}
