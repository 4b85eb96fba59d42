package planner

// ShapeKind tells the response shaper how to turn a statement value into
// the GraphQL value of a selection.
type ShapeKind int

const (
	// ShapeValue passes the value through scalar serialization.
	ShapeValue ShapeKind = iota
	// ShapeObject reads Fields out of a map.
	ShapeObject
	// ShapeConnection reads {edges, totalCount} and derives cursors and
	// page info from Offset.
	ShapeConnection
	// ShapeEdge is one connection edge: {node, properties} plus its cursor.
	ShapeEdge
	// ShapePageInfo is computed from the connection, never read.
	ShapePageInfo
	// ShapeCursor is computed from the edge position.
	ShapeCursor
	// ShapeTypename resolves __typename, statically or from __resolveType.
	ShapeTypename
	// ShapeInfo reads mutation counters instead of the statement value.
	ShapeInfo
)

// Shape mirrors a selection set so the resolver can rebuild the response
// from the projected maps, which are keyed by response key.
type Shape struct {
	Kind ShapeKind
	// TypeName is the static __typename of an object. Empty means the
	// object is abstract and carries __resolveType.
	TypeName string
	Fields   []ShapeField
	// Offset is the position of the first edge of a connection page.
	Offset int
}

// ShapeField is one selected field.
type ShapeField struct {
	// Key is the response key (the alias when present).
	Key string
	// Source is the key in the statement value. It is the response key for
	// projected fields and the component name for aggregates and connections.
	Source string
	// Types limits the field to objects of these concrete types. Nil means
	// every type.
	Types []string
	Shape *Shape
}

var (
	valueShape    = &Shape{Kind: ShapeValue}
	cursorShape   = &Shape{Kind: ShapeCursor}
	typenameShape = &Shape{Kind: ShapeTypename}
)

// AppliesTo reports whether the field is selected on objects of typeName.
func (f ShapeField) AppliesTo(typeName string) bool {
	if f.Types == nil {
		return true
	}
	for _, t := range f.Types {
		if t == typeName {
			return true
		}
	}
	return false
}

func (s *Shape) add(key, source string, shape *Shape) {
	s.Fields = append(s.Fields, ShapeField{Key: key, Source: source, Shape: shape})
}

// mergeBranches combines the shapes of the concrete branches of an abstract
// selection. Fields selected on every branch apply to all types; the rest
// are limited to the branches that selected them.
func mergeBranches(order []string, branches map[string]*Shape) *Shape {
	merged := &Shape{Kind: ShapeObject}
	index := map[string]int{}
	for _, typeName := range order {
		b := branches[typeName]
		if b == nil {
			continue
		}
		for _, f := range b.Fields {
			if i, ok := index[f.Key]; ok {
				merged.Fields[i].Types = append(merged.Fields[i].Types, typeName)
				continue
			}
			index[f.Key] = len(merged.Fields)
			merged.Fields = append(merged.Fields, ShapeField{
				Key:    f.Key,
				Source: f.Source,
				Types:  []string{typeName},
				Shape:  f.Shape,
			})
		}
	}
	present := 0
	for _, typeName := range order {
		if branches[typeName] != nil {
			present++
		}
	}
	for i := range merged.Fields {
		if len(merged.Fields[i].Types) == present {
			merged.Fields[i].Types = nil
		}
	}
	return merged
}
