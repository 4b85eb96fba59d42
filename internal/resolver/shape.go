package resolver

import (
	"neo4j-graphql/internal/cursor"
	"neo4j-graphql/internal/dbexec"
	"neo4j-graphql/internal/planner"
	"neo4j-graphql/internal/querytree"
	"neo4j-graphql/internal/scalars"
)

// shapeResult turns the records of a plan into the GraphQL value of its
// root field.
func shapeResult(plan *planner.Plan, result *dbexec.Result) (any, error) {
	s := &shaper{counters: result.Counters}
	switch {
	case plan.Column == "":
		row := map[string]any{}
		if len(result.Records) > 0 {
			row = result.Records[0]
		}
		return s.shape(plan.Shape, row), nil
	case plan.List:
		items := make([]any, 0, len(result.Records))
		for _, record := range result.Records {
			items = append(items, s.shape(plan.Shape, record[plan.Column]))
		}
		return items, nil
	case len(result.Records) == 0:
		return nil, nil
	default:
		return s.shape(plan.Shape, result.Records[0][plan.Column]), nil
	}
}

type shaper struct {
	counters dbexec.Counters
}

// shape converts v according to shape. A list value is shaped element-wise.
func (s *shaper) shape(shape *planner.Shape, v any) any {
	if shape == nil || shape.Kind == planner.ShapeValue {
		return scalars.Serialize(v)
	}
	if list, ok := v.([]any); ok {
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = s.shape(shape, item)
		}
		return out
	}
	switch shape.Kind {
	case planner.ShapeObject:
		return s.object(shape, v)
	case planner.ShapeConnection:
		return s.connection(shape, v)
	case planner.ShapeInfo:
		return s.info(shape)
	}
	return scalars.Serialize(v)
}

func (s *shaper) object(shape *planner.Shape, v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	typeName := shape.TypeName
	if typeName == "" {
		typeName, _ = m[querytree.ResolveTypeKey].(string)
	}
	out := make(map[string]any, len(shape.Fields))
	for _, f := range shape.Fields {
		if !f.AppliesTo(typeName) {
			continue
		}
		switch f.Shape.Kind {
		case planner.ShapeTypename:
			out[f.Key] = typeName
		case planner.ShapeInfo:
			out[f.Key] = s.info(f.Shape)
		default:
			out[f.Key] = s.shape(f.Shape, m[f.Source])
		}
	}
	return out
}

// info reads mutation counters reported by the database.
func (s *shaper) info(shape *planner.Shape) map[string]any {
	out := make(map[string]any, len(shape.Fields))
	for _, f := range shape.Fields {
		switch f.Source {
		case planner.CounterNodesCreated:
			out[f.Key] = s.counters.NodesCreated
		case planner.CounterNodesDeleted:
			out[f.Key] = s.counters.NodesDeleted
		case planner.CounterRelationshipsCreated:
			out[f.Key] = s.counters.RelationshipsCreated
		case planner.CounterRelationshipsDeleted:
			out[f.Key] = s.counters.RelationshipsDeleted
		default:
			if f.Shape.Kind == planner.ShapeTypename {
				out[f.Key] = shape.TypeName
			}
		}
	}
	return out
}

// connection derives cursors and page info from the page offset, the
// number of edges and the total count.
func (s *shaper) connection(shape *planner.Shape, v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	edges, _ := m["edges"].([]any)
	cursors, page := cursor.Page(shape.Offset, len(edges), toInt(m["totalCount"]))

	out := make(map[string]any, len(shape.Fields))
	for _, f := range shape.Fields {
		switch f.Shape.Kind {
		case planner.ShapeTypename:
			out[f.Key] = shape.TypeName
		case planner.ShapePageInfo:
			out[f.Key] = pageInfo(f.Shape, page)
		case planner.ShapeEdge:
			out[f.Key] = s.edges(f.Shape, edges, cursors)
		default:
			out[f.Key] = s.shape(f.Shape, m[f.Source])
		}
	}
	return out
}

func (s *shaper) edges(shape *planner.Shape, edges []any, cursors []string) []any {
	out := make([]any, len(edges))
	for i, raw := range edges {
		edge, _ := raw.(map[string]any)
		item := make(map[string]any, len(shape.Fields))
		for _, f := range shape.Fields {
			switch f.Shape.Kind {
			case planner.ShapeTypename:
				item[f.Key] = shape.TypeName
			case planner.ShapeCursor:
				item[f.Key] = cursors[i]
			default:
				item[f.Key] = s.shape(f.Shape, edge[f.Source])
			}
		}
		out[i] = item
	}
	return out
}

func pageInfo(shape *planner.Shape, page cursor.PageInfo) map[string]any {
	out := make(map[string]any, len(shape.Fields))
	for _, f := range shape.Fields {
		switch f.Source {
		case "hasNextPage":
			out[f.Key] = page.HasNextPage
		case "hasPreviousPage":
			out[f.Key] = page.HasPreviousPage
		case "startCursor":
			out[f.Key] = optionalCursor(page.StartCursor)
		case "endCursor":
			out[f.Key] = optionalCursor(page.EndCursor)
		default:
			if f.Shape.Kind == planner.ShapeTypename {
				out[f.Key] = shape.TypeName
			}
		}
	}
	return out
}

func optionalCursor(c string) any {
	if c == "" {
		return nil
	}
	return c
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}
