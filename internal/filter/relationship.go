package filter

import (
	"neo4j-graphql/internal/cypher"
	"neo4j-graphql/internal/gqlerrors"
	"neo4j-graphql/internal/schema"
)

// PatternDirection maps a declared relationship direction onto a pattern
// direction relative to the declaring node.
func PatternDirection(d schema.Direction) cypher.Direction {
	switch d {
	case schema.DirectionIn:
		return cypher.Incoming
	case schema.DirectionUndirected:
		return cypher.Undirected
	default:
		return cypher.Outgoing
	}
}

// Related returns a fresh variable for the target of a relationship, the
// pattern element matching it, and the label predicate an abstract target
// needs (nil for a node type, whose labels are in the pattern).
func (b *Builder) Related(typeName string) (*cypher.Node, cypher.NodeElement, cypher.Expr) {
	if n := b.Schema.Node(typeName); n != nil {
		target := cypher.NewNode(n.Labels...)
		return target, cypher.Labeled(target), nil
	}
	target := cypher.NewNode()
	return target, cypher.Bound(target), b.LabelPredicate(target, typeName)
}

// LabelPredicate matches node against every concrete type behind typeName.
func (b *Builder) LabelPredicate(node *cypher.Node, typeName string) cypher.Expr {
	concrete := b.Schema.ConcreteTypes(typeName)
	preds := make([]cypher.Expr, 0, len(concrete))
	for _, n := range concrete {
		preds = append(preds, cypher.HasLabels(node, n.Labels...))
	}
	if len(preds) == 0 {
		return cypher.Lit(false)
	}
	return cypher.Or(preds...)
}

type subquery struct {
	pattern *cypher.Pattern
	label   cypher.Expr
	calls   []cypher.Clause
}

func (s subquery) body(pred cypher.Expr) cypher.Clause {
	pred = cypher.And(s.label, pred)
	m := cypher.NewMatch(s.pattern)
	if len(s.calls) == 0 {
		return m.Where(pred)
	}
	clauses := append([]cypher.Clause{m}, s.calls...)
	if pred != nil {
		clauses = append(clauses, cypher.WithAll().Where(pred))
	}
	return cypher.Concat(clauses...)
}

// quantify applies a relationship quantifier. With zero related nodes ALL
// and NONE hold while SOME and SINGLE do not.
func (s subquery) quantify(op string, pred cypher.Expr, isNull bool) (cypher.Expr, bool) {
	switch op {
	case "", "SOME":
		if isNull {
			return cypher.Not(cypher.Exists(s.body(nil))), true
		}
		return cypher.Exists(s.body(pred)), true
	case "NOT", "NONE":
		if isNull {
			return cypher.Exists(s.body(nil)), true
		}
		return cypher.Not(cypher.Exists(s.body(pred))), true
	case "ALL":
		if pred == nil {
			return nil, true
		}
		return cypher.Not(cypher.Exists(s.body(cypher.Not(cypher.Coalesce(pred, cypher.Lit(false)))))), true
	case "SINGLE":
		return cypher.Eq(cypher.CountSubquery(s.body(pred)), cypher.Lit(1)), true
	}
	return nil, false
}

func (b *Builder) relationshipPredicate(scope *Scope, field *schema.Field, op string, value any) (cypher.Expr, error) {
	if scope.node == nil {
		return nil, gqlerrors.SchemaMismatch(field.Name, "relationship filter outside a node scope")
	}
	rel := field.Relationship
	target, element, label := b.Related(rel.Target)
	sq := subquery{
		pattern: cypher.NewPattern(cypher.Bound(scope.node)).Related(nil, rel.Type, PatternDirection(rel.Direction), element),
		label:   label,
	}

	var pred cypher.Expr
	if value != nil {
		m, ok := value.(map[string]any)
		if !ok {
			return nil, gqlerrors.InvalidInput("%s expects an object", field.Name)
		}
		inner := NewScope(target)
		if b.Schema.Node(rel.Target) != nil {
			inner.ConcreteType = rel.Target
		}
		var err error
		if pred, err = b.Where(inner, rel.Target, m); err != nil {
			return nil, err
		}
		sq.calls = inner.Calls()
	} else if op != "" && op != "NOT" {
		return nil, gqlerrors.InvalidInput("%s_%s does not accept null", field.Name, op)
	}

	out, ok := sq.quantify(op, pred, value == nil)
	if !ok {
		return nil, gqlerrors.SchemaMismatch(field.Name, "operator %s is not valid on a relationship", op)
	}
	return out, nil
}

func (b *Builder) connectionPredicate(scope *Scope, field *schema.Field, op string, value any) (cypher.Expr, error) {
	if scope.node == nil {
		return nil, gqlerrors.SchemaMismatch(field.Name, "connection filter outside a node scope")
	}
	rel := field.Relationship
	target, element, label := b.Related(rel.Target)
	relVar := cypher.NewRelationship(rel.Type)
	sq := subquery{
		pattern: cypher.NewPattern(cypher.Bound(scope.node)).Related(relVar, "", PatternDirection(rel.Direction), element),
		label:   label,
	}

	var pred cypher.Expr
	if value != nil {
		m, ok := value.(map[string]any)
		if !ok {
			return nil, gqlerrors.InvalidInput("%sConnection expects an object", field.Name)
		}
		nodeScope := NewScope(target)
		if b.Schema.Node(rel.Target) != nil {
			nodeScope.ConcreteType = rel.Target
		}
		edgeScope := NewEdgeScope(relVar)
		var err error
		if pred, err = b.ConnectionWhere(nodeScope, edgeScope, field, m); err != nil {
			return nil, err
		}
		sq.calls = append(nodeScope.Calls(), edgeScope.Calls()...)
	} else if op != "" && op != "NOT" {
		return nil, gqlerrors.InvalidInput("%sConnection_%s does not accept null", field.Name, op)
	}

	out, ok := sq.quantify(op, pred, value == nil)
	if !ok {
		return nil, gqlerrors.SchemaMismatch(field.Name, "operator %s is not valid on a connection", op)
	}
	return out, nil
}

// ConnectionWhere compiles a connection where input: {node, edge, AND, OR, NOT}.
func (b *Builder) ConnectionWhere(nodeScope, edgeScope *Scope, field *schema.Field, where map[string]any) (cypher.Expr, error) {
	rel := field.Relationship
	preds := make([]cypher.Expr, 0, len(where))
	for _, key := range SortedKeys(where) {
		value := where[key]
		var (
			pred cypher.Expr
			err  error
		)
		switch key {
		case "AND", "OR", "NOT":
			pred, err = Combine(key, value, func(m map[string]any) (cypher.Expr, error) {
				return b.ConnectionWhere(nodeScope, edgeScope, field, m)
			})
		case "node":
			m, ok := value.(map[string]any)
			if !ok && value != nil {
				return nil, gqlerrors.InvalidInput("%sConnection.node expects an object", field.Name)
			}
			pred, err = b.Where(nodeScope, rel.Target, m)
		case "edge":
			props := b.Schema.RelationshipProperties(rel.Properties)
			if props == nil {
				return nil, gqlerrors.SchemaMismatch(field.Name, "relationship has no properties to filter on")
			}
			m, ok := value.(map[string]any)
			if !ok && value != nil {
				return nil, gqlerrors.InvalidInput("%sConnection.edge expects an object", field.Name)
			}
			pred, err = b.EntityWhere(edgeScope, props, m)
		default:
			return nil, gqlerrors.SchemaMismatch(field.Name, "unknown connection filter %s", key)
		}
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	return cypher.And(preds...), nil
}

var countOperators = map[string]string{
	"count":     "EQ",
	"count_EQ":  "EQ",
	"count_GT":  "GT",
	"count_GTE": "GTE",
	"count_LT":  "LT",
	"count_LTE": "LTE",
}

func (b *Builder) aggregatePredicate(scope *Scope, field *schema.Field, value any) (cypher.Expr, error) {
	if scope.node == nil {
		return nil, gqlerrors.SchemaMismatch(field.Name, "aggregate filter outside a node scope")
	}
	where, ok := value.(map[string]any)
	if !ok {
		return nil, gqlerrors.InvalidInput("%sAggregate expects an object", field.Name)
	}
	rel := field.Relationship
	_, element, label := b.Related(rel.Target)
	sq := subquery{
		pattern: cypher.NewPattern(cypher.Bound(scope.node)).Related(nil, rel.Type, PatternDirection(rel.Direction), element),
		label:   label,
	}

	var compile func(map[string]any) (cypher.Expr, error)
	compile = func(where map[string]any) (cypher.Expr, error) {
		preds := make([]cypher.Expr, 0, len(where))
		for _, key := range SortedKeys(where) {
			if key == "AND" || key == "OR" || key == "NOT" {
				pred, err := Combine(key, where[key], compile)
				if err != nil {
					return nil, err
				}
				preds = append(preds, pred)
				continue
			}
			op, ok := countOperators[key]
			if !ok {
				return nil, gqlerrors.SchemaMismatch(field.Name, "unknown aggregate filter %s", key)
			}
			rhs, err := b.Value("Int", where[key])
			if err != nil {
				return nil, err
			}
			pred, _ := Compare(op, cypher.CountSubquery(sq.body(nil)), rhs)
			preds = append(preds, pred)
		}
		return cypher.And(preds...), nil
	}
	return compile(where)
}
