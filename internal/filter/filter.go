// Package filter compiles GraphQL where inputs into Cypher predicates.
// Relationship filters become existential subqueries, @cypher fields are
// bound once per scope, and values are coerced per the field type.
package filter

import (
	"fmt"
	"sort"
	"strings"

	"neo4j-graphql/internal/cypher"
	"neo4j-graphql/internal/gqlerrors"
	"neo4j-graphql/internal/querytree"
	"neo4j-graphql/internal/scalars"
	"neo4j-graphql/internal/schema"
)

// JWTPrefix marks a where value that refers to a claim instead of a literal.
const JWTPrefix = "$jwt."

// Builder compiles where inputs against a compiled schema.
type Builder struct {
	Schema *schema.Schema
	// JWT is the claims parameter that "$jwt.<path>" values resolve to.
	JWT cypher.Expr
}

// New returns a builder resolving claims through jwt. A nil jwt refers to
// an unbound $jwt parameter.
func New(s *schema.Schema, jwt cypher.Expr) *Builder {
	if jwt == nil {
		jwt = cypher.ParamRef("jwt")
	}
	return &Builder{Schema: s, JWT: jwt}
}

// Scope is the subject a where input is compiled against, together with
// the @cypher fields already bound for it.
type Scope struct {
	Subject cypher.Expr
	node    *cypher.Node
	// ConcreteType is set when the subject is known to be one node type,
	// such as inside a union branch.
	ConcreteType string

	bound map[string]cypher.Expr
	calls []cypher.Clause
}

// NewScope returns a scope over a node variable.
func NewScope(node *cypher.Node) *Scope {
	return &Scope{Subject: node, node: node, bound: map[string]cypher.Expr{}}
}

// NewEdgeScope returns a scope over a relationship variable.
func NewEdgeScope(rel *cypher.Relationship) *Scope {
	return &Scope{Subject: rel, bound: map[string]cypher.Expr{}}
}

// Node returns the node the scope is centred on, nil for an edge scope.
func (s *Scope) Node() *cypher.Node { return s.node }

// Bind records expr as the value of a @cypher field in this scope.
func (s *Scope) Bind(field string, expr cypher.Expr, call cypher.Clause) {
	s.bound[field] = expr
	if call != nil {
		s.calls = append(s.calls, call)
	}
}

// Bound returns the variable a @cypher field was bound to.
func (s *Scope) Bound(field string) (cypher.Expr, bool) {
	e, ok := s.bound[field]
	return e, ok
}

// Calls returns the subqueries that must run before the compiled predicate.
func (s *Scope) Calls() []cypher.Clause { return s.calls }

// Where compiles where against typeName, which may be a node, interface,
// union or relationship properties type.
func (b *Builder) Where(scope *Scope, typeName string, where map[string]any) (cypher.Expr, error) {
	if len(where) == 0 {
		return nil, nil
	}
	if u := b.Schema.Union(typeName); u != nil {
		return b.unionWhere(scope, u, where)
	}
	if entity := b.Schema.Entity(typeName); entity != nil {
		return b.EntityWhere(scope, entity, where)
	}
	if props := b.Schema.RelationshipProperties(typeName); props != nil {
		return b.EntityWhere(scope, props, where)
	}
	return nil, gqlerrors.SchemaMismatch(typeName, "unknown type")
}

// EntityWhere compiles where against the fields of entity.
func (b *Builder) EntityWhere(scope *Scope, entity schema.Entity, where map[string]any) (cypher.Expr, error) {
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
				return b.EntityWhere(scope, entity, m)
			})
		case "typename_IN":
			pred, err = b.typenameIn(scope, entity.TypeName(), value)
		default:
			pred, err = b.fieldPredicate(scope, entity, key, value)
		}
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	return cypher.And(preds...), nil
}

// Combine compiles the logical operators AND, OR and NOT, delegating each
// operand map to compile. An empty operand is vacuously true.
func Combine(key string, value any, compile func(map[string]any) (cypher.Expr, error)) (cypher.Expr, error) {
	if key == "NOT" {
		if value == nil {
			return nil, nil
		}
		m, ok := value.(map[string]any)
		if !ok {
			return nil, gqlerrors.InvalidInput("NOT expects an object")
		}
		pred, err := compile(m)
		if err != nil {
			return nil, err
		}
		return cypher.Not(pred), nil
	}

	items, ok := value.([]any)
	if !ok {
		return nil, gqlerrors.InvalidInput("%s expects a list", key)
	}
	preds := make([]cypher.Expr, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, gqlerrors.InvalidInput("%s expects a list of objects", key)
		}
		pred, err := compile(m)
		if err != nil {
			return nil, err
		}
		if pred == nil && key == "OR" {
			return nil, nil
		}
		preds = append(preds, pred)
	}
	if key == "OR" {
		return cypher.Or(preds...), nil
	}
	return cypher.And(preds...), nil
}

func (b *Builder) fieldPredicate(scope *Scope, entity schema.Entity, key string, value any) (cypher.Expr, error) {
	name, op := SplitOperator(entity, key)
	field := entity.Field(name)
	if field == nil {
		switch {
		case strings.HasSuffix(name, "Connection"):
			if rel := entity.Field(strings.TrimSuffix(name, "Connection")); rel != nil && rel.Kind == schema.KindRelationship {
				return b.connectionPredicate(scope, rel, op, value)
			}
		case op == "" && strings.HasSuffix(name, "Aggregate"):
			if rel := entity.Field(strings.TrimSuffix(name, "Aggregate")); rel != nil && rel.Kind == schema.KindRelationship {
				return b.aggregatePredicate(scope, rel, value)
			}
		}
		return nil, gqlerrors.SchemaMismatch(entity.TypeName(), "unknown filter field %s", key)
	}

	var lhs cypher.Expr
	switch field.Kind {
	case schema.KindRelationship:
		return b.relationshipPredicate(scope, field, op, value)
	case schema.KindCypher:
		if b.Schema.Entity(field.Type.Name) != nil || b.Schema.IsAbstract(field.Type.Name) {
			return nil, gqlerrors.SchemaMismatch(entity.TypeName(), "cannot filter on object @cypher field %s", field.Name)
		}
		lhs = b.BindCypherField(scope, field)
	default:
		lhs = FieldExpr(scope.Subject, field)
	}
	return b.scalarPredicate(entity.TypeName(), field, lhs, op, value)
}

// BindCypherField returns the variable holding a @cypher field's value in
// scope, materializing it on first use.
func (b *Builder) BindCypherField(scope *Scope, field *schema.Field) cypher.Expr {
	if v, ok := scope.Bound(field.Name); ok {
		return v
	}
	v := cypher.NewVariable()
	cf := querytree.NewCypherField(scope.Subject, field.Cypher.Statement, field.Cypher.ColumnName, field.IsList(), v)
	call, _ := (&querytree.Assign{Body: cf, Imports: []cypher.Expr{scope.Subject}}).Emit()
	scope.Bind(field.Name, v, call)
	return v
}

// FieldExpr returns the stored value of a property field on subject,
// honouring @alias and @coalesce.
func FieldExpr(subject cypher.Expr, field *schema.Field) cypher.Expr {
	var expr cypher.Expr = cypher.Prop(subject, field.Property)
	if field.HasCoalesce {
		expr = cypher.Coalesce(expr, cypher.Lit(field.Coalesce))
	}
	return expr
}

// Value returns the parameter for a where value of the given type. Strings
// of the form "$jwt.<path>" resolve to the claims parameter instead.
func (b *Builder) Value(typeName string, value any) (cypher.Expr, error) {
	if s, ok := value.(string); ok && strings.HasPrefix(s, JWTPrefix) {
		return cypher.Prop(b.JWT, strings.Split(strings.TrimPrefix(s, JWTPrefix), ".")...), nil
	}
	coerced, err := scalars.Coerce(typeName, value)
	if err != nil {
		return nil, gqlerrors.InvalidInput("%v", err)
	}
	return cypher.NewParam(coerced), nil
}

func (b *Builder) typenameIn(scope *Scope, typeName string, value any) (cypher.Expr, error) {
	names, err := stringList(value)
	if err != nil {
		return nil, err
	}
	if scope.ConcreteType != "" {
		return cypher.In(cypher.Lit(scope.ConcreteType), cypher.NewParam(names)), nil
	}
	if scope.node == nil {
		return nil, gqlerrors.SchemaMismatch(typeName, "typename_IN is only valid on abstract types")
	}
	preds := make([]cypher.Expr, 0, len(names))
	for _, name := range names {
		n := b.Schema.Node(name)
		if n == nil {
			return nil, gqlerrors.SchemaMismatch(typeName, "typename_IN: unknown type %s", name)
		}
		preds = append(preds, cypher.HasLabels(scope.node, n.Labels...))
	}
	if len(preds) == 0 {
		return cypher.Lit(false), nil
	}
	return cypher.Or(preds...), nil
}

func (b *Builder) unionWhere(scope *Scope, u *schema.Union, where map[string]any) (cypher.Expr, error) {
	if scope.node == nil {
		return nil, gqlerrors.SchemaMismatch(u.Name, "union where needs a node scope")
	}
	preds := make([]cypher.Expr, 0, len(where))
	for _, member := range SortedKeys(where) {
		node := b.Schema.Node(member)
		if node == nil || !contains(u.Members, member) {
			return nil, gqlerrors.SchemaMismatch(u.Name, "%s is not a member", member)
		}
		m, ok := where[member].(map[string]any)
		if !ok {
			return nil, gqlerrors.InvalidInput("%s.%s expects an object", u.Name, member)
		}
		pred, err := b.EntityWhere(scope, node, m)
		if err != nil {
			return nil, err
		}
		preds = append(preds, cypher.And(cypher.HasLabels(scope.node, node.Labels...), pred))
	}
	return cypher.Or(preds...), nil
}

// SplitOperator splits a where key into the field name and operator
// suffix. An exact field name is implicit equality and yields "".
func SplitOperator(entity schema.Entity, key string) (string, string) {
	if entity != nil && entity.Field(key) != nil {
		return key, ""
	}
	for _, op := range operatorSuffixes {
		if strings.HasSuffix(key, "_"+op) {
			return strings.TrimSuffix(key, "_"+op), op
		}
	}
	return key, ""
}

// SortedKeys returns the keys of m in order, so predicates and parameter
// numbering are deterministic.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringList(value any) ([]string, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, gqlerrors.InvalidInput("expected a list of type names")
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, gqlerrors.InvalidInput("expected a list of type names, got %s", fmt.Sprint(item))
		}
		names = append(names, s)
	}
	return names, nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
