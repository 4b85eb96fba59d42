package planner

import (
	"github.com/graphql-go/graphql/language/ast"

	"neo4j-graphql/internal/cypher"
	"neo4j-graphql/internal/filter"
	"neo4j-graphql/internal/gqlerrors"
	"neo4j-graphql/internal/schema"
)

// planDelete plans deleteMovies(where, delete). Nested deletes run before
// the matched nodes are detached and deleted, so the deepest level goes
// first.
func (p *planner) planDelete(field *ast.Field, typeName string) (*Plan, error) {
	node := p.schema.Node(typeName)
	if node == nil {
		return nil, gqlerrors.SchemaMismatch(typeName, "only node types can be deleted")
	}
	args := p.args(field)
	where, err := objectArg(args, "where")
	if err != nil {
		return nil, err
	}
	nested, err := objectArg(args, "delete")
	if err != nil {
		return nil, err
	}

	b := &mutationBlock{}
	this := cypher.NamedNode(RootColumn, node.Labels...)
	scope := filter.NewScope(this)
	scope.ConcreteType = node.Name
	pred, err := p.filters.Where(scope, node.Name, where)
	if err != nil {
		return nil, err
	}
	auth, err := p.readAuth(scope, node.Name, nil, schema.OpDelete)
	if err != nil {
		return nil, err
	}
	match := cypher.NewMatch(cypher.NewPattern(cypher.Labeled(this)))
	if len(scope.Calls()) == 0 {
		b.add(match.Where(cypher.And(pred, auth)))
	} else {
		b.add(match)
		b.check(scope, cypher.And(pred, auth))
	}

	p.recordEvent(b, EventDelete, this, properties(this), cypher.Null, node.Name)
	if err := p.deleteRelationships(b, this, node, nested, 1); err != nil {
		return nil, err
	}
	summary := p.detachDelete(b, this)

	items := []cypher.Item{cypher.As(summary, cypher.NamedVariable(DataColumn))}
	if p.opts.subscriptions {
		items[0] = cypher.As(cypher.Null, cypher.NamedVariable(DataColumn))
		items = append(items, cypher.As(summary, cypher.NamedVariable(EventsColumn)))
	}
	b.add(cypher.NewReturn(items...))

	return p.finishMutation(field, schema.RootDelete, node.Name, b, p.infoShape(field.SelectionSet, "delete"))
}
