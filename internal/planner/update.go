package planner

import (
	"github.com/graphql-go/graphql/language/ast"

	"neo4j-graphql/internal/cypher"
	"neo4j-graphql/internal/filter"
	"neo4j-graphql/internal/gqlerrors"
	"neo4j-graphql/internal/schema"
)

// Top-level relationship arguments of an update field, in the order they
// run after the update input.
var updateArguments = []string{"disconnect", "connect", "create", "delete"}

// planUpdate plans updateMovies(where, update, connect, disconnect, create,
// delete).
func (p *planner) planUpdate(field *ast.Field, typeName string) (*Plan, error) {
	node := p.schema.Node(typeName)
	if node == nil {
		return nil, gqlerrors.SchemaMismatch(typeName, "only node types can be updated")
	}
	args := p.args(field)
	where, err := objectArg(args, "where")
	if err != nil {
		return nil, err
	}
	update, err := objectArg(args, "update")
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
	auth, err := p.readAuth(scope, node.Name, updatedFields(node, update), schema.OpUpdate)
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

	if _, err := p.applyUpdate(b, this, node, update, 1); err != nil {
		return nil, err
	}

	var touched []*schema.Field
	for _, arg := range updateArguments {
		input, err := objectArg(args, arg)
		if err != nil {
			return nil, err
		}
		for _, key := range filter.SortedKeys(input) {
			f, err := relationshipField(node, key)
			if err != nil {
				return nil, err
			}
			if !containsField(touched, f) {
				touched = append(touched, f)
			}
			err = p.forTargets(f, input[key], func(target string, v any) error {
				return p.relationshipOp(b, this, node, f, target, arg, v, 1)
			})
			if err != nil {
				return nil, err
			}
		}
	}
	if len(touched) > 0 {
		p.assertCardinality(b, this, node, touched)
		if err := p.targetAfter(b, this, node.Name, schema.OpUpdate, nil); err != nil {
			return nil, err
		}
	}

	var events cypher.Expr
	if p.opts.subscriptions {
		events = flatten(cypher.Collect(b.rowEvents()))
	}
	return p.returnMutation(field, schema.RootUpdate, node, this, "update", b, cypher.CollectDistinct, events)
}

func containsField(fields []*schema.Field, f *schema.Field) bool {
	for _, existing := range fields {
		if existing == f {
			return true
		}
	}
	return false
}
