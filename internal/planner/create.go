package planner

import (
	"slices"

	"github.com/graphql-go/graphql/language/ast"

	"neo4j-graphql/internal/cypher"
	"neo4j-graphql/internal/filter"
	"neo4j-graphql/internal/gqlerrors"
	"neo4j-graphql/internal/schema"
)

// planCreate plans createMovies(input: [...]). All input nodes are created
// from one UNWIND; nested relationship input runs per node afterwards.
func (p *planner) planCreate(field *ast.Field, typeName string) (*Plan, error) {
	node := p.schema.Node(typeName)
	if node == nil {
		return nil, gqlerrors.SchemaMismatch(typeName, "only node types can be created")
	}
	inputs, err := objectList("input", p.args(field)["input"])
	if err != nil {
		return nil, err
	}
	authn, err := p.auth.Authentication(node.Authentication, schema.OpCreate)
	if err != nil {
		return nil, err
	}

	rows := make([]any, len(inputs))
	var written []string
	for i, in := range inputs {
		props, fields, err := createProperties(node, in)
		if err != nil {
			return nil, err
		}
		rows[i] = props
		for _, name := range fields {
			if !slices.Contains(written, name) {
				written = append(written, name)
			}
		}
	}

	b := &mutationBlock{}
	item := cypher.NewVariable()
	created := cypher.NewNode(node.Labels...)
	b.add(&cypher.Unwind{Expr: cypher.NewParam(rows), As: item})
	b.check(nil, authn)
	b.add(
		&cypher.Create{Patterns: []*cypher.Pattern{cypher.NewPattern(cypher.Labeled(created))}},
		&cypher.Set{Items: append([]cypher.SetItem{{Target: created, Value: item, Merge: true}}, generatedItems(created, node, schema.OpCreate)...)},
	)
	p.recordEvent(b, EventCreate, created, cypher.Null, properties(created), node.Name)

	// Created nodes are collected so each input item can address its own.
	nodes := cypher.NewVariable()
	collected := []cypher.Item{cypher.As(cypher.Collect(created), nodes)}
	if p.opts.subscriptions {
		ev := cypher.NewVariable()
		collected = append(collected, cypher.As(flatten(cypher.Collect(b.rowEvents())), ev))
		b.events = []cypher.Expr{ev}
	}
	b.add(cypher.NewWith(collected...))

	for i, in := range inputs {
		if !hasRelationshipInput(node, in) {
			continue
		}
		body := &mutationBlock{}
		x := cypher.NewNode(node.Labels...)
		body.add(cypher.NewWith(cypher.As(cypher.Index{Of: nodes, Index: cypher.Lit(i)}, x)))
		if err := p.createRelationships(body, x, node, in, 1); err != nil {
			return nil, err
		}
		p.nest(b, body, nodes)
	}

	this := cypher.NamedNode(RootColumn, node.Labels...)
	carried := []cypher.Item{{Expr: nodes}}
	var events cypher.Expr
	if p.opts.subscriptions {
		events = cypher.NewVariable()
		carried = append(carried, cypher.As(b.rowEvents(), events))
	}
	b.add(cypher.NewWith(carried...), &cypher.Unwind{Expr: nodes, As: this.Variable})

	p.assertCardinality(b, this, node, node.RelationshipFields())
	scope := filter.NewScope(this)
	scope.ConcreteType = node.Name
	after, err := p.validateAfter(scope, node, schema.OpCreate, written)
	if err != nil {
		return nil, err
	}
	b.check(scope, after)

	return p.returnMutation(field, schema.RootCreate, node, this, "create", b, cypher.Collect, events)
}

// returnMutation projects the affected nodes and renders the RETURN of a
// create or update.
func (p *planner) returnMutation(field *ast.Field, kind schema.RootKind, node *schema.Node, this *cypher.Node, verb string, b *mutationBlock, collect func(cypher.Expr) *cypher.Function, events cypher.Expr) (*Plan, error) {
	proj, shape, err := p.mutationResult(b, field, node, this, verb)
	if err != nil {
		return nil, err
	}
	var data cypher.Expr = cypher.List()
	if proj != nil {
		data = collect(proj)
	}
	items := []cypher.Item{cypher.As(data, cypher.NamedVariable(DataColumn))}
	if events != nil {
		items = append(items, cypher.As(events, cypher.NamedVariable(EventsColumn)))
	}
	b.add(cypher.NewReturn(items...))
	return p.finishMutation(field, kind, node.Name, b, shape)
}

func hasRelationshipInput(entity schema.Entity, input map[string]any) bool {
	for key, v := range input {
		if f := entity.Field(key); f != nil && f.Kind == schema.KindRelationship && v != nil {
			return true
		}
	}
	return false
}

// createRelationships plans the relationship fields of a create input on
// the created node: nested creates and connects.
func (p *planner) createRelationships(b *mutationBlock, subject *cypher.Node, entity schema.Entity, input map[string]any, depth int) error {
	if err := p.checkDepth(depth); err != nil {
		return err
	}
	parent, _ := entity.(*schema.Node)
	for _, key := range filter.SortedKeys(input) {
		f := entity.Field(key)
		if f == nil || f.Kind != schema.KindRelationship || input[key] == nil {
			continue
		}
		err := p.forTargets(f, input[key], func(target string, v any) error {
			ops, ok := v.(map[string]any)
			if !ok {
				return gqlerrors.InvalidInput("%s must be an object", key)
			}
			for _, op := range filter.SortedKeys(ops) {
				items, err := objectList(key+"."+op, ops[op])
				if err != nil {
					return err
				}
				for _, item := range items {
					switch op {
					case "create":
						err = p.nestedCreate(b, subject, parent, f, target, item, depth)
					case "connect":
						err = p.nestedConnect(b, subject, parent, f, target, item, depth)
					default:
						err = gqlerrors.SchemaMismatch(key, "unknown relationship operation %s in create", op)
					}
					if err != nil {
						return err
					}
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
