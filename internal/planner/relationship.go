package planner

import (
	"neo4j-graphql/internal/cypher"
	"neo4j-graphql/internal/filter"
	"neo4j-graphql/internal/gqlerrors"
	"neo4j-graphql/internal/querytree"
	"neo4j-graphql/internal/schema"
)

// relationshipField plans a @relationship field as a subquery importing the
// parent node. A list field collects the related projections; a single
// field keeps the first, or null.
func (p *planner) relationshipField(parent *filter.Scope, f *schema.Field, sf *selectedField) (querytree.Node, cypher.Expr, *Shape, error) {
	rel := f.Relationship
	args := p.args(sf.field)
	where, err := objectArg(args, "where")
	if err != nil {
		return nil, nil, nil, err
	}
	as := cypher.NewVariable()
	output := querytree.OutputHead
	if f.IsList() {
		output = querytree.OutputCollect
	}
	imports := []cypher.Expr{parent.Node()}

	if p.schema.IsAbstract(rel.Target) {
		u, shape, err := p.abstractRead(parent.Node(), rel, rel.Target, args, where, sf.set, schema.OpRead, f.IsList())
		if err != nil {
			return nil, nil, nil, err
		}
		if u == nil {
			if f.IsList() {
				return nil, cypher.List(), shape, nil
			}
			return nil, cypher.Null, shape, nil
		}
		u.Output, u.As = output, as
		return &querytree.Assign{Body: u, Imports: imports}, as, shape, nil
	}

	node := p.schema.Node(rel.Target)
	if node == nil {
		return nil, nil, nil, gqlerrors.SchemaMismatch(rel.Target, "unknown relationship target of %s", f.Name)
	}
	target := cypher.NewNode(node.Labels...)
	read := querytree.NewRead(target, relPattern(parent.Node(), nil, rel, cypher.Labeled(target)))
	scope := filter.NewScope(target)
	scope.ConcreteType = node.Name

	shape, bound, err := p.fillRead(read, scope, node.Name, node.Name, where, sf.set, schema.OpRead)
	if err != nil {
		return nil, nil, nil, err
	}
	if f.IsList() {
		w, err := p.listWindow(args, node.Name, p.nodeSortExpr(scope, node))
		if err != nil {
			return nil, nil, nil, err
		}
		read.Sort, read.Skip, read.Limit = w.sort, w.skip, w.limit
	}
	flushCalls(read, scope, bound)
	read.Output, read.As = output, as
	return &querytree.Assign{Body: read, Imports: imports}, as, shape, nil
}

// cypherField plans a @cypher field. Scalar results are bound once per
// scope and shared with filters and sorting; node results are filtered
// and projected like a relationship target.
func (p *planner) cypherField(parent *filter.Scope, f *schema.Field, sf *selectedField) (querytree.Node, cypher.Expr, *Shape, error) {
	if f.Cypher == nil {
		return nil, nil, nil, gqlerrors.SchemaMismatch(f.Name, "missing @cypher statement")
	}
	target := f.Type.Name
	if p.schema.Node(target) == nil && !p.schema.IsAbstract(target) {
		return nil, p.filters.BindCypherField(parent, f), valueShape, nil
	}

	args := p.args(sf.field)
	where, err := objectArg(args, "where")
	if err != nil {
		return nil, nil, nil, err
	}
	as := cypher.NewVariable()
	cf := querytree.NewCypherField(parent.Subject, f.Cypher.Statement, f.Cypher.ColumnName, f.IsList(), as)
	nested := querytree.NewRead(cf.Result, nil)
	scope := filter.NewScope(cf.Result)

	var (
		shape *Shape
		bound int
	)
	if node := p.schema.Node(target); node != nil {
		scope.ConcreteType = node.Name
		if shape, bound, err = p.fillRead(nested, scope, node.Name, node.Name, where, sf.set, schema.OpRead); err != nil {
			return nil, nil, nil, err
		}
		if f.IsList() {
			w, err := p.listWindow(args, node.Name, p.nodeSortExpr(scope, node))
			if err != nil {
				return nil, nil, nil, err
			}
			nested.Sort, nested.Skip, nested.Limit = w.sort, w.skip, w.limit
		}
	} else {
		pred, err := p.filters.Where(scope, target, where)
		if err != nil {
			return nil, nil, nil, err
		}
		auth, err := p.abstractReadAuth(scope, target, p.abstractFields(sf.set, target), schema.OpRead)
		if err != nil {
			return nil, nil, nil, err
		}
		nested.AddFilter(cypher.And(p.filters.LabelPredicate(cf.Result, target), pred, auth))
		nested.PreFilter = append(nested.PreFilter, scope.Calls()...)
		bound = len(scope.Calls())
		sel, _, err := p.projectAbstract(scope, target, sf.set, nested.Projection)
		if err != nil {
			return nil, nil, nil, err
		}
		nested.Children = append(nested.Children, sel.children...)
		shape = sel.shape
	}
	flushCalls(nested, scope, bound)
	cf.Nested = nested
	return &querytree.Assign{Body: cf, Imports: []cypher.Expr{parent.Subject}}, as, shape, nil
}
