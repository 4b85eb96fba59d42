package planner

import (
	"slices"
	"strings"

	"github.com/graphql-go/graphql/language/ast"

	"neo4j-graphql/internal/cypher"
	"neo4j-graphql/internal/filter"
	"neo4j-graphql/internal/gqlerrors"
	"neo4j-graphql/internal/querytree"
	"neo4j-graphql/internal/schema"
)

// nodeSelection is a selection set projected onto one node variable.
type nodeSelection struct {
	shape    *Shape
	children []querytree.Node
}

// planList plans a root list field such as movies(where, options).
func (p *planner) planList(field *ast.Field, typeName string) (*Plan, error) {
	args := p.args(field)
	where, err := objectArg(args, "where")
	if err != nil {
		return nil, err
	}

	if p.schema.IsAbstract(typeName) {
		u, shape, err := p.abstractRead(nil, nil, typeName, args, where, field.SelectionSet, schema.OpRead, true)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, gqlerrors.SchemaMismatch(typeName, "no implementations to read")
		}
		u.Output = querytree.OutputRows
		u.As = cypher.NamedVariable(RootColumn)
		plan, err := p.emit(field, schema.RootList, typeName, u)
		if err != nil {
			return nil, err
		}
		plan.Column, plan.List, plan.Shape = RootColumn, true, shape
		return plan, nil
	}

	node := p.schema.Node(typeName)
	if node == nil {
		return nil, gqlerrors.SchemaMismatch(typeName, "unknown node type")
	}
	this := cypher.NamedNode(RootColumn, node.Labels...)
	read := querytree.NewRead(this, cypher.NewPattern(cypher.Labeled(this)))
	scope := filter.NewScope(this)
	scope.ConcreteType = node.Name

	shape, bound, err := p.fillRead(read, scope, node.Name, node.Name, where, field.SelectionSet, schema.OpRead)
	if err != nil {
		return nil, err
	}
	w, err := p.listWindow(args, node.Name, p.nodeSortExpr(scope, node))
	if err != nil {
		return nil, err
	}
	read.Sort, read.Skip, read.Limit = w.sort, w.skip, w.limit
	flushCalls(read, scope, bound)
	read.Output = querytree.OutputRows

	plan, err := p.emit(field, schema.RootList, typeName, read)
	if err != nil {
		return nil, err
	}
	plan.Column, plan.List, plan.Shape = RootColumn, true, shape
	return plan, nil
}

// fillRead compiles the where input, the read authorization of typeName
// and the selection set into read. whereType is the type the where input
// is declared on, which differs from typeName inside interface branches.
// It returns the response shape and the number of @cypher calls the
// filters bound; calls bound later belong after the filter and are added
// by flushCalls once sorting is resolved.
func (p *planner) fillRead(read *querytree.Read, scope *filter.Scope, whereType, typeName string, where map[string]any, set *ast.SelectionSet, op schema.Operation) (*Shape, int, error) {
	pred, err := p.filters.Where(scope, whereType, where)
	if err != nil {
		return nil, 0, err
	}
	fields := p.collectFields(set, typeName)
	auth, err := p.readAuth(scope, typeName, p.fieldNames(typeName, fields), op)
	if err != nil {
		return nil, 0, err
	}
	read.AddFilter(pred)
	read.AddFilter(auth)
	read.PreFilter = append(read.PreFilter, scope.Calls()...)
	bound := len(scope.Calls())

	sel, err := p.projectNode(scope, typeName, fields, read.Projection)
	if err != nil {
		return nil, 0, err
	}
	read.Children = append(read.Children, sel.children...)
	return sel.shape, bound, nil
}

// flushCalls runs the @cypher fields bound after filtering ahead of the
// other children, so projection and sorting can use them.
func flushCalls(read *querytree.Read, scope *filter.Scope, bound int) {
	calls := scope.Calls()[bound:]
	if len(calls) == 0 {
		return
	}
	first := querytree.Clauses(slices.Clone(calls))
	read.Children = append([]querytree.Node{first}, read.Children...)
}

// typeRules pairs an @authorization directive with the type declaring it.
type typeRules struct {
	name string
	auth *schema.Authorization
}

// rulesFor returns the directives of node and the interfaces it implements.
func (p *planner) rulesFor(node *schema.Node) []typeRules {
	rules := []typeRules{{node.Name, node.Authorization}}
	for _, name := range node.Interfaces {
		if iface := p.schema.Interface(name); iface != nil && iface.Authorization != nil {
			rules = append(rules, typeRules{iface.Name, iface.Authorization})
		}
	}
	return rules
}

// readAuth returns the authentication, filter and validate checks for
// reading typeName with the given fields selected.
func (p *planner) readAuth(scope *filter.Scope, typeName string, fields []string, op schema.Operation) (cypher.Expr, error) {
	node := p.schema.Node(typeName)
	if node == nil {
		return nil, nil
	}
	authn, err := p.auth.Authentication(node.Authentication, op)
	if err != nil {
		return nil, err
	}
	preds := []cypher.Expr{authn}
	for _, r := range p.rulesFor(node) {
		hide, err := p.auth.Filter(scope, r.name, r.auth, op)
		if err != nil {
			return nil, err
		}
		check, err := p.auth.Validate(scope, r.name, r.auth, op, schema.Before)
		if err != nil {
			return nil, err
		}
		preds = append(preds, hide, check)
	}
	fieldCheck, err := p.auth.Fields(scope, node, fields, op, schema.Before)
	if err != nil {
		return nil, err
	}
	preds = append(preds, fieldCheck)
	return cypher.And(preds...), nil
}

// abstractReadAuth guards a read over an interface or union target that
// is matched without per-type branches. Each concrete type contributes
// its own checks behind a label test.
func (p *planner) abstractReadAuth(scope *filter.Scope, typeName string, fields []*selectedField, op schema.Operation) (cypher.Expr, error) {
	var branches []cypher.Expr
	guarded := false
	for _, n := range p.schema.ConcreteTypes(typeName) {
		auth, err := p.readAuth(scope, n.Name, p.fieldNames(n.Name, fields), op)
		if err != nil {
			return nil, err
		}
		if auth != nil {
			guarded = true
		}
		branches = append(branches, cypher.And(cypher.HasLabels(scope.Node(), n.Labels...), auth))
	}
	if !guarded {
		return nil, nil
	}
	return cypher.Or(branches...), nil
}

// fieldNames returns the schema fields behind the selected keys that apply
// to typeName.
func (p *planner) fieldNames(typeName string, fields []*selectedField) []string {
	names := make([]string, 0, len(fields))
	for _, sf := range fields {
		if sf.types != nil && !slices.Contains(sf.types, typeName) {
			continue
		}
		if f, _ := p.lookupField(typeName, sf); f != nil {
			names = append(names, f.Name)
		}
	}
	return names
}

// lookupField resolves a selected field on typeName, or on the concrete
// types selecting it. Generated relationship fields resolve to their
// relationship with the suffix "Connection" or "Aggregate".
func (p *planner) lookupField(typeName string, sf *selectedField) (*schema.Field, string) {
	candidates := []string{typeName}
	if sf.types != nil {
		candidates = append(candidates, sf.types...)
	} else if p.schema.IsAbstract(typeName) {
		for _, n := range p.schema.ConcreteTypes(typeName) {
			candidates = append(candidates, n.Name)
		}
	}
	for _, name := range candidates {
		entity := p.schema.Entity(name)
		if entity == nil {
			continue
		}
		if f := entity.Field(sf.name); f != nil {
			return f, ""
		}
		for _, suffix := range []string{"Connection", "Aggregate"} {
			base, ok := strings.CutSuffix(sf.name, suffix)
			if !ok {
				continue
			}
			if f := entity.Field(base); f != nil && f.Kind == schema.KindRelationship {
				return f, suffix
			}
		}
	}
	return nil, ""
}

// nodeSortExpr resolves sort fields of entity on the scope's node.
func (p *planner) nodeSortExpr(scope *filter.Scope, entity schema.Entity) func(string) (cypher.Expr, error) {
	return func(name string) (cypher.Expr, error) {
		f := entity.Field(name)
		if f == nil {
			return nil, gqlerrors.SchemaMismatch(entity.TypeName(), "cannot sort on unknown field %s", name)
		}
		switch f.Kind {
		case schema.KindRelationship:
			return nil, gqlerrors.SchemaMismatch(entity.TypeName(), "cannot sort on relationship field %s", name)
		case schema.KindCypher:
			return p.filters.BindCypherField(scope, f), nil
		}
		return filter.FieldExpr(scope.Subject, f), nil
	}
}

// projectNode adds the selected fields to proj and plans the subqueries
// they need. typeName may be abstract, in which case fields come from
// abstractFields and carry the concrete types selecting them.
func (p *planner) projectNode(scope *filter.Scope, typeName string, fields []*selectedField, proj *querytree.Projection) (*nodeSelection, error) {
	sel := &nodeSelection{shape: &Shape{Kind: ShapeObject, TypeName: typeName}}
	if p.schema.IsAbstract(typeName) {
		sel.shape.TypeName = ""
	}
	for _, sf := range fields {
		if sf.name == "__typename" {
			sel.shape.Fields = append(sel.shape.Fields, ShapeField{Key: sf.key, Types: sf.types, Shape: typenameShape})
			continue
		}
		f, suffix := p.lookupField(typeName, sf)
		if f == nil {
			return nil, gqlerrors.SchemaMismatch(typeName, "unknown field %s", sf.name)
		}
		var (
			child querytree.Node
			value cypher.Expr
			shape *Shape
			err   error
		)
		switch {
		case suffix == "Connection":
			child, value, shape, err = p.relationshipConnection(scope, typeName, f, sf)
		case suffix == "Aggregate":
			child, value, shape, err = p.relationshipAggregate(scope, typeName, f, sf)
		case f.Kind == schema.KindRelationship:
			child, value, shape, err = p.relationshipField(scope, f, sf)
		case f.Kind == schema.KindCypher:
			child, value, shape, err = p.cypherField(scope, f, sf)
		default:
			shape = valueShape
			err = proj.AddProperty(sf.key, f.Property)
		}
		if err != nil {
			return nil, err
		}
		if child != nil {
			sel.children = append(sel.children, child)
		}
		if value != nil {
			if err := proj.AddField(sf.key, value); err != nil {
				return nil, err
			}
		}
		sel.shape.Fields = append(sel.shape.Fields, ShapeField{Key: sf.key, Source: sf.key, Types: sf.types, Shape: shape})
	}
	return sel, nil
}

// projectAbstract projects a selection over a node of an abstract type
// matched without per-type branches. The concrete type is resolved from
// the node labels into __resolveType.
func (p *planner) projectAbstract(scope *filter.Scope, typeName string, set *ast.SelectionSet, proj *querytree.Projection) (*nodeSelection, []*selectedField, error) {
	fields := p.abstractFields(set, typeName)
	if err := proj.AddField(querytree.ResolveTypeKey, p.resolveType(scope.Node(), typeName)); err != nil {
		return nil, nil, err
	}
	sel, err := p.projectNode(scope, typeName, fields, proj)
	if err != nil {
		return nil, nil, err
	}
	return sel, fields, nil
}

// resolveType maps the labels of node to the concrete type name.
func (p *planner) resolveType(node *cypher.Node, typeName string) cypher.Expr {
	c := &cypher.Case{Else: cypher.Null}
	for _, n := range p.schema.ConcreteTypes(typeName) {
		c.Branches = append(c.Branches, cypher.CaseBranch{
			When: cypher.HasLabels(node, n.Labels...),
			Then: cypher.Lit(n.Name),
		})
	}
	return c
}

// abstractRead plans a read over every concrete type behind an interface
// or union as one UNION branch each. parent and rel are nil for a root
// field. A union where input keyed by member drops the members it leaves
// out; a nil union is returned when no branch remains.
func (p *planner) abstractRead(parent *cypher.Node, rel *schema.Relationship, typeName string, args, where map[string]any, set *ast.SelectionSet, op schema.Operation, list bool) (*querytree.Union, *Shape, error) {
	u := &querytree.Union{Out: cypher.NewVariable()}
	isUnion := p.schema.Union(typeName) != nil

	var (
		order    []string
		shapes   = map[string]*Shape{}
		scopes   []*filter.Scope
		bounds   []int
		concrete []*schema.Node
	)
	for _, n := range p.schema.ConcreteTypes(typeName) {
		whereType, branchWhere := typeName, where
		if isUnion {
			whereType = n.Name
			if len(where) > 0 {
				m, ok := where[n.Name]
				if !ok {
					continue
				}
				if branchWhere, ok = m.(map[string]any); !ok && m != nil {
					return nil, nil, gqlerrors.InvalidInput("where.%s must be an object", n.Name)
				}
			}
		}

		target := cypher.NewNode(n.Labels...)
		var pattern *cypher.Pattern
		if parent != nil {
			pattern = relPattern(parent, nil, rel, cypher.Labeled(target))
		} else {
			pattern = cypher.NewPattern(cypher.Labeled(target))
		}
		branch := querytree.NewRead(target, pattern)
		if parent != nil {
			branch.Imports = []cypher.Expr{parent}
		}
		scope := filter.NewScope(target)
		scope.ConcreteType = n.Name

		shape, bound, err := p.fillRead(branch, scope, whereType, n.Name, branchWhere, set, op)
		if err != nil {
			return nil, nil, err
		}
		if err := u.AddBranch(n.Name, branch); err != nil {
			return nil, nil, err
		}
		order = append(order, n.Name)
		shapes[n.Name] = shape
		scopes = append(scopes, scope)
		bounds = append(bounds, bound)
		concrete = append(concrete, n)
	}
	if len(u.Branches) == 0 {
		return nil, &Shape{Kind: ShapeObject}, nil
	}

	if list {
		// Sort fields are projected into every branch under a private key
		// and sorted on after the union.
		w, err := p.listWindow(args, typeName, func(name string) (cypher.Expr, error) {
			key := querytree.SortKey(name)
			for i, branch := range u.Branches {
				if branch.Projection.Has(key) {
					continue
				}
				f := concrete[i].Field(name)
				if f == nil {
					return nil, gqlerrors.SchemaMismatch(typeName, "cannot sort on unknown field %s", name)
				}
				expr, err := p.nodeSortExpr(scopes[i], concrete[i])(name)
				if err != nil {
					return nil, err
				}
				if err := branch.Projection.AddField(key, expr); err != nil {
					return nil, err
				}
			}
			return cypher.Prop(u.Out, key), nil
		})
		if err != nil {
			return nil, nil, err
		}
		u.Sort, u.Skip, u.Limit = w.sort, w.skip, w.limit
	}
	for i, branch := range u.Branches {
		flushCalls(branch, scopes[i], bounds[i])
	}

	shape := mergeBranches(order, shapes)
	return u, shape, nil
}

// relPattern returns (parent)-[rel:TYPE]-(to) in the declared direction.
func relPattern(parent *cypher.Node, relVar *cypher.Relationship, rel *schema.Relationship, to cypher.NodeElement) *cypher.Pattern {
	return cypher.NewPattern(cypher.Bound(parent)).Related(relVar, rel.Type, filter.PatternDirection(rel.Direction), to)
}
