package planner

import (
	"github.com/graphql-go/graphql/language/ast"

	"neo4j-graphql/internal/cypher"
	"neo4j-graphql/internal/filter"
	"neo4j-graphql/internal/gqlerrors"
	"neo4j-graphql/internal/naming"
	"neo4j-graphql/internal/querytree"
	"neo4j-graphql/internal/schema"
)

// connectionSpec is everything that differs between a root connection and
// a relationship connection.
type connectionSpec struct {
	conn       *querytree.Connection
	targetType string
	// props is the relationship properties type, nil without one.
	props    schema.Entity
	connType string
	edgeType string
	args     map[string]any
	// filter compiles the where input against the pre-collection scopes.
	filter func(nodeScope *filter.Scope) (cypher.Expr, error)
	// sortEntry resolves one sort entry against the per-edge scope.
	sortEntry func(nodeScope *filter.Scope) func(map[string]any) ([]cypher.Order, error)
}

// planConnection plans a root connection field such as
// moviesConnection(where, sort, first, after).
func (p *planner) planConnection(field *ast.Field, typeName string) (*Plan, error) {
	entity := p.schema.Entity(typeName)
	if entity == nil {
		return nil, gqlerrors.SchemaMismatch(typeName, "unknown node type")
	}
	args := p.args(field)
	where, err := objectArg(args, "where")
	if err != nil {
		return nil, err
	}

	this := cypher.NamedNode(RootColumn, p.schema.Labels(typeName)...)
	var labelPred cypher.Expr
	if p.schema.IsAbstract(typeName) {
		labelPred = p.filters.LabelPredicate(this, typeName)
	}
	conn := querytree.NewConnection(this, nil, cypher.NewPattern(cypher.Labeled(this)))

	plural := naming.LowerFirst(typeName)
	switch e := entity.(type) {
	case *schema.Node:
		plural = e.Root.Plural
	case *schema.Interface:
		plural = e.Root.Plural
	}
	spec := connectionSpec{
		conn:       conn,
		targetType: typeName,
		connType:   naming.RootConnectionType(plural),
		edgeType:   naming.RootEdgeType(typeName),
		args:       args,
		filter: func(nodeScope *filter.Scope) (cypher.Expr, error) {
			pred, err := p.filters.Where(nodeScope, typeName, where)
			if err != nil {
				return nil, err
			}
			return cypher.And(labelPred, pred), nil
		},
		sortEntry: func(nodeScope *filter.Scope) func(map[string]any) ([]cypher.Order, error) {
			resolve := p.nodeSortExpr(nodeScope, entity)
			return func(entry map[string]any) ([]cypher.Order, error) {
				return orders("sort", entry, resolve)
			}
		},
	}
	shape, err := p.fillConnection(spec, field.SelectionSet)
	if err != nil {
		return nil, err
	}
	conn.As = cypher.NamedVariable(RootColumn)

	plan, err := p.emit(field, schema.RootConnection, typeName, conn)
	if err != nil {
		return nil, err
	}
	plan.Column, plan.Shape = RootColumn, shape
	return plan, nil
}

// relationshipConnection plans <field>Connection on a node: edges carry
// the related node and the relationship properties.
func (p *planner) relationshipConnection(parent *filter.Scope, owner string, f *schema.Field, sf *selectedField) (querytree.Node, cypher.Expr, *Shape, error) {
	rel := f.Relationship
	args := p.args(sf.field)
	where, err := objectArg(args, "where")
	if err != nil {
		return nil, nil, nil, err
	}

	target, element, labelPred := p.filters.Related(rel.Target)
	relVar := cypher.NewRelationship(rel.Type)
	conn := querytree.NewConnection(target, relVar, relPattern(parent.Node(), relVar, rel, element))
	as := cypher.NewVariable()
	conn.As = as

	var props schema.Entity
	if rel.Properties != "" {
		if rp := p.schema.RelationshipProperties(rel.Properties); rp != nil {
			props = rp
		}
	}
	nodeEntity := p.schema.Entity(rel.Target)

	spec := connectionSpec{
		conn:       conn,
		targetType: rel.Target,
		props:      props,
		connType:   naming.RelationshipConnectionType(owner, f.Name),
		edgeType:   naming.RelationshipEdgeType(owner, f.Name),
		args:       args,
		filter: func(nodeScope *filter.Scope) (cypher.Expr, error) {
			pred, err := p.filters.ConnectionWhere(nodeScope, filter.NewEdgeScope(relVar), f, where)
			if err != nil {
				return nil, err
			}
			return cypher.And(labelPred, pred), nil
		},
		sortEntry: func(nodeScope *filter.Scope) func(map[string]any) ([]cypher.Order, error) {
			return func(entry map[string]any) ([]cypher.Order, error) {
				var out []cypher.Order
				for _, key := range filter.SortedKeys(entry) {
					var resolve func(string) (cypher.Expr, error)
					switch key {
					case "node":
						if nodeEntity == nil {
							return nil, gqlerrors.SchemaMismatch(rel.Target, "cannot sort a union connection by node")
						}
						resolve = p.nodeSortExpr(nodeScope, nodeEntity)
					case "edge":
						if props == nil {
							return nil, gqlerrors.SchemaMismatch(f.Name, "relationship has no properties to sort on")
						}
						resolve = edgeSortExpr(relVar, props)
					default:
						return nil, gqlerrors.InvalidInput("unknown connection sort key %s", key)
					}
					o, err := orders("sort."+key, entry[key], resolve)
					if err != nil {
						return nil, err
					}
					out = append(out, o...)
				}
				return out, nil
			}
		},
	}
	shape, err := p.fillConnection(spec, sf.set)
	if err != nil {
		return nil, nil, nil, err
	}
	return &querytree.Assign{Body: conn, Imports: []cypher.Expr{parent.Node()}}, as, shape, nil
}

func edgeSortExpr(rel *cypher.Relationship, props schema.Entity) func(string) (cypher.Expr, error) {
	return func(name string) (cypher.Expr, error) {
		f := props.Field(name)
		if f == nil {
			return nil, gqlerrors.SchemaMismatch(props.TypeName(), "cannot sort on unknown field %s", name)
		}
		return filter.FieldExpr(rel, f), nil
	}
}

// connectionParts are the selections made inside a connection.
type connectionParts struct {
	node  *ast.SelectionSet
	props *ast.SelectionSet
}

// connectionParts merges every edges.node and edges.properties selection.
func (p *planner) connectionParts(set *ast.SelectionSet) connectionParts {
	parts := connectionParts{node: &ast.SelectionSet{}, props: &ast.SelectionSet{}}
	for _, sf := range p.collectFields(set, "") {
		if sf.name != "edges" {
			continue
		}
		for _, ef := range p.collectFields(sf.set, "") {
			switch ef.name {
			case "node":
				parts.node.Selections = append(parts.node.Selections, ef.set.Selections...)
			case "properties":
				parts.props.Selections = append(parts.props.Selections, ef.set.Selections...)
			}
		}
	}
	return parts
}

// fillConnection compiles filters, authorization, projections, sorting and
// paging of a connection and returns its response shape.
func (p *planner) fillConnection(spec connectionSpec, set *ast.SelectionSet) (*Shape, error) {
	conn := spec.conn
	abstract := p.schema.IsAbstract(spec.targetType)
	parts := p.connectionParts(set)

	filterScope := filter.NewScope(conn.Target)
	if !abstract {
		filterScope.ConcreteType = spec.targetType
	}
	pred, err := spec.filter(filterScope)
	if err != nil {
		return nil, err
	}
	var auth cypher.Expr
	if abstract {
		auth, err = p.abstractReadAuth(filterScope, spec.targetType, p.abstractFields(parts.node, spec.targetType), schema.OpRead)
	} else {
		auth, err = p.readAuth(filterScope, spec.targetType, p.fieldNames(spec.targetType, p.collectFields(parts.node, spec.targetType)), schema.OpRead)
	}
	if err != nil {
		return nil, err
	}
	if pred = cypher.And(pred, auth); pred != nil {
		conn.Filters = append(conn.Filters, pred)
	}
	conn.PreFilter = append(conn.PreFilter, filterScope.Calls()...)

	// Edges are unwound into a fresh scope; nothing bound before the
	// collection survives it.
	nodeScope := filter.NewScope(conn.Target)
	var nodeSel *nodeSelection
	if abstract {
		nodeSel, _, err = p.projectAbstract(nodeScope, spec.targetType, parts.node, conn.Node)
	} else {
		nodeScope.ConcreteType = spec.targetType
		nodeSel, err = p.projectNode(nodeScope, spec.targetType, p.collectFields(parts.node, spec.targetType), conn.Node)
	}
	if err != nil {
		return nil, err
	}
	conn.Children = append(conn.Children, nodeSel.children...)

	var propsShape *Shape
	if len(parts.props.Selections) > 0 {
		if spec.props == nil || conn.Rel == nil {
			return nil, gqlerrors.SchemaMismatch(spec.connType, "edges have no properties")
		}
		conn.Edge = querytree.NewProjection(conn.Rel)
		if propsShape, err = p.projectProperties(spec.props, parts.props, conn.Edge); err != nil {
			return nil, err
		}
	}

	w, err := p.connectionWindow(spec.args, spec.targetType, spec.sortEntry(nodeScope))
	if err != nil {
		return nil, err
	}
	conn.Sort, conn.Skip, conn.Limit = w.sort, w.skip, w.limit
	if calls := nodeScope.Calls(); len(calls) > 0 {
		conn.Children = append([]querytree.Node{querytree.Clauses(calls)}, conn.Children...)
	}

	return p.connectionShape(spec, set, w.offset, nodeSel.shape, propsShape), nil
}

// projectProperties projects relationship properties onto proj.
func (p *planner) projectProperties(props schema.Entity, set *ast.SelectionSet, proj *querytree.Projection) (*Shape, error) {
	shape := &Shape{Kind: ShapeObject, TypeName: props.TypeName()}
	for _, sf := range p.collectFields(set, props.TypeName()) {
		if sf.name == "__typename" {
			shape.add(sf.key, "", typenameShape)
			continue
		}
		f := props.Field(sf.name)
		if f == nil {
			return nil, gqlerrors.SchemaMismatch(props.TypeName(), "unknown field %s", sf.name)
		}
		if err := proj.AddProperty(sf.key, f.Property); err != nil {
			return nil, err
		}
		shape.add(sf.key, sf.key, valueShape)
	}
	return shape, nil
}

// connectionShape mirrors the connection selection. Every edges selection
// shares the merged node projection but only reads the keys it selected.
func (p *planner) connectionShape(spec connectionSpec, set *ast.SelectionSet, offset int, node, props *Shape) *Shape {
	shape := &Shape{Kind: ShapeConnection, TypeName: spec.connType, Offset: offset}
	for _, sf := range p.collectFields(set, "") {
		switch sf.name {
		case "__typename":
			shape.add(sf.key, "", typenameShape)
		case "totalCount":
			shape.add(sf.key, "totalCount", valueShape)
		case "pageInfo":
			info := &Shape{Kind: ShapePageInfo, TypeName: naming.PageInfoType}
			for _, pf := range p.collectFields(sf.set, "") {
				if pf.name == "__typename" {
					info.add(pf.key, "", typenameShape)
					continue
				}
				info.add(pf.key, pf.name, valueShape)
			}
			shape.add(sf.key, "", info)
		case "edges":
			edge := &Shape{Kind: ShapeEdge, TypeName: spec.edgeType}
			for _, ef := range p.collectFields(sf.set, "") {
				switch ef.name {
				case "__typename":
					edge.add(ef.key, "", typenameShape)
				case "cursor":
					edge.add(ef.key, "", cursorShape)
				case "node":
					edge.add(ef.key, "node", subsetShape(node, p.selectedKeys(ef.set, spec.targetType)))
				case "properties":
					edge.add(ef.key, "properties", subsetShape(props, p.selectedKeys(ef.set, "")))
				}
			}
			shape.add(sf.key, "edges", edge)
		}
	}
	return shape
}

// selectedKeys returns the response keys of set on typeName. An abstract
// type collects the keys of every concrete type.
func (p *planner) selectedKeys(set *ast.SelectionSet, typeName string) map[string]bool {
	keys := map[string]bool{}
	var fields []*selectedField
	if typeName != "" && p.schema.IsAbstract(typeName) {
		fields = p.abstractFields(set, typeName)
	} else {
		fields = p.collectFields(set, typeName)
	}
	for _, sf := range fields {
		keys[sf.key] = true
	}
	return keys
}

// subsetShape returns shape restricted to keys.
func subsetShape(shape *Shape, keys map[string]bool) *Shape {
	if shape == nil {
		return &Shape{Kind: ShapeObject}
	}
	out := *shape
	out.Fields = nil
	for _, f := range shape.Fields {
		if keys[f.Key] {
			out.Fields = append(out.Fields, f)
		}
	}
	return &out
}
