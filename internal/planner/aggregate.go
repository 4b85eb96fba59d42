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

// aggregateSource builds a fresh match for one aggregation, returning the
// read and the traversed relationship (nil at the root).
type aggregateSource func() (*querytree.Read, *cypher.Relationship, error)

// aggregateResult is a planned aggregate selection: one subquery per
// component, and the map assembling their results.
type aggregateResult struct {
	steps []querytree.Node
	value *cypher.Map
	shape *Shape
}

// planAggregate plans a root aggregate field such as
// moviesAggregate(where) { count title { longest } }.
func (p *planner) planAggregate(field *ast.Field, typeName string) (*Plan, error) {
	entity := p.schema.Entity(typeName)
	if entity == nil {
		return nil, gqlerrors.SchemaMismatch(typeName, "unknown node type")
	}
	where, err := objectArg(p.args(field), "where")
	if err != nil {
		return nil, err
	}
	source := func() (*querytree.Read, *cypher.Relationship, error) {
		target := cypher.NewNode(p.schema.Labels(typeName)...)
		read := querytree.NewRead(target, cypher.NewPattern(cypher.Labeled(target)))
		if p.schema.IsAbstract(typeName) {
			read.AddFilter(p.filters.LabelPredicate(target, typeName))
		}
		if err := p.filterAggregateSource(read, typeName, where); err != nil {
			return nil, nil, err
		}
		return read, nil, nil
	}

	res := &aggregateResult{value: cypher.NewMap(), shape: &Shape{Kind: ShapeObject, TypeName: naming.AggregateSelectionType(typeName)}}
	for _, sf := range p.collectFields(field.SelectionSet, "") {
		switch sf.name {
		case "__typename":
			res.shape.add(sf.key, "", typenameShape)
		case "count":
			if err := p.aggregateCount(res, sf, source, nil); err != nil {
				return nil, err
			}
		default:
			f := entity.Field(sf.name)
			if f == nil {
				return nil, gqlerrors.SchemaMismatch(typeName, "unknown aggregate field %s", sf.name)
			}
			value, shape, steps, err := p.aggregateField(f, sf, source, false, nil)
			if err != nil {
				return nil, err
			}
			res.steps = append(res.steps, steps...)
			res.value.Set(sf.key, value)
			res.shape.add(sf.key, sf.key, shape)
		}
	}

	root := append(querytree.Steps{}, res.steps...)
	root = append(root, querytree.Clauses{cypher.NewReturn(cypher.As(res.value, cypher.NamedVariable(RootColumn)))})
	plan, err := p.emit(field, schema.RootAggregate, typeName, root)
	if err != nil {
		return nil, err
	}
	plan.Column, plan.Shape = RootColumn, res.shape
	return plan, nil
}

// relationshipAggregate plans <field>Aggregate on a node: count, node and
// edge aggregates over the related targets.
func (p *planner) relationshipAggregate(parent *filter.Scope, owner string, f *schema.Field, sf *selectedField) (querytree.Node, cypher.Expr, *Shape, error) {
	rel := f.Relationship
	where, err := objectArg(p.args(sf.field), "where")
	if err != nil {
		return nil, nil, nil, err
	}
	imports := []cypher.Expr{parent.Node()}
	source := func() (*querytree.Read, *cypher.Relationship, error) {
		target, element, labelPred := p.filters.Related(rel.Target)
		relVar := cypher.NewRelationship(rel.Type)
		read := querytree.NewRead(target, relPattern(parent.Node(), relVar, rel, element))
		read.AddFilter(labelPred)
		if err := p.filterAggregateSource(read, rel.Target, where); err != nil {
			return nil, nil, err
		}
		return read, relVar, nil
	}

	res := &aggregateResult{value: cypher.NewMap(), shape: &Shape{Kind: ShapeObject, TypeName: naming.RelationshipAggregateType(owner, rel.Target, f.Name)}}
	for _, af := range p.collectFields(sf.set, "") {
		switch af.name {
		case "__typename":
			res.shape.add(af.key, "", typenameShape)
		case "count":
			if err := p.aggregateCount(res, af, source, imports); err != nil {
				return nil, nil, nil, err
			}
		case "node", "edge":
			var entity schema.Entity
			part := "Node"
			if af.name == "node" {
				entity = p.schema.Entity(rel.Target)
			} else {
				part = "Edge"
				if rel.Properties != "" {
					if rp := p.schema.RelationshipProperties(rel.Properties); rp != nil {
						entity = rp
					}
				}
			}
			if entity == nil {
				return nil, nil, nil, gqlerrors.SchemaMismatch(f.Name, "no fields to aggregate on %s", af.name)
			}
			partValue := cypher.NewMap()
			partShape := &Shape{Kind: ShapeObject, TypeName: naming.RelationshipAggregatePartType(owner, rel.Target, f.Name, part)}
			for _, pf := range p.collectFields(af.set, "") {
				if pf.name == "__typename" {
					partShape.add(pf.key, "", typenameShape)
					continue
				}
				field := entity.Field(pf.name)
				if field == nil {
					return nil, nil, nil, gqlerrors.SchemaMismatch(entity.TypeName(), "unknown aggregate field %s", pf.name)
				}
				value, shape, steps, err := p.aggregateField(field, pf, source, af.name == "edge", imports)
				if err != nil {
					return nil, nil, nil, err
				}
				res.steps = append(res.steps, steps...)
				partValue.Set(pf.key, value)
				partShape.add(pf.key, pf.key, shape)
			}
			res.value.Set(af.key, partValue)
			res.shape.add(af.key, af.key, partShape)
		default:
			return nil, nil, nil, gqlerrors.SchemaMismatch(f.Name, "unknown aggregate selection %s", af.name)
		}
	}
	if len(res.steps) == 0 {
		return nil, res.value, res.shape, nil
	}
	return querytree.Steps(res.steps), res.value, res.shape, nil
}

// filterAggregateSource applies the where input and the AGGREGATE
// authorization of typeName to an aggregation match.
func (p *planner) filterAggregateSource(read *querytree.Read, typeName string, where map[string]any) error {
	scope := filter.NewScope(read.Target)
	if !p.schema.IsAbstract(typeName) {
		scope.ConcreteType = typeName
	}
	pred, err := p.filters.Where(scope, typeName, where)
	if err != nil {
		return err
	}
	var auth cypher.Expr
	if p.schema.IsAbstract(typeName) {
		auth, err = p.abstractReadAuth(scope, typeName, nil, schema.OpAggregate)
	} else {
		auth, err = p.readAuth(scope, typeName, nil, schema.OpAggregate)
	}
	if err != nil {
		return err
	}
	read.AddFilter(pred)
	read.AddFilter(auth)
	read.PreFilter = append(read.PreFilter, scope.Calls()...)
	return nil
}

func (p *planner) aggregateCount(res *aggregateResult, sf *selectedField, source aggregateSource, imports []cypher.Expr) error {
	read, _, err := source()
	if err != nil {
		return err
	}
	as := cypher.NewVariable()
	agg := &querytree.Aggregation{Source: read, Kind: querytree.AggregateCount, As: as}
	res.steps = append(res.steps, &querytree.Assign{Body: agg, Imports: imports})
	res.value.Set(sf.key, as)
	res.shape.add(sf.key, sf.key, valueShape)
	return nil
}

// aggregateField plans the aggregate of one scalar field. onEdge reads
// the field from the relationship instead of the target node.
func (p *planner) aggregateField(f *schema.Field, sf *selectedField, source aggregateSource, onEdge bool, imports []cypher.Expr) (cypher.Expr, *Shape, []querytree.Node, error) {
	kind, allowed, ok := aggregateKind(f)
	if !ok {
		return nil, nil, nil, gqlerrors.SchemaMismatch(f.Name, "field of type %s cannot be aggregated", f.Type.Name)
	}
	shape := &Shape{Kind: ShapeObject, TypeName: naming.FieldAggregateType(f.Type.Name)}
	var ops []string
	seen := map[string]bool{}
	for _, of := range p.collectFields(sf.set, "") {
		if of.name == "__typename" {
			shape.add(of.key, "", typenameShape)
			continue
		}
		if !allowed[of.name] {
			return nil, nil, nil, gqlerrors.SchemaMismatch(f.Name, "unknown aggregate %s", of.name)
		}
		shape.add(of.key, of.name, valueShape)
		if !seen[of.name] {
			seen[of.name] = true
			ops = append(ops, of.name)
		}
	}
	if len(ops) == 0 {
		return cypher.NewMap(), shape, nil, nil
	}

	read, rel, err := source()
	if err != nil {
		return nil, nil, nil, err
	}
	var subject cypher.Expr = read.Target
	if onEdge {
		if rel == nil {
			return nil, nil, nil, gqlerrors.SchemaMismatch(f.Name, "edge aggregate without a relationship")
		}
		subject = rel
	}
	as := cypher.NewVariable()
	agg := &querytree.Aggregation{
		Source: read,
		Kind:   kind,
		Expr:   filter.FieldExpr(subject, f),
		Ops:    ops,
		As:     as,
	}
	return as, shape, []querytree.Node{&querytree.Assign{Body: agg, Imports: imports}}, nil
}

var (
	stringAggregates   = map[string]bool{"longest": true, "shortest": true}
	numericAggregates  = map[string]bool{"min": true, "max": true, "average": true, "sum": true}
	temporalAggregates = map[string]bool{"min": true, "max": true}
)

// aggregateKind returns how a field type aggregates and which components
// it offers.
func aggregateKind(f *schema.Field) (querytree.AggregationKind, map[string]bool, bool) {
	if f.IsList() || f.Kind == schema.KindRelationship || f.Kind == schema.KindCypher {
		return 0, nil, false
	}
	switch f.Type.Name {
	case "String", "ID":
		return querytree.AggregateString, stringAggregates, true
	case "Int", "Float", "BigInt":
		return querytree.AggregateNumeric, numericAggregates, true
	case "DateTime", "LocalDateTime", "Date", "Time", "LocalTime", "Duration":
		return querytree.AggregateNumeric, temporalAggregates, true
	}
	return 0, nil, false
}
