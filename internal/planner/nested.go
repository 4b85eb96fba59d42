package planner

import (
	"slices"

	"neo4j-graphql/internal/cypher"
	"neo4j-graphql/internal/filter"
	"neo4j-graphql/internal/gqlerrors"
	"neo4j-graphql/internal/querytree"
	"neo4j-graphql/internal/schema"
)

// Nested operations of one relationship update element, in the order they
// run.
var relationshipOps = []string{"update", "disconnect", "connect", "create", "delete"}

// writePattern is relPattern for CREATE and MERGE, which need a direction.
// Undirected relationships are written outgoing.
func writePattern(parent *cypher.Node, r *cypher.Relationship, rel *schema.Relationship, to cypher.NodeElement) *cypher.Pattern {
	dir := filter.PatternDirection(rel.Direction)
	if dir == cypher.Undirected {
		dir = cypher.Outgoing
	}
	return cypher.NewPattern(cypher.Bound(parent)).Related(r, rel.Type, dir, to)
}

// concreteInput resolves the node type a nested create writes. Interface
// targets key the node input by implementation.
func (p *planner) concreteInput(target string, input map[string]any) (*schema.Node, map[string]any, error) {
	if n := p.schema.Node(target); n != nil {
		return n, input, nil
	}
	iface := p.schema.Interface(target)
	if iface == nil {
		return nil, nil, gqlerrors.SchemaMismatch(target, "cannot create nodes of this type")
	}
	if len(input) != 1 {
		return nil, nil, gqlerrors.InvalidInput("create of %s needs exactly one implementation", target)
	}
	for name, v := range input {
		if !slices.Contains(iface.Implementations, name) {
			return nil, nil, gqlerrors.SchemaMismatch(target, "%s does not implement it", name)
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, nil, gqlerrors.InvalidInput("node.%s must be an object", name)
		}
		return p.schema.Node(name), m, nil
	}
	return nil, nil, nil
}

// setEdge writes the edge input and generated properties of r.
func (p *planner) setEdge(b *mutationBlock, r *cypher.Relationship, rel *schema.Relationship, input map[string]any) error {
	edge, err := objectArg(input, "edge")
	if err != nil {
		return err
	}
	props := p.relationshipProps(rel)
	if props == nil {
		if len(edge) > 0 {
			return gqlerrors.SchemaMismatch(rel.Type, "relationship has no properties")
		}
		return nil
	}
	values, _, err := createProperties(props, edge)
	if err != nil {
		return err
	}
	var items []cypher.SetItem
	if len(values) > 0 {
		items = append(items, cypher.SetItem{Target: r, Value: cypher.NewParam(values), Merge: true})
	}
	items = append(items, generatedItems(r, props, schema.OpCreate)...)
	if len(items) > 0 {
		b.add(&cypher.Set{Items: items})
	}
	return nil
}

// targetAfter adds the AFTER validation of op on a nested target.
func (p *planner) targetAfter(b *mutationBlock, t *cypher.Node, typeName string, op schema.Operation, written []string) error {
	scope := filter.NewScope(t)
	if p.schema.Node(typeName) != nil {
		scope.ConcreteType = typeName
	}
	pred, err := p.perType(scope, typeName, func(n *schema.Node) (cypher.Expr, error) {
		return p.validateAfter(scope, n, op, written)
	})
	if err != nil {
		return err
	}
	b.check(scope, pred)
	return nil
}

// parentAfter adds the AFTER validation of a relationship operation on the
// node it starts from.
func (p *planner) parentAfter(b *mutationBlock, parent *cypher.Node, node *schema.Node, op schema.Operation) error {
	scope, pred, err := p.parentAuth(parent, node, op, schema.After)
	if err != nil {
		return err
	}
	b.check(scope, pred)
	return nil
}

func (p *planner) parentBefore(b *mutationBlock, parent *cypher.Node, node *schema.Node, op schema.Operation) error {
	scope, pred, err := p.parentAuth(parent, node, op, schema.Before)
	if err != nil {
		return err
	}
	b.check(scope, pred)
	return nil
}

// nestedCreate creates a related node from {node, edge} and relates it to
// parent.
func (p *planner) nestedCreate(b *mutationBlock, parent *cypher.Node, parentNode *schema.Node, f *schema.Field, target string, input map[string]any, depth int) error {
	if err := p.checkDepth(depth); err != nil {
		return err
	}
	rel := f.Relationship
	nodeInput, err := objectArg(input, "node")
	if err != nil {
		return err
	}
	node, nodeInput, err := p.concreteInput(target, nodeInput)
	if err != nil {
		return err
	}
	props, written, err := createProperties(node, nodeInput)
	if err != nil {
		return err
	}
	authn, err := p.auth.Authentication(node.Authentication, schema.OpCreate)
	if err != nil {
		return err
	}

	body := &mutationBlock{}
	body.check(nil, authn)
	created := cypher.NewNode(node.Labels...)
	body.add(
		&cypher.Create{Patterns: []*cypher.Pattern{cypher.NewPattern(cypher.Labeled(created))}},
		&cypher.Set{Items: append([]cypher.SetItem{{Target: created, Value: cypher.NewParam(props), Merge: true}}, generatedItems(created, node, schema.OpCreate)...)},
	)
	p.recordEvent(body, EventCreate, created, cypher.Null, properties(created), node.Name)

	r := cypher.NewRelationship(rel.Type)
	body.add(&cypher.Create{Patterns: []*cypher.Pattern{writePattern(parent, r, rel, cypher.Bound(created))}})
	if err := p.setEdge(body, r, rel, input); err != nil {
		return err
	}
	p.recordEvent(body, EventCreateRelationship, r, cypher.Null, properties(r), rel.Type)

	if err := p.createRelationships(body, created, node, nodeInput, depth+1); err != nil {
		return err
	}
	p.assertCardinality(body, created, node, node.RelationshipFields())
	if err := p.targetAfter(body, created, node.Name, schema.OpCreate, written); err != nil {
		return err
	}
	if err := p.targetAfter(body, created, node.Name, schema.OpCreateRelationship, nil); err != nil {
		return err
	}
	if err := p.parentAfter(body, parent, parentNode, schema.OpCreateRelationship); err != nil {
		return err
	}
	p.nest(b, body, parent)
	return nil
}

// nestedConnect relates parent to the existing nodes matching
// {where: {node}, edge, connect}, then follows the nested connects from
// them.
func (p *planner) nestedConnect(b *mutationBlock, parent *cypher.Node, parentNode *schema.Node, f *schema.Field, target string, input map[string]any, depth int) error {
	if err := p.checkDepth(depth); err != nil {
		return err
	}
	rel := f.Relationship
	where, err := objectArg(input, "where")
	if err != nil {
		return err
	}
	nodeWhere, err := objectArg(where, "node")
	if err != nil {
		return err
	}

	body := &mutationBlock{}
	if err := p.parentBefore(body, parent, parentNode, schema.OpCreateRelationship); err != nil {
		return err
	}
	t, element, labelPred := p.filters.Related(target)
	scope := filter.NewScope(t)
	if p.schema.Node(target) != nil {
		scope.ConcreteType = target
	}
	pred, err := p.filters.Where(scope, target, nodeWhere)
	if err != nil {
		return err
	}
	auth, err := p.targetAuth(scope, target, nil, schema.OpCreateRelationship)
	if err != nil {
		return err
	}
	match := cypher.NewMatch(cypher.NewPattern(element))
	if len(scope.Calls()) == 0 {
		body.add(match.Where(cypher.And(labelPred, pred, auth)))
	} else {
		body.add(match)
		body.check(scope, cypher.And(labelPred, pred, auth))
	}

	r := cypher.NewRelationship(rel.Type)
	body.add(&cypher.Merge{Pattern: writePattern(parent, r, rel, cypher.Bound(t))})
	if err := p.setEdge(body, r, rel, input); err != nil {
		return err
	}
	p.recordEvent(body, EventCreateRelationship, r, cypher.Null, properties(r), rel.Type)

	nested, err := objectList("connect", input["connect"])
	if err != nil {
		return err
	}
	entity := p.schema.Entity(target)
	for _, connect := range nested {
		for _, key := range filter.SortedKeys(connect) {
			nf, err := relationshipField(entity, key)
			if err != nil {
				return err
			}
			err = p.forTargets(nf, connect[key], func(next string, v any) error {
				items, err := objectList(key, v)
				if err != nil {
					return err
				}
				for _, item := range items {
					if err := p.nestedConnect(body, t, p.schema.Node(target), nf, next, item, depth+1); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
	}

	if err := p.targetAfter(body, t, target, schema.OpCreateRelationship, nil); err != nil {
		return err
	}
	if err := p.parentAfter(body, parent, parentNode, schema.OpCreateRelationship); err != nil {
		return err
	}
	p.nest(b, body, parent)
	return nil
}

// nestedDisconnect deletes the relationships to the targets matching
// {where: {node, edge}}, after following the nested disconnects.
func (p *planner) nestedDisconnect(b *mutationBlock, parent *cypher.Node, parentNode *schema.Node, f *schema.Field, target string, input map[string]any, depth int) error {
	if err := p.checkDepth(depth); err != nil {
		return err
	}
	where, err := objectArg(input, "where")
	if err != nil {
		return err
	}
	body := &mutationBlock{}
	if err := p.parentBefore(body, parent, parentNode, schema.OpDeleteRelationship); err != nil {
		return err
	}
	t, r, err := p.matchTarget(body, parent, f, target, where, schema.OpDeleteRelationship, nil)
	if err != nil {
		return err
	}
	p.recordEvent(body, EventDeleteRelationship, r, properties(r), cypher.Null, f.Relationship.Type)

	nested, err := objectArg(input, "disconnect")
	if err != nil {
		return err
	}
	entity := p.schema.Entity(target)
	for _, key := range filter.SortedKeys(nested) {
		nf, err := relationshipField(entity, key)
		if err != nil {
			return err
		}
		err = p.forTargets(nf, nested[key], func(next string, v any) error {
			items, err := objectList(key, v)
			if err != nil {
				return err
			}
			for _, item := range items {
				if err := p.nestedDisconnect(body, t, p.schema.Node(target), nf, next, item, depth+1); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	body.add(&cypher.Delete{Exprs: []cypher.Expr{r}})
	if err := p.targetAfter(body, t, target, schema.OpDeleteRelationship, nil); err != nil {
		return err
	}
	if err := p.parentAfter(body, parent, parentNode, schema.OpDeleteRelationship); err != nil {
		return err
	}
	p.nest(b, body, parent)
	return nil
}

// nestedUpdate updates the targets matching {where: {node, edge}} with
// {update: {node, edge}}.
func (p *planner) nestedUpdate(b *mutationBlock, parent *cypher.Node, f *schema.Field, target string, element map[string]any, depth int) error {
	if err := p.checkDepth(depth); err != nil {
		return err
	}
	where, err := objectArg(element, "where")
	if err != nil {
		return err
	}
	update, err := objectArg(element, "update")
	if err != nil {
		return err
	}
	nodeUpdate, err := objectArg(update, "node")
	if err != nil {
		return err
	}
	edgeUpdate, err := objectArg(update, "edge")
	if err != nil {
		return err
	}
	entity := p.schema.Entity(target)
	if entity == nil {
		return gqlerrors.SchemaMismatch(target, "cannot update nodes of this type")
	}

	body := &mutationBlock{}
	t, r, err := p.matchTarget(body, parent, f, target, where, schema.OpUpdate, updatedFields(entity, nodeUpdate))
	if err != nil {
		return err
	}
	if len(edgeUpdate) > 0 {
		props := p.relationshipProps(f.Relationship)
		if props == nil {
			return gqlerrors.SchemaMismatch(f.Relationship.Type, "relationship has no properties")
		}
		items, _, err := p.updateItems(r, props, edgeUpdate)
		if err != nil {
			return err
		}
		items = append(items, generatedItems(r, props, schema.OpUpdate)...)
		if len(items) > 0 {
			body.add(&cypher.Set{Items: items})
		}
	}
	if _, err := p.applyUpdate(body, t, entity, nodeUpdate, depth+1); err != nil {
		return err
	}
	p.nest(b, body, parent)
	return nil
}

// nestedDelete deletes the targets matching {where: {node, edge}} after
// the nested deletes under {delete}.
func (p *planner) nestedDelete(b *mutationBlock, parent *cypher.Node, f *schema.Field, target string, input map[string]any, depth int) error {
	if err := p.checkDepth(depth); err != nil {
		return err
	}
	where, err := objectArg(input, "where")
	if err != nil {
		return err
	}
	nested, err := objectArg(input, "delete")
	if err != nil {
		return err
	}
	body := &mutationBlock{}
	t, _, err := p.matchTarget(body, parent, f, target, where, schema.OpDelete, nil)
	if err != nil {
		return err
	}
	p.recordEvent(body, EventDelete, t, properties(t), cypher.Null, target)
	if err := p.deleteRelationships(body, t, p.schema.Entity(target), nested, depth+1); err != nil {
		return err
	}
	summary := p.detachDelete(body, t)

	as := cypher.NewVariable()
	body.add(cypher.NewReturn(cypher.As(summary, as)))
	b.addNodes(&querytree.Assign{Body: body.steps, Imports: []cypher.Expr{parent}})
	if p.opts.subscriptions {
		b.events = append(b.events, as)
	}
	return nil
}

// deleteRelationships plans a delete input ({field: [{where, delete}]})
// on subject.
func (p *planner) deleteRelationships(b *mutationBlock, subject *cypher.Node, entity schema.Entity, input map[string]any, depth int) error {
	for _, key := range filter.SortedKeys(input) {
		f, err := relationshipField(entity, key)
		if err != nil {
			return err
		}
		err = p.forTargets(f, input[key], func(target string, v any) error {
			items, err := objectList(key, v)
			if err != nil {
				return err
			}
			for _, item := range items {
				if err := p.nestedDelete(b, subject, f, target, item, depth); err != nil {
					return err
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

// detachDelete collects the rows of b and deletes them once every nested
// delete has run. It returns the summary of the block: the deleted count,
// or its events.
func (p *planner) detachDelete(b *mutationBlock, subject *cypher.Node) cypher.Expr {
	deleted := cypher.NewVariable()
	items := []cypher.Item{cypher.As(cypher.CollectDistinct(subject), deleted)}
	var summary cypher.Expr = cypher.Size(deleted)
	if p.opts.subscriptions {
		events := cypher.NewVariable()
		items = append(items, cypher.As(flatten(cypher.Collect(b.rowEvents())), events))
		summary = events
	}
	b.add(cypher.NewWith(items...))
	x := cypher.NewVariable()
	b.add(cypher.NewCall(cypher.Concat(
		&cypher.Unwind{Expr: deleted, As: x},
		&cypher.Delete{Exprs: []cypher.Expr{x}, Detach: true},
	), deleted))
	return summary
}

// updatedFields returns the fields an update input writes.
func updatedFields(entity schema.Entity, input map[string]any) []string {
	var names []string
	for _, key := range filter.SortedKeys(input) {
		name, _ := splitUpdateKey(entity, key)
		if f := entity.Field(name); f != nil && f.Kind != schema.KindRelationship && !slices.Contains(names, f.Name) {
			names = append(names, f.Name)
		}
	}
	return names
}

// applyUpdate writes an update input to subject: the scalar SET, then the
// relationship operations, then cardinality and AFTER validation.
func (p *planner) applyUpdate(b *mutationBlock, subject *cypher.Node, entity schema.Entity, input map[string]any, depth int) ([]string, error) {
	items, written, err := p.updateItems(subject, entity, input)
	if err != nil {
		return nil, err
	}
	node := p.schema.Node(entity.TypeName())
	if len(items) > 0 {
		if node != nil {
			items = append(items, generatedItems(subject, node, schema.OpUpdate)...)
		}
		var old cypher.Expr = cypher.Null
		if p.opts.subscriptions {
			v := cypher.NewVariable()
			b.add(cypher.WithAll(cypher.As(properties(subject), v)))
			old = v
		}
		b.add(&cypher.Set{Items: items})
		p.recordEvent(b, EventUpdate, subject, old, properties(subject), entity.TypeName())
	}

	touched, err := p.updateRelationships(b, subject, entity, input, depth)
	if err != nil {
		return nil, err
	}
	if node != nil {
		p.assertCardinality(b, subject, node, touched)
	}
	if err := p.targetAfter(b, subject, entity.TypeName(), schema.OpUpdate, written); err != nil {
		return nil, err
	}
	return written, nil
}

// updateRelationships plans the relationship fields of an update input:
// {field: [{where, update, disconnect, connect, create, delete}]}. It
// returns the fields touched.
func (p *planner) updateRelationships(b *mutationBlock, subject *cypher.Node, entity schema.Entity, input map[string]any, depth int) ([]*schema.Field, error) {
	parent := p.schema.Node(entity.TypeName())
	var touched []*schema.Field
	for _, key := range filter.SortedKeys(input) {
		f := entity.Field(key)
		if f == nil || f.Kind != schema.KindRelationship || input[key] == nil {
			continue
		}
		touched = append(touched, f)
		err := p.forTargets(f, input[key], func(target string, v any) error {
			elements, err := objectList(key, v)
			if err != nil {
				return err
			}
			for _, el := range elements {
				if err := p.relationshipUpdate(b, subject, parent, f, target, el, depth); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return touched, nil
}

// relationshipUpdate plans one element of a relationship update.
func (p *planner) relationshipUpdate(b *mutationBlock, subject *cypher.Node, parent *schema.Node, f *schema.Field, target string, el map[string]any, depth int) error {
	for key := range el {
		if key != "where" && !slices.Contains(relationshipOps, key) {
			return gqlerrors.SchemaMismatch(f.Name, "unknown relationship operation %s", key)
		}
	}
	for _, op := range relationshipOps {
		if el[op] == nil {
			continue
		}
		if op == "update" {
			if err := p.nestedUpdate(b, subject, f, target, el, depth); err != nil {
				return err
			}
			continue
		}
		if err := p.relationshipOp(b, subject, parent, f, target, op, el[op], depth); err != nil {
			return err
		}
	}
	return nil
}

// relationshipOp plans a list of disconnect, connect, create or delete
// inputs for one relationship target.
func (p *planner) relationshipOp(b *mutationBlock, subject *cypher.Node, parent *schema.Node, f *schema.Field, target, op string, value any, depth int) error {
	items, err := objectList(f.Name+"."+op, value)
	if err != nil {
		return err
	}
	for _, item := range items {
		switch op {
		case "disconnect":
			err = p.nestedDisconnect(b, subject, parent, f, target, item, depth)
		case "connect":
			err = p.nestedConnect(b, subject, parent, f, target, item, depth)
		case "create":
			err = p.nestedCreate(b, subject, parent, f, target, item, depth)
		case "delete":
			err = p.nestedDelete(b, subject, f, target, item, depth)
		default:
			err = gqlerrors.SchemaMismatch(f.Name, "unknown relationship operation %s", op)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
