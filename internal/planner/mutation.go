package planner

import (
	"fmt"
	"slices"
	"strings"

	"github.com/graphql-go/graphql/language/ast"

	"neo4j-graphql/internal/cypher"
	"neo4j-graphql/internal/filter"
	"neo4j-graphql/internal/gqlerrors"
	"neo4j-graphql/internal/naming"
	"neo4j-graphql/internal/querytree"
	"neo4j-graphql/internal/scalars"
	"neo4j-graphql/internal/schema"
)

// Change event kinds returned next to mutation results.
const (
	EventCreate             = "create"
	EventUpdate             = "update"
	EventDelete             = "delete"
	EventCreateRelationship = "create_relationship"
	EventDeleteRelationship = "delete_relationship"
)

// Counters reported by ShapeInfo fields.
const (
	CounterNodesCreated         = "nodesCreated"
	CounterNodesDeleted         = "nodesDeleted"
	CounterRelationshipsCreated = "relationshipsCreated"
	CounterRelationshipsDeleted = "relationshipsDeleted"
)

var infoCounters = []string{
	CounterNodesCreated,
	CounterNodesDeleted,
	CounterRelationshipsCreated,
	CounterRelationshipsDeleted,
}

// mutationBlock collects the clauses of one mutation scope. Rows of the
// block are the nodes it affects; events holds the list expressions of the
// change events each row produced.
type mutationBlock struct {
	steps  querytree.Steps
	events []cypher.Expr
}

func (b *mutationBlock) add(clauses ...cypher.Clause) {
	if len(clauses) > 0 {
		b.steps = append(b.steps, querytree.Clauses(slices.Clone(clauses)))
	}
}

func (b *mutationBlock) addNodes(nodes ...querytree.Node) {
	b.steps = append(b.steps, nodes...)
}

// check drops, or fails through apoc validation, the rows not matching pred.
func (b *mutationBlock) check(scope *filter.Scope, pred cypher.Expr) {
	if scope != nil {
		b.add(scope.Calls()...)
	}
	if pred != nil {
		b.add(cypher.WithAll().Where(pred))
	}
}

// rowEvents concatenates the event lists of the current row.
func (b *mutationBlock) rowEvents() cypher.Expr {
	if len(b.events) == 0 {
		return cypher.List()
	}
	out := b.events[0]
	for _, e := range b.events[1:] {
		out = cypher.Plus(out, e)
	}
	return out
}

// flatten concatenates a list of lists.
func flatten(lists cypher.Expr) cypher.Expr {
	acc, e := cypher.NewVariable(), cypher.NewVariable()
	return &cypher.Reduce{Accumulator: acc, Init: cypher.List(), Variable: e, In: lists, Expr: cypher.Plus(acc, e)}
}

// recordEvent binds a change event for the current row when events are
// requested.
func (p *planner) recordEvent(b *mutationBlock, kind string, entity, before, after cypher.Expr, typeName string) {
	if !p.opts.subscriptions {
		return
	}
	ev := cypher.NewVariable()
	event := cypher.NewMap().
		Set("event", cypher.Lit(kind)).
		Set("entityId", cypher.ElementID(entity)).
		Set("typename", cypher.Lit(typeName)).
		Set("properties", cypher.NewMap().Set("old", before).Set("new", after)).
		Set("timestamp", cypher.Timestamp())
	b.add(cypher.WithAll(cypher.As(event, ev)))
	b.events = append(b.events, cypher.List(ev))
}

// nest runs body as a subquery of b. The subquery aggregates to exactly one
// row, so rows of b survive when body matches nothing.
func (p *planner) nest(b, body *mutationBlock, imports ...cypher.Expr) {
	as := cypher.NewVariable()
	summary := cypher.CountAll()
	if p.opts.subscriptions {
		summary = flatten(cypher.Collect(body.rowEvents()))
	}
	steps := append(slices.Clone(body.steps), querytree.Clauses{cypher.NewReturn(cypher.As(summary, as))})
	b.addNodes(&querytree.Assign{Body: steps, Imports: imports})
	if p.opts.subscriptions {
		b.events = append(b.events, as)
	}
}

func (p *planner) checkDepth(depth int) error {
	if depth > p.opts.maxMutationDepth {
		return fmt.Errorf("depth %d exceeds %d: %w", depth, p.opts.maxMutationDepth, gqlerrors.ErrMutationTooDeep)
	}
	return nil
}

func properties(entity cypher.Expr) cypher.Expr {
	return cypher.Fn("properties", entity)
}

// storedValue coerces an input value of f into a parameter value.
func storedValue(f *schema.Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	out, err := scalars.Coerce(f.Type.Name, v)
	if err != nil {
		return nil, gqlerrors.InvalidInput("%s: %v", f.Name, err)
	}
	return out, nil
}

// writable returns the field behind an input key, rejecting fields the
// database computes.
func writable(entity schema.Entity, name string) (*schema.Field, error) {
	f := entity.Field(name)
	if f == nil {
		return nil, gqlerrors.SchemaMismatch(entity.TypeName(), "unknown input field %s", name)
	}
	switch {
	case f.Kind == schema.KindCypher:
		return nil, gqlerrors.SchemaMismatch(entity.TypeName(), "@cypher field %s cannot be written", name)
	case f.ID:
		return nil, gqlerrors.SchemaMismatch(entity.TypeName(), "%s is generated by @id", name)
	}
	return f, nil
}

// createProperties converts create input into stored properties, filling
// @default values. Relationship fields are skipped; the written field
// names are returned for field-level authorization.
func createProperties(entity schema.Entity, input map[string]any) (map[string]any, []string, error) {
	props := map[string]any{}
	var written []string
	for _, key := range filter.SortedKeys(input) {
		f, err := writable(entity, key)
		if err != nil {
			return nil, nil, err
		}
		if f.Kind == schema.KindRelationship {
			continue
		}
		v, err := storedValue(f, input[key])
		if err != nil {
			return nil, nil, err
		}
		props[f.Property] = v
		written = append(written, f.Name)
	}
	for _, f := range entity.Fields() {
		if !f.HasDefault || slices.Contains(written, f.Name) {
			continue
		}
		v, err := storedValue(f, f.Default)
		if err != nil {
			return nil, nil, err
		}
		props[f.Property] = v
	}
	return props, written, nil
}

// generatedItems sets @id values on create and @timestamp values for op.
func generatedItems(subject cypher.Expr, entity schema.Entity, op schema.Operation) []cypher.SetItem {
	var items []cypher.SetItem
	for _, f := range entity.Fields() {
		if f.ID && op == schema.OpCreate {
			items = append(items, cypher.SetItem{Target: cypher.Prop(subject, f.Property), Value: cypher.RandomUUID()})
		}
		if slices.Contains(f.Timestamps, op) {
			items = append(items, cypher.SetItem{Target: cypher.Prop(subject, f.Property), Value: temporalNow(f.Type.Name)})
		}
	}
	return items
}

func temporalNow(typeName string) cypher.Expr {
	switch typeName {
	case "Date":
		return cypher.Fn("date")
	case "Time":
		return cypher.Fn("time")
	case "LocalTime":
		return cypher.Fn("localtime")
	case "LocalDateTime":
		return cypher.Fn("localdatetime")
	}
	return cypher.Fn("datetime")
}

var updateOperators = []string{"INCREMENT", "DECREMENT", "ADD", "SUBTRACT", "MULTIPLY", "DIVIDE", "PUSH", "POP"}

// splitUpdateKey splits an update input key into field and operator.
func splitUpdateKey(entity schema.Entity, key string) (string, string) {
	if entity.Field(key) != nil {
		return key, ""
	}
	for _, op := range updateOperators {
		if name, ok := strings.CutSuffix(key, "_"+op); ok {
			return name, op
		}
	}
	return key, ""
}

// updateItems compiles the scalar part of an update input into SET items.
// Two keys writing the same field are ambiguous.
func (p *planner) updateItems(subject cypher.Expr, entity schema.Entity, input map[string]any) ([]cypher.SetItem, []string, error) {
	var (
		items   []cypher.SetItem
		written []string
	)
	targeted := map[string]string{}
	for _, key := range filter.SortedKeys(input) {
		name, op := splitUpdateKey(entity, key)
		f, err := writable(entity, name)
		if err != nil {
			return nil, nil, err
		}
		if f.Kind == schema.KindRelationship {
			continue
		}
		if prev, ok := targeted[f.Name]; ok {
			return nil, nil, fmt.Errorf("%s and %s both write %s.%s: %w", prev, key, entity.TypeName(), f.Name, gqlerrors.ErrAmbiguousMutation)
		}
		targeted[f.Name] = key
		item, err := updateItem(cypher.Prop(subject, f.Property), f, op, input[key])
		if err != nil {
			return nil, nil, err
		}
		items = append(items, item)
		written = append(written, f.Name)
	}
	return items, written, nil
}

func updateItem(prop cypher.Expr, f *schema.Field, op string, value any) (cypher.SetItem, error) {
	item := cypher.SetItem{Target: prop}
	switch op {
	case "":
		v, err := storedValue(f, value)
		if err != nil {
			return item, err
		}
		item.Value = cypher.NewParam(v)
		return item, nil
	case "PUSH", "POP":
		if !f.IsList() {
			return item, gqlerrors.SchemaMismatch(f.Name, "_%s needs a list field", op)
		}
		if op == "POP" {
			n, _, err := intValue(f.Name+"_POP", value)
			if err != nil {
				return item, err
			}
			item.Value = cypher.Slice{Of: prop, From: cypher.Lit(0), To: cypher.Minus(cypher.Size(prop), cypher.NewParam(int64(n)))}
			return item, nil
		}
		if _, ok := value.([]any); !ok {
			value = []any{value}
		}
		v, err := storedValue(f, value)
		if err != nil {
			return item, err
		}
		item.Value = cypher.Plus(cypher.Coalesce(prop, cypher.List()), cypher.NewParam(v))
		return item, nil
	}

	numeric := f.Type.Name == "Int" || f.Type.Name == "BigInt"
	if op == "ADD" || op == "SUBTRACT" || op == "MULTIPLY" || op == "DIVIDE" {
		numeric = f.Type.Name == "Float"
	}
	if !numeric || f.IsList() {
		return item, gqlerrors.SchemaMismatch(f.Name, "_%s is not available on %s", op, f.Type.Name)
	}
	v, err := storedValue(f, value)
	if err != nil {
		return item, err
	}
	if v == nil {
		return item, gqlerrors.InvalidInput("%s_%s must not be null", f.Name, op)
	}
	param := cypher.NewParam(v)
	switch op {
	case "INCREMENT", "ADD":
		item.Value = cypher.Plus(prop, param)
	case "DECREMENT", "SUBTRACT":
		item.Value = cypher.Minus(prop, param)
	case "MULTIPLY":
		item.Value = cypher.Multiply(prop, param)
	case "DIVIDE":
		item.Value = cypher.Divide(prop, param)
	}
	return item, nil
}

// assertCardinality fails the statement when a single relationship of
// subject is missing while required, or connected more than once.
func (p *planner) assertCardinality(b *mutationBlock, subject *cypher.Node, node *schema.Node, fields []*schema.Field) {
	for _, f := range fields {
		if f.Kind != schema.KindRelationship || f.IsList() {
			continue
		}
		rel := f.Relationship
		r := cypher.NewRelationship(rel.Type)
		count := cypher.NewVariable()
		ok, detail := cypher.Lte(count, cypher.Lit(1)), "must be connected at most once"
		if f.Required() {
			ok, detail = cypher.Eq(count, cypher.Lit(1)), "must be connected exactly once"
		}
		body := cypher.Concat(
			cypher.NewMatch(relPattern(subject, r, rel, cypher.Anonymous(p.schema.Labels(rel.Target)...))),
			cypher.NewWith(cypher.As(cypher.Count(r), count)).
				Where(cypher.ValidatePredicate(cypher.Not(ok), gqlerrors.CardinalityMessage(node.Name, f.Name, detail))),
			cypher.NewReturn(cypher.As(count, cypher.NewVariable())),
		)
		b.add(cypher.NewCall(body, subject))
	}
}

// validateAfter returns the AFTER validate checks of node for op, with the
// field-level rules of the written fields.
func (p *planner) validateAfter(scope *filter.Scope, node *schema.Node, op schema.Operation, written []string) (cypher.Expr, error) {
	var preds []cypher.Expr
	for _, r := range p.rulesFor(node) {
		check, err := p.auth.Validate(scope, r.name, r.auth, op, schema.After)
		if err != nil {
			return nil, err
		}
		preds = append(preds, check)
	}
	fieldCheck, err := p.auth.Fields(scope, node, written, op, schema.After)
	if err != nil {
		return nil, err
	}
	preds = append(preds, fieldCheck)
	return cypher.And(preds...), nil
}

// perType compiles check for typeName. An interface or union target runs
// the check of each concrete type behind a label test; nil means no type
// is guarded.
func (p *planner) perType(scope *filter.Scope, typeName string, check func(*schema.Node) (cypher.Expr, error)) (cypher.Expr, error) {
	if n := p.schema.Node(typeName); n != nil {
		return check(n)
	}
	var branches []cypher.Expr
	guarded := false
	for _, n := range p.schema.ConcreteTypes(typeName) {
		pred, err := check(n)
		if err != nil {
			return nil, err
		}
		if pred != nil {
			guarded = true
		}
		branches = append(branches, cypher.And(cypher.HasLabels(scope.Node(), n.Labels...), pred))
	}
	if !guarded {
		return nil, nil
	}
	return cypher.Or(branches...), nil
}

// targetAuth returns the authentication, filter and BEFORE validate checks
// for applying op to a matched target of typeName.
func (p *planner) targetAuth(scope *filter.Scope, typeName string, fields []string, op schema.Operation) (cypher.Expr, error) {
	return p.perType(scope, typeName, func(n *schema.Node) (cypher.Expr, error) {
		return p.readAuth(scope, n.Name, fields, op)
	})
}

// parentAuth returns the checks a relationship operation applies to the
// node the relationship starts from.
func (p *planner) parentAuth(parent *cypher.Node, node *schema.Node, op schema.Operation, when schema.When) (*filter.Scope, cypher.Expr, error) {
	if node == nil {
		return nil, nil, nil
	}
	scope := filter.NewScope(parent)
	scope.ConcreteType = node.Name
	if when == schema.After {
		pred, err := p.validateAfter(scope, node, op, nil)
		return scope, pred, err
	}
	authn, err := p.auth.Authentication(node.Authentication, op)
	if err != nil {
		return nil, nil, err
	}
	preds := []cypher.Expr{authn}
	for _, r := range p.rulesFor(node) {
		check, err := p.auth.Validate(scope, r.name, r.auth, op, schema.Before)
		if err != nil {
			return nil, nil, err
		}
		preds = append(preds, check)
	}
	return scope, cypher.And(preds...), nil
}

// matchTarget matches the targets of f from parent filtered by where
// ({node, edge}) and the target authorization for op.
func (p *planner) matchTarget(b *mutationBlock, parent *cypher.Node, f *schema.Field, target string, where map[string]any, op schema.Operation, fields []string) (*cypher.Node, *cypher.Relationship, error) {
	rel := f.Relationship
	t, element, labelPred := p.filters.Related(target)
	r := cypher.NewRelationship(rel.Type)
	nodeScope := filter.NewScope(t)
	if p.schema.Node(target) != nil {
		nodeScope.ConcreteType = target
	}
	edgeScope := filter.NewEdgeScope(r)
	pred, err := p.relationshipWhere(nodeScope, edgeScope, rel, target, where)
	if err != nil {
		return nil, nil, err
	}
	auth, err := p.targetAuth(nodeScope, target, fields, op)
	if err != nil {
		return nil, nil, err
	}
	match := cypher.NewMatch(relPattern(parent, r, rel, element))
	calls := append(slices.Clone(nodeScope.Calls()), edgeScope.Calls()...)
	if len(calls) == 0 {
		b.add(match.Where(cypher.And(labelPred, pred, auth)))
	} else {
		b.add(match)
		b.add(calls...)
		b.check(nil, cypher.And(labelPred, pred, auth))
	}
	return t, r, nil
}

// relationshipWhere compiles a {node, edge} where input of a nested
// operation. target is the concrete member for union relationships.
func (p *planner) relationshipWhere(nodeScope, edgeScope *filter.Scope, rel *schema.Relationship, target string, where map[string]any) (cypher.Expr, error) {
	var preds []cypher.Expr
	for _, key := range filter.SortedKeys(where) {
		value := where[key]
		var (
			pred cypher.Expr
			err  error
		)
		switch key {
		case "AND", "OR", "NOT":
			pred, err = filter.Combine(key, value, func(m map[string]any) (cypher.Expr, error) {
				return p.relationshipWhere(nodeScope, edgeScope, rel, target, m)
			})
		case "node":
			m, ok := value.(map[string]any)
			if !ok && value != nil {
				return nil, gqlerrors.InvalidInput("where.node must be an object")
			}
			pred, err = p.filters.Where(nodeScope, target, m)
		case "edge":
			props := p.relationshipProps(rel)
			if props == nil {
				return nil, gqlerrors.SchemaMismatch(rel.Type, "relationship has no properties to filter on")
			}
			m, ok := value.(map[string]any)
			if !ok && value != nil {
				return nil, gqlerrors.InvalidInput("where.edge must be an object")
			}
			pred, err = p.filters.EntityWhere(edgeScope, props, m)
		default:
			return nil, gqlerrors.SchemaMismatch(rel.Type, "unknown relationship where key %s", key)
		}
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	return cypher.And(preds...), nil
}

func (p *planner) relationshipProps(rel *schema.Relationship) schema.Entity {
	if rel.Properties == "" {
		return nil
	}
	if rp := p.schema.RelationshipProperties(rel.Properties); rp != nil {
		return rp
	}
	return nil
}

// forTargets splits relationship input by target type. Union relationships
// key their input by member.
func (p *planner) forTargets(f *schema.Field, value any, fn func(target string, v any) error) error {
	u := p.schema.Union(f.Relationship.Target)
	if u == nil {
		return fn(f.Relationship.Target, value)
	}
	m, ok := value.(map[string]any)
	if !ok {
		return gqlerrors.InvalidInput("%s expects an object keyed by member type", f.Name)
	}
	for _, member := range filter.SortedKeys(m) {
		if !slices.Contains(u.Members, member) {
			return gqlerrors.SchemaMismatch(u.Name, "%s is not a member", member)
		}
		if err := fn(member, m[member]); err != nil {
			return err
		}
	}
	return nil
}

// relationshipField returns the @relationship field behind an input key.
func relationshipField(entity schema.Entity, key string) (*schema.Field, error) {
	f := entity.Field(key)
	if f == nil || f.Kind != schema.KindRelationship {
		return nil, gqlerrors.SchemaMismatch(entity.TypeName(), "%s is not a relationship field", key)
	}
	return f, nil
}

// mutationResult projects the affected nodes bound to this into the
// payload and returns the projection with the payload shape.
func (p *planner) mutationResult(b *mutationBlock, field *ast.Field, node *schema.Node, this *cypher.Node, verb string) (cypher.Expr, *Shape, error) {
	shape := &Shape{Kind: ShapeObject, TypeName: naming.MutationResponseType(verb, node.Root.Plural)}
	var nodeFields []*selectedField
	for _, sf := range p.collectFields(field.SelectionSet, "") {
		switch sf.name {
		case "__typename":
			shape.add(sf.key, "", typenameShape)
		case "info":
			shape.add(sf.key, "", p.infoShape(sf.set, verb))
		case node.Root.Plural:
			nodeFields = append(nodeFields, sf)
		default:
			return nil, nil, gqlerrors.SchemaMismatch(shape.TypeName, "unknown field %s", sf.name)
		}
	}
	if len(nodeFields) == 0 {
		return nil, shape, nil
	}

	// Every occurrence of the plural key projects from one merged selection.
	merged := &ast.SelectionSet{}
	for _, sf := range nodeFields {
		merged.Selections = append(merged.Selections, sf.set.Selections...)
	}
	scope := filter.NewScope(this)
	scope.ConcreteType = node.Name
	fields := p.collectFields(merged, node.Name)
	auth, err := p.readAuth(scope, node.Name, p.fieldNames(node.Name, fields), schema.OpRead)
	if err != nil {
		return nil, nil, err
	}
	b.check(scope, auth)
	bound := len(scope.Calls())

	proj := querytree.NewProjection(this)
	sel, err := p.projectNode(scope, node.Name, fields, proj)
	if err != nil {
		return nil, nil, err
	}
	b.add(scope.Calls()[bound:]...)
	b.addNodes(sel.children...)
	for _, sf := range nodeFields {
		shape.add(sf.key, DataColumn, subsetShape(sel.shape, p.selectedKeys(sf.set, node.Name)))
	}
	return proj, shape, nil
}

func (p *planner) infoShape(set *ast.SelectionSet, verb string) *Shape {
	shape := &Shape{Kind: ShapeInfo, TypeName: naming.InfoType(verb)}
	for _, sf := range p.collectFields(set, "") {
		if sf.name == "__typename" {
			shape.add(sf.key, "", typenameShape)
			continue
		}
		if slices.Contains(infoCounters, sf.name) {
			shape.add(sf.key, sf.name, valueShape)
		}
	}
	return shape
}

// finishMutation renders b and wraps it into a plan.
func (p *planner) finishMutation(field *ast.Field, kind schema.RootKind, typeName string, b *mutationBlock, shape *Shape) (*Plan, error) {
	plan, err := p.emit(field, kind, typeName, b.steps)
	if err != nil {
		return nil, err
	}
	plan.Shape, plan.Events = shape, p.opts.subscriptions
	return plan, nil
}
