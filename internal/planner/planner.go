// Package planner translates GraphQL root fields into Cypher trees. Reads
// walk the selection set together with the compiled schema; mutations
// plan create, update and delete blocks with their nested relationship
// operations. Authorization predicates are inlined where each rule applies,
// and cost limits are enforced before any tree is built.
package planner

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/graphql-go/graphql/language/ast"

	"neo4j-graphql/internal/authz"
	"neo4j-graphql/internal/cypher"
	"neo4j-graphql/internal/filter"
	"neo4j-graphql/internal/gqlerrors"
	"neo4j-graphql/internal/gqlrequest"
	"neo4j-graphql/internal/querytree"
	"neo4j-graphql/internal/schema"
)

// DefaultMaxMutationDepth bounds nested mutation input when no explicit
// maximum is configured.
const DefaultMaxMutationDepth = 16

const (
	// RootColumn is the column read plans return their value in.
	RootColumn = "this"
	// DataColumn is the column mutation plans return projected nodes in.
	DataColumn = "data"
	// EventsColumn is the column carrying change events.
	EventsColumn = "events"
)

// Plan is the planned statement for one root field.
type Plan struct {
	// Field is the response key of the root field.
	Field    string
	Kind     schema.RootKind
	TypeName string

	Statement cypher.Statement
	// Column holds the field value. An empty column means the value is the
	// whole first row, as for mutations.
	Column string
	// List reports that every returned row is one element of the value.
	List  bool
	Shape *Shape
	// Events is set when the statement returns change events.
	Events bool
	Cost   PlanCost
}

type planOptions struct {
	limits           *PlanLimits
	fragments        map[string]*ast.FragmentDefinition
	auth             *authz.Context
	subscriptions    bool
	maxMutationDepth int
	defaultLimit     int
	logger           *slog.Logger
}

// PlanOption customizes planning.
type PlanOption func(*planOptions)

// WithLimits enforces cost limits for a query.
func WithLimits(limits PlanLimits) PlanOption {
	return func(o *planOptions) {
		o.limits = &limits
	}
}

// WithFragments provides the document's fragments for selection expansion.
func WithFragments(fragments map[string]*ast.FragmentDefinition) PlanOption {
	return func(o *planOptions) {
		o.fragments = fragments
	}
}

// WithAuth sets the request's authentication context. Without it the
// request is planned as unauthenticated.
func WithAuth(ctx *authz.Context) PlanOption {
	return func(o *planOptions) {
		o.auth = ctx
	}
}

// WithSubscriptions makes mutations return change events.
func WithSubscriptions(enabled bool) PlanOption {
	return func(o *planOptions) {
		o.subscriptions = enabled
	}
}

// WithMaxMutationDepth overrides the nesting bound for mutation input.
func WithMaxMutationDepth(depth int) PlanOption {
	return func(o *planOptions) {
		o.maxMutationDepth = depth
	}
}

// WithDefaultListLimit overrides the list size assumed by cost estimation.
func WithDefaultListLimit(limit int) PlanOption {
	return func(o *planOptions) {
		o.defaultLimit = limit
	}
}

// WithLogger sets the logger planning decisions are reported to.
func WithLogger(logger *slog.Logger) PlanOption {
	return func(o *planOptions) {
		o.logger = logger
	}
}

// planner holds the state of one translation. It is never shared between
// requests.
type planner struct {
	schema    *schema.Schema
	auth      *authz.Injector
	filters   *filter.Builder
	vars      map[string]any
	fragments map[string]*ast.FragmentDefinition
	opts      *planOptions
	logger    *slog.Logger
}

func newPlanner(s *schema.Schema, vars map[string]any, opts []PlanOption) *planner {
	options := &planOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.maxMutationDepth <= 0 {
		options.maxMutationDepth = DefaultMaxMutationDepth
	}
	if options.defaultLimit <= 0 {
		options.defaultLimit = DefaultListLimit
	}
	logger := options.logger
	if logger == nil {
		logger = slog.Default()
	}
	injector := authz.New(s, options.auth)
	return &planner{
		schema:    s,
		auth:      injector,
		filters:   injector.Filters(),
		vars:      vars,
		fragments: options.fragments,
		opts:      options,
		logger:    logger,
	}
}

func responseKey(field *ast.Field) string {
	if field.Alias != nil && field.Alias.Value != "" {
		return field.Alias.Value
	}
	return field.Name.Value
}

// PlanQuery plans a Query root field: a list, connection or aggregate
// field generated for a node or interface type.
func PlanQuery(s *schema.Schema, field *ast.Field, vars map[string]any, opts ...PlanOption) (*Plan, error) {
	if s == nil || field == nil || field.Name == nil {
		return nil, errors.New("schema and field are required")
	}
	root, ok := s.QueryField(field.Name.Value)
	if !ok {
		return nil, gqlerrors.SchemaMismatch("Query", "unknown field %s", field.Name.Value)
	}
	p := newPlanner(s, vars, opts)
	cost, err := p.checkCost(field)
	if err != nil {
		return nil, err
	}

	var plan *Plan
	switch root.Kind {
	case schema.RootList:
		plan, err = p.planList(field, root.Type)
	case schema.RootConnection:
		plan, err = p.planConnection(field, root.Type)
	case schema.RootAggregate:
		plan, err = p.planAggregate(field, root.Type)
	default:
		return nil, fmt.Errorf("query field %s has kind %d", field.Name.Value, root.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", field.Name.Value, err)
	}
	plan.Cost = cost
	return plan, nil
}

// PlanMutation plans a Mutation root field: create, update or delete.
func PlanMutation(s *schema.Schema, field *ast.Field, vars map[string]any, opts ...PlanOption) (*Plan, error) {
	if s == nil || field == nil || field.Name == nil {
		return nil, errors.New("schema and field are required")
	}
	root, ok := s.MutationField(field.Name.Value)
	if !ok {
		return nil, gqlerrors.SchemaMismatch("Mutation", "unknown field %s", field.Name.Value)
	}
	p := newPlanner(s, vars, opts)
	cost, err := p.checkCost(field)
	if err != nil {
		return nil, err
	}

	var plan *Plan
	switch root.Kind {
	case schema.RootCreate:
		plan, err = p.planCreate(field, root.Type)
	case schema.RootUpdate:
		plan, err = p.planUpdate(field, root.Type)
	case schema.RootDelete:
		plan, err = p.planDelete(field, root.Type)
	default:
		return nil, fmt.Errorf("mutation field %s has kind %d", field.Name.Value, root.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", field.Name.Value, err)
	}
	plan.Cost = cost
	return plan, nil
}

func (p *planner) checkCost(field *ast.Field) (PlanCost, error) {
	cost := EstimateCost(field, gqlrequest.ArgumentValues(field.Arguments, p.vars), p.opts.defaultLimit, p.fragments)
	if p.opts.limits == nil {
		return cost, nil
	}
	if err := validateLimits(cost, *p.opts.limits); err != nil {
		return cost, err
	}
	return cost, nil
}

// emit renders tree and wraps it into a plan.
func (p *planner) emit(field *ast.Field, kind schema.RootKind, typeName string, root querytree.Node) (*Plan, error) {
	stmt, err := querytree.NewTree(root).Emit()
	if err != nil {
		return nil, err
	}
	p.logger.Debug("planned root field",
		slog.String("field", field.Name.Value),
		slog.String("type", typeName),
		slog.Int("statement_bytes", len(stmt.Cypher)),
		slog.Any("params", paramNames(stmt.Params)),
	)
	return &Plan{
		Field:     responseKey(field),
		Kind:      kind,
		TypeName:  typeName,
		Statement: stmt,
	}, nil
}

func paramNames(params map[string]any) []string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
