// Package resolver executes GraphQL operations against Neo4j. Each root
// field is translated into one Cypher statement, run through the executor
// and shaped back into the response the selection set asked for.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/graphql-go/graphql/language/ast"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"neo4j-graphql/internal/authz"
	"neo4j-graphql/internal/dbexec"
	"neo4j-graphql/internal/gqlerrors"
	"neo4j-graphql/internal/gqlrequest"
	"neo4j-graphql/internal/logging"
	"neo4j-graphql/internal/observability"
	"neo4j-graphql/internal/planner"
	"neo4j-graphql/internal/schema"
)

// DefaultMaxConcurrency bounds how many query root fields run at once.
const DefaultMaxConcurrency = 8

// Config configures a Resolver.
type Config struct {
	Schema   *schema.Schema
	Executor dbexec.QueryExecutor
	// Limits, when set, rejects root fields whose estimated cost exceeds them.
	Limits           *planner.PlanLimits
	DefaultListLimit int
	MaxMutationDepth int
	// Subscriptions makes mutations return change events, which are handed
	// to Events after the mutation commits.
	Subscriptions  bool
	Events         EventPublisher
	MaxConcurrency int
	// Database overrides the executor's default database.
	Database string
}

// Resolver executes operations for one compiled schema. It is immutable
// and safe for concurrent use; a schema reload builds a new Resolver.
type Resolver struct {
	schema         *schema.Schema
	executor       dbexec.QueryExecutor
	limits         *planner.PlanLimits
	defaultLimit   int
	maxDepth       int
	subscriptions  bool
	events         EventPublisher
	maxConcurrency int
	database       string
}

// NewResolver creates a resolver for cfg.Schema.
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.Schema == nil {
		return nil, errors.New("resolver requires a compiled schema")
	}
	if cfg.Executor == nil {
		return nil, errors.New("resolver requires an executor")
	}
	if cfg.DefaultListLimit <= 0 {
		cfg.DefaultListLimit = planner.DefaultListLimit
	}
	if cfg.MaxMutationDepth <= 0 {
		cfg.MaxMutationDepth = planner.DefaultMaxMutationDepth
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	return &Resolver{
		schema:         cfg.Schema,
		executor:       cfg.Executor,
		limits:         cfg.Limits,
		defaultLimit:   cfg.DefaultListLimit,
		maxDepth:       cfg.MaxMutationDepth,
		subscriptions:  cfg.Subscriptions,
		events:         cfg.Events,
		maxConcurrency: cfg.MaxConcurrency,
		database:       cfg.Database,
	}, nil
}

// Schema returns the compiled schema the resolver executes against.
func (r *Resolver) Schema() *schema.Schema {
	return r.schema
}

// Request is one analyzed GraphQL request.
type Request struct {
	Analysis  *gqlrequest.Analysis
	Variables map[string]any
	// Claims are the verified token claims. Nil means unauthenticated.
	Claims map[string]any
}

// Response is a GraphQL response body.
type Response struct {
	Data   map[string]any `json:"data"`
	Errors []*Error       `json:"errors,omitempty"`
}

// Error is a GraphQL error entry.
type Error struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func newError(err error, path ...any) *Error {
	e := &Error{
		Message:    err.Error(),
		Extensions: map[string]any{"code": gqlerrors.Code(err)},
	}
	if len(path) > 0 {
		e.Path = path
	}
	return e
}

// requestError is a response without data, for requests that never reach
// execution.
func requestError(err error) *Response {
	return &Response{Errors: []*Error{newError(err)}}
}

type fieldResult struct {
	value  any
	err    error
	events []ChangeEvent
}

// Execute runs the selected operation. Query root fields run concurrently;
// mutation root fields run in document order inside one write transaction.
func (r *Resolver) Execute(ctx context.Context, req Request) *Response {
	analysis := req.Analysis
	switch {
	case analysis == nil:
		return requestError(gqlerrors.InvalidInput("missing request"))
	case analysis.ParseError != nil:
		return requestError(gqlerrors.InvalidInput("%s", analysis.ParseError.Error()))
	case analysis.SelectionError != nil:
		return requestError(gqlerrors.InvalidInput("%s", analysis.SelectionError.Error()))
	case analysis.Operation == nil:
		return requestError(gqlerrors.InvalidInput("must provide an operation"))
	}

	op := analysis.Operation
	var rootType string
	switch op.Operation {
	case ast.OperationTypeQuery:
		rootType = "Query"
	case ast.OperationTypeMutation:
		rootType = "Mutation"
	default:
		return requestError(gqlerrors.InvalidInput("%s operations are not supported", op.Operation))
	}

	vars := req.Variables
	if vars == nil {
		vars = map[string]any{}
	}
	fields := planner.RootFields(r.schema, op.SelectionSet, rootType, analysis.Fragments, vars)
	exec := &execution{
		resolver:  r,
		vars:      vars,
		fragments: analysis.Fragments,
		auth:      authz.NewContext(req.Claims),
		rootType:  rootType,
		logger:    logging.FromContext(ctx),
		metrics:   observability.GraphQLMetricsFromContext(ctx),
	}

	results := make([]fieldResult, len(fields))
	if rootType == "Mutation" {
		exec.runMutations(ctx, fields, results)
	} else {
		exec.runQueries(ctx, fields, results)
	}

	resp := &Response{Data: make(map[string]any, len(fields))}
	for i, f := range fields {
		key := responseKey(f)
		resp.Data[key] = results[i].value
		if results[i].err != nil {
			resp.Errors = append(resp.Errors, newError(results[i].err, key))
		}
	}
	return resp
}

// execution is the state of one Execute call.
type execution struct {
	resolver  *Resolver
	vars      map[string]any
	fragments map[string]*ast.FragmentDefinition
	auth      *authz.Context
	rootType  string
	logger    *logging.Logger
	metrics   *observability.GraphQLMetrics
}

func (e *execution) runQueries(ctx context.Context, fields []*ast.Field, results []fieldResult) {
	opts := dbexec.RunOptions{Mode: dbexec.ReadMode, Database: e.resolver.database}
	var g errgroup.Group
	g.SetLimit(e.resolver.maxConcurrency)
	for i, f := range fields {
		g.Go(func() error {
			results[i] = e.resolveField(ctx, f, e.resolver.executor, opts)
			return nil
		})
	}
	_ = g.Wait()
}

// runMutations runs every mutation root field in one transaction. The
// first failing field stops execution and rolls back the fields before it.
func (e *execution) runMutations(ctx context.Context, fields []*ast.Field, results []fieldResult) {
	opts := dbexec.RunOptions{Mode: dbexec.WriteMode, Database: e.resolver.database}
	err := dbexec.InWriteTx(ctx, e.resolver.executor, opts, func(tx dbexec.QueryExecutor) error {
		clear(results)
		for i, f := range fields {
			results[i] = e.resolveField(ctx, f, tx, opts)
			if results[i].err != nil {
				return results[i].err
			}
		}
		return nil
	})
	if err == nil {
		for _, res := range results {
			e.publish(ctx, res.events)
		}
		return
	}

	failed := false
	for i := range results {
		if results[i].err != nil {
			failed = true
			continue
		}
		results[i].value = nil
	}
	if !failed && len(results) > 0 {
		results[0].err = gqlerrors.Classify(err)
	}
}

// resolveField plans, runs and shapes one root field.
func (e *execution) resolveField(ctx context.Context, field *ast.Field, exec dbexec.QueryExecutor, opts dbexec.RunOptions) fieldResult {
	if field.Name.Value == "__typename" {
		return fieldResult{value: e.rootType}
	}

	ctx, span := startResolverSpan(ctx, "graphql.resolve."+field.Name.Value,
		attribute.String("graphql.field.name", field.Name.Value),
		attribute.String("graphql.operation.type", e.rootType),
	)
	res := e.resolve(ctx, field, exec, opts)
	finishResolverSpan(span, res.err, "")
	if res.err != nil && e.metrics != nil {
		if code := gqlerrors.Code(res.err); code == "FORBIDDEN" || code == "UNAUTHENTICATED" {
			e.metrics.RecordAuthDenial(ctx, code)
		}
	}
	return res
}

func (e *execution) resolve(ctx context.Context, field *ast.Field, exec dbexec.QueryExecutor, opts dbexec.RunOptions) fieldResult {
	start := time.Now()
	plan, err := e.plan(field)
	if err != nil {
		return fieldResult{err: err}
	}
	if e.metrics != nil {
		e.metrics.RecordTranslation(ctx, time.Since(start), len(plan.Statement.Cypher), rootKindName(plan.Kind))
	}
	e.logger.Debug("executing cypher",
		slog.String("field", plan.Field),
		slog.String("cypher", plan.Statement.Cypher),
	)

	result, err := exec.Run(ctx, plan.Statement, opts)
	if err != nil {
		return fieldResult{err: gqlerrors.Classify(err)}
	}
	if e.metrics != nil {
		e.metrics.RecordResultsCount(ctx, int64(len(result.Records)), e.rootType)
	}

	value, err := shapeResult(plan, result)
	if err != nil {
		return fieldResult{err: err}
	}
	res := fieldResult{value: value}
	if plan.Events && len(result.Records) > 0 {
		res.events = decodeEvents(result.Records[0][planner.EventsColumn])
	}
	return res
}

func (e *execution) plan(field *ast.Field) (*planner.Plan, error) {
	r := e.resolver
	opts := []planner.PlanOption{
		planner.WithFragments(e.fragments),
		planner.WithAuth(e.auth),
		planner.WithDefaultListLimit(r.defaultLimit),
		planner.WithMaxMutationDepth(r.maxDepth),
		planner.WithSubscriptions(r.subscriptions),
		planner.WithLogger(e.logger.Logger),
	}
	if r.limits != nil {
		opts = append(opts, planner.WithLimits(*r.limits))
	}
	if e.rootType == "Mutation" {
		return planner.PlanMutation(r.schema, field, e.vars, opts...)
	}
	return planner.PlanQuery(r.schema, field, e.vars, opts...)
}

func (e *execution) publish(ctx context.Context, events []ChangeEvent) {
	if len(events) == 0 {
		return
	}
	if e.metrics != nil {
		counts := map[string]int64{}
		for _, ev := range events {
			counts[ev.Event]++
		}
		for name, n := range counts {
			e.metrics.RecordChangeEvents(ctx, name, n)
		}
	}
	if e.resolver.events != nil {
		e.resolver.events.Publish(ctx, events)
	}
}

func responseKey(field *ast.Field) string {
	if field.Alias != nil && field.Alias.Value != "" {
		return field.Alias.Value
	}
	return field.Name.Value
}

func rootKindName(kind schema.RootKind) string {
	switch kind {
	case schema.RootList:
		return "list"
	case schema.RootConnection:
		return "connection"
	case schema.RootAggregate:
		return "aggregate"
	case schema.RootCreate:
		return "create"
	case schema.RootUpdate:
		return "update"
	case schema.RootDelete:
		return "delete"
	}
	return fmt.Sprintf("kind_%d", kind)
}
