package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GraphQLMetrics holds custom metrics for GraphQL operations
type GraphQLMetrics struct {
	requestDuration     metric.Float64Histogram
	requestCounter      metric.Int64Counter
	errorCounter        metric.Int64Counter
	activeRequests      metric.Int64UpDownCounter
	queryDepth          metric.Int64Histogram
	resultsCount        metric.Int64Histogram
	translationDuration metric.Float64Histogram
	statementBytes      metric.Int64Histogram
	authDenials         metric.Int64Counter
	changeEvents        metric.Int64Counter
}

// InitGraphQLMetrics initializes GraphQL-specific metrics
func InitGraphQLMetrics() (*GraphQLMetrics, error) {
	meter := otel.Meter("neo4j-graphql")

	requestDuration, err := meter.Float64Histogram(
		"graphql.request.duration",
		metric.WithDescription("Duration of GraphQL requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	requestCounter, err := meter.Int64Counter(
		"graphql.requests.total",
		metric.WithDescription("Total number of GraphQL requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"graphql.errors.total",
		metric.WithDescription("Total number of GraphQL errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"graphql.requests.active",
		metric.WithDescription("Number of active GraphQL requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}

	queryDepth, err := meter.Int64Histogram(
		"graphql.query.depth",
		metric.WithDescription("Depth of GraphQL queries"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create query depth histogram: %w", err)
	}

	resultsCount, err := meter.Int64Histogram(
		"graphql.results.count",
		metric.WithDescription("Number of records returned for a root field"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create results count histogram: %w", err)
	}

	translationDuration, err := meter.Float64Histogram(
		"cypher.translation.duration",
		metric.WithDescription("Duration of translating a root field into Cypher in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create translation duration histogram: %w", err)
	}

	statementBytes, err := meter.Int64Histogram(
		"cypher.statement.size",
		metric.WithDescription("Size of generated Cypher statements"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create statement size histogram: %w", err)
	}

	authDenials, err := meter.Int64Counter(
		"graphql.authorization.denials.total",
		metric.WithDescription("Number of root fields rejected by authorization rules"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization denials counter: %w", err)
	}

	changeEvents, err := meter.Int64Counter(
		"graphql.mutation.events.total",
		metric.WithDescription("Number of change events produced by mutations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create change events counter: %w", err)
	}

	return &GraphQLMetrics{
		requestDuration:     requestDuration,
		requestCounter:      requestCounter,
		errorCounter:        errorCounter,
		activeRequests:      activeRequests,
		queryDepth:          queryDepth,
		resultsCount:        resultsCount,
		translationDuration: translationDuration,
		statementBytes:      statementBytes,
		authDenials:         authDenials,
		changeEvents:        changeEvents,
	}, nil
}

// RecordRequest records a GraphQL request with its duration and outcome
func (m *GraphQLMetrics) RecordRequest(ctx context.Context, duration time.Duration, hasErrors bool, operationType string) {
	attrs := []attribute.KeyValue{
		attribute.String("operation_type", operationType),
		attribute.Bool("has_errors", hasErrors),
	}

	// Record duration in milliseconds
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	// Increment total request counter
	m.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	// Increment error counter if there were errors
	if hasErrors {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation_type", operationType),
		))
	}
}

// RecordQueryDepth records the depth of a GraphQL query
func (m *GraphQLMetrics) RecordQueryDepth(ctx context.Context, depth int64, operationType string) {
	m.queryDepth.Record(ctx, depth, metric.WithAttributes(
		attribute.String("operation_type", operationType),
	))
}

// RecordResultsCount records the number of results returned
func (m *GraphQLMetrics) RecordResultsCount(ctx context.Context, count int64, operationType string) {
	m.resultsCount.Record(ctx, count, metric.WithAttributes(
		attribute.String("operation_type", operationType),
	))
}

// RecordTranslation records how long a root field took to plan and how
// large the emitted statement was.
func (m *GraphQLMetrics) RecordTranslation(ctx context.Context, duration time.Duration, statementBytes int, rootKind string) {
	attrs := metric.WithAttributes(attribute.String("root_kind", rootKind))
	m.translationDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	m.statementBytes.Record(ctx, int64(statementBytes), attrs)
}

// RecordAuthDenial counts a root field rejected as forbidden or unauthenticated.
func (m *GraphQLMetrics) RecordAuthDenial(ctx context.Context, code string) {
	m.authDenials.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}

// RecordChangeEvents counts change events by event name.
func (m *GraphQLMetrics) RecordChangeEvents(ctx context.Context, event string, count int64) {
	if count <= 0 {
		return
	}
	m.changeEvents.Add(ctx, count, metric.WithAttributes(attribute.String("event", event)))
}

// IncrementActiveRequests increments the active requests counter
func (m *GraphQLMetrics) IncrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests decrements the active requests counter
func (m *GraphQLMetrics) DecrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, -1)
}

// InitMetrics initializes all custom metrics and returns the GraphQLMetrics instance
func InitMetrics(logger *slog.Logger) (*GraphQLMetrics, error) {
	metrics, err := InitGraphQLMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GraphQL metrics: %w", err)
	}

	logger.Info("custom GraphQL metrics initialized")
	return metrics, nil
}

type graphQLMetricsContextKey struct{}

// ContextWithGraphQLMetrics stores GraphQL metrics in the provided context.
func ContextWithGraphQLMetrics(ctx context.Context, metrics *GraphQLMetrics) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, graphQLMetricsContextKey{}, metrics)
}

// GraphQLMetricsFromContext retrieves GraphQL metrics from the context.
func GraphQLMetricsFromContext(ctx context.Context) *GraphQLMetrics {
	if ctx == nil {
		return nil
	}
	metrics, _ := ctx.Value(graphQLMetricsContextKey{}).(*GraphQLMetrics)
	return metrics
}
