package observability

import (
	"context"
	"log/slog"
	"testing"

	"neo4j-graphql/internal/gqlrequest"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func TestGraphQLSpanAttributes(t *testing.T) {
	analysis := &gqlrequest.Analysis{
		Envelope: gqlrequest.Envelope{
			Query:             "query Q { movies { title } }",
			DocumentSizeBytes: 28,
		},
		RequestedOperationName: "Q",
		OperationName:          "Q",
		OperationType:          "query",
		OperationHash:          "hash123",
		RootFieldCount:         1,
		FieldCount:             2,
		SelectionDepth:         2,
		VariableCount:          1,
		Operation:              &ast.OperationDefinition{},
	}
	meta := gqlrequest.ExecMeta{
		ImpersonatedUser: "reader",
		Fingerprint:      "fp-1",
		Authenticated:    true,
	}

	attrs := GraphQLSpanAttributes(analysis, meta)
	byKey := map[attribute.Key]attribute.Value{}
	for _, kv := range attrs {
		byKey[kv.Key] = kv.Value
	}
	assert.Equal(t, "query", byKey["graphql.operation.type"].AsString())
	assert.Equal(t, int64(2), byKey["graphql.query.depth"].AsInt64())
	assert.Equal(t, int64(1), byKey["graphql.query.root_field_count"].AsInt64())
	assert.Equal(t, "reader", byKey["db.neo4j.impersonated_user"].AsString())
	assert.Equal(t, "fp-1", byKey["schema.fingerprint"].AsString())
	assert.True(t, byKey["auth.authenticated"].AsBool())
}

func TestGraphQLLogFieldsIncludesTraceID(t *testing.T) {
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1, 2, 3},
		SpanID:  trace.SpanID{4, 5, 6},
		Remote:  true,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)
	fields := GraphQLLogFields(ctx, &gqlrequest.Analysis{
		RequestedOperationName: "Q",
		OperationName:          "Q",
		OperationType:          "query",
		OperationHash:          "hash123",
	}, gqlrequest.ExecMeta{
		ImpersonatedUser: "reader",
		Fingerprint:      "fp-1",
	})

	keys := map[string]string{}
	for _, f := range fields {
		attr, ok := f.(slog.Attr)
		require.True(t, ok)
		keys[attr.Key] = attr.Value.String()
	}
	assert.Equal(t, spanCtx.TraceID().String(), keys["trace_id"])
	assert.Equal(t, "reader", keys["impersonated_user"])
}
