package resolver

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"neo4j-graphql/internal/logging"
	"neo4j-graphql/internal/scalars"
)

// ChangeEvent describes one entity changed by a committed mutation.
type ChangeEvent struct {
	// ID correlates deliveries of the same event.
	ID       string
	Event    string
	EntityID string
	TypeName string
	Old      map[string]any
	New      map[string]any
	// Timestamp is the database time of the change in milliseconds.
	Timestamp int64
}

// EventPublisher receives change events after their mutation commits.
type EventPublisher interface {
	Publish(ctx context.Context, events []ChangeEvent)
}

// LogPublisher writes change events to the request logger.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, events []ChangeEvent) {
	logger := logging.FromContext(ctx)
	for _, ev := range events {
		logger.Info("change event",
			slog.String("event_id", ev.ID),
			slog.String("event", ev.Event),
			slog.String("typename", ev.TypeName),
			slog.String("entity_id", ev.EntityID),
			slog.Int64("timestamp", ev.Timestamp),
		)
	}
}

// decodeEvents reads the events column of a mutation result.
func decodeEvents(raw any) []ChangeEvent {
	list, _ := raw.([]any)
	events := make([]ChangeEvent, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ev := ChangeEvent{ID: uuid.NewString()}
		ev.Event, _ = m["event"].(string)
		ev.EntityID, _ = m["entityId"].(string)
		ev.TypeName, _ = m["typename"].(string)
		ev.Timestamp, _ = m["timestamp"].(int64)
		if props, ok := m["properties"].(map[string]any); ok {
			ev.Old = propertyMap(props["old"])
			ev.New = propertyMap(props["new"])
		}
		events = append(events, ev)
	}
	return events
}

func propertyMap(v any) map[string]any {
	m, ok := scalars.Serialize(v).(map[string]any)
	if !ok {
		return nil
	}
	return m
}
