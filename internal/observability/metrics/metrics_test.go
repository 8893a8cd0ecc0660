package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("direction", "incoming"),
		attribute.String("account_id", "456"),
		attribute.String("event_type", "message"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "account_id" {
			t.Fatalf("expected account_id to be dropped")
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordMessageAppended(context.Background(), "incoming", "text")
	m.RecordSendFailure(context.Background(), "http", "timeout")
	m.RecordUnreadDriftRepair(context.Background(), 3)
}

func TestNoopMetricsRecord(t *testing.T) {
	m := NewNoop()
	if m == nil {
		t.Fatal("expected metrics")
	}
	m.RecordEventRouted(context.Background(), "message", "routed")
	m.RecordCascadeDeletion(context.Background(), "account", "ok")
}
