package metrics

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("tenant_key", "evercom"),
		attribute.String("message", "boom"),
		attribute.String("period", "202503"),
		attribute.String("reason", "invalid_payload"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key != "period" && attr.Key != "reason" {
			t.Fatalf("unexpected attribute retained: %s", attr.Key)
		}
	}
}

func TestFilterAttributesKeepsEmptyResult(t *testing.T) {
	attrs := FilterAttributes(attribute.String("tenant_key", "acme"))
	if len(attrs) != 0 {
		t.Fatalf("expected tenant_key to be stripped, got %d attributes", len(attrs))
	}
}
