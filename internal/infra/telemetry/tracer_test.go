// internal/infra/telemetry/tracer_test.go
package telemetry

import (
	"context"
	"testing"
)

func TestInitTracerProvider_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracerProvider(context.Background(), "storefront-test", " ")
	if err != nil {
		t.Fatalf("InitTracerProvider: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
