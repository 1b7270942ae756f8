package telemetry

import (
	"context"
	"strings"
	"testing"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/config"
)

func TestDisabledProviderIsNoop(t *testing.T) {
	provider, err := NewProvider(context.Background(), config.TelemetryConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if provider.IsEnabled() {
		t.Fatalf("expected disabled provider")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestNewSampler(t *testing.T) {
	cases := map[float64]string{
		1.0: "AlwaysOnSampler",
		0:   "AlwaysOffSampler",
		0.5: "TraceIDRatioBased",
	}
	for rate, expected := range cases {
		description := newSampler(rate).Description()
		if !strings.HasPrefix(description, "ParentBased") || !strings.Contains(description, expected) {
			t.Fatalf("rate %v: unexpected sampler %s", rate, description)
		}
	}
}
