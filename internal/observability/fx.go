package observability

import (
	"github.com/smallbiznis/carebridge/internal/observability/metrics"
	"github.com/smallbiznis/carebridge/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		tracing.ConfigFromApp,
		tracing.NewProvider,
		metrics.ConfigFromApp,
		metrics.NewProvider,
		metrics.New,
	),
	fx.Invoke(ensureTracingProvider),
)

func ensureTracingProvider(_ *sdktrace.TracerProvider) {}
