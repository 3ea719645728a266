package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/carebridge/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Interval         time.Duration
}

func ConfigFromApp(cfg config.Config) Config {
	return Config{
		Enabled:          cfg.Observability.MetricsEnabled,
		ExporterEndpoint: cfg.Observability.OTLPEndpoint,
		ExporterProtocol: cfg.Observability.Exporter,
		ServiceName:      cfg.AppName,
		Interval:         cfg.Observability.ExportInterval,
	}
}

// Metrics exposes workflow-level instruments. A nil *Metrics is a valid no-op.
type Metrics struct {
	tokensIssued     metric.Int64Counter
	workflowFailures metric.Int64Counter
	notifications    metric.Int64Counter
	grantTransitions metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "carebridge"
	}
	meter := provider.Meter(name)

	tokensIssued, err := meter.Int64Counter("carebridge_tokens_issued_total")
	if err != nil {
		return nil, err
	}
	workflowFailures, err := meter.Int64Counter("carebridge_workflow_failures_total")
	if err != nil {
		return nil, err
	}
	notifications, err := meter.Int64Counter("carebridge_notifications_total")
	if err != nil {
		return nil, err
	}
	grantTransitions, err := meter.Int64Counter("carebridge_access_grant_transitions_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("carebridge_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		tokensIssued:     tokensIssued,
		workflowFailures: workflowFailures,
		notifications:    notifications,
		grantTransitions: grantTransitions,
		rateLimitDenied:  rateLimitDenied,
	}, nil
}

// RecordTokenIssued counts a persisted token of the given kind.
func (m *Metrics) RecordTokenIssued(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.tokensIssued.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("kind", kind))...))
}

// RecordWorkflowFailure counts a typed failure returned to a caller.
func (m *Metrics) RecordWorkflowFailure(ctx context.Context, workflow, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("workflow", strings.TrimSpace(workflow)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.workflowFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordNotification counts scheduling and delivery outcomes.
func (m *Metrics) RecordNotification(ctx context.Context, kind, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("kind", strings.TrimSpace(kind)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.notifications.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordGrantTransition(ctx context.Context, to string) {
	if m == nil {
		return
	}
	m.grantTransitions.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("status", to))...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// Patient, user and token identifiers never become labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"kind":     {},
	"workflow": {},
	"reason":   {},
	"status":   {},
	"endpoint": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
