package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"go-report-access-service/internal/config"
)

const meterName = "go-report-access-service"

var (
	metricsOnce    sync.Once
	repositoryOps  metric.Int64Counter
	gateDecisions  metric.Int64Counter
	tokenEvents    metric.Int64Counter
	paymentEvents  metric.Int64Counter
	upstreamCalls  metric.Int64Counter
)

// InitMetrics configures the global meter provider. Counters are created
// lazily on first use so tests can record without calling InitMetrics.
func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		return mp, nil
	}

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	otel.SetMeterProvider(mp)
	logger.Info("metrics enabled", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func ensureCounters() {
	metricsOnce.Do(func() {
		meter := otel.Meter(meterName)
		repositoryOps, _ = meter.Int64Counter("repository_operations_total")
		gateDecisions, _ = meter.Int64Counter("access_gate_decisions_total")
		tokenEvents, _ = meter.Int64Counter("access_token_events_total")
		paymentEvents, _ = meter.Int64Counter("payment_confirmations_total")
		upstreamCalls, _ = meter.Int64Counter("upstream_calls_total")
	})
}

func RecordRepositoryOperation(ctx context.Context, entity, op, outcome string) {
	ensureCounters()
	repositoryOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

func RecordGateDecision(ctx context.Context, outcome string) {
	ensureCounters()
	gateDecisions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordTokenEvent(ctx context.Context, action, outcome string) {
	ensureCounters()
	tokenEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

func RecordPaymentEvent(ctx context.Context, outcome string) {
	ensureCounters()
	paymentEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordUpstreamCall(ctx context.Context, upstream, outcome string) {
	ensureCounters()
	upstreamCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("upstream", upstream),
		attribute.String("outcome", outcome),
	))
}
