package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

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
	Environment      string
}

// Metrics exposes the engine's money-path instruments.
type Metrics struct {
	accruals          metric.Int64Counter
	duplicateAccruals metric.Int64Counter
	accruedAmount     metric.Int64Counter
	ledgerPostings    metric.Int64Counter
	payoutDecisions   metric.Int64Counter
	rateLimited       metric.Int64Counter
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

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "techwallet"
	}
	meter := provider.Meter(name)

	accruals, err := meter.Int64Counter("techwallet_accruals_total")
	if err != nil {
		return nil, err
	}
	duplicateAccruals, err := meter.Int64Counter("techwallet_accrual_duplicates_total")
	if err != nil {
		return nil, err
	}
	accruedAmount, err := meter.Int64Counter("techwallet_accrued_amount_minor_total")
	if err != nil {
		return nil, err
	}
	ledgerPostings, err := meter.Int64Counter("techwallet_ledger_postings_total")
	if err != nil {
		return nil, err
	}
	payoutDecisions, err := meter.Int64Counter("techwallet_payout_decisions_total")
	if err != nil {
		return nil, err
	}
	rateLimited, err := meter.Int64Counter("techwallet_rate_limited_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		accruals:          accruals,
		duplicateAccruals: duplicateAccruals,
		accruedAmount:     accruedAmount,
		ledgerPostings:    ledgerPostings,
		payoutDecisions:   payoutDecisions,
		rateLimited:       rateLimited,
	}, nil
}

// NewNoop returns instruments backed by a noop provider.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

func (m *Metrics) RecordAccrual(ctx context.Context, kind string, amount int64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("kind", strings.TrimSpace(kind)))
	m.accruals.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.accruedAmount.Add(ctx, amount, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordDuplicateAccrual(ctx context.Context) {
	if m == nil {
		return
	}
	m.duplicateAccruals.Add(ctx, 1)
}

func (m *Metrics) RecordLedgerPosting(ctx context.Context, direction, sourceKind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("direction", strings.TrimSpace(direction)),
		attribute.String("source_kind", strings.TrimSpace(sourceKind)),
	)
	m.ledgerPostings.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordPayoutDecision(ctx context.Context, status, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("status", strings.TrimSpace(status)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.payoutDecisions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, route string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("route", strings.TrimSpace(route)))
	m.rateLimited.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
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

// Technician and payout ids are deliberately absent: unbounded cardinality.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"kind":        {},
	"direction":   {},
	"source_kind": {},
	"status":      {},
	"reason":      {},
	"route":       {},
	"method":      {},
	"status_code": {},
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
