package observability

import (
	"github.com/smallbiznis/techwallet/internal/observability/logger"
	"github.com/smallbiznis/techwallet/internal/observability/metrics"
	"github.com/smallbiznis/techwallet/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		func(cfg Config) logger.Config {
			return logger.Config{
				ServiceName:         cfg.ServiceName,
				Environment:         cfg.Environment,
				Version:             cfg.Version,
				Level:               cfg.LogLevel,
				Format:              cfg.LogFormat,
				SamplingInitial:     cfg.LogSampleInitial,
				SamplingThereafter:  cfg.LogSampleThereafter,
				IncludeCaller:       true,
				IncludeStackOnError: cfg.Debug(),
			}
		},
		logger.New,
		func(cfg Config) logger.GormLoggerConfig {
			gormCfg := logger.DefaultGormLoggerConfig()
			if cfg.SlowQuery > 0 {
				gormCfg.SlowThreshold = cfg.SlowQuery
			}
			return gormCfg
		},
		func(cfg Config) tracing.Config {
			return tracing.Config{
				Enabled:          cfg.OtelEnabled,
				ServiceName:      cfg.ServiceName,
				ServiceVersion:   cfg.Version,
				Environment:      cfg.Environment,
				ExporterEndpoint: cfg.OtelExporterEndpoint,
				ExporterProtocol: cfg.OtelExporterProtocol,
				SamplingRatio:    cfg.OtelSamplingRatio,
			}
		},
		tracing.NewProvider,
		func(cfg Config) metrics.Config {
			return metrics.Config{
				Enabled:          cfg.OtelEnabled,
				ExporterEndpoint: cfg.OtelExporterEndpoint,
				ExporterProtocol: cfg.OtelExporterProtocol,
				ServiceName:      cfg.ServiceName,
				Environment:      cfg.Environment,
			}
		},
		metrics.NewProvider,
		metrics.New,
		metrics.SchedulerWithConfig,
	),
	// The tracer provider has no consumer in the graph; force construction.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
