package observability

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/techwallet/internal/config"
)

// Config is the observability view of the process: who we are, how loud we
// log, and where telemetry goes.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel            string
	LogFormat           string
	LogSampleInitial    int
	LogSampleThereafter int

	// SlowQuery is the GORM statement duration logged as gorm.slow_query.
	SlowQuery time.Duration

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	out := Config{
		ServiceName:          firstNonEmpty(cfg.AppName, "techwallet"),
		Environment:          envString("DEPLOYMENT_ENV", cfg.Environment),
		Version:              envString("SERVICE_VERSION", cfg.AppVersion),
		LogLevel:             strings.ToLower(envString("LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(envString("LOG_FORMAT", "json")),
		LogSampleInitial:     envInt("LOG_SAMPLE_INITIAL", 100),
		LogSampleThereafter:  envInt("LOG_SAMPLE_THEREAFTER", 100),
		SlowQuery:            time.Duration(envInt("DB_SLOW_QUERY_MS", 200)) * time.Millisecond,
		OtelEnabled:          envBool("OTEL_ENABLED", true),
		OtelExporterEndpoint: envString("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint),
		OtelExporterProtocol: strings.ToLower(envString("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
		OtelSamplingRatio:    envFloat("OTEL_SAMPLING_RATIO", 0.1),
	}
	if protocol := envString("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", ""); protocol != "" {
		out.OtelExporterProtocol = strings.ToLower(protocol)
	}
	return out
}

// Debug is true for debug logging and for non-production environments.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func envString(key, def string) string {
	return firstNonEmpty(os.Getenv(key), def)
}

func envInt(key string, def int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func envFloat(key string, def float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return def
	}
	return parsed
}

func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return parsed
}
