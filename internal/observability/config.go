package observability

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/chatdesk/internal/config"
)

const (
	defaultMetricsPath   = "/metrics"
	defaultSlowQuery     = 200 * time.Millisecond
	productionSampling   = 0.1
	developmentSampling  = 1.0
	defaultOTLPProtocol  = "grpc"
	defaultLogFormat     = "json"
	developmentLogFormat = "console"
)

// Config is the observability view of the process configuration. Service
// identity comes from config.Config; the rest is read from OTEL_* and LOG_*
// variables.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	Development bool

	LogLevel  string
	LogFormat string

	// MetricsPath is where the prometheus handler is mounted.
	MetricsPath string
	// QuietRoutes log successful requests at debug. Health probes, scrapes
	// and gateway webhooks would otherwise dominate the request log.
	QuietRoutes []string

	SlowQueryThreshold time.Duration

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	dev := cfg.IsDevelopment()

	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "chatdesk"
	}

	logFormat := defaultLogFormat
	sampling := productionSampling
	if dev {
		logFormat = developmentLogFormat
		sampling = developmentSampling
	}

	protocol := strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", defaultOTLPProtocol))
	if traces := getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", ""); traces != "" {
		protocol = strings.ToLower(traces)
	}

	metricsPath := getenv("METRICS_PATH", defaultMetricsPath)
	if !strings.HasPrefix(metricsPath, "/") {
		metricsPath = "/" + metricsPath
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		Development:          dev,
		LogLevel:             strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(getenv("LOG_FORMAT", logFormat)),
		MetricsPath:          metricsPath,
		QuietRoutes:          []string{"/health", metricsPath, "/webhooks/:token"},
		SlowQueryThreshold:   getenvDuration("DB_SLOW_QUERY_THRESHOLD", defaultSlowQuery),
		OtelEnabled:          getenvBool("OTEL_ENABLED", !dev),
		OtelExporterEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint),
		OtelExporterProtocol: protocol,
		OtelSamplingRatio:    clampRatio(getenvFloat("OTEL_SAMPLING_RATIO", sampling)),
	}
}

func (c Config) Debug() bool {
	return c.LogLevel == "debug" || c.Development
}

func clampRatio(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func getenv(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value, err := strconv.ParseBool(getenv(key, ""))
	if err != nil {
		return def
	}
	return value
}

func getenvFloat(key string, def float64) float64 {
	value, err := strconv.ParseFloat(getenv(key, ""), 64)
	if err != nil {
		return def
	}
	return value
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value, err := time.ParseDuration(getenv(key, ""))
	if err != nil || value <= 0 {
		return def
	}
	return value
}
