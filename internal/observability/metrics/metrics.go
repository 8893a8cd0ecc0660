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

// Metrics exposes application-level instruments.
type Metrics struct {
	messagesAppended   metric.Int64Counter
	duplicateIngests   metric.Int64Counter
	eventsRouted       metric.Int64Counter
	sendFailures       metric.Int64Counter
	cascadeDeletions   metric.Int64Counter
	unreadDriftRepairs metric.Int64Counter
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
				if log != nil {
					log.Info("shutting down meter provider")
				}
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
		name = "chatdesk"
	}
	meter := provider.Meter(name)

	messagesAppended, err := meter.Int64Counter("chatdesk_messages_appended_total")
	if err != nil {
		return nil, err
	}
	duplicateIngests, err := meter.Int64Counter("chatdesk_duplicate_ingests_total")
	if err != nil {
		return nil, err
	}
	eventsRouted, err := meter.Int64Counter("chatdesk_events_routed_total")
	if err != nil {
		return nil, err
	}
	sendFailures, err := meter.Int64Counter("chatdesk_send_failures_total")
	if err != nil {
		return nil, err
	}
	cascadeDeletions, err := meter.Int64Counter("chatdesk_cascade_deletions_total")
	if err != nil {
		return nil, err
	}
	unreadDriftRepairs, err := meter.Int64Counter("chatdesk_unread_drift_repairs_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		messagesAppended:   messagesAppended,
		duplicateIngests:   duplicateIngests,
		eventsRouted:       eventsRouted,
		sendFailures:       sendFailures,
		cascadeDeletions:   cascadeDeletions,
		unreadDriftRepairs: unreadDriftRepairs,
	}, nil
}

// NewNoop returns instruments bound to a no-op provider. Handy in tests.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

func (m *Metrics) RecordMessageAppended(ctx context.Context, direction, messageType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("direction", strings.TrimSpace(direction)),
		attribute.String("message_type", strings.TrimSpace(messageType)),
	)
	m.messagesAppended.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordDuplicateIngest(ctx context.Context, direction string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("direction", strings.TrimSpace(direction)))
	m.duplicateIngests.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordEventRouted(ctx context.Context, eventType, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("result", strings.TrimSpace(result)),
	)
	m.eventsRouted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordSendFailure(ctx context.Context, provider, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.sendFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordCascadeDeletion(ctx context.Context, scope, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("scope", strings.TrimSpace(scope)),
		attribute.String("result", strings.TrimSpace(result)),
	)
	m.cascadeDeletions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordUnreadDriftRepair(ctx context.Context, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.unreadDriftRepairs.Add(ctx, count)
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

var allowedLabelKeys = map[attribute.Key]struct{}{
	"direction":    {},
	"message_type": {},
	"event_type":   {},
	"result":       {},
	"provider":     {},
	"reason":       {},
	"scope":        {},
	"status_code":  {},
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
