package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// SetupConfig конфигурация экспорта метрик
type SetupConfig struct {
	ServiceName   string
	ResourceAttrs map[string]string
}

// Setup настраивает экспорт метрик через Prometheus и устанавливает
// глобальный meter provider
func Setup(config SetupConfig) (*metric.MeterProvider, error) {
	if config.ServiceName == "" {
		config.ServiceName = "ledger"
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	attrs := []attribute.KeyValue{attribute.String("service.name", config.ServiceName)}
	for k, v := range config.ResourceAttrs {
		attrs = append(attrs, attribute.String(k, v))
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	return provider, nil
}

// Shutdown корректно завершает работу метрик
func Shutdown(ctx context.Context, provider *metric.MeterProvider) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}
