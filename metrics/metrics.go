// Package metrics предоставляет систему метрик на основе OpenTelemetry.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics сборщик метрик приложения
type Metrics struct {
	meter           metric.Meter
	commandsTotal   metric.Int64Counter
	eventsTotal     metric.Int64Counter
	errorsTotal     metric.Int64Counter
	commandDuration metric.Float64Histogram
	activeAccounts  metric.Int64UpDownCounter
	transfersTotal  metric.Int64Counter
}

// NewMetrics создает новый сборщик метрик
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("ledger")

	commandsTotal, err := meter.Int64Counter(
		"commands_total",
		metric.WithDescription("Total number of account commands processed"),
	)
	if err != nil {
		return nil, err
	}

	eventsTotal, err := meter.Int64Counter(
		"events_total",
		metric.WithDescription("Total number of account events appended"),
	)
	if err != nil {
		return nil, err
	}

	errorsTotal, err := meter.Int64Counter(
		"errors_total",
		metric.WithDescription("Total number of errors"),
	)
	if err != nil {
		return nil, err
	}

	commandDuration, err := meter.Float64Histogram(
		"command_duration_seconds",
		metric.WithDescription("Command processing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	activeAccounts, err := meter.Int64UpDownCounter(
		"active_accounts",
		metric.WithDescription("Number of live account actors"),
	)
	if err != nil {
		return nil, err
	}

	transfersTotal, err := meter.Int64Counter(
		"transfers_total",
		metric.WithDescription("Total number of transfers by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		meter:           meter,
		commandsTotal:   commandsTotal,
		eventsTotal:     eventsTotal,
		errorsTotal:     errorsTotal,
		commandDuration: commandDuration,
		activeAccounts:  activeAccounts,
		transfersTotal:  transfersTotal,
	}, nil
}

// RecordCommand записывает метрику команды
func (m *Metrics) RecordCommand(ctx context.Context, commandType string, duration time.Duration, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("command", commandType),
		attribute.Bool("success", success),
	}

	m.commandsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.commandDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if !success {
		m.errorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("type", "command"),
			attribute.String("command", commandType),
		))
	}
}

// RecordEvent записывает метрику принятого события
func (m *Metrics) RecordEvent(ctx context.Context, eventType string) {
	m.eventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", eventType),
	))
}

// RecordTransfer записывает метрику завершенного перевода
func (m *Metrics) RecordTransfer(ctx context.Context, environment string, outcome string) {
	m.transfersTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("environment", environment),
		attribute.String("outcome", outcome),
	))
}

// IncrementActiveAccounts увеличивает счетчик живых акторов
func (m *Metrics) IncrementActiveAccounts(ctx context.Context) {
	m.activeAccounts.Add(ctx, 1)
}

// DecrementActiveAccounts уменьшает счетчик живых акторов
func (m *Metrics) DecrementActiveAccounts(ctx context.Context) {
	m.activeAccounts.Add(ctx, -1)
}
