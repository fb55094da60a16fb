package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/eventbank/ledger/domain/account"
	"github.com/eventbank/ledger/eventstore"
)

// RetryConfig конфигурация повторных попыток публикации
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig возвращает конфигурацию retry по умолчанию
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// NATSPublisherConfig конфигурация NATS публикатора событий счетов
type NATSPublisherConfig struct {
	Conn          *nats.Conn
	SubjectPrefix string
	RetryPolicy   RetryConfig
}

// DefaultNATSPublisherConfig возвращает конфигурацию публикатора по умолчанию
func DefaultNATSPublisherConfig() NATSPublisherConfig {
	return NATSPublisherConfig{
		SubjectPrefix: "accounts",
		RetryPolicy:   DefaultRetryConfig(),
	}
}

// NATSPublisher публикует принятые события счетов в NATS для внешних
// потребителей. Subject формируется как {prefix}.{account_id}.{event_type}.
type NATSPublisher struct {
	config NATSPublisherConfig
	conn   *nats.Conn
	codec  *eventstore.Codec
}

// NewNATSPublisher создает NATS публикатор событий
func NewNATSPublisher(config NATSPublisherConfig, codec *eventstore.Codec) (*NATSPublisher, error) {
	if config.Conn == nil {
		return nil, fmt.Errorf("NATS connection is required")
	}
	if config.SubjectPrefix == "" {
		config.SubjectPrefix = "accounts"
	}
	return &NATSPublisher{config: config, conn: config.Conn, codec: codec}, nil
}

// Publish публикует событие счета с retry
func (p *NATSPublisher) Publish(ctx context.Context, evt account.Event) error {
	subject := fmt.Sprintf("%s.%s.%s", p.config.SubjectPrefix, evt.EntityID(), evt.EventType())

	data, err := p.codec.Encode(evt)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	return p.publishWithRetry(ctx, subject, data)
}

func (p *NATSPublisher) publishWithRetry(ctx context.Context, subject string, data []byte) error {
	retryConfig := p.config.RetryPolicy
	delay := retryConfig.InitialDelay

	for attempt := 0; attempt < retryConfig.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}

			delay = time.Duration(float64(delay) * retryConfig.BackoffMultiplier)
			if delay > retryConfig.MaxDelay {
				delay = retryConfig.MaxDelay
			}
		}

		if err := p.conn.Publish(subject, data); err == nil {
			return nil
		}
	}

	return fmt.Errorf("failed to publish event after %d attempts", retryConfig.MaxAttempts)
}
