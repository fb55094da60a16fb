// Package external предоставляет клиентов внешних трансферных сервисов.
// Реальных платежных шлюзов нет: клиенты имитируют внешний API с
// настраиваемой задержкой и вероятностью отказа.
package external

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/eventbank/ledger/domain/transfer"
)

// ErrTransferRejected внешний сервис отклонил перевод
var ErrTransferRejected = errors.New("transfer rejected by external service")

// ServiceDomesticTransfer имя сервиса внутристрановых переводов
const ServiceDomesticTransfer = "domestic-transfer"

// ServiceInternationalTransfer имя сервиса международных переводов
const ServiceInternationalTransfer = "international-transfer"

// TransferRequest запрос на перевод во внешний сервис
type TransferRequest struct {
	TransferID uuid.UUID
	Recipient  transfer.Recipient
	Amount     decimal.Decimal
	Reference  string
}

// TransferGateway клиент внешнего трансферного сервиса
type TransferGateway interface {
	// IssueTransfer отправляет перевод во внешний сервис
	IssueTransfer(ctx context.Context, req TransferRequest) error
}

// SimulatedGatewayConfig конфигурация имитируемого шлюза
type SimulatedGatewayConfig struct {
	// Latency имитируемая задержка ответа
	Latency time.Duration
	// FailureRate доля отказов, 0.0-1.0
	FailureRate float64
}

// SimulatedGateway имитация внешнего трансферного сервиса
type SimulatedGateway struct {
	mu     sync.Mutex
	config SimulatedGatewayConfig
	rand   *rand.Rand

	// forcedErr для тестов: детерминированный результат вместо вероятностного
	forcedErr error
	forced    bool
}

// NewSimulatedGateway создает имитируемый шлюз
func NewSimulatedGateway(config SimulatedGatewayConfig) *SimulatedGateway {
	return &SimulatedGateway{
		config: config,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// IssueTransfer имитирует вызов внешнего сервиса
func (g *SimulatedGateway) IssueTransfer(ctx context.Context, req TransferRequest) error {
	if err := req.Recipient.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrTransferRejected, err)
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: non-positive amount", ErrTransferRejected)
	}

	if g.config.Latency > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.config.Latency):
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.forced {
		return g.forcedErr
	}
	if g.config.FailureRate > 0 && g.rand.Float64() < g.config.FailureRate {
		return fmt.Errorf("%w: service unavailable", ErrTransferRejected)
	}
	return nil
}

// ForceResult фиксирует результат следующих вызовов (для тестов).
// nil означает принудительный успех.
func (g *SimulatedGateway) ForceResult(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.forced = true
	g.forcedErr = err
}

// ResetForcedResult возвращает шлюз к вероятностному поведению
func (g *SimulatedGateway) ResetForcedResult() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.forced = false
	g.forcedErr = nil
}
