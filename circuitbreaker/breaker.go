// Package circuitbreaker предоставляет per-service circuit breaker'ы
// для вызовов ненадежных внешних сервисов.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen вызов отклонен разомкнутым breaker'ом. Отдается
// отдельной ошибкой, чтобы вызывающий мог применить собственный
// backoff, а не трактовать отказ как сбой нижележащего сервиса.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State состояние breaker'а защищаемого сервиса
type State string

const (
	StateClosed   State = "Closed"
	StateOpen     State = "Open"
	StateHalfOpen State = "HalfOpen"
	StateUnknown  State = "Unknown"
)

// StateChange уведомление об изменении состояния breaker'а
type StateChange struct {
	Service string
	From    State
	To      State
	At      time.Time
}

// Config конфигурация breaker'а одного защищаемого сервиса
type Config struct {
	// MaxFailures подряд идущих сбоев до размыкания
	MaxFailures uint32
	// ResetTimeout пауза в Open до пробного полуоткрытого вызова
	ResetTimeout time.Duration
	// CallTimeout таймаут одного вызова защищаемого сервиса
	CallTimeout time.Duration
}

// DefaultConfig возвращает конфигурацию breaker'а по умолчанию
func DefaultConfig() Config {
	return Config{
		MaxFailures:  5,
		ResetTimeout: 30 * time.Second,
		CallTimeout:  10 * time.Second,
	}
}

// Manager управляет независимыми breaker'ами по имени защищаемого
// сервиса и рассылает изменения состояний подписчикам.
type Manager struct {
	mu        sync.RWMutex
	breakers  map[string]*gobreaker.CircuitBreaker
	configs   map[string]Config
	listeners []func(StateChange)
	logger    *slog.Logger
}

// NewManager создает менеджер breaker'ов
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		configs:  make(map[string]Config),
		logger:   logger,
	}
}

// GetOrCreate возвращает breaker сервиса, создавая его при первом обращении
func (m *Manager) GetOrCreate(service string, config Config) *gobreaker.CircuitBreaker {
	m.mu.RLock()
	breaker, exists := m.breakers[service]
	m.mu.RUnlock()
	if exists {
		return breaker
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if breaker, exists = m.breakers[service]; exists {
		return breaker
	}

	settings := gobreaker.Settings{
		Name: service,
		// Ровно один пробный вызов в полуоткрытом состоянии
		MaxRequests: 1,
		Timeout:     config.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			m.handleStateChange(name, from, to)
		},
	}

	breaker = gobreaker.NewCircuitBreaker(settings)
	m.breakers[service] = breaker
	m.configs[service] = config
	m.logger.Info("created circuit breaker", "service", service)
	return breaker
}

// Execute выполняет fn через breaker сервиса с таймаутом вызова.
// Разомкнутый breaker и отклоненный пробный вызов отдаются как
// ErrCircuitOpen, ошибки fn проходят как есть.
func (m *Manager) Execute(ctx context.Context, service string, fn func(ctx context.Context) error) error {
	m.mu.RLock()
	breaker, exists := m.breakers[service]
	config := m.configs[service]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("circuit breaker not found for service %s (call GetOrCreate first)", service)
	}

	_, err := breaker.Execute(func() (interface{}, error) {
		callCtx := ctx
		if config.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, config.CallTimeout)
			defer cancel()
		}
		return nil, fn(callCtx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			m.logger.Warn("circuit breaker rejected call", "service", service)
			return fmt.Errorf("%w: %s", ErrCircuitOpen, service)
		}
		return err
	}
	return nil
}

// GetState возвращает текущее состояние breaker'а сервиса
func (m *Manager) GetState(service string) State {
	m.mu.RLock()
	breaker, exists := m.breakers[service]
	m.mu.RUnlock()
	if !exists {
		return StateUnknown
	}
	return convertState(breaker.State())
}

// Subscribe регистрирует подписчика изменений состояний breaker'ов
func (m *Manager) Subscribe(listener func(StateChange)) {
	if listener == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, listener)
}

func (m *Manager) handleStateChange(service string, from, to gobreaker.State) {
	m.logger.Warn("circuit breaker state changed",
		"service", service, "from", from.String(), "to", to.String())

	change := StateChange{
		Service: service,
		From:    convertState(from),
		To:      convertState(to),
		At:      time.Now().UTC(),
	}

	m.mu.RLock()
	listeners := make([]func(StateChange), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()

	// Уведомляем в горутинах, чтобы не блокировать операции breaker'а
	for _, listener := range listeners {
		go func(l func(StateChange)) {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("state change listener panic", "service", service, "panic", r)
				}
			}()
			l(change)
		}(listener)
	}
}

func convertState(state gobreaker.State) State {
	switch state {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateUnknown
	}
}
