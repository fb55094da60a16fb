// Package bank предоставляет фасад банковского сервиса поверх реестра
// акторов, хранилища событий и шины уведомлений.
package bank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/eventbank/ledger/actors"
	"github.com/eventbank/ledger/circuitbreaker"
	"github.com/eventbank/ledger/domain/account"
	"github.com/eventbank/ledger/eventstore"
	"github.com/eventbank/ledger/metrics"
	"github.com/eventbank/ledger/notify"
)

// ErrUnknownAccountID счет не существует (алиас для уровня фасада)
var ErrUnknownAccountID = actors.ErrUnknownAccountID

// CreateAccountRequest запрос на открытие счета
type CreateAccountRequest struct {
	FirstName string
	LastName  string
	Currency  string
	Balance   decimal.Decimal
}

// Validate проверяет запрос на открытие счета
func (r *CreateAccountRequest) Validate() error {
	if r.FirstName == "" || r.LastName == "" {
		return fmt.Errorf("first name and last name are required")
	}
	if r.Balance.IsNegative() {
		return fmt.Errorf("opening balance cannot be negative")
	}
	if r.Currency == "" {
		r.Currency = "USD"
	}
	return nil
}

// Service фасад банковского сервиса. Команды подтверждаются фактом
// записи события в поток; чтение состояния идет из живого актора,
// чтение истории - напрямую из хранилища.
type Service struct {
	registry *actors.Registry
	store    eventstore.Store
	hub      *notify.Hub
	breakers *circuitbreaker.Manager
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewService создает фасад банковского сервиса
func NewService(
	registry *actors.Registry,
	store eventstore.Store,
	hub *notify.Hub,
	breakers *circuitbreaker.Manager,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: registry,
		store:    store,
		hub:      hub,
		breakers: breakers,
		metrics:  m,
		logger:   logger,
	}
}

// CreateAccount открывает новый счет и возвращает его идентификатор
func (s *Service) CreateAccount(ctx context.Context, req CreateAccountRequest) (uuid.UUID, error) {
	if err := req.Validate(); err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	evt := account.CreatedAccount{
		BaseEvent: account.NewBaseEvent(account.EventCreatedAccount, id),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Currency:  req.Currency,
		Balance:   req.Balance,
	}

	started := time.Now()
	_, err := s.registry.Create(ctx, evt)
	s.record(ctx, "CreateAccount", started, err)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Submit направляет команду счету. Успешный возврат означает, что
// событие записано в поток и применено к состоянию.
func (s *Service) Submit(ctx context.Context, id uuid.UUID, cmd account.Command) error {
	started := time.Now()
	err := s.registry.Submit(ctx, id, cmd)
	s.record(ctx, cmd.CommandType(), started, err)
	return err
}

// GetState возвращает текущее состояние счета
func (s *Service) GetState(ctx context.Context, id uuid.UUID) (account.AccountState, error) {
	actor, err := s.registry.Lookup(ctx, id)
	if err != nil {
		return account.AccountState{}, err
	}
	return actor.State(), nil
}

// GetHistory возвращает полную историю событий счета
func (s *Service) GetHistory(ctx context.Context, id uuid.UUID) ([]account.Event, error) {
	events, err := s.store.ReadAll(ctx, eventstore.StreamName(id))
	if err != nil {
		if errors.Is(err, eventstore.ErrStreamNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAccountID, id)
		}
		return nil, err
	}
	return events, nil
}

// Delete удаляет счет: актор останавливается, поток событий скрывается
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.registry.Delete(ctx, id)
}

// SubscribeAccount подписывает на обновления счета
func (s *Service) SubscribeAccount(ctx context.Context, id uuid.UUID) (*notify.AccountSubscription, error) {
	exists, err := s.registry.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccountID, id)
	}
	return s.hub.SubscribeAccount(id)
}

// SubscribeBreaker подписывает на изменения состояний breaker'ов
func (s *Service) SubscribeBreaker() (*notify.BreakerSubscription, error) {
	return s.hub.SubscribeBreaker()
}

// BreakerState возвращает текущее состояние breaker'а сервиса
func (s *Service) BreakerState(service string) circuitbreaker.State {
	return s.breakers.GetState(service)
}

func (s *Service) record(ctx context.Context, commandType string, started time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordCommand(ctx, commandType, time.Since(started), err == nil)
}
