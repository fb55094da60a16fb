package bank

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventbank/ledger/actors"
	"github.com/eventbank/ledger/circuitbreaker"
	"github.com/eventbank/ledger/domain/account"
	"github.com/eventbank/ledger/eventstore"
	"github.com/eventbank/ledger/external"
	"github.com/eventbank/ledger/notify"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	logger := slog.Default()

	store := eventstore.NewInMemoryStore(eventstore.DefaultInMemoryStoreConfig())
	hub := notify.NewHub()
	breakers := circuitbreaker.NewManager(logger)
	breakers.Subscribe(hub.PublishBreaker)

	saga := actors.NewTransferSaga(
		actors.DefaultTransferSagaConfig(),
		breakers,
		external.NewSimulatedGateway(external.SimulatedGatewayConfig{}),
		external.NewSimulatedGateway(external.SimulatedGatewayConfig{}),
		logger,
	)

	config := actors.DefaultRegistryConfig()
	config.Scheduler.Enabled = false
	registry := actors.NewRegistry(config, store, account.NewDecider(), hub, nil, saga, logger)
	saga.Bind(registry)
	saga.Start()

	t.Cleanup(func() {
		saga.Stop()
		registry.Shutdown()
		hub.Stop()
	})

	return NewService(registry, store, hub, breakers, nil, logger)
}

func TestService_CreateAccountValidation(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	_, err := service.CreateAccount(ctx, CreateAccountRequest{FirstName: "No", LastName: ""})
	assert.Error(t, err)

	_, err = service.CreateAccount(ctx, CreateAccountRequest{
		FirstName: "Neg",
		LastName:  "Ative",
		Balance:   decimal.NewFromInt(-1),
	})
	assert.Error(t, err)
}

func TestService_CreateSubmitAndReadBack(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	id, err := service.CreateAccount(ctx, CreateAccountRequest{
		FirstName: "Jelly",
		LastName:  "Fish",
		Balance:   decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	require.NoError(t, service.Submit(ctx, id, account.DepositCommand{
		BaseCommand: account.NewBaseCommand(id),
		Amount:      decimal.NewFromInt(150),
		Origin:      "atm",
	}))

	state, err := service.GetState(ctx, id)
	require.NoError(t, err)
	assert.True(t, state.Balance.Equal(decimal.NewFromInt(650)))
	// Валюта по умолчанию
	assert.Equal(t, "USD", state.Currency)

	history, err := service.GetHistory(ctx, id)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestService_UnknownAccount(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	id := uuid.New()

	_, err := service.GetState(ctx, id)
	assert.ErrorIs(t, err, ErrUnknownAccountID)

	_, err = service.GetHistory(ctx, id)
	assert.ErrorIs(t, err, ErrUnknownAccountID)

	err = service.Submit(ctx, id, account.DepositCommand{
		BaseCommand: account.NewBaseCommand(id),
		Amount:      decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, ErrUnknownAccountID)

	_, err = service.SubscribeAccount(ctx, id)
	assert.ErrorIs(t, err, ErrUnknownAccountID)
}

func TestService_DeleteAndRecreate(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	id, err := service.CreateAccount(ctx, CreateAccountRequest{
		FirstName: "Tem",
		LastName:  "Porary",
		Balance:   decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, id))

	_, err = service.GetState(ctx, id)
	assert.ErrorIs(t, err, ErrUnknownAccountID)
}

func TestService_SubscriptionDeliversUpdates(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	id, err := service.CreateAccount(ctx, CreateAccountRequest{
		FirstName: "Sub",
		LastName:  "Scriber",
		Balance:   decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	sub, err := service.SubscribeAccount(ctx, id)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, service.Submit(ctx, id, account.DepositCommand{
		BaseCommand: account.NewBaseCommand(id),
		Amount:      decimal.NewFromInt(25),
		Origin:      "atm",
	}))

	select {
	case update := <-sub.Updates():
		assert.Equal(t, account.EventDepositedCash, update.Event.EventType())
		assert.True(t, update.State.Balance.Equal(decimal.NewFromInt(125)))
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}
}

func TestService_BreakerState(t *testing.T) {
	service := newTestService(t)

	// Breaker'ы внешних сервисов зарегистрированы сагой при создании
	assert.Equal(t, circuitbreaker.StateClosed, service.BreakerState(external.ServiceDomesticTransfer))
	assert.Equal(t, circuitbreaker.StateUnknown, service.BreakerState("no-such-service"))
}
