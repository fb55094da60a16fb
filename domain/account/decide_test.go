package account

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventbank/ledger/domain/transfer"
)

func activeState(balance int64) AccountState {
	return Create(createdAccount(balance))
}

func TestDecide_DepositValidation(t *testing.T) {
	decider := NewDecider()
	state := activeState(100)

	_, err := decider.Decide(state, DepositCommand{
		BaseCommand: NewBaseCommand(testAccountID),
		Amount:      decimal.Zero,
	})
	assert.ErrorIs(t, err, ErrInvalidDepositAmount)

	evt, err := decider.Decide(state, DepositCommand{
		BaseCommand: NewBaseCommand(testAccountID),
		Amount:      decimal.NewFromInt(50),
		Origin:      "atm",
	})
	require.NoError(t, err)
	assert.Equal(t, EventDepositedCash, evt.EventType())
}

func TestDecide_DebitInsufficientBalance(t *testing.T) {
	decider := NewDecider()
	state := activeState(100)

	_, err := decider.Decide(state, DebitCommand{
		BaseCommand: NewBaseCommand(testAccountID),
		Amount:      decimal.NewFromInt(101),
		Origin:      "card",
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// Ровно до нуля - допустимо
	_, err = decider.Decide(state, DebitCommand{
		BaseCommand: NewBaseCommand(testAccountID),
		Amount:      decimal.NewFromInt(100),
		Origin:      "card",
	})
	assert.NoError(t, err)
}

func TestDecide_DailyDebitLimitBoundary(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return now }
	defer func() { timeNow = time.Now }()

	decider := NewDecider()
	state := activeState(10000)
	state = Apply(state, DailyDebitLimitUpdated{
		BaseEvent:  BaseEvent{EntityId: testAccountID, Type: EventDailyDebitLimitUpdated, Timestamp: now},
		DebitLimit: decimal.NewFromInt(100),
	})

	// 100.00 в пределах лимита
	evt, err := decider.Decide(state, DebitCommand{
		BaseCommand: NewBaseCommand(testAccountID),
		Amount:      decimal.NewFromInt(100),
		Origin:      "card",
	})
	require.NoError(t, err)
	state = Apply(state, evt)

	// Накоплено 100: еще 0.01 превышает лимит
	_, err = decider.Decide(state, DebitCommand{
		BaseCommand: NewBaseCommand(testAccountID),
		Amount:      decimal.RequireFromString("0.01"),
		Origin:      "card",
	})
	assert.ErrorIs(t, err, ErrExceededDailyDebitLimit)

	// Новый календарный день обнуляет накопление
	timeNow = func() time.Time { return now.Add(24 * time.Hour) }
	_, err = decider.Decide(state, DebitCommand{
		BaseCommand: NewBaseCommand(testAccountID),
		Amount:      decimal.NewFromInt(100),
		Origin:      "card",
	})
	assert.NoError(t, err)
}

func TestDecide_LockedCardGating(t *testing.T) {
	decider := NewDecider()
	state := activeState(1000)
	state = Apply(state, LockedCard{BaseEvent: NewBaseEvent(EventLockedCard, testAccountID)})

	// Пользовательское списание с заблокированной картой отклоняется
	_, err := decider.Decide(state, DebitCommand{
		BaseCommand: NewBaseCommand(testAccountID),
		Amount:      decimal.NewFromInt(10),
		Origin:      "card",
	})
	assert.ErrorIs(t, err, ErrAccountCardLocked)

	// Списание комиссии обслуживания проходит
	_, err = decider.Decide(state, DebitCommand{
		BaseCommand: NewBaseCommand(testAccountID),
		Amount:      decimal.NewFromInt(5),
		Origin:      DebitOriginMaintenanceFee,
	})
	assert.NoError(t, err)
}

func TestDecide_ConfigurableExemptOrigin(t *testing.T) {
	decider := NewDecider("actor:billing")
	state := activeState(1000)
	state = Apply(state, LockedCard{BaseEvent: NewBaseEvent(EventLockedCard, testAccountID)})

	_, err := decider.Decide(state, DebitCommand{
		BaseCommand: NewBaseCommand(testAccountID),
		Amount:      decimal.NewFromInt(10),
		Origin:      "actor:billing",
	})
	assert.NoError(t, err)
}

func TestDecide_LockUnlockStates(t *testing.T) {
	decider := NewDecider()
	state := activeState(100)

	_, err := decider.Decide(state, UnlockCardCommand{BaseCommand: NewBaseCommand(testAccountID)})
	assert.ErrorIs(t, err, ErrCardAlreadyUnlocked)

	evt, err := decider.Decide(state, LockCardCommand{BaseCommand: NewBaseCommand(testAccountID)})
	require.NoError(t, err)
	state = Apply(state, evt)

	_, err = decider.Decide(state, LockCardCommand{BaseCommand: NewBaseCommand(testAccountID)})
	assert.ErrorIs(t, err, ErrCardAlreadyLocked)

	evt, err = decider.Decide(state, UnlockCardCommand{BaseCommand: NewBaseCommand(testAccountID)})
	require.NoError(t, err)
	state = Apply(state, evt)
	assert.Equal(t, StatusActive, state.Status)
}

func TestDecide_TransferRequiresRegisteredRecipient(t *testing.T) {
	decider := NewDecider()
	recipient := internalRecipient(uuid.New())
	state := activeState(500)

	_, err := decider.Decide(state, TransferCommand{
		BaseCommand: NewBaseCommand(testAccountID),
		TransferID:  uuid.New(),
		Recipient:   recipient,
		Amount:      decimal.NewFromInt(200),
	})
	assert.ErrorIs(t, err, ErrRecipientRegistrationRequired)

	evt, err := decider.Decide(state, RegisterTransferRecipientCommand{
		BaseCommand: NewBaseCommand(testAccountID),
		Recipient:   recipient,
	})
	require.NoError(t, err)
	state = Apply(state, evt)

	evt, err = decider.Decide(state, TransferCommand{
		BaseCommand: NewBaseCommand(testAccountID),
		TransferID:  uuid.New(),
		Recipient:   recipient,
		Amount:      decimal.NewFromInt(200),
	})
	require.NoError(t, err)
	assert.Equal(t, EventTransferPending, evt.EventType())
}

func TestDecide_DuplicateRecipientRejected(t *testing.T) {
	decider := NewDecider()
	recipient := internalRecipient(uuid.New())
	state := activeState(100)

	evt, err := decider.Decide(state, RegisterTransferRecipientCommand{
		BaseCommand: NewBaseCommand(testAccountID),
		Recipient:   recipient,
	})
	require.NoError(t, err)
	state = Apply(state, evt)

	_, err = decider.Decide(state, RegisterTransferRecipientCommand{
		BaseCommand: NewBaseCommand(testAccountID),
		Recipient:   recipient,
	})
	assert.ErrorIs(t, err, ErrRecipientAlreadyRegistered)
}

func TestDecide_DomesticRecipientsKeyedByRouting(t *testing.T) {
	decider := NewDecider()
	state := activeState(100)

	first := transfer.Recipient{
		FirstName:              "Ann",
		LastName:               "Doe",
		Identification:         "123456",
		AccountEnvironment:     transfer.EnvironmentDomestic,
		IdentificationStrategy: transfer.IdentifyByAccountID,
		RoutingNumber:          "021000021",
		Currency:               "USD",
	}
	second := first
	second.RoutingNumber = "121000358"

	evt, err := decider.Decide(state, RegisterTransferRecipientCommand{
		BaseCommand: NewBaseCommand(testAccountID),
		Recipient:   first,
	})
	require.NoError(t, err)
	state = Apply(state, evt)

	// Тот же номер счета в другом банке - другой получатель
	evt, err = decider.Decide(state, RegisterTransferRecipientCommand{
		BaseCommand: NewBaseCommand(testAccountID),
		Recipient:   second,
	})
	require.NoError(t, err)
	state = Apply(state, evt)
	assert.Len(t, state.TransferRecipients, 2)
}

func TestDecide_ClosedAccountRejectsCommands(t *testing.T) {
	decider := NewDecider()
	state := activeState(100)
	state = Apply(state, ClosedAccount{BaseEvent: NewBaseEvent(EventClosedAccount, testAccountID)})

	_, err := decider.Decide(state, DepositCommand{
		BaseCommand: NewBaseCommand(testAccountID),
		Amount:      decimal.NewFromInt(10),
	})
	assert.ErrorIs(t, err, ErrAccountNotActive)

	_, err = decider.Decide(state, DebitCommand{
		BaseCommand: NewBaseCommand(testAccountID),
		Amount:      decimal.NewFromInt(10),
	})
	assert.ErrorIs(t, err, ErrAccountNotActive)

	_, err = decider.Decide(state, CloseAccountCommand{BaseCommand: NewBaseCommand(testAccountID)})
	assert.ErrorIs(t, err, ErrAccountNotActive)
}

func TestDecide_MaintenanceFee(t *testing.T) {
	decider := NewDecider()
	state := activeState(3)

	_, err := decider.Decide(state, RunMaintenanceFeeCommand{
		BaseCommand: NewBaseCommand(testAccountID),
		Amount:      decimal.NewFromInt(5),
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	evt, err := decider.Decide(state, SkipMaintenanceFeeCommand{
		BaseCommand:     NewBaseCommand(testAccountID),
		DepositCriteria: true,
	})
	require.NoError(t, err)
	assert.Equal(t, EventMaintenanceFeeSkipped, evt.EventType())
}
