package eventstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventbank/ledger/domain/account"
)

func testCreated(id uuid.UUID) account.CreatedAccount {
	return account.CreatedAccount{
		BaseEvent: account.NewBaseEvent(account.EventCreatedAccount, id),
		FirstName: "Test",
		LastName:  "Account",
		Currency:  "USD",
		Balance:   decimal.NewFromInt(100),
	}
}

func TestInMemoryStore_AppendExpectations(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(DefaultInMemoryStoreConfig())
	id := uuid.New()
	stream := StreamName(id)

	// Запись в существующий поток до создания отклоняется
	err := store.Append(ctx, stream, testCreated(id), ExpectedStreamExists)
	assert.ErrorIs(t, err, ErrConcurrencyConflict)

	require.NoError(t, store.Append(ctx, stream, testCreated(id), ExpectedNoStream))

	// Повторное создание отклоняется
	err = store.Append(ctx, stream, testCreated(id), ExpectedNoStream)
	assert.ErrorIs(t, err, ErrConcurrencyConflict)

	deposit := account.DepositedCash{
		BaseEvent:       account.NewBaseEvent(account.EventDepositedCash, id),
		DepositedAmount: decimal.NewFromInt(50),
	}
	require.NoError(t, store.Append(ctx, stream, deposit, ExpectedStreamExists))

	events, err := store.ReadAll(ctx, stream)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, account.EventCreatedAccount, events[0].EventType())
	assert.Equal(t, account.EventDepositedCash, events[1].EventType())
}

func TestInMemoryStore_ReadUnknownStream(t *testing.T) {
	store := NewInMemoryStore(DefaultInMemoryStoreConfig())

	_, err := store.ReadAll(context.Background(), StreamName(uuid.New()))
	assert.ErrorIs(t, err, ErrStreamNotFound)
}

func TestInMemoryStore_SoftDelete(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(DefaultInMemoryStoreConfig())
	id := uuid.New()
	stream := StreamName(id)

	require.NoError(t, store.Append(ctx, stream, testCreated(id), ExpectedNoStream))
	require.NoError(t, store.SoftDelete(ctx, stream))

	// Поток для чтения не существует
	_, err := store.ReadAll(ctx, stream)
	assert.ErrorIs(t, err, ErrStreamNotFound)

	exists, err := store.Exists(ctx, stream)
	require.NoError(t, err)
	assert.False(t, exists)

	// Счет можно создать заново под тем же идентификатором
	require.NoError(t, store.Append(ctx, stream, testCreated(id), ExpectedNoStream))
	events, err := store.ReadAll(ctx, stream)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestInMemoryStore_MaxEventsPerStream(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore(InMemoryStoreConfig{MaxEventsPerStream: 2})
	id := uuid.New()
	stream := StreamName(id)

	require.NoError(t, store.Append(ctx, stream, testCreated(id), ExpectedNoStream))
	deposit := account.DepositedCash{
		BaseEvent:       account.NewBaseEvent(account.EventDepositedCash, id),
		DepositedAmount: decimal.NewFromInt(1),
	}
	require.NoError(t, store.Append(ctx, stream, deposit, ExpectedStreamExists))
	assert.Error(t, store.Append(ctx, stream, deposit, ExpectedStreamExists))
}
