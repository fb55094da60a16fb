package eventstore

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventbank/ledger/domain/account"
	"github.com/eventbank/ledger/domain/transfer"
)

func TestCodec_TransferPendingRoundTrip(t *testing.T) {
	codec := NewCodec()
	accountID := uuid.New()
	transferID := uuid.New()

	original := account.TransferPending{
		BaseEvent:  account.NewBaseEvent(account.EventTransferPending, accountID),
		TransferID: transferID,
		Recipient: transfer.Recipient{
			FirstName:              "Ann",
			LastName:               "Doe",
			Identification:         "123456",
			AccountEnvironment:     transfer.EnvironmentDomestic,
			IdentificationStrategy: transfer.IdentifyByAccountID,
			RoutingNumber:          "021000021",
			Currency:               "USD",
		},
		DebitedAmount: decimal.RequireFromString("200.45"),
		Reference:     "rent",
	}

	data, err := codec.Encode(original)
	require.NoError(t, err)

	decoded, err := codec.Decode(account.EventTransferPending, data)
	require.NoError(t, err)

	pending, ok := decoded.(account.TransferPending)
	require.True(t, ok)
	assert.Equal(t, transferID, pending.TransferID)
	assert.True(t, pending.DebitedAmount.Equal(original.DebitedAmount))
	// Ключ получателя переживает сериализацию
	assert.Equal(t, original.Recipient.Key(), pending.Recipient.Key())
}

func TestCodec_DecodedEventsFoldable(t *testing.T) {
	codec := NewCodec()
	id := uuid.New()

	history := []account.Event{
		account.CreatedAccount{
			BaseEvent: account.NewBaseEvent(account.EventCreatedAccount, id),
			FirstName: "Jelly",
			LastName:  "Fish",
			Currency:  "USD",
			Balance:   decimal.NewFromInt(500),
		},
		account.DepositedCash{
			BaseEvent:       account.NewBaseEvent(account.EventDepositedCash, id),
			DepositedAmount: decimal.NewFromInt(300),
			Origin:          "atm",
		},
		account.LockedCard{
			BaseEvent: account.NewBaseEvent(account.EventLockedCard, id),
		},
	}

	decoded := make([]account.Event, 0, len(history))
	for _, evt := range history {
		data, err := codec.Encode(evt)
		require.NoError(t, err)
		out, err := codec.Decode(evt.EventType(), data)
		require.NoError(t, err)
		decoded = append(decoded, out)
	}

	state, err := account.Fold(decoded)
	require.NoError(t, err)
	assert.True(t, state.Balance.Equal(decimal.NewFromInt(800)))
	assert.Equal(t, account.StatusActiveWithLockedCard, state.Status)
}

func TestCodec_UnknownEventType(t *testing.T) {
	codec := NewCodec()
	_, err := codec.Decode("NoSuchEvent", []byte(`{}`))
	assert.Error(t, err)
}
