package eventstore

import (
	"encoding/json"
	"fmt"

	"github.com/eventbank/ledger/domain/account"
)

// Codec явная таблица (де)сериализации событий: тип события -> декодер.
// Строится один раз при старте и передается хранилищам по ссылке,
// глобального изменяемого реестра типов нет.
type Codec struct {
	decoders map[string]func([]byte) (account.Event, error)
}

// NewCodec создает кодек со всеми типами событий счета
func NewCodec() *Codec {
	return &Codec{decoders: map[string]func([]byte) (account.Event, error){
		account.EventCreatedAccount:         decodeAs[account.CreatedAccount],
		account.EventDepositedCash:          decodeAs[account.DepositedCash],
		account.EventDebitedAccount:         decodeAs[account.DebitedAccount],
		account.EventDailyDebitLimitUpdated: decodeAs[account.DailyDebitLimitUpdated],
		account.EventMaintenanceFeeDebited:  decodeAs[account.MaintenanceFeeDebited],
		account.EventMaintenanceFeeSkipped:  decodeAs[account.MaintenanceFeeSkipped],
		account.EventLockedCard:             decodeAs[account.LockedCard],
		account.EventUnlockedCard:           decodeAs[account.UnlockedCard],
		account.EventTransferPending:        decodeAs[account.TransferPending],
		account.EventTransferApproved:       decodeAs[account.TransferApproved],
		account.EventTransferRejected:       decodeAs[account.TransferRejected],
		account.EventInternalRecipient:      decodeAs[account.InternalTransferRecipientRegistered],
		account.EventDomesticRecipient:      decodeAs[account.DomesticTransferRecipientRegistered],
		account.EventInternationalRecipient: decodeAs[account.InternationalTransferRecipientRegistered],
		account.EventClosedAccount:          decodeAs[account.ClosedAccount],
	}}
}

// Encode сериализует событие в JSON
func (c *Codec) Encode(evt account.Event) ([]byte, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event %s: %w", evt.EventType(), err)
	}
	return data, nil
}

// Decode десериализует JSON в конкретный тип события по имени типа
func (c *Codec) Decode(eventType string, data []byte) (account.Event, error) {
	decode, ok := c.decoders[eventType]
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
	return decode(data)
}

func decodeAs[T account.Event](data []byte) (account.Event, error) {
	var evt T
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	return evt, nil
}
