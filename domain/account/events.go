// Package account содержит чистый агрегат банковского счета:
// состояние, события, команды и переходы состояния.
package account

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/eventbank/ledger/domain/transfer"
)

// Имена типов событий. Имя события совпадает с именем Go-типа и
// используется таблицей сериализации event store.
const (
	EventCreatedAccount         = "CreatedAccount"
	EventDepositedCash          = "DepositedCash"
	EventDebitedAccount         = "DebitedAccount"
	EventDailyDebitLimitUpdated = "DailyDebitLimitUpdated"
	EventMaintenanceFeeDebited  = "MaintenanceFeeDebited"
	EventMaintenanceFeeSkipped  = "MaintenanceFeeSkipped"
	EventLockedCard             = "LockedCard"
	EventUnlockedCard           = "UnlockedCard"
	EventTransferPending        = "TransferPending"
	EventTransferApproved       = "TransferApproved"
	EventTransferRejected       = "TransferRejected"
	EventInternalRecipient      = "InternalTransferRecipientRegistered"
	EventDomesticRecipient      = "DomesticTransferRecipientRegistered"
	EventInternationalRecipient = "InternationalTransferRecipientRegistered"
	EventClosedAccount          = "ClosedAccount"
)

// Event доменное событие счета. События неизменяемы после записи в поток,
// порядок внутри потока - единственный источник истины.
type Event interface {
	// EntityID возвращает идентификатор счета-агрегата
	EntityID() uuid.UUID
	// EventType возвращает имя типа события
	EventType() string
	// OccurredAt возвращает время возникновения события
	OccurredAt() time.Time
}

// BaseEvent базовая часть каждого события счета
type BaseEvent struct {
	EntityId  uuid.UUID `json:"entityId"`
	Type      string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent создает базовое событие с текущим временем UTC
func NewBaseEvent(eventType string, entityID uuid.UUID) BaseEvent {
	return BaseEvent{
		EntityId:  entityID,
		Type:      eventType,
		Timestamp: timeNow().UTC(),
	}
}

func (e BaseEvent) EntityID() uuid.UUID   { return e.EntityId }
func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// CreatedAccount событие открытия счета, первое событие потока
type CreatedAccount struct {
	BaseEvent
	FirstName string          `json:"firstName"`
	LastName  string          `json:"lastName"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
}

// DepositedCash событие пополнения счета. Origin отличает пользовательское
// пополнение от кредита входящего внутреннего перевода ("account:<id>").
type DepositedCash struct {
	BaseEvent
	DepositedAmount decimal.Decimal `json:"depositedAmount"`
	Origin          string          `json:"origin"`
}

// DebitedAccount событие списания со счета
type DebitedAccount struct {
	BaseEvent
	DebitedAmount decimal.Decimal `json:"debitedAmount"`
	Origin        string          `json:"origin"`
	Reference     string          `json:"reference,omitempty"`
}

// DailyDebitLimitUpdated событие изменения дневного лимита списаний
type DailyDebitLimitUpdated struct {
	BaseEvent
	DebitLimit decimal.Decimal `json:"debitLimit"`
}

// MaintenanceFeeDebited событие списания ежемесячной комиссии обслуживания
type MaintenanceFeeDebited struct {
	BaseEvent
	DebitedAmount decimal.Decimal `json:"debitedAmount"`
}

// MaintenanceFeeSkipped событие пропуска комиссии: один из критериев выполнен
type MaintenanceFeeSkipped struct {
	BaseEvent
	DepositCriteria bool `json:"depositCriteria"`
	BalanceCriteria bool `json:"balanceCriteria"`
}

// LockedCard событие блокировки карты
type LockedCard struct {
	BaseEvent
	Reference string `json:"reference,omitempty"`
}

// UnlockedCard событие разблокировки карты
type UnlockedCard struct {
	BaseEvent
	Reference string `json:"reference,omitempty"`
}

// TransferPending событие начала перевода: сумма списана со счета
// отправителя и удерживается до подтверждения или отклонения.
type TransferPending struct {
	BaseEvent
	TransferID    uuid.UUID          `json:"transferId"`
	Recipient     transfer.Recipient `json:"recipient"`
	DebitedAmount decimal.Decimal    `json:"debitedAmount"`
	Reference     string             `json:"reference,omitempty"`
}

// TransferApproved событие подтверждения перевода получающей стороной
type TransferApproved struct {
	BaseEvent
	TransferID     uuid.UUID          `json:"transferId"`
	Recipient      transfer.Recipient `json:"recipient"`
	ApprovedAmount decimal.Decimal    `json:"approvedAmount"`
}

// TransferRejected событие отклонения перевода. Применение события
// возвращает удержанную сумму на счет отправителя (компенсация саги).
type TransferRejected struct {
	BaseEvent
	TransferID    uuid.UUID          `json:"transferId"`
	Recipient     transfer.Recipient `json:"recipient"`
	DebitedAmount decimal.Decimal    `json:"debitedAmount"`
	Reason        string             `json:"reason"`
}

// InternalTransferRecipientRegistered регистрация внутреннего получателя
type InternalTransferRecipientRegistered struct {
	BaseEvent
	Recipient transfer.Recipient `json:"recipient"`
}

// DomesticTransferRecipientRegistered регистрация получателя внутри страны
type DomesticTransferRecipientRegistered struct {
	BaseEvent
	Recipient transfer.Recipient `json:"recipient"`
}

// InternationalTransferRecipientRegistered регистрация зарубежного получателя
type InternationalTransferRecipientRegistered struct {
	BaseEvent
	Recipient transfer.Recipient `json:"recipient"`
}

// ClosedAccount событие закрытия счета
type ClosedAccount struct {
	BaseEvent
	Reference string `json:"reference,omitempty"`
}
