package account

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/eventbank/ledger/domain/transfer"
)

// Command команда к агрегату счета. Команды не персистятся -
// сохраняются только порожденные ими события.
type Command interface {
	// AccountID возвращает идентификатор счета-адресата
	AccountID() uuid.UUID
	// CommandType возвращает имя типа команды
	CommandType() string
	// IssuedAt возвращает время выдачи команды
	IssuedAt() time.Time
}

// BaseCommand базовая часть каждой команды
type BaseCommand struct {
	EntityId  uuid.UUID
	Timestamp time.Time
}

// NewBaseCommand создает базовую команду с текущим временем UTC
func NewBaseCommand(entityID uuid.UUID) BaseCommand {
	return BaseCommand{EntityId: entityID, Timestamp: timeNow().UTC()}
}

func (c BaseCommand) AccountID() uuid.UUID { return c.EntityId }
func (c BaseCommand) IssuedAt() time.Time  { return c.Timestamp }

// CreateAccountCommand открывает новый счет
type CreateAccountCommand struct {
	BaseCommand
	FirstName string
	LastName  string
	Currency  string
	Balance   decimal.Decimal
}

func (CreateAccountCommand) CommandType() string { return "CreateAccount" }

// DepositCommand пополняет счет
type DepositCommand struct {
	BaseCommand
	Amount decimal.Decimal
	Origin string
}

func (DepositCommand) CommandType() string { return "Deposit" }

// DebitCommand списывает со счета. Origin различает пользовательские
// списания и списания системных акторов (комиссия обслуживания).
type DebitCommand struct {
	BaseCommand
	Amount    decimal.Decimal
	Origin    string
	Reference string
}

func (DebitCommand) CommandType() string { return "Debit" }

// TransferCommand начинает перевод зарегистрированному получателю
type TransferCommand struct {
	BaseCommand
	TransferID uuid.UUID
	Recipient  transfer.Recipient
	Amount     decimal.Decimal
	Reference  string
}

func (TransferCommand) CommandType() string { return "Transfer" }

// ApproveTransferCommand подтверждает ожидающий перевод.
// Соответствие ожидающему переводу гарантирует сага, не агрегат.
type ApproveTransferCommand struct {
	BaseCommand
	TransferID uuid.UUID
	Recipient  transfer.Recipient
	Amount     decimal.Decimal
}

func (ApproveTransferCommand) CommandType() string { return "ApproveTransfer" }

// RejectTransferCommand отклоняет ожидающий перевод с возвратом средств
type RejectTransferCommand struct {
	BaseCommand
	TransferID uuid.UUID
	Recipient  transfer.Recipient
	Amount     decimal.Decimal
	Reason     string
}

func (RejectTransferCommand) CommandType() string { return "RejectTransfer" }

// LimitDailyDebitsCommand устанавливает дневной лимит списаний
type LimitDailyDebitsCommand struct {
	BaseCommand
	DebitLimit decimal.Decimal
}

func (LimitDailyDebitsCommand) CommandType() string { return "LimitDailyDebits" }

// LockCardCommand блокирует карту счета
type LockCardCommand struct {
	BaseCommand
	Reference string
}

func (LockCardCommand) CommandType() string { return "LockCard" }

// UnlockCardCommand разблокирует карту счета
type UnlockCardCommand struct {
	BaseCommand
	Reference string
}

func (UnlockCardCommand) CommandType() string { return "UnlockCard" }

// RegisterTransferRecipientCommand регистрирует получателя переводов
type RegisterTransferRecipientCommand struct {
	BaseCommand
	Recipient transfer.Recipient
}

func (RegisterTransferRecipientCommand) CommandType() string { return "RegisterTransferRecipient" }

// RunMaintenanceFeeCommand списывает комиссию обслуживания
type RunMaintenanceFeeCommand struct {
	BaseCommand
	Amount decimal.Decimal
}

func (RunMaintenanceFeeCommand) CommandType() string { return "RunMaintenanceFee" }

// SkipMaintenanceFeeCommand фиксирует пропуск комиссии обслуживания
type SkipMaintenanceFeeCommand struct {
	BaseCommand
	DepositCriteria bool
	BalanceCriteria bool
}

func (SkipMaintenanceFeeCommand) CommandType() string { return "SkipMaintenanceFee" }

// CloseAccountCommand закрывает счет
type CloseAccountCommand struct {
	BaseCommand
	Reference string
}

func (CloseAccountCommand) CommandType() string { return "CloseAccount" }
