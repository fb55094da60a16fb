package account

import (
	"github.com/shopspring/decimal"

	"github.com/eventbank/ledger/domain/transfer"
)

// Decider проверяет предусловия команд и порождает события.
// Состояние не мутирует - вызывающий применяет событие через Apply.
// Список origin, освобожденных от проверок карты и дневного лимита,
// задается конфигурацией при старте.
type Decider struct {
	exemptOrigins map[string]struct{}
}

// NewDecider создает Decider. Origin актора комиссии обслуживания
// освобожден всегда; дополнительные системные origin передаются извне.
func NewDecider(extraExemptOrigins ...string) *Decider {
	exempt := map[string]struct{}{DebitOriginMaintenanceFee: {}}
	for _, origin := range extraExemptOrigins {
		exempt[origin] = struct{}{}
	}
	return &Decider{exemptOrigins: exempt}
}

func (d *Decider) isExempt(origin string) bool {
	_, ok := d.exemptOrigins[origin]
	return ok
}

// Decide валидирует команду против текущего состояния. На успехе
// возвращает событие для записи в поток, на нарушении бизнес-правила -
// типизированную ошибку.
func (d *Decider) Decide(state AccountState, cmd Command) (Event, error) {
	switch c := cmd.(type) {
	case DepositCommand:
		return d.deposit(state, c)
	case DebitCommand:
		return d.debit(state, c)
	case TransferCommand:
		return d.transferOut(state, c)
	case ApproveTransferCommand:
		return d.approveTransfer(state, c)
	case RejectTransferCommand:
		return d.rejectTransfer(state, c)
	case LimitDailyDebitsCommand:
		return d.limitDailyDebits(state, c)
	case LockCardCommand:
		return d.lockCard(state, c)
	case UnlockCardCommand:
		return d.unlockCard(state, c)
	case RegisterTransferRecipientCommand:
		return d.registerRecipient(state, c)
	case RunMaintenanceFeeCommand:
		return d.runMaintenanceFee(state, c)
	case SkipMaintenanceFeeCommand:
		return d.skipMaintenanceFee(state, c)
	case CloseAccountCommand:
		return d.closeAccount(state, c)
	default:
		return nil, ErrUnknownCommand
	}
}

func (d *Decider) deposit(state AccountState, c DepositCommand) (Event, error) {
	if state.Status == StatusClosed {
		return nil, ErrAccountNotActive
	}
	if !c.Amount.IsPositive() {
		return nil, ErrInvalidDepositAmount
	}
	return DepositedCash{
		BaseEvent:       NewBaseEvent(EventDepositedCash, c.EntityId),
		DepositedAmount: c.Amount,
		Origin:          c.Origin,
	}, nil
}

func (d *Decider) debit(state AccountState, c DebitCommand) (Event, error) {
	if state.Status == StatusClosed {
		return nil, ErrAccountNotActive
	}
	if !c.Amount.IsPositive() {
		return nil, ErrInvalidDebitAmount
	}
	if state.Status == StatusActiveWithLockedCard && !d.isExempt(c.Origin) {
		return nil, ErrAccountCardLocked
	}
	if state.Balance.Sub(c.Amount).LessThan(state.AllowedOverdraft) {
		return nil, ErrInsufficientBalance
	}
	if !state.DailyDebitLimit.Equal(decimal.NewFromInt(-1)) &&
		!d.isExempt(c.Origin) &&
		isToday(c.Timestamp) &&
		state.DailyDebitAccrued.Add(c.Amount).GreaterThan(state.DailyDebitLimit) {
		return nil, ErrExceededDailyDebitLimit
	}
	return DebitedAccount{
		BaseEvent:     NewBaseEvent(EventDebitedAccount, c.EntityId),
		DebitedAmount: c.Amount,
		Origin:        c.Origin,
		Reference:     c.Reference,
	}, nil
}

func (d *Decider) transferOut(state AccountState, c TransferCommand) (Event, error) {
	if state.Status == StatusClosed {
		return nil, ErrAccountNotActive
	}
	if !c.Amount.IsPositive() {
		return nil, ErrInvalidDebitAmount
	}
	if state.Balance.Sub(c.Amount).LessThan(state.AllowedOverdraft) {
		return nil, ErrInsufficientBalance
	}
	if _, ok := state.TransferRecipients[c.Recipient.Key()]; !ok {
		return nil, ErrRecipientRegistrationRequired
	}
	return TransferPending{
		BaseEvent:     NewBaseEvent(EventTransferPending, c.EntityId),
		TransferID:    c.TransferID,
		Recipient:     c.Recipient,
		DebitedAmount: c.Amount,
		Reference:     c.Reference,
	}, nil
}

// approveTransfer и rejectTransfer всегда валидны: соответствие
// ожидающему переводу обеспечивает сага, Apply защищается от
// несуществующего transfer id самостоятельно.
func (d *Decider) approveTransfer(_ AccountState, c ApproveTransferCommand) (Event, error) {
	return TransferApproved{
		BaseEvent:      NewBaseEvent(EventTransferApproved, c.EntityId),
		TransferID:     c.TransferID,
		Recipient:      c.Recipient,
		ApprovedAmount: c.Amount,
	}, nil
}

func (d *Decider) rejectTransfer(_ AccountState, c RejectTransferCommand) (Event, error) {
	return TransferRejected{
		BaseEvent:     NewBaseEvent(EventTransferRejected, c.EntityId),
		TransferID:    c.TransferID,
		Recipient:     c.Recipient,
		DebitedAmount: c.Amount,
		Reason:        c.Reason,
	}, nil
}

func (d *Decider) limitDailyDebits(state AccountState, c LimitDailyDebitsCommand) (Event, error) {
	if state.Status == StatusClosed {
		return nil, ErrAccountNotActive
	}
	if c.DebitLimit.IsNegative() {
		return nil, ErrInvalidDailyDebitLimit
	}
	return DailyDebitLimitUpdated{
		BaseEvent:  NewBaseEvent(EventDailyDebitLimitUpdated, c.EntityId),
		DebitLimit: c.DebitLimit,
	}, nil
}

func (d *Decider) lockCard(state AccountState, c LockCardCommand) (Event, error) {
	if state.Status != StatusActive {
		if state.Status == StatusActiveWithLockedCard {
			return nil, ErrCardAlreadyLocked
		}
		return nil, ErrAccountNotActive
	}
	return LockedCard{
		BaseEvent: NewBaseEvent(EventLockedCard, c.EntityId),
		Reference: c.Reference,
	}, nil
}

func (d *Decider) unlockCard(state AccountState, c UnlockCardCommand) (Event, error) {
	if state.Status != StatusActiveWithLockedCard {
		if state.Status == StatusClosed {
			return nil, ErrAccountNotActive
		}
		return nil, ErrCardAlreadyUnlocked
	}
	return UnlockedCard{
		BaseEvent: NewBaseEvent(EventUnlockedCard, c.EntityId),
		Reference: c.Reference,
	}, nil
}

func (d *Decider) registerRecipient(state AccountState, c RegisterTransferRecipientCommand) (Event, error) {
	if state.Status == StatusClosed {
		return nil, ErrAccountNotActive
	}
	if err := c.Recipient.Validate(); err != nil {
		return nil, err
	}
	if _, ok := state.TransferRecipients[c.Recipient.Key()]; ok {
		return nil, ErrRecipientAlreadyRegistered
	}
	switch c.Recipient.AccountEnvironment {
	case transfer.EnvironmentInternal:
		return InternalTransferRecipientRegistered{
			BaseEvent: NewBaseEvent(EventInternalRecipient, c.EntityId),
			Recipient: c.Recipient,
		}, nil
	case transfer.EnvironmentDomestic:
		return DomesticTransferRecipientRegistered{
			BaseEvent: NewBaseEvent(EventDomesticRecipient, c.EntityId),
			Recipient: c.Recipient,
		}, nil
	default:
		return InternationalTransferRecipientRegistered{
			BaseEvent: NewBaseEvent(EventInternationalRecipient, c.EntityId),
			Recipient: c.Recipient,
		}, nil
	}
}

func (d *Decider) runMaintenanceFee(state AccountState, c RunMaintenanceFeeCommand) (Event, error) {
	if state.Status == StatusClosed {
		return nil, ErrAccountNotActive
	}
	if state.Balance.Sub(c.Amount).LessThan(state.AllowedOverdraft) {
		return nil, ErrInsufficientBalance
	}
	return MaintenanceFeeDebited{
		BaseEvent:     NewBaseEvent(EventMaintenanceFeeDebited, c.EntityId),
		DebitedAmount: c.Amount,
	}, nil
}

func (d *Decider) skipMaintenanceFee(state AccountState, c SkipMaintenanceFeeCommand) (Event, error) {
	if state.Status == StatusClosed {
		return nil, ErrAccountNotActive
	}
	return MaintenanceFeeSkipped{
		BaseEvent:       NewBaseEvent(EventMaintenanceFeeSkipped, c.EntityId),
		DepositCriteria: c.DepositCriteria,
		BalanceCriteria: c.BalanceCriteria,
	}, nil
}

func (d *Decider) closeAccount(state AccountState, c CloseAccountCommand) (Event, error) {
	if state.Status == StatusClosed {
		return nil, ErrAccountNotActive
	}
	return ClosedAccount{
		BaseEvent: NewBaseEvent(EventClosedAccount, c.EntityId),
		Reference: c.Reference,
	}, nil
}
