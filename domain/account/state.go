package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/eventbank/ledger/domain/transfer"
)

// Status статус счета
type Status string

const (
	StatusActive               Status = "Active"
	StatusActiveWithLockedCard Status = "ActiveWithLockedCard"
	StatusClosed               Status = "Closed"
)

// DebitOriginMaintenanceFee зарезервированный origin системного актора
// комиссии обслуживания. Списания с этим origin освобождены от проверки
// блокировки карты и не учитываются в дневном лимите. Значение закреплено
// в событиях, поэтому оно не конфигурируется - иначе replay истории давал
// бы другой результат.
const DebitOriginMaintenanceFee = "actor:maintenance_fee"

// DepositOriginTransferPrefix префикс origin депозита, которым сага
// помечает кредит входящего внутреннего перевода: "account:<id отправителя>"
const DepositOriginTransferPrefix = "account:"

// Пороговые значения критериев пропуска комиссии обслуживания
var (
	// DailyBalanceThreshold минимальный дневной баланс для пропуска комиссии
	DailyBalanceThreshold = decimal.NewFromInt(1500)
	// QualifyingDeposit минимальная сумма разового пополнения для пропуска комиссии
	QualifyingDeposit = decimal.NewFromInt(250)
)

// ErrMissingCreatedEvent поток не начинается с CreatedAccount
var ErrMissingCreatedEvent = errors.New("event stream does not begin with CreatedAccount")

// timeNow переопределяется в тестах для контроля календарных границ
var timeNow = time.Now

// MaintenanceFeeCriteria накопительные флаги критериев пропуска комиссии.
// Пересчитываются на каждом подходящем событии, сбрасываются после
// списания или пропуска комиссии.
type MaintenanceFeeCriteria struct {
	QualifyingDepositFound   bool `json:"qualifyingDepositFound"`
	DailyBalanceThresholdMet bool `json:"dailyBalanceThresholdMet"`
}

// AccountState состояние счета-агрегата. Всегда равно свертке всех
// примененных событий с момента открытия; вне Apply не мутируется.
type AccountState struct {
	EntityID           uuid.UUID                      `json:"entityId"`
	FirstName          string                         `json:"firstName"`
	LastName           string                         `json:"lastName"`
	Currency           string                         `json:"currency"`
	Status             Status                         `json:"status"`
	Balance            decimal.Decimal                `json:"balance"`
	AllowedOverdraft   decimal.Decimal                `json:"allowedOverdraft"`
	DailyDebitLimit    decimal.Decimal                `json:"dailyDebitLimit"`
	DailyDebitAccrued  decimal.Decimal                `json:"dailyDebitAccrued"`
	LastDebitDate      time.Time                      `json:"lastDebitDate"`
	TransferRecipients map[string]transfer.Recipient  `json:"transferRecipients"`
	InFlightTransfers  map[uuid.UUID]decimal.Decimal  `json:"inFlightTransfers"`
	FeeCriteria        MaintenanceFeeCriteria         `json:"maintenanceFeeCriteria"`
}

// Create порождает начальное состояние счета из события открытия
func Create(e CreatedAccount) AccountState {
	return AccountState{
		EntityID:           e.EntityId,
		FirstName:          e.FirstName,
		LastName:           e.LastName,
		Currency:           e.Currency,
		Status:             StatusActive,
		Balance:            e.Balance,
		AllowedOverdraft:   decimal.Zero,
		DailyDebitLimit:    decimal.NewFromInt(-1),
		DailyDebitAccrued:  decimal.Zero,
		TransferRecipients: map[string]transfer.Recipient{},
		InFlightTransfers:  map[uuid.UUID]decimal.Decimal{},
		FeeCriteria: MaintenanceFeeCriteria{
			QualifyingDepositFound:   false,
			DailyBalanceThresholdMet: e.Balance.GreaterThanOrEqual(DailyBalanceThreshold),
		},
	}
}

// Fold восстанавливает состояние счета из упорядоченной истории событий.
// Повторная свертка той же истории дает идентичное состояние.
func Fold(events []Event) (AccountState, error) {
	if len(events) == 0 {
		return AccountState{}, ErrMissingCreatedEvent
	}
	created, ok := events[0].(CreatedAccount)
	if !ok {
		return AccountState{}, ErrMissingCreatedEvent
	}
	state := Create(created)
	for _, evt := range events[1:] {
		state = Apply(state, evt)
	}
	return state, nil
}

// Apply применяет событие к состоянию и возвращает новое состояние.
// Детерминирована и тотальна: неизвестные варианты событий при replay
// исторических потоков игнорируются.
func Apply(state AccountState, evt Event) AccountState {
	switch e := evt.(type) {
	case CreatedAccount:
		return Create(e)

	case DepositedCash:
		state.Balance = state.Balance.Add(e.DepositedAmount)
		if e.DepositedAmount.GreaterThanOrEqual(QualifyingDeposit) {
			state.FeeCriteria.QualifyingDepositFound = true
		}
		return state

	case DebitedAccount:
		accrued := dailyDebitAccrued(state, e)
		state.Balance = state.Balance.Sub(e.DebitedAmount)
		state.DailyDebitAccrued = accrued
		state.LastDebitDate = e.Timestamp
		return checkBalanceCriterion(state)

	case DailyDebitLimitUpdated:
		state.DailyDebitLimit = e.DebitLimit
		return state

	case MaintenanceFeeDebited:
		state.Balance = state.Balance.Sub(e.DebitedAmount)
		return resetFeeCriteria(state)

	case MaintenanceFeeSkipped:
		return resetFeeCriteria(state)

	case LockedCard:
		state.Status = StatusActiveWithLockedCard
		return state

	case UnlockedCard:
		state.Status = StatusActive
		return state

	case TransferPending:
		state.Balance = state.Balance.Sub(e.DebitedAmount)
		inflight := cloneInFlight(state.InFlightTransfers)
		inflight[e.TransferID] = e.DebitedAmount
		state.InFlightTransfers = inflight
		return checkBalanceCriterion(state)

	case TransferApproved:
		if _, ok := state.InFlightTransfers[e.TransferID]; ok {
			inflight := cloneInFlight(state.InFlightTransfers)
			delete(inflight, e.TransferID)
			state.InFlightTransfers = inflight
		}
		return state

	case TransferRejected:
		amount, ok := state.InFlightTransfers[e.TransferID]
		if !ok {
			return state
		}
		inflight := cloneInFlight(state.InFlightTransfers)
		delete(inflight, e.TransferID)
		state.InFlightTransfers = inflight
		state.Balance = state.Balance.Add(amount)
		// Возврат средств - компенсация, а не свежий депозит: критерий
		// балансового порога перепроверяется по фактическому балансу,
		// просадка, вызванная отмененным переводом, прощается.
		state.FeeCriteria.DailyBalanceThresholdMet =
			state.Balance.GreaterThanOrEqual(DailyBalanceThreshold)
		return state

	case InternalTransferRecipientRegistered:
		return withRecipient(state, e.Recipient)

	case DomesticTransferRecipientRegistered:
		return withRecipient(state, e.Recipient)

	case InternationalTransferRecipientRegistered:
		return withRecipient(state, e.Recipient)

	case ClosedAccount:
		state.Status = StatusClosed
		return state

	default:
		return state
	}
}

// dailyDebitAccrued пересчитывает накопленную за день сумму списаний.
// Списания старше текущего дня не учитываются; если последнее списание
// было не сегодня, кэшированное значение игнорируется; списания
// актора комиссии не входят в накопление.
//
// Из накопления исключен только зарезервированный origin комиссии:
// свертка детерминирована относительно истории и не может зависеть от
// конфигурации процесса. Дополнительные origin из конфигурации
// обходят проверку лимита в Decider, но их списания накапливаются
// наравне с пользовательскими.
func dailyDebitAccrued(state AccountState, e DebitedAccount) decimal.Decimal {
	if !isToday(e.Timestamp) {
		return decimal.Zero
	}
	if e.Origin == DebitOriginMaintenanceFee {
		return state.DailyDebitAccrued
	}
	if !isToday(state.LastDebitDate) {
		return e.DebitedAmount
	}
	return state.DailyDebitAccrued.Add(e.DebitedAmount)
}

func checkBalanceCriterion(state AccountState) AccountState {
	if state.Balance.LessThan(DailyBalanceThreshold) {
		state.FeeCriteria.DailyBalanceThresholdMet = false
	}
	return state
}

func resetFeeCriteria(state AccountState) AccountState {
	state.FeeCriteria = MaintenanceFeeCriteria{
		QualifyingDepositFound:   false,
		DailyBalanceThresholdMet: state.Balance.GreaterThanOrEqual(DailyBalanceThreshold),
	}
	return state
}

func withRecipient(state AccountState, r transfer.Recipient) AccountState {
	recipients := make(map[string]transfer.Recipient, len(state.TransferRecipients)+1)
	for k, v := range state.TransferRecipients {
		recipients[k] = v
	}
	recipients[r.Key()] = r
	state.TransferRecipients = recipients
	return state
}

func cloneInFlight(m map[uuid.UUID]decimal.Decimal) map[uuid.UUID]decimal.Decimal {
	clone := make(map[uuid.UUID]decimal.Decimal, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}

// isToday сравнивает календарные дни в UTC
func isToday(t time.Time) bool {
	now := timeNow().UTC()
	t = t.UTC()
	return t.Year() == now.Year() && t.YearDay() == now.YearDay()
}
