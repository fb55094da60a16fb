// Package feepolicy реализует критерии пропуска комиссии обслуживания
// как чистую свертку истории событий счета.
package feepolicy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/eventbank/ledger/domain/account"
)

// Criteria результат оценки критериев пропуска комиссии
type Criteria struct {
	// DepositCriteria в окне наблюдения найдено разовое пополнение
	// не меньше квалифицирующей суммы
	DepositCriteria bool
	// BalanceCriteria баланс держался не ниже порога на каждом
	// наблюдаемом событии окна
	BalanceCriteria bool
}

// Skip комиссия пропускается, если выполнен хотя бы один критерий
func (c Criteria) Skip() bool {
	return c.DepositCriteria || c.BalanceCriteria
}

// Policy параметры политики комиссии обслуживания. Длительность окна
// наблюдения задает вызывающая сторона (конфигурация планировщика).
type Policy struct {
	DailyBalanceThreshold decimal.Decimal
	QualifyingDeposit     decimal.Decimal
	FeeAmount             decimal.Decimal
}

// DefaultPolicy возвращает политику с порогами по умолчанию
func DefaultPolicy() Policy {
	return Policy{
		DailyBalanceThreshold: account.DailyBalanceThreshold,
		QualifyingDeposit:     account.QualifyingDeposit,
		FeeAmount:             decimal.NewFromInt(5),
	}
}

// ComputeFeeCriteria сворачивает историю счета и оценивает критерии
// пропуска комиссии. События до начала окна только переcеивают
// балансовый критерий от текущего баланса; внутри окна любая просадка
// ниже порога окончательно снимает балансовый критерий. Квалифицирующее
// пополнение завершает свертку досрочно.
func (p Policy) ComputeFeeCriteria(lookback time.Time, events []account.Event) (Criteria, error) {
	state, err := account.Fold(events[:min(1, len(events))])
	if err != nil {
		return Criteria{}, err
	}

	criteria := Criteria{
		DepositCriteria: false,
		BalanceCriteria: state.Balance.GreaterThanOrEqual(p.DailyBalanceThreshold),
	}

	for _, evt := range events[1:] {
		state = account.Apply(state, evt)

		if evt.OccurredAt().Before(lookback) {
			criteria.BalanceCriteria = state.Balance.GreaterThanOrEqual(p.DailyBalanceThreshold)
			continue
		}

		if state.Balance.LessThan(p.DailyBalanceThreshold) {
			criteria.BalanceCriteria = false
		}

		if deposit, ok := evt.(account.DepositedCash); ok &&
			deposit.DepositedAmount.GreaterThanOrEqual(p.QualifyingDeposit) {
			criteria.DepositCriteria = true
			break
		}
	}

	return criteria, nil
}
