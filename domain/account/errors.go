package account

import "errors"

// Бизнес-ошибки переходов состояния. Decide никогда не паникует на
// нарушении бизнес-правила - всегда возвращает типизированную ошибку,
// состояние при этом не меняется.
var (
	// ErrAccountNotActive счет закрыт, операция невозможна
	ErrAccountNotActive = errors.New("account is not active")
	// ErrAccountCardLocked карта заблокирована, пользовательские списания запрещены
	ErrAccountCardLocked = errors.New("account card is locked")
	// ErrInsufficientBalance списание увело бы баланс ниже разрешенного овердрафта
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrExceededDailyDebitLimit списание превысило бы дневной лимит
	ErrExceededDailyDebitLimit = errors.New("exceeded daily debit limit")
	// ErrInvalidDepositAmount сумма пополнения должна быть положительной
	ErrInvalidDepositAmount = errors.New("deposit amount must be positive")
	// ErrInvalidDebitAmount сумма списания должна быть положительной
	ErrInvalidDebitAmount = errors.New("debit amount must be positive")
	// ErrInvalidDailyDebitLimit дневной лимит не может быть отрицательным
	ErrInvalidDailyDebitLimit = errors.New("daily debit limit must not be negative")
	// ErrCardAlreadyLocked блокировка возможна только из статуса Active
	ErrCardAlreadyLocked = errors.New("account card is already locked")
	// ErrCardAlreadyUnlocked разблокировка возможна только из ActiveWithLockedCard
	ErrCardAlreadyUnlocked = errors.New("account card is already unlocked")
	// ErrRecipientRegistrationRequired перевод требует зарегистрированного получателя
	ErrRecipientRegistrationRequired = errors.New("transfer recipient registration required")
	// ErrRecipientAlreadyRegistered получатель с таким ключом уже зарегистрирован
	ErrRecipientAlreadyRegistered = errors.New("transfer recipient already registered")
	// ErrUnknownCommand переход состояния для команды не определен
	ErrUnknownCommand = errors.New("state transition not implemented for command")
)
