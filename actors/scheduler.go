package actors

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/eventbank/ledger/domain/account"
	"github.com/eventbank/ledger/domain/feepolicy"
	"github.com/eventbank/ledger/eventstore"
)

// SchedulerConfig конфигурация планировщика комиссии обслуживания
type SchedulerConfig struct {
	// Interval период между начислениями комиссии
	Interval time.Duration
	// Lookback окно истории для оценки критериев пропуска
	Lookback time.Duration
	// Enabled выключает планировщик целиком (тесты, разработка)
	Enabled bool
}

// DefaultSchedulerConfig возвращает конфигурацию планировщика по
// умолчанию: месячная комиссия с месячным окном оценки
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval: 30 * 24 * time.Hour,
		Lookback: 30 * 24 * time.Hour,
		Enabled:  true,
	}
}

// FeeScheduler периодически оценивает критерии пропуска комиссии по
// истории счета и направляет актору команду списания либо пропуска.
// Сам планировщик состояние не меняет - только команды через mailbox.
type FeeScheduler struct {
	actor  *Actor
	store  eventstore.Store
	config SchedulerConfig
	policy feepolicy.Policy
	logger *slog.Logger
	stop   chan struct{}
}

func newFeeScheduler(
	actor *Actor,
	store eventstore.Store,
	config SchedulerConfig,
	policy feepolicy.Policy,
	logger *slog.Logger,
) *FeeScheduler {
	s := &FeeScheduler{
		actor:  actor,
		store:  store,
		config: config,
		policy: policy,
		logger: logger.With("account_id", actor.ID().String()),
		stop:   make(chan struct{}),
	}
	if config.Enabled {
		go s.run()
	}
	return s
}

// Stop останавливает планировщик
func (s *FeeScheduler) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

func (s *FeeScheduler) run() {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-s.actor.done:
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

// runOnce одна итерация: чтение истории, оценка критериев, команда
func (s *FeeScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	events, err := s.store.ReadAll(ctx, eventstore.StreamName(s.actor.ID()))
	if err != nil {
		s.logger.Error("fee scheduler failed to read account history", "error", err)
		return
	}

	lookback := time.Now().UTC().Add(-s.config.Lookback)
	criteria, err := s.policy.ComputeFeeCriteria(lookback, events)
	if err != nil {
		s.logger.Error("fee scheduler failed to compute criteria", "error", err)
		return
	}

	var cmd account.Command
	if criteria.Skip() {
		cmd = account.SkipMaintenanceFeeCommand{
			BaseCommand:     account.NewBaseCommand(s.actor.ID()),
			DepositCriteria: criteria.DepositCriteria,
			BalanceCriteria: criteria.BalanceCriteria,
		}
	} else {
		cmd = account.RunMaintenanceFeeCommand{
			BaseCommand: account.NewBaseCommand(s.actor.ID()),
			Amount:      s.policy.FeeAmount,
		}
	}

	if err := s.actor.Submit(ctx, cmd); err != nil {
		// Недостаток средств на комиссию не ошибка планировщика
		if errors.Is(err, account.ErrInsufficientBalance) || errors.Is(err, account.ErrAccountNotActive) {
			s.logger.Warn("maintenance fee not charged", "reason", err)
			return
		}
		s.logger.Error("fee scheduler failed to submit command", "error", err)
	}
}
