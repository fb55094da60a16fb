package actors

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eventbank/ledger/circuitbreaker"
	"github.com/eventbank/ledger/domain/account"
	"github.com/eventbank/ledger/domain/transfer"
	"github.com/eventbank/ledger/external"
	"github.com/eventbank/ledger/metrics"
)

// Причины отклонения перевода
const (
	RejectReasonRecipientNotFound  = "RecipientNotFound"
	RejectReasonInvalidRecipient   = "InvalidRecipient"
	RejectReasonServiceUnavailable = "TransferServiceUnavailable"
	RejectReasonCircuitOpen        = "CircuitBreakerOpen"
)

// Submitter направляет команды акторам счетов (реализуется реестром)
type Submitter interface {
	Submit(ctx context.Context, id uuid.UUID, cmd account.Command) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// TransferSagaConfig конфигурация саги переводов
type TransferSagaConfig struct {
	Workers   int
	QueueSize int
	// OpTimeout таймаут одного шага саги
	OpTimeout time.Duration
	Breaker   circuitbreaker.Config
	// Metrics сборщик метрик, nil отключает запись
	Metrics *metrics.Metrics
}

// DefaultTransferSagaConfig возвращает конфигурацию саги по умолчанию
func DefaultTransferSagaConfig() TransferSagaConfig {
	return TransferSagaConfig{
		Workers:   4,
		QueueSize: 256,
		OpTimeout: 30 * time.Second,
		Breaker:   circuitbreaker.DefaultConfig(),
	}
}

type transferJob struct {
	senderID uuid.UUID
	pending  account.TransferPending
}

// TransferSaga доводит ожидающий перевод до подтверждения или
// отклонения с компенсирующим возвратом. Эффекты выполняются пулом
// воркеров отдельно от mailbox отправителя: списание уже записано,
// сага решает только судьбу перевода.
type TransferSaga struct {
	config        TransferSagaConfig
	breakers      *circuitbreaker.Manager
	domestic      external.TransferGateway
	international external.TransferGateway
	logger        *slog.Logger

	mu        sync.RWMutex
	submitter Submitter

	jobs    chan transferJob
	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
	startMu sync.Mutex
}

// NewTransferSaga создает сагу переводов. Breaker'ы внешних сервисов
// регистрируются сразу, чтобы их состояние было наблюдаемо до первого
// вызова.
func NewTransferSaga(
	config TransferSagaConfig,
	breakers *circuitbreaker.Manager,
	domestic external.TransferGateway,
	international external.TransferGateway,
	logger *slog.Logger,
) *TransferSaga {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}

	breakers.GetOrCreate(external.ServiceDomesticTransfer, config.Breaker)
	breakers.GetOrCreate(external.ServiceInternationalTransfer, config.Breaker)

	return &TransferSaga{
		config:        config,
		breakers:      breakers,
		domestic:      domestic,
		international: international,
		logger:        logger,
		jobs:          make(chan transferJob, config.QueueSize),
		stop:          make(chan struct{}),
	}
}

// Bind связывает сагу с реестром акторов. Вызывается после создания
// реестра, разрывая цикл зависимостей между ними.
func (s *TransferSaga) Bind(submitter Submitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitter = submitter
}

// Start запускает воркеров саги
func (s *TransferSaga) Start() {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.started {
		return
	}
	s.started = true

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

// Stop останавливает воркеров, дожидаясь завершения текущих шагов
func (s *TransferSaga) Stop() {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if !s.started {
		return
	}
	close(s.stop)
	s.wg.Wait()
	s.started = false
}

// HandleEvent получает принятые события счетов (реализация SideEffects).
// Интересны только TransferPending.
func (s *TransferSaga) HandleEvent(evt account.Event, _ account.AccountState) {
	pending, ok := evt.(account.TransferPending)
	if !ok {
		return
	}

	job := transferJob{senderID: pending.EntityID(), pending: pending}
	select {
	case s.jobs <- job:
	case <-s.stop:
		s.logger.Warn("transfer saga stopped, transfer left pending",
			"transfer_id", pending.TransferID.String())
	}
}

func (s *TransferSaga) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case job := <-s.jobs:
			s.processTransfer(job)
		}
	}
}

// processTransfer выполняет эффекты одного перевода и завершает его
// командой подтверждения либо отклонения отправителю
func (s *TransferSaga) processTransfer(job transferJob) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.OpTimeout)
	defer cancel()

	logger := s.logger.With(
		"transfer_id", job.pending.TransferID.String(),
		"sender_id", job.senderID.String(),
	)

	var reason string
	switch job.pending.Recipient.AccountEnvironment {
	case transfer.EnvironmentInternal:
		reason = s.processInternal(ctx, job, logger)
	case transfer.EnvironmentDomestic:
		reason = s.processExternal(ctx, job, external.ServiceDomesticTransfer, s.domestic, logger)
	case transfer.EnvironmentInternational:
		reason = s.processExternal(ctx, job, external.ServiceInternationalTransfer, s.international, logger)
	default:
		reason = RejectReasonInvalidRecipient
	}

	if reason == "" {
		s.approve(ctx, job, logger)
	} else {
		s.reject(ctx, job, reason, logger)
	}

	if s.config.Metrics != nil {
		outcome := "Approved"
		if reason != "" {
			outcome = reason
		}
		s.config.Metrics.RecordTransfer(ctx, string(job.pending.Recipient.AccountEnvironment), outcome)
	}
}

// processInternal кредитует счет получателя внутри банка. Пустая
// причина означает успех.
func (s *TransferSaga) processInternal(ctx context.Context, job transferJob, logger *slog.Logger) string {
	targetID, err := uuid.Parse(job.pending.Recipient.Identification)
	if err != nil {
		return RejectReasonInvalidRecipient
	}

	submitter := s.getSubmitter()
	exists, err := submitter.Exists(ctx, targetID)
	if err != nil {
		logger.Error("failed to check recipient existence", "error", err)
		return RejectReasonServiceUnavailable
	}
	if !exists {
		return RejectReasonRecipientNotFound
	}

	deposit := account.DepositCommand{
		BaseCommand: account.NewBaseCommand(targetID),
		Amount:      job.pending.DebitedAmount,
		Origin:      account.DepositOriginTransferPrefix + job.senderID.String(),
	}
	if err := submitter.Submit(ctx, targetID, deposit); err != nil {
		logger.Error("failed to credit recipient", "recipient_id", targetID.String(), "error", err)
		if errors.Is(err, ErrUnknownAccountID) || errors.Is(err, account.ErrAccountNotActive) {
			return RejectReasonRecipientNotFound
		}
		return RejectReasonServiceUnavailable
	}
	return ""
}

// processExternal отправляет перевод во внешний сервис через breaker
func (s *TransferSaga) processExternal(
	ctx context.Context,
	job transferJob,
	service string,
	gateway external.TransferGateway,
	logger *slog.Logger,
) string {
	req := external.TransferRequest{
		TransferID: job.pending.TransferID,
		Recipient:  job.pending.Recipient,
		Amount:     job.pending.DebitedAmount,
		Reference:  job.pending.Reference,
	}

	err := s.breakers.Execute(ctx, service, func(ctx context.Context) error {
		return gateway.IssueTransfer(ctx, req)
	})
	if err == nil {
		return ""
	}

	logger.Warn("external transfer failed", "service", service, "error", err)
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return RejectReasonCircuitOpen
	}
	return RejectReasonServiceUnavailable
}

func (s *TransferSaga) approve(ctx context.Context, job transferJob, logger *slog.Logger) {
	cmd := account.ApproveTransferCommand{
		BaseCommand: account.NewBaseCommand(job.senderID),
		TransferID:  job.pending.TransferID,
		Recipient:   job.pending.Recipient,
		Amount:      job.pending.DebitedAmount,
	}
	if err := s.getSubmitter().Submit(ctx, job.senderID, cmd); err != nil {
		logger.Error("failed to approve transfer", "error", err)
	}
}

func (s *TransferSaga) reject(ctx context.Context, job transferJob, reason string, logger *slog.Logger) {
	cmd := account.RejectTransferCommand{
		BaseCommand: account.NewBaseCommand(job.senderID),
		TransferID:  job.pending.TransferID,
		Recipient:   job.pending.Recipient,
		Amount:      job.pending.DebitedAmount,
		Reason:      reason,
	}
	if err := s.getSubmitter().Submit(ctx, job.senderID, cmd); err != nil {
		logger.Error("failed to reject transfer", "error", err)
	}
	logger.Info("transfer rejected", "reason", reason)
}

func (s *TransferSaga) getSubmitter() Submitter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.submitter
}
