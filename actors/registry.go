package actors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/eventbank/ledger/domain/account"
	"github.com/eventbank/ledger/domain/feepolicy"
	"github.com/eventbank/ledger/eventstore"
	"github.com/eventbank/ledger/metrics"
	"github.com/eventbank/ledger/notify"
)

// ErrUnknownAccountID счет с таким идентификатором не существует
var ErrUnknownAccountID = errors.New("unknown account id")

// ErrAccountAlreadyExists счет с таким идентификатором уже существует
var ErrAccountAlreadyExists = errors.New("account already exists")

// RegistryConfig конфигурация реестра акторов
type RegistryConfig struct {
	Actor     ActorConfig
	Scheduler SchedulerConfig
	FeePolicy feepolicy.Policy
	// Metrics сборщик метрик, nil отключает запись
	Metrics *metrics.Metrics
}

// DefaultRegistryConfig возвращает конфигурацию реестра по умолчанию
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Actor:     DefaultActorConfig(),
		Scheduler: DefaultSchedulerConfig(),
		FeePolicy: feepolicy.DefaultPolicy(),
	}
}

type registryEntry struct {
	actor     *Actor
	scheduler *FeeScheduler
}

// Registry реестр акторов счетов: на счет не более одного живого
// актора в процессе. Гонку конкурентных Lookup по одному счету
// замыкает единый мьютекс - второй вызов получает актора первого.
type Registry struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*registryEntry

	config  RegistryConfig
	store   eventstore.Store
	decider *account.Decider
	hub     *notify.Hub
	pub     EventPublisher
	effects SideEffects
	logger  *slog.Logger
	stopped bool
}

// NewRegistry создает реестр акторов
func NewRegistry(
	config RegistryConfig,
	store eventstore.Store,
	decider *account.Decider,
	hub *notify.Hub,
	pub EventPublisher,
	effects SideEffects,
	logger *slog.Logger,
) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[uuid.UUID]*registryEntry),
		config:  config,
		store:   store,
		decider: decider,
		hub:     hub,
		pub:     pub,
		effects: effects,
		logger:  logger,
	}
}

// Create открывает новый счет: записывает CreatedAccount с ожиданием
// отсутствия потока и запускает актора
func (r *Registry) Create(ctx context.Context, evt account.CreatedAccount) (*Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil, fmt.Errorf("actor registry is stopped")
	}

	id := evt.EntityID()
	if _, exists := r.entries[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAccountAlreadyExists, id)
	}

	if err := r.store.Append(ctx, eventstore.StreamName(id), evt, eventstore.ExpectedNoStream); err != nil {
		if errors.Is(err, eventstore.ErrConcurrencyConflict) {
			return nil, fmt.Errorf("%w: %s", ErrAccountAlreadyExists, id)
		}
		return nil, err
	}

	entry := r.spawn(id, account.Create(evt))
	r.logger.Info("account created", "account_id", id.String())
	return entry.actor, nil
}

// Lookup возвращает актора счета, восстанавливая его из потока
// событий при первом обращении
func (r *Registry) Lookup(ctx context.Context, id uuid.UUID) (*Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil, fmt.Errorf("actor registry is stopped")
	}

	if entry, exists := r.entries[id]; exists {
		select {
		case <-entry.actor.done:
			// Актор остановился после исчерпания перезапусков,
			// восстанавливаем заново
			entry.scheduler.Stop()
			delete(r.entries, id)
		default:
			return entry.actor, nil
		}
	}

	events, err := r.store.ReadAll(ctx, eventstore.StreamName(id))
	if err != nil {
		if errors.Is(err, eventstore.ErrStreamNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAccountID, id)
		}
		return nil, err
	}

	state, err := account.Fold(events)
	if err != nil {
		return nil, fmt.Errorf("failed to fold account %s: %w", id, err)
	}

	entry := r.spawn(id, state)
	return entry.actor, nil
}

// Submit направляет команду актору счета (реализация Submitter для саги)
func (r *Registry) Submit(ctx context.Context, id uuid.UUID, cmd account.Command) error {
	actor, err := r.Lookup(ctx, id)
	if err != nil {
		return err
	}
	return actor.Submit(ctx, cmd)
}

// Exists проверяет существование счета без создания актора
func (r *Registry) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.store.Exists(ctx, eventstore.StreamName(id))
}

// Delete останавливает актора счета и скрывает его поток событий.
// События остаются в хранилище, но счет перестает существовать для
// чтения и может быть создан заново.
func (r *Registry) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	if entry, exists := r.entries[id]; exists {
		entry.scheduler.Stop()
		entry.actor.Stop()
		delete(r.entries, id)
	}
	r.mu.Unlock()

	exists, err := r.store.Exists(ctx, eventstore.StreamName(id))
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownAccountID, id)
	}

	if err := r.store.SoftDelete(ctx, eventstore.StreamName(id)); err != nil {
		return fmt.Errorf("failed to delete account %s: %w", id, err)
	}
	r.logger.Info("account deleted", "account_id", id.String())
	return nil
}

// Shutdown останавливает всех акторов и планировщики
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true

	for id, entry := range r.entries {
		entry.scheduler.Stop()
		entry.actor.Stop()
		delete(r.entries, id)
	}
}

// spawn запускает актора и его планировщик комиссии. Вызывается под
// мьютексом реестра.
func (r *Registry) spawn(id uuid.UUID, state account.AccountState) *registryEntry {
	actor := newActor(id, state, r.config.Actor, r.store, r.decider, r.hub, r.pub, r.effects, r.config.Metrics, r.logger)
	scheduler := newFeeScheduler(actor, r.store, r.config.Scheduler, r.config.FeePolicy, r.logger)
	entry := &registryEntry{actor: actor, scheduler: scheduler}
	r.entries[id] = entry
	return entry
}
