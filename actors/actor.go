// Package actors предоставляет модель акторов поверх потоков событий:
// актор счета с последовательным mailbox, реестр акторов, планировщик
// комиссии обслуживания и сагу переводов.
package actors

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eventbank/ledger/domain/account"
	"github.com/eventbank/ledger/eventstore"
	"github.com/eventbank/ledger/metrics"
	"github.com/eventbank/ledger/notify"
)

// EventPublisher публикатор принятых событий во внешнюю шину
type EventPublisher interface {
	Publish(ctx context.Context, evt account.Event) error
}

// SideEffects получатель побочных эффектов принятых событий (сага)
type SideEffects interface {
	HandleEvent(evt account.Event, state account.AccountState)
}

// ActorConfig конфигурация актора счета
type ActorConfig struct {
	// MailboxSize емкость буфера mailbox
	MailboxSize int
	// MaxRestarts перезапусков актора после паники до остановки
	MaxRestarts int
	// RestartBackoff базовая пауза перед перезапуском, удваивается
	// на каждый следующий перезапуск
	RestartBackoff time.Duration
}

// DefaultActorConfig возвращает конфигурацию актора по умолчанию
func DefaultActorConfig() ActorConfig {
	return ActorConfig{
		MailboxSize:    64,
		MaxRestarts:    3,
		RestartBackoff: 100 * time.Millisecond,
	}
}

type envelope struct {
	ctx   context.Context
	cmd   account.Command
	reply chan error
}

// Actor обрабатывает команды одного счета строго последовательно:
// одна горутина, один mailbox. Каждая команда полностью завершается
// (решение, запись, применение, уведомление) до следующей.
type Actor struct {
	id      uuid.UUID
	config  ActorConfig
	store   eventstore.Store
	decider *account.Decider
	hub     *notify.Hub
	pub     EventPublisher
	effects SideEffects
	metrics *metrics.Metrics
	logger  *slog.Logger

	mailbox chan envelope
	done    chan struct{}

	stateMu sync.RWMutex
	state   account.AccountState

	stopOnce sync.Once
}

func newActor(
	id uuid.UUID,
	state account.AccountState,
	config ActorConfig,
	store eventstore.Store,
	decider *account.Decider,
	hub *notify.Hub,
	pub EventPublisher,
	effects SideEffects,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Actor {
	a := &Actor{
		id:      id,
		config:  config,
		store:   store,
		decider: decider,
		hub:     hub,
		pub:     pub,
		effects: effects,
		metrics: m,
		logger:  logger.With("account_id", id.String()),
		mailbox: make(chan envelope, config.MailboxSize),
		done:    make(chan struct{}),
		state:   state,
	}
	if a.metrics != nil {
		a.metrics.IncrementActiveAccounts(context.Background())
	}
	go a.run(0)
	return a
}

// ID возвращает идентификатор счета актора
func (a *Actor) ID() uuid.UUID {
	return a.id
}

// State возвращает снимок текущего состояния счета
func (a *Actor) State() account.AccountState {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.state
}

// Submit ставит команду в mailbox и ждет результата обработки.
// Успех означает, что событие записано в поток и применено.
func (a *Actor) Submit(ctx context.Context, cmd account.Command) error {
	env := envelope{ctx: ctx, cmd: cmd, reply: make(chan error, 1)}

	select {
	case <-a.done:
		return fmt.Errorf("account actor %s is stopped", a.id)
	case <-ctx.Done():
		return ctx.Err()
	case a.mailbox <- env:
	}

	// Начатую обработку не отменяем: ждем фактического результата
	select {
	case <-a.done:
		return fmt.Errorf("account actor %s is stopped", a.id)
	case err := <-env.reply:
		return err
	}
}

// Stop останавливает актора. Команды в mailbox после остановки
// получают ошибку остановленного актора.
func (a *Actor) Stop() {
	a.stopOnce.Do(func() {
		close(a.done)
		if a.metrics != nil {
			a.metrics.DecrementActiveAccounts(context.Background())
		}
	})
}

func (a *Actor) run(restarts int) {
	for {
		select {
		case <-a.done:
			return
		case env := <-a.mailbox:
			if !a.process(env, restarts) {
				a.restart(restarts)
				return
			}
		}
	}
}

// process обрабатывает один конверт, перехватывая панику обработчика.
// Отправитель команды всегда получает ответ.
func (a *Actor) process(env envelope, restarts int) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("account actor panic", "panic", r, "restarts", restarts)
			env.reply <- fmt.Errorf("internal error processing command %s", env.cmd.CommandType())
			ok = false
		}
	}()

	env.reply <- a.handle(env.ctx, env.cmd)
	return true
}

// restart восстанавливает состояние из потока и запускает новый цикл
// обработки. После исчерпания перезапусков актор останавливается,
// чтобы реестр создал нового при следующем обращении.
func (a *Actor) restart(restarts int) {
	if restarts >= a.config.MaxRestarts {
		a.logger.Error("account actor restart limit exceeded, stopping", "restarts", restarts)
		a.Stop()
		return
	}

	backoff := a.config.RestartBackoff * time.Duration(1<<restarts)
	select {
	case <-a.done:
		return
	case <-time.After(backoff):
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	events, err := a.store.ReadAll(ctx, eventstore.StreamName(a.id))
	if err != nil {
		a.logger.Error("failed to rehydrate account actor", "error", err)
		a.Stop()
		return
	}
	state, err := account.Fold(events)
	if err != nil {
		a.logger.Error("failed to fold account stream", "error", err)
		a.Stop()
		return
	}

	a.stateMu.Lock()
	a.state = state
	a.stateMu.Unlock()

	a.logger.Warn("account actor restarted", "restarts", restarts+1)
	go a.run(restarts + 1)
}

// handle обрабатывает одну команду: решение, запись с ожиданием
// существующего потока, применение, уведомления. Ошибка записи
// оставляет состояние неизменным.
func (a *Actor) handle(ctx context.Context, cmd account.Command) error {
	a.stateMu.RLock()
	state := a.state
	a.stateMu.RUnlock()

	evt, err := a.decider.Decide(state, cmd)
	if err != nil {
		return err
	}

	if err := a.store.Append(ctx, eventstore.StreamName(a.id), evt, eventstore.ExpectedStreamExists); err != nil {
		return fmt.Errorf("failed to persist event %s: %w", evt.EventType(), err)
	}

	newState := account.Apply(state, evt)
	a.stateMu.Lock()
	a.state = newState
	a.stateMu.Unlock()

	if a.metrics != nil {
		a.metrics.RecordEvent(ctx, evt.EventType())
	}
	a.hub.PublishAccount(ctx, notify.AccountUpdate{Event: evt, State: newState})
	if a.pub != nil {
		if err := a.pub.Publish(ctx, evt); err != nil {
			a.logger.Warn("failed to publish event", "event_type", evt.EventType(), "error", err)
		}
	}
	if a.effects != nil {
		a.effects.HandleEvent(evt, newState)
	}

	return nil
}
