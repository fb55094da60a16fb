// Package notify предоставляет рассылку уведомлений о событиях счетов
// и состояниях circuit breaker'ов подписчикам внутри процесса и во
// внешнюю шину.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/eventbank/ledger/circuitbreaker"
	"github.com/eventbank/ledger/domain/account"
)

// AccountUpdate уведомление об изменении счета: принятое событие
// и состояние счета после его применения
type AccountUpdate struct {
	Event account.Event
	State account.AccountState
}

// AccountSubscription подписка на обновления одного счета
type AccountSubscription struct {
	hub *Hub
	id  uuid.UUID
	ch  chan AccountUpdate
}

// Updates возвращает канал обновлений подписки
func (s *AccountSubscription) Updates() <-chan AccountUpdate {
	return s.ch
}

// Close отписывает и закрывает канал подписки
func (s *AccountSubscription) Close() {
	s.hub.unsubscribeAccount(s)
}

// BreakerSubscription подписка на изменения состояний breaker'ов
type BreakerSubscription struct {
	hub *Hub
	ch  chan circuitbreaker.StateChange
}

// Updates возвращает канал изменений состояний
func (s *BreakerSubscription) Updates() <-chan circuitbreaker.StateChange {
	return s.ch
}

// Close отписывает и закрывает канал подписки
func (s *BreakerSubscription) Close() {
	s.hub.unsubscribeBreaker(s)
}

// Hub шина уведомлений внутри процесса. Рассылка не блокирует
// публикующего: обновление для отставшего подписчика отбрасывается.
type Hub struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]map[*AccountSubscription]struct{}
	breakers map[*BreakerSubscription]struct{}
	stopped  bool
	buffer   int
}

// NewHub создает шину уведомлений
func NewHub() *Hub {
	return &Hub{
		accounts: make(map[uuid.UUID]map[*AccountSubscription]struct{}),
		breakers: make(map[*BreakerSubscription]struct{}),
		buffer:   16,
	}
}

// SubscribeAccount подписывает на обновления счета
func (h *Hub) SubscribeAccount(accountID uuid.UUID) (*AccountSubscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil, fmt.Errorf("notification hub is stopped")
	}

	sub := &AccountSubscription{
		hub: h,
		id:  accountID,
		ch:  make(chan AccountUpdate, h.buffer),
	}
	if h.accounts[accountID] == nil {
		h.accounts[accountID] = make(map[*AccountSubscription]struct{})
	}
	h.accounts[accountID][sub] = struct{}{}
	return sub, nil
}

// SubscribeBreaker подписывает на изменения состояний breaker'ов
func (h *Hub) SubscribeBreaker() (*BreakerSubscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil, fmt.Errorf("notification hub is stopped")
	}

	sub := &BreakerSubscription{
		hub: h,
		ch:  make(chan circuitbreaker.StateChange, h.buffer),
	}
	h.breakers[sub] = struct{}{}
	return sub, nil
}

// PublishAccount рассылает обновление счета подписчикам этого счета
func (h *Hub) PublishAccount(ctx context.Context, update AccountUpdate) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return
	}

	for sub := range h.accounts[update.Event.EntityID()] {
		select {
		case sub.ch <- update:
		default:
			// Подписчик не успевает, обновление отбрасываем
		}
	}
}

// PublishBreaker рассылает изменение состояния breaker'а
func (h *Hub) PublishBreaker(change circuitbreaker.StateChange) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return
	}

	for sub := range h.breakers {
		select {
		case sub.ch <- change:
		default:
		}
	}
}

// Stop останавливает шину и закрывает каналы всех подписок
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true

	for _, subs := range h.accounts {
		for sub := range subs {
			close(sub.ch)
		}
	}
	for sub := range h.breakers {
		close(sub.ch)
	}
	h.accounts = make(map[uuid.UUID]map[*AccountSubscription]struct{})
	h.breakers = make(map[*BreakerSubscription]struct{})
}

func (h *Hub) unsubscribeAccount(sub *AccountSubscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	if subs, ok := h.accounts[sub.id]; ok {
		if _, exists := subs[sub]; exists {
			delete(subs, sub)
			close(sub.ch)
		}
		if len(subs) == 0 {
			delete(h.accounts, sub.id)
		}
	}
}

func (h *Hub) unsubscribeBreaker(sub *BreakerSubscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	if _, exists := h.breakers[sub]; exists {
		delete(h.breakers, sub)
		close(sub.ch)
	}
}
