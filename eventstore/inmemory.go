package eventstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/eventbank/ledger/domain/account"
)

// InMemoryStoreConfig конфигурация InMemory хранилища
type InMemoryStoreConfig struct {
	MaxEventsPerStream int
}

// DefaultInMemoryStoreConfig возвращает конфигурацию по умолчанию
func DefaultInMemoryStoreConfig() InMemoryStoreConfig {
	return InMemoryStoreConfig{MaxEventsPerStream: 10000}
}

// InMemoryStore реализация Store в памяти для тестирования и разработки.
// Soft delete реализован отметкой усечения: события до отметки остаются
// в хранилище, но для чтения поток считается несуществующим.
type InMemoryStore struct {
	mu             sync.RWMutex
	streams        map[string][]account.Event
	truncateBefore map[string]int
	config         InMemoryStoreConfig
}

// NewInMemoryStore создает новое InMemory хранилище
func NewInMemoryStore(config InMemoryStoreConfig) *InMemoryStore {
	return &InMemoryStore{
		streams:        make(map[string][]account.Event),
		truncateBefore: make(map[string]int),
		config:         config,
	}
}

// Append дописывает событие в поток с проверкой ожидаемого состояния
func (s *InMemoryStore) Append(ctx context.Context, streamID string, evt account.Event, expected ExpectedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	visible := len(s.streams[streamID]) - s.truncateBefore[streamID]
	switch expected {
	case ExpectedNoStream:
		if visible > 0 {
			return fmt.Errorf("%w: stream %s already exists", ErrConcurrencyConflict, streamID)
		}
	case ExpectedStreamExists:
		if visible == 0 {
			return fmt.Errorf("%w: stream %s does not exist", ErrConcurrencyConflict, streamID)
		}
	}

	if s.config.MaxEventsPerStream > 0 && len(s.streams[streamID])+1 > s.config.MaxEventsPerStream {
		return fmt.Errorf("max events per stream exceeded: %d (limit: %d)",
			len(s.streams[streamID])+1, s.config.MaxEventsPerStream)
	}

	s.streams[streamID] = append(s.streams[streamID], evt)
	return nil
}

// ReadAll возвращает видимые события потока в порядке записи
func (s *InMemoryStore) ReadAll(ctx context.Context, streamID string) ([]account.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream, exists := s.streams[streamID]
	from := s.truncateBefore[streamID]
	if !exists || len(stream) <= from {
		return nil, ErrStreamNotFound
	}

	result := make([]account.Event, len(stream)-from)
	copy(result, stream[from:])
	return result, nil
}

// Exists проверяет наличие видимых событий потока
func (s *InMemoryStore) Exists(ctx context.Context, streamID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.streams[streamID]) > s.truncateBefore[streamID], nil
}

// SoftDelete скрывает текущие события потока
func (s *InMemoryStore) SoftDelete(ctx context.Context, streamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.truncateBefore[streamID] = len(s.streams[streamID])
	return nil
}

// Clear очищает хранилище (для тестов)
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams = make(map[string][]account.Event)
	s.truncateBefore = make(map[string]int)
}
