// Package eventstore предоставляет append-only хранилище событий
// с потоком на каждый счет.
package eventstore

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/eventbank/ledger/domain/account"
)

var (
	// ErrConcurrencyConflict ожидание о состоянии потока не совпало с фактическим
	ErrConcurrencyConflict = errors.New("concurrency conflict: expected stream state does not match")
	// ErrStreamNotFound поток событий счета не найден
	ErrStreamNotFound = errors.New("event stream not found")
)

// ExpectedState ожидаемое состояние потока при записи.
// NoStream используется при создании счета, StreamExists - для всех
// последующих команд: это замыкает гонку двух конкурентных записей
// в один поток.
type ExpectedState int

const (
	// ExpectedAny запись без проверки состояния потока
	ExpectedAny ExpectedState = iota
	// ExpectedNoStream поток еще не существует
	ExpectedNoStream
	// ExpectedStreamExists поток уже существует
	ExpectedStreamExists
)

// Store хранилище упорядоченных событий счета. Порядок внутри потока -
// единственный источник истины о состоянии счета.
type Store interface {
	// Append дописывает событие в поток с проверкой ожидаемого состояния
	Append(ctx context.Context, streamID string, evt account.Event, expected ExpectedState) error
	// ReadAll возвращает все события потока в порядке записи
	ReadAll(ctx context.Context, streamID string) ([]account.Event, error)
	// Exists проверяет наличие потока
	Exists(ctx context.Context, streamID string) (bool, error)
	// SoftDelete скрывает текущие события потока, не удаляя их физически
	SoftDelete(ctx context.Context, streamID string) error
}

// StreamName возвращает имя потока событий счета
func StreamName(id uuid.UUID) string {
	return "accounts_" + id.String()
}
