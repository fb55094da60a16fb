package eventstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventbank/ledger/domain/account"
)

// PostgresStoreConfig конфигурация PostgreSQL хранилища событий
type PostgresStoreConfig struct {
	DSN        string
	SchemaName string
	TableName  string
}

// Validate проверяет корректность конфигурации и подставляет значения
// по умолчанию
func (c *PostgresStoreConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("DSN cannot be empty")
	}
	if c.SchemaName == "" {
		c.SchemaName = "public"
	}
	if c.TableName == "" {
		c.TableName = "account_events"
	}
	return nil
}

// PostgresStore реализация Store поверх PostgreSQL. Soft delete
// реализован таблицей tombstone-отметок: события до отметки остаются
// в таблице, но поток для чтения считается несуществующим.
type PostgresStore struct {
	config PostgresStoreConfig
	pool   *pgxpool.Pool
	codec  *Codec
}

// NewPostgresStore создает PostgreSQL хранилище и схему таблиц
func NewPostgresStore(ctx context.Context, config PostgresStoreConfig, codec *Codec) (*PostgresStore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}

	pool, err := pgxpool.New(ctx, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	store := &PostgresStore{config: config, pool: pool, codec: codec}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// Close закрывает пул соединений
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) table() string {
	return fmt.Sprintf("%s.%s", s.config.SchemaName, s.config.TableName)
}

func (s *PostgresStore) tombstones() string {
	return fmt.Sprintf("%s.%s_tombstones", s.config.SchemaName, s.config.TableName)
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			stream_id   text        NOT NULL,
			version     bigint      NOT NULL,
			event_type  text        NOT NULL,
			event_data  jsonb       NOT NULL,
			occurred_at timestamptz NOT NULL,
			created_at  timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (stream_id, version)
		);
		CREATE TABLE IF NOT EXISTS %s (
			stream_id       text        PRIMARY KEY,
			truncate_before bigint      NOT NULL,
			deleted_at      timestamptz NOT NULL DEFAULT now()
		);
	`, s.table(), s.tombstones())

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure event store schema: %w", err)
	}
	return nil
}

// Append дописывает событие в поток с проверкой ожидаемого состояния.
// Проверка и вставка идут в одной транзакции; уникальный ключ
// (stream_id, version) закрывает гонку конкурентных записей.
func (s *PostgresStore) Append(ctx context.Context, streamID string, evt account.Event, expected ExpectedState) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var current, truncated int64
	query := fmt.Sprintf(`
		SELECT COALESCE((SELECT MAX(version) FROM %s WHERE stream_id = $1), 0),
		       COALESCE((SELECT truncate_before FROM %s WHERE stream_id = $1), 0)
	`, s.table(), s.tombstones())
	if err := tx.QueryRow(ctx, query, streamID).Scan(&current, &truncated); err != nil {
		return fmt.Errorf("failed to check stream state: %w", err)
	}

	visible := current > truncated
	switch expected {
	case ExpectedNoStream:
		if visible {
			return fmt.Errorf("%w: stream %s already exists", ErrConcurrencyConflict, streamID)
		}
	case ExpectedStreamExists:
		if !visible {
			return fmt.Errorf("%w: stream %s does not exist", ErrConcurrencyConflict, streamID)
		}
	}

	data, err := s.codec.Encode(evt)
	if err != nil {
		return err
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (stream_id, version, event_type, event_data, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`, s.table())
	if _, err := tx.Exec(ctx, insert, streamID, current+1, evt.EventType(), data, evt.OccurredAt()); err != nil {
		// Конкурентная запись из другого процесса прошла пре-проверку
		// одновременно с нашей и вставила эту версию первой
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: stream %s version %d already written", ErrConcurrencyConflict, streamID, current+1)
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return tx.Commit(ctx)
}

// isUniqueViolation распознает нарушение уникального ключа
// (stream_id, version), код SQLSTATE 23505
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ReadAll возвращает видимые события потока в порядке записи
func (s *PostgresStore) ReadAll(ctx context.Context, streamID string) ([]account.Event, error) {
	query := fmt.Sprintf(`
		SELECT event_type, event_data
		FROM %s
		WHERE stream_id = $1
		  AND version > COALESCE((SELECT truncate_before FROM %s WHERE stream_id = $1), 0)
		ORDER BY version ASC
	`, s.table(), s.tombstones())

	rows, err := s.pool.Query(ctx, query, streamID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var result []account.Event
	for rows.Next() {
		var eventType string
		var data []byte
		if err := rows.Scan(&eventType, &data); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		evt, err := s.codec.Decode(eventType, data)
		if err != nil {
			return nil, err
		}
		result = append(result, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	if len(result) == 0 {
		return nil, ErrStreamNotFound
	}
	return result, nil
}

// Exists проверяет наличие видимых событий потока
func (s *PostgresStore) Exists(ctx context.Context, streamID string) (bool, error) {
	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM %s
			WHERE stream_id = $1
			  AND version > COALESCE((SELECT truncate_before FROM %s WHERE stream_id = $1), 0)
		)
	`, s.table(), s.tombstones())

	var exists bool
	if err := s.pool.QueryRow(ctx, query, streamID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check stream existence: %w", err)
	}
	return exists, nil
}

// SoftDelete скрывает текущие события потока, не удаляя их физически
func (s *PostgresStore) SoftDelete(ctx context.Context, streamID string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (stream_id, truncate_before)
		VALUES ($1, COALESCE((SELECT MAX(version) FROM %s WHERE stream_id = $1), 0))
		ON CONFLICT (stream_id)
		DO UPDATE SET truncate_before = EXCLUDED.truncate_before, deleted_at = now()
	`, s.tombstones(), s.table())

	if _, err := s.pool.Exec(ctx, query, streamID); err != nil {
		return fmt.Errorf("failed to soft delete stream: %w", err)
	}
	return nil
}
