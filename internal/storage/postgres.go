// Package storage реализует персистентное key-value хранилище поверх PostgreSQL.
//
// Хранилище держит под каждым ключом целый JSON-документ (список пользователей,
// корзину, указатель на активную сессию) и всегда заменяет значение целиком.
package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrKeyNotFound возвращается при чтении отсутствующего ключа.
var ErrKeyNotFound = errors.New("key not found")

// Ключи, используемые компонентами сервиса.
const (
	KeyUsers       = "users"
	KeyCurrentUser = "currentUser"
	KeyBucketItems = "bucketItems"
)

// PostgresStore предоставляет доступ к key-value хранилищу в PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore создаёт новое хранилище и инициализирует схему БД через миграции.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}

	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (s *PostgresStore) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Если ошибка контекста — выходим сразу
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Конкурентные Update одного ключа берут FOR UPDATE и могут
		// словить deadlock или serialization failure — такие попытки повторяем.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Get возвращает значение по ключу. Отсутствие ключа — ErrKeyNotFound.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE key = $1`,
		key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("get key %s: %w", key, err)
	}
	return value, nil
}

// Put записывает значение, полностью заменяя предыдущее.
func (s *PostgresStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("put key %s: %w", key, err)
	}
	return nil
}

// Delete удаляет ключ. Удаление отсутствующего ключа не является ошибкой.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete key %s: %w", key, err)
	}
	return nil
}

// Update выполняет цикл «прочитать — изменить — записать» атомарно.
// Строка ключа блокируется через SELECT FOR UPDATE, поэтому конкурентные
// изменения одного ключа сериализуются и обновления не теряются.
// Для отсутствующего ключа fn получает nil.
func (s *PostgresStore) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	return s.withRetry(ctx, func() error {
		return s.updateOnce(ctx, key, fn)
	})
}

func (s *PostgresStore) updateOnce(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Строка может ещё не существовать — создаём её пустой, чтобы было что блокировать.
	_, err = tx.Exec(ctx,
		`INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, NULL, now())
		 ON CONFLICT (key) DO NOTHING`,
		key,
	)
	if err != nil {
		return fmt.Errorf("ensure key %s: %w", key, err)
	}

	var current []byte
	err = tx.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE key = $1 FOR UPDATE`,
		key,
	).Scan(&current)
	if err != nil {
		return fmt.Errorf("lock key %s: %w", key, err)
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE kv_entries SET value = $2, updated_at = now() WHERE key = $1`,
		key, next,
	)
	if err != nil {
		return fmt.Errorf("update key %s: %w", key, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}
