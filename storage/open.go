package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"feedrelay/internal/config"
	"feedrelay/internal/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Open создает хранилище маркеров по настройкам store.driver.
// Для postgres дополнительно проверяет соединение и применяет миграции.
// Недоступность redis или postgres при старте не является ошибкой: хранилище
// создается, а его вызовы возвращают ErrStoreUnavailable до восстановления связи.
// Каждый вызов хранилища ограничен store.timeout.
func Open(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (MarkerStore, error) {
	var store MarkerStore
	switch cfg.Driver {
	case config.StoreRedis:
		rs := NewRedisMarkerStore(cfg.Redis, log)
		if err := rs.Ping(ctx); err != nil {
			log.Warn("Redis is not reachable yet, continuing", slog.String("component", "storage"), slog.Any("error", err))
		}
		store = rs
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		ps := NewPostgresMarkerStore(pool, log)
		pingCtx, cancel := context.WithTimeout(ctx, config.Duration(cfg.Timeout, 3*time.Second))
		err = pool.Ping(pingCtx)
		cancel()
		if err == nil {
			err = migrations.Apply(ctx, log, pool)
		}
		if err != nil {
			log.Warn("Postgres is not ready yet, migrations deferred", slog.String("component", "storage"), slog.Any("error", err))
			ps.deferMigrations(func(ctx context.Context) error {
				return migrations.Apply(ctx, log, pool)
			})
		}
		store = ps
	case config.StoreBolt:
		bs, err := NewBoltMarkerStore(cfg.Bolt.Path, log)
		if err != nil {
			return nil, err
		}
		store = bs
	case config.StoreMemory:
		store = NewMemoryMarkerStore()
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
	return WithTimeout(store, config.Duration(cfg.Timeout, 3*time.Second)), nil
}

type timeoutStore struct {
	MarkerStore
	timeout time.Duration
}

// WithTimeout ограничивает длительность каждого вызова SetIfAbsent и Delete.
func WithTimeout(store MarkerStore, timeout time.Duration) MarkerStore {
	if timeout <= 0 {
		return store
	}
	return &timeoutStore{MarkerStore: store, timeout: timeout}
}

func (s *timeoutStore) SetIfAbsent(ctx context.Context, namespace, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.MarkerStore.SetIfAbsent(ctx, namespace, key)
}

func (s *timeoutStore) Delete(ctx context.Context, namespace, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.MarkerStore.Delete(ctx, namespace, key)
}
