package storage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// executor - часть pgxpool.Pool, которая нужна хранилищу маркеров.
type executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PostgresMarkerStore хранит маркеры в таблице delivery_markers.
// Атомарность обеспечивается первичным ключом (namespace, key).
// Если при открытии база была недоступна, миграции применяются перед первым
// обращением и повторяются, пока не пройдут.
type PostgresMarkerStore struct {
	db    executor
	close func()
	log   *slog.Logger

	mu      sync.Mutex
	migrate func(ctx context.Context) error
}

func NewPostgresMarkerStore(pool *pgxpool.Pool, log *slog.Logger) *PostgresMarkerStore {
	log.Info("Initializing Postgres marker store")
	return newPostgresMarkerStore(pool, pool.Close, log)
}

func newPostgresMarkerStore(db executor, closeFn func(), log *slog.Logger) *PostgresMarkerStore {
	return &PostgresMarkerStore{
		db:    db,
		close: closeFn,
		log:   log.With("component", "storage.postgres"),
	}
}

// deferMigrations откладывает применение схемы до первого обращения к хранилищу.
func (s *PostgresMarkerStore) deferMigrations(migrate func(ctx context.Context) error) {
	s.mu.Lock()
	s.migrate = migrate
	s.mu.Unlock()
}

func (s *PostgresMarkerStore) ensureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.migrate == nil {
		return nil
	}
	if err := s.migrate(ctx); err != nil {
		return err
	}
	s.log.Info("Deferred migrations applied")
	s.migrate = nil
	return nil
}

func (s *PostgresMarkerStore) SetIfAbsent(ctx context.Context, namespace, key string) (bool, error) {
	const op = "storage.postgres.SetIfAbsent"
	if err := s.ensureSchema(ctx); err != nil {
		s.log.Error("Failed to apply migrations", slog.String("op", op), slog.Any("error", err))
		return false, unavailable(op, err)
	}
	tag, err := s.db.Exec(ctx, `
	INSERT INTO delivery_markers (namespace, key)
	VALUES ($1, $2)
	ON CONFLICT (namespace, key) DO NOTHING;
	`, namespace, key)
	if err != nil {
		s.log.Error("Failed to insert marker", slog.String("op", op), slog.Any("error", err))
		return false, unavailable(op, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresMarkerStore) Delete(ctx context.Context, namespace, key string) error {
	const op = "storage.postgres.Delete"
	if err := s.ensureSchema(ctx); err != nil {
		s.log.Error("Failed to apply migrations", slog.String("op", op), slog.Any("error", err))
		return unavailable(op, err)
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM delivery_markers WHERE namespace = $1 AND key = $2;`, namespace, key); err != nil {
		s.log.Error("Failed to delete marker", slog.String("op", op), slog.Any("error", err))
		return unavailable(op, err)
	}
	return nil
}

func (s *PostgresMarkerStore) Close() error {
	s.log.Info("Closing database connection pool")
	if s.close != nil {
		s.close()
	}
	return nil
}
