package migrations

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration - одна DDL-миграция. ID задает порядок применения.
type Migration struct {
	ID    string
	UpSQL string
}

var allMigrations = []Migration{
	{
		ID: "020240601090000_create_delivery_markers_table",
		UpSQL: `
		CREATE TABLE delivery_markers(
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (namespace, key)
		);`,
	},
	{
		ID: "020240601090100_index_delivery_markers_created_at",
		UpSQL: `
		CREATE INDEX IF NOT EXISTS delivery_markers_created_at_idx
		ON delivery_markers (created_at);`,
	},
}

// Apply применяет все необходимые миграции к базе данных хранилища маркеров.
// Примененные миграции записываются в schema_migrations и повторно не выполняются.
func Apply(ctx context.Context, log *slog.Logger, pool *pgxpool.Pool) error {
	log = log.With(slog.String("component", "migrations"))
	log.Info("Checking database migrations")
	if _, err := pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
	id TEXT PRIMARY KEY
	);
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	rows, err := pool.Query(ctx, "SELECT id FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("failed to scan migration ids: %w", err)
	}
	applied := make(map[string]bool, len(ids))
	for _, id := range ids {
		applied[id] = true
	}
	pending := Pending(applied)
	if len(pending) == 0 {
		log.Info("Database is up to date")
		return nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)
	for _, m := range pending {
		log.Info("Applying migration", slog.String("id", m.ID))
		if _, err := tx.Exec(ctx, m.UpSQL); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.ID, err)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (id) VALUES ($1)", m.ID); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", m.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migrations transaction: %w", err)
	}
	log.Info("Database migrations applied", slog.Int("count", len(pending)))
	return nil
}

// Pending возвращает непримененные миграции в порядке их идентификаторов.
func Pending(applied map[string]bool) []Migration {
	var pending []Migration
	for _, m := range allMigrations {
		if !applied[m.ID] {
			pending = append(pending, m)
		}
	}
	slices.SortFunc(pending, func(a, b Migration) int {
		return strings.Compare(a.ID, b.ID)
	})
	return pending
}
