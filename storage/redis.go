package storage

import (
	"context"
	"log/slog"

	"feedrelay/internal/config"

	"github.com/redis/go-redis/v9"
)

// RedisMarkerStore хранит маркеры пространства имен в одном hash:
// имя hash равно namespace, поле равно ключу элемента.
type RedisMarkerStore struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisMarkerStore(cfg config.RedisConfig, log *slog.Logger) *RedisMarkerStore {
	log.Info("Initializing Redis marker store", slog.String("addr", cfg.Addr()))
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisMarkerStore{
		client: client,
		log:    log.With("component", "storage.redis"),
	}
}

// Ping проверяет доступность сервера.
func (s *RedisMarkerStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("storage.redis.Ping", err)
	}
	return nil
}

func (s *RedisMarkerStore) SetIfAbsent(ctx context.Context, namespace, key string) (bool, error) {
	isNew, err := s.client.HSetNX(ctx, namespace, key, "1").Result()
	if err != nil {
		return false, unavailable("storage.redis.SetIfAbsent", err)
	}
	return isNew, nil
}

func (s *RedisMarkerStore) Delete(ctx context.Context, namespace, key string) error {
	if err := s.client.HDel(ctx, namespace, key).Err(); err != nil {
		return unavailable("storage.redis.Delete", err)
	}
	return nil
}

func (s *RedisMarkerStore) Close() error {
	return s.client.Close()
}
