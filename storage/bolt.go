package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltMarkerStore хранит маркеры во встроенной базе bbolt:
// bucket на каждое пространство имен, значение - время установки маркера.
// Запись идет в транзакции Update, поэтому проверка и установка атомарны.
type BoltMarkerStore struct {
	db  *bolt.DB
	log *slog.Logger
}

func NewBoltMarkerStore(path string, log *slog.Logger) (*BoltMarkerStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store %s: %w", path, err)
	}
	log.Info("Initializing bolt marker store", slog.String("path", path))
	return &BoltMarkerStore{db: db, log: log.With("component", "storage.bolt")}, nil
}

func (s *BoltMarkerStore) SetIfAbsent(ctx context.Context, namespace, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, unavailable("storage.bolt.SetIfAbsent", err)
	}
	isNew := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return err
		}
		if b.Get([]byte(key)) != nil {
			return nil
		}
		isNew = true
		return b.Put([]byte(key), []byte(time.Now().UTC().Format(time.RFC3339)))
	})
	if err != nil {
		return false, unavailable("storage.bolt.SetIfAbsent", err)
	}
	return isNew, nil
}

func (s *BoltMarkerStore) Delete(ctx context.Context, namespace, key string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("storage.bolt.Delete", err)
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
	if err != nil {
		return unavailable("storage.bolt.Delete", err)
	}
	return nil
}

func (s *BoltMarkerStore) Close() error {
	return s.db.Close()
}
