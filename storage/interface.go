package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrStoreUnavailable оборачивает любую ошибку, при которой хранилище
// не смогло ответить на запрос. Вызывающая сторона трактует её как
// "элемент новый" и продолжает работу.
var ErrStoreUnavailable = errors.New("marker store unavailable")

// MarkerStore хранит маркеры доставки: факт того, что ключ key уже был
// выбран в пространстве имен namespace. Маркер пишется один раз,
// никогда не перезаписывается и может быть удален явно.
type MarkerStore interface {
	// SetIfAbsent атомарно ставит маркер. true означает, что маркера не было.
	SetIfAbsent(ctx context.Context, namespace, key string) (bool, error)
	// Delete удаляет маркер. Удаление отсутствующего маркера не является ошибкой.
	Delete(ctx context.Context, namespace, key string) error
	Close() error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
