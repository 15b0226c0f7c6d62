package usecase

import (
	"context"
	"log/slog"
)

// DefaultBatchLimit - ограничение размера выборки, когда limit равен нулю.
const DefaultBatchLimit = 5

// Select отбирает из candidates не более limit новых элементов, сохраняя порядок.
// Для каждого кандидата выполняется одна атомарная операция SetIfAbsent:
// уже отмеченные отбрасываются, новые попадают в выборку. Ограничение
// применяется к отфильтрованному потоку, и после набора limit элементов
// оставшиеся кандидаты не проверяются и не отмечаются.
//
// nil store отключает дедупликацию. Ошибка хранилища логируется,
// а кандидат считается новым.
func Select[C any](
	ctx context.Context,
	store MarkerSetter,
	namespace string,
	candidates []C,
	key func(C) string,
	limit int,
	log *slog.Logger,
) []C {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	selected := make([]C, 0, min(limit, len(candidates)))
	for _, c := range candidates {
		if len(selected) == limit {
			break
		}
		if store == nil {
			selected = append(selected, c)
			continue
		}
		k := key(c)
		isNew, err := store.SetIfAbsent(ctx, namespace, k)
		if err != nil {
			log.Warn("Marker store unavailable, treating item as new",
				slog.String("component", "selector"),
				slog.String("namespace", namespace),
				slog.String("key", k),
				slog.Any("error", err),
			)
			isNew = true
		}
		if isNew {
			selected = append(selected, c)
		}
	}
	return selected
}
