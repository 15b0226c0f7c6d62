package usecase

import (
	"context"

	"feedrelay/internal/domain"
)

// FeedFetcher загружает сырые байты ленты. Непустой proxy означает запрос через прокси.
type FeedFetcher interface {
	Fetch(ctx context.Context, url, proxy string) ([]byte, error)
}

// FeedParser декодирует две поддерживаемые грамматики лент.
type FeedParser interface {
	ParseAtom(data []byte) (*domain.AtomFeed, error)
	ParseRSS(data []byte) (*domain.RSSChannel, error)
}

// Extractor восстанавливает статьи из HTML выпуска рассылки.
type Extractor interface {
	Extract(html string) []domain.SubArticle
}

// MarkerSetter - атомарная проверка и установка маркера доставки.
type MarkerSetter interface {
	SetIfAbsent(ctx context.Context, namespace, key string) (bool, error)
}

// MarkerStore дополняет MarkerSetter явным удалением маркера.
type MarkerStore interface {
	MarkerSetter
	Delete(ctx context.Context, namespace, key string) error
}

// Summarizer возвращает краткий пересказ материалов события.
// Пустая строка без ошибки означает, что суммаризация отключена.
type Summarizer interface {
	Summarize(ctx context.Context, event domain.Event) (string, error)
}

// Publisher доставляет событие одному получателю.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, event domain.Event) error
}
