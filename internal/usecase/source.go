package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"feedrelay/internal/domain"
)

// SourceSettings - параметры одного источника, уже прошедшие валидацию конфигурации.
type SourceSettings struct {
	ID         string
	Name       string
	Kind       domain.SourceKind
	URL        string
	Namespace  string
	Proxy      string
	BatchLimit int
	// MoreURL - ссылка на архив выпусков, используется только для digest.
	MoreURL string
}

// Source превращает загрузку ленты в упорядоченную выборку новых материалов.
// Atom-записи дедуплицируются по id, RSS-элементы по ссылке,
// статьи из выпуска рассылки по нормализованному URL.
type Source struct {
	settings  SourceSettings
	fetcher   FeedFetcher
	parser    FeedParser
	extractor Extractor
	store     MarkerSetter
	log       *slog.Logger
}

// NewSource создает источник. extractor нужен только для digest-источников,
// nil store отключает дедупликацию.
func NewSource(
	settings SourceSettings,
	fetcher FeedFetcher,
	parser FeedParser,
	extractor Extractor,
	store MarkerSetter,
	log *slog.Logger,
) *Source {
	return &Source{
		settings:  settings,
		fetcher:   fetcher,
		parser:    parser,
		extractor: extractor,
		store:     store,
		log:       log.With(slog.String("source", settings.ID)),
	}
}

// Settings возвращает параметры источника.
func (s *Source) Settings() SourceSettings { return s.settings }

// ProduceNewItems загружает ленту и возвращает не более limit новых материалов.
// Выбранные материалы отмечаются в хранилище и больше не возвращаются.
func (s *Source) ProduceNewItems(ctx context.Context, limit int) ([]domain.Item, error) {
	batch, err := s.Produce(ctx, limit)
	if err != nil {
		return nil, err
	}
	return batch.Items, nil
}

// Produce работает как ProduceNewItems, но дополнительно возвращает выпуск рассылки,
// из которого взяты статьи.
func (s *Source) Produce(ctx context.Context, limit int) (*domain.Batch, error) {
	return s.produce(ctx, s.store, limit)
}

// Preview выполняет тот же конвейер без дедупликации и без записи маркеров.
func (s *Source) Preview(ctx context.Context, limit int) (*domain.Batch, error) {
	return s.produce(ctx, nil, limit)
}

func (s *Source) produce(ctx context.Context, store MarkerSetter, limit int) (*domain.Batch, error) {
	if limit <= 0 {
		limit = s.settings.BatchLimit
	}
	data, err := s.fetcher.Fetch(ctx, s.settings.URL, s.settings.Proxy)
	if err != nil {
		return nil, fmt.Errorf("fetch failed for %s: %w", s.settings.ID, err)
	}
	batch := &domain.Batch{SourceID: s.settings.ID, Kind: s.settings.Kind}

	switch s.settings.Kind {
	case domain.KindAtom:
		feed, err := s.parser.ParseAtom(data)
		if err != nil {
			return nil, fmt.Errorf("parse failed for %s: %w", s.settings.ID, err)
		}
		entries := Select(ctx, store, s.settings.Namespace, feed.Entries,
			func(e domain.FeedEntry) string { return e.ID }, limit, s.log)
		for _, e := range entries {
			batch.Items = append(batch.Items, s.entryItem(e))
		}

	case domain.KindRSS:
		channel, err := s.parser.ParseRSS(data)
		if err != nil {
			return nil, fmt.Errorf("parse failed for %s: %w", s.settings.ID, err)
		}
		items := Select(ctx, store, s.settings.Namespace, channel.Items,
			func(it domain.RSSItem) string { return it.Link }, limit, s.log)
		for _, it := range items {
			batch.Items = append(batch.Items, s.rssItem(it))
		}

	case domain.KindDigest:
		if s.extractor == nil {
			return nil, fmt.Errorf("source %s: digest extractor is not configured", s.settings.ID)
		}
		channel, err := s.parser.ParseRSS(data)
		if err != nil {
			return nil, fmt.Errorf("parse failed for %s: %w", s.settings.ID, err)
		}
		issues := make([]domain.DigestIssue, 0, len(channel.Items))
		for _, it := range channel.Items {
			issues = append(issues, domain.DigestIssue{
				Title:       it.Title,
				Link:        it.Link,
				PubDate:     it.PubDate,
				RawPubDate:  it.RawPubDate,
				Description: it.Description,
			})
		}
		issue, articles := SelectIssue(issues, s.extractor, func(candidates []domain.SubArticle) []domain.SubArticle {
			return Select(ctx, store, s.settings.Namespace, candidates,
				func(a domain.SubArticle) string { return a.URL }, limit, s.log)
		})
		batch.Issue = issue
		for _, a := range articles {
			batch.Items = append(batch.Items, s.articleItem(a, issue))
		}

	default:
		return nil, fmt.Errorf("source %s: unsupported kind %q", s.settings.ID, s.settings.Kind)
	}
	return batch, nil
}

func (s *Source) entryItem(e domain.FeedEntry) domain.Item {
	return domain.Item{
		SourceID:  s.settings.ID,
		ID:        e.ID,
		Title:     e.Title,
		URL:       e.Link,
		Summary:   e.Summary,
		Content:   e.Content,
		Author:    e.Author,
		Published: e.Published,
		Updated:   e.Updated,
	}
}

func (s *Source) rssItem(it domain.RSSItem) domain.Item {
	return domain.Item{
		SourceID:  s.settings.ID,
		ID:        it.GUID,
		Title:     it.Title,
		URL:       it.Link,
		Summary:   it.Description,
		Content:   firstNonEmpty(it.Content, it.Description),
		Author:    it.Creator,
		Published: it.PubDate,
		Updated:   it.PubDate,
	}
}

func (s *Source) articleItem(a domain.SubArticle, issue *domain.DigestIssue) domain.Item {
	var published time.Time
	if issue != nil {
		published = issue.PubDate
	}
	return domain.Item{
		SourceID:  s.settings.ID,
		ID:        a.URL,
		Title:     a.Title,
		URL:       a.URL,
		Summary:   a.Description,
		Content:   a.Description,
		Author:    a.Byline,
		Published: published,
		Updated:   published,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
