package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"feedrelay/internal/domain"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var (
	// ErrUnknownSource возвращается для идентификатора, которого нет в конфигурации.
	ErrUnknownSource = errors.New("unknown source")
	// ErrDedupDisabled возвращается при попытке удалить маркер без хранилища.
	ErrDedupDisabled = errors.New("deduplication is disabled")
)

// SourceRoute связывает источник с получателями его событий.
type SourceRoute struct {
	Source     *Source
	Publishers []Publisher
}

// Report описывает результат одного запуска источника.
type Report struct {
	SourceID string        `json:"source_id"`
	Items    int           `json:"items"`
	Events   int           `json:"events"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// FeedProcessingUseCase выполняет полный цикл обработки источника:
// выборку новых материалов, суммаризацию и доставку всем получателям.
// Между событиями одного запуска выдерживается пауза.
type FeedProcessingUseCase struct {
	routes     map[string]SourceRoute
	order      []string
	summarizer Summarizer
	store      MarkerStore
	pause      time.Duration
	log        *slog.Logger
	now        func() time.Time
}

// NewFeedProcessingUseCase создает новый экземпляр UseCase.
// summarizer и store могут быть nil.
func NewFeedProcessingUseCase(
	routes []SourceRoute,
	summarizer Summarizer,
	store MarkerStore,
	pause time.Duration,
	log *slog.Logger,
) *FeedProcessingUseCase {
	uc := &FeedProcessingUseCase{
		routes:     make(map[string]SourceRoute, len(routes)),
		summarizer: summarizer,
		store:      store,
		pause:      pause,
		log:        log.With(slog.String("component", "feed-processor")),
		now:        time.Now,
	}
	for _, r := range routes {
		id := r.Source.Settings().ID
		uc.routes[id] = r
		uc.order = append(uc.order, id)
	}
	return uc
}

// Sources возвращает параметры источников в порядке конфигурации.
func (uc *FeedProcessingUseCase) Sources() []SourceSettings {
	out := make([]SourceSettings, 0, len(uc.order))
	for _, id := range uc.order {
		out = append(out, uc.routes[id].Source.Settings())
	}
	return out
}

// SourceIDs возвращает идентификаторы источников в порядке конфигурации.
func (uc *FeedProcessingUseCase) SourceIDs() []string {
	return append([]string(nil), uc.order...)
}

// ProcessSource выбирает новые материалы источника и доставляет их.
// Ошибки загрузки и разбора прерывают запуск. Ошибки отдельных получателей
// логируются, остальные получатели и события обрабатываются дальше,
// а сводная ошибка возвращается в конце.
func (uc *FeedProcessingUseCase) ProcessSource(ctx context.Context, id string) (Report, error) {
	start := uc.now()
	report := Report{SourceID: id}
	route, ok := uc.routes[id]
	if !ok {
		return report, fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}
	settings := route.Source.Settings()
	log := uc.log.With(slog.String("source", id), slog.String("url", settings.URL))
	log.Info("Processing source started")

	batch, err := route.Source.Produce(ctx, settings.BatchLimit)
	if err != nil {
		log.Error("Source processing failed", slog.Any("error", err))
		return report, err
	}
	report.Items = len(batch.Items)
	events := uc.buildEvents(settings, batch)
	report.Events = len(events)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if uc.pause > 0 {
		limiter = rate.NewLimiter(rate.Every(uc.pause), 1)
	}
	var errs []error
	for _, event := range events {
		if err := limiter.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("delivery interrupted: %w", err))
			break
		}
		event.Summary = uc.summarize(ctx, log, event)
		for _, p := range route.Publishers {
			if err := p.Publish(ctx, event); err != nil {
				report.Failed++
				log.Error("Publish failed",
					slog.String("publisher", p.Name()),
					slog.String("event", event.ID),
					slog.Any("error", err),
				)
				errs = append(errs, fmt.Errorf("publish %s to %s: %w", event.ID, p.Name(), err))
			}
		}
	}
	report.Duration = uc.now().Sub(start)
	log.Info("Source processing completed",
		slog.Int("count", report.Items),
		slog.Int("events", report.Events),
		slog.Int("failed", report.Failed),
		slog.Duration("duration", report.Duration),
	)
	if len(errs) > 0 {
		return report, fmt.Errorf("deliver %s: %w", id, errors.Join(errs...))
	}
	return report, nil
}

// Preview возвращает материалы, которые были бы выбраны, без записи маркеров и доставки.
func (uc *FeedProcessingUseCase) Preview(ctx context.Context, id string, limit int) (*domain.Batch, error) {
	route, ok := uc.routes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}
	return route.Source.Preview(ctx, limit)
}

// ResetMarker удаляет маркер ключа в пространстве имен источника,
// после чего материал будет выбран повторно.
func (uc *FeedProcessingUseCase) ResetMarker(ctx context.Context, id, key string) error {
	route, ok := uc.routes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}
	if uc.store == nil {
		return ErrDedupDisabled
	}
	if err := uc.store.Delete(ctx, route.Source.Settings().Namespace, key); err != nil {
		return fmt.Errorf("reset marker for %s: %w", id, err)
	}
	uc.log.Info("Marker deleted", slog.String("source", id), slog.String("key", key))
	return nil
}

func (uc *FeedProcessingUseCase) summarize(ctx context.Context, log *slog.Logger, event domain.Event) string {
	if uc.summarizer == nil {
		return ""
	}
	summary, err := uc.summarizer.Summarize(ctx, event)
	if err != nil {
		log.Warn("Summarization failed, delivering without summary",
			slog.String("event", event.ID),
			slog.Any("error", err),
		)
		return ""
	}
	return summary
}

// buildEvents: по событию на материал для atom и rss, одно событие на выпуск для digest.
func (uc *FeedProcessingUseCase) buildEvents(settings SourceSettings, batch *domain.Batch) []domain.Event {
	if len(batch.Items) == 0 {
		return nil
	}
	if batch.Kind == domain.KindDigest {
		event := uc.newEvent(settings, batch.Items)
		event.Title = settings.Name
		event.Link = settings.MoreURL
		if batch.Issue != nil {
			event.Title = fmt.Sprintf("[%s] - %s", settings.Name, issueDate(batch.Issue))
			if event.Link == "" {
				event.Link = batch.Issue.Link
			}
		}
		return []domain.Event{event}
	}
	events := make([]domain.Event, 0, len(batch.Items))
	for _, item := range batch.Items {
		event := uc.newEvent(settings, []domain.Item{item})
		event.Title = item.Title
		event.Link = item.URL
		events = append(events, event)
	}
	return events
}

func (uc *FeedProcessingUseCase) newEvent(settings SourceSettings, items []domain.Item) domain.Event {
	return domain.Event{
		ID:         uuid.NewString(),
		SourceID:   settings.ID,
		SourceName: settings.Name,
		Kind:       settings.Kind,
		Items:      items,
		CreatedAt:  uc.now().UTC(),
	}
}

func issueDate(issue *domain.DigestIssue) string {
	if !issue.PubDate.IsZero() {
		return issue.PubDate.Format("Mon, 02 Jan 2006")
	}
	return strings.TrimSpace(strings.Replace(issue.RawPubDate, "00:00:00 +0000", "", 1))
}
