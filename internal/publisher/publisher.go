package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"feedrelay/internal/config"
	"feedrelay/internal/domain"
)

// Publisher доставляет события одному получателю.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, event domain.Event) error
	Close() error
}

// Builder создает Publisher по записи конфигурации.
type Builder func(ctx context.Context, cfg config.PublisherConfig, log *slog.Logger) (Publisher, error)

// Registry сопоставляет типы получателей и их конструкторы.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

func NewRegistry(builders map[string]Builder) *Registry {
	r := &Registry{builders: make(map[string]Builder)}
	for typ, b := range builders {
		r.Register(typ, b)
	}
	return r
}

// Register связывает конструктор с типом получателя.
func (r *Registry) Register(typ string, builder Builder) {
	if typ = strings.TrimSpace(strings.ToLower(typ)); typ == "" || builder == nil {
		return
	}
	r.mu.Lock()
	r.builders[typ] = builder
	r.mu.Unlock()
}

// PublisherFor создает получателя для записи конфигурации.
func (r *Registry) PublisherFor(ctx context.Context, cfg config.PublisherConfig, log *slog.Logger) (Publisher, error) {
	r.mu.RLock()
	builder := r.builders[strings.ToLower(cfg.Type)]
	r.mu.RUnlock()
	if builder == nil {
		return nil, fmt.Errorf("no publisher registered for type %q", cfg.Type)
	}
	return builder(ctx, cfg, log)
}

// DefaultRegistry знает про webhook, kafka и облачные очереди.
func DefaultRegistry() *Registry {
	return NewRegistry(map[string]Builder{
		config.PublisherWebhook: newWebhookPublisher,
		config.PublisherKafka:   newKafkaPublisher,
		config.PublisherQueue:   newQueuePublisher,
	})
}

// BuildAll создает всех включенных получателей, ключ результата - id из конфигурации.
// При ошибке уже созданные получатели закрываются.
func BuildAll(ctx context.Context, reg *Registry, cfgs []config.PublisherConfig, log *slog.Logger) (map[string]Publisher, error) {
	out := make(map[string]Publisher, len(cfgs))
	for _, cfg := range cfgs {
		if !cfg.EnabledValue() {
			log.Info("Publisher disabled", slog.String("component", "publisher"), slog.String("publisher", cfg.ID))
			continue
		}
		p, err := reg.PublisherFor(ctx, cfg, log)
		if err != nil {
			CloseAll(out)
			return nil, fmt.Errorf("build publisher %q: %w", cfg.ID, err)
		}
		out[cfg.ID] = p
	}
	return out, nil
}

// CloseAll закрывает получателей и возвращает объединенную ошибку.
func CloseAll(publishers map[string]Publisher) error {
	var errs []error
	for id, p := range publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher %q: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
