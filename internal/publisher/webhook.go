package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"feedrelay/internal/config"
	"feedrelay/internal/domain"
	"feedrelay/internal/summarizer"

	"github.com/go-resty/resty/v2"
)

const generatedNotice = "**The following content is generated by OpenAI, for reference only:**"

// botReply - ответ вебхука чат-бота. Ненулевой code означает отказ.
type botReply struct {
	Code int64  `json:"code"`
	Msg  string `json:"msg"`
}

// webhookPublisher отправляет событие интерактивной карточкой в вебхук чат-бота (Feishu/Lark).
type webhookPublisher struct {
	id     string
	url    string
	client *resty.Client
	log    *slog.Logger
}

func newWebhookPublisher(_ context.Context, cfg config.PublisherConfig, log *slog.Logger) (Publisher, error) {
	if cfg.Webhook == nil || cfg.Webhook.URL == "" {
		return nil, fmt.Errorf("publisher %q missing webhook configuration", cfg.ID)
	}
	return &webhookPublisher{
		id:     cfg.ID,
		url:    cfg.Webhook.URL,
		client: resty.New().SetTimeout(config.Duration(cfg.Webhook.Timeout, 10*time.Second)),
		log:    log.With(slog.String("component", "publisher.webhook"), slog.String("publisher", cfg.ID)),
	}, nil
}

func (p *webhookPublisher) Name() string { return p.id }

func (p *webhookPublisher) Publish(ctx context.Context, event domain.Event) error {
	var reply botReply
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(Card(event)).
		SetResult(&reply).
		ForceContentType("application/json").
		Post(p.url)
	if err != nil {
		return fmt.Errorf("send card: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("send card: unexpected status code %d", resp.StatusCode())
	}
	if reply.Code != 0 {
		return fmt.Errorf("send card: code %d: %s", reply.Code, reply.Msg)
	}
	p.log.Debug("Card delivered", slog.String("event", event.ID))
	return nil
}

func (p *webhookPublisher) Close() error { return nil }

// Card строит интерактивную карточку: markdown с материалами и пересказом,
// заголовок и кнопку со ссылкой на оригинал или архив выпусков.
func Card(event domain.Event) map[string]any {
	button, template := "origin link", "blue"
	if event.Kind == domain.KindDigest {
		button, template = "More issues", "green"
	}
	return map[string]any{
		"msg_type": "interactive",
		"card": map[string]any{
			"elements": []any{
				map[string]any{
					"tag":     "markdown",
					"content": Markdown(event),
				},
				map[string]any{
					"tag": "action",
					"actions": []any{
						map[string]any{
							"tag":   "button",
							"text":  map[string]any{"content": button, "tag": "lark_md"},
							"url":   event.Link,
							"type":  "default",
							"value": map[string]any{},
						},
					},
				},
			},
			"header": map[string]any{
				"title":    map[string]any{"content": header(event), "tag": "plain_text"},
				"template": template,
			},
		},
	}
}

// Markdown - тело карточки.
func Markdown(event domain.Event) string {
	var b strings.Builder
	if event.Kind == domain.KindDigest {
		b.WriteString(summarizer.ArticleList(event.Items))
	} else if len(event.Items) > 0 {
		item := event.Items[0]
		fmt.Fprintf(&b, "**[%s](%s)**\n", item.Title, item.URL)
		if item.Author != "" {
			fmt.Fprintf(&b, "_%s_\n", item.Author)
		}
		if item.Summary != "" && item.Summary != item.Content {
			fmt.Fprintf(&b, "\n%s\n", item.Summary)
		}
	}
	if event.Summary != "" {
		fmt.Fprintf(&b, "\n---\n\n%s\n\n%s\n---\n", generatedNotice, event.Summary)
	}
	return b.String()
}

func header(event domain.Event) string {
	if event.Kind == domain.KindDigest || len(event.Items) == 0 {
		return event.Title
	}
	item := event.Items[0]
	ts := item.Updated
	if ts.IsZero() {
		ts = item.Published
	}
	if ts.IsZero() {
		return event.Title
	}
	return fmt.Sprintf("%s \n -- %s", event.Title, ts.Format("2006-01-02"))
}
