package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"feedrelay/internal/config"
	"feedrelay/internal/domain"

	"github.com/go-resty/resty/v2"
)

// ErrEmptyResponse возвращается, если API не вернул ни одного варианта ответа.
var ErrEmptyResponse = errors.New("chat completion returned no choices")

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int         `json:"index"`
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// OpenAI пересказывает события через OpenAI-совместимый /v1/chat/completions.
// Без API-ключа Summarize ничего не запрашивает и возвращает пустую строку.
type OpenAI struct {
	client   *resty.Client
	apiKey   string
	model    string
	language string
	log      *slog.Logger
}

func New(cfg config.SummarizerConfig, log *slog.Logger) *OpenAI {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.Host, "/")).
		SetTimeout(config.Duration(cfg.Timeout, time.Minute)).
		SetHeader("Content-Type", "application/json")
	if cfg.Proxy != "" {
		client.SetProxy(cfg.Proxy)
	}
	return &OpenAI{
		client:   client,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		language: cfg.Language,
		log:      log.With(slog.String("component", "summarizer")),
	}
}

// Enabled сообщает, задан ли API-ключ.
func (o *OpenAI) Enabled() bool {
	return o.apiKey != ""
}

func (o *OpenAI) Summarize(ctx context.Context, event domain.Event) (string, error) {
	if !o.Enabled() || len(event.Items) == 0 {
		return "", nil
	}
	start := time.Now()
	var result chatResponse
	var failure apiError
	resp, err := o.client.R().
		SetContext(ctx).
		SetAuthToken(o.apiKey).
		SetBody(chatRequest{
			Model:    o.model,
			Messages: []chatMessage{{Role: "user", Content: Prompt(event, o.language)}},
		}).
		SetResult(&result).
		SetError(&failure).
		Post("/v1/chat/completions")
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("chat completion: status %d: %s", resp.StatusCode(), failure.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	o.log.Debug("Summary generated",
		slog.String("event", event.ID),
		slog.String("model", result.Model),
		slog.Duration("duration", time.Since(start)),
	)
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

// Prompt строит запрос к модели: для выпуска рассылки пересказывается
// каждая статья списка, для одиночного материала его полный текст.
func Prompt(event domain.Event, language string) string {
	if language == "" {
		language = "English"
	}
	var b strings.Builder
	if event.Kind == domain.KindDigest {
		fmt.Fprintf(&b, "These are the featured articles of this week's %s:\n", event.SourceName)
		b.WriteString(ArticleList(event.Items))
		fmt.Fprintf(&b, "\nPlease summarize each article in %s, no more than 100 words each.\n", language)
		return b.String()
	}
	item := event.Items[0]
	body := item.Content
	if body == "" {
		body = item.Summary
	}
	fmt.Fprintf(&b, "This is the full content of an article from %s titled %q:\n", event.SourceName, item.Title)
	b.WriteString(body)
	fmt.Fprintf(&b, "\nPlease summarize the article in %s in no more than 150 words.\n", language)
	b.WriteString("If the article lists reference links, collect them at the bottom of the reply.")
	return b.String()
}

// ArticleList форматирует статьи выпуска в markdown, разделяя их линией.
func ArticleList(items []domain.Item) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		line := fmt.Sprintf("**[%s](%s)**: %s", it.Title, it.URL, it.Summary)
		if it.Author != "" {
			line += fmt.Sprintf(" (_%s_)", it.Author)
		}
		parts = append(parts, line+"\n")
	}
	return strings.Join(parts, "---\n")
}
