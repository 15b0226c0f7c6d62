package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
)

// ErrNotText возвращается, когда тело ответа не является корректным UTF-8 текстом
// и кодировка не объявлена ни в Content-Type, ни в XML-прологе.
var ErrNotText = errors.New("response body is not valid utf-8 text")

var prologEncoding = regexp.MustCompile(`^\s*<\?xml[^>]*\sencoding\s*=\s*["']([A-Za-z0-9._:-]+)["']`)

// TransportError описывает неудачную загрузку ленты: сетевую ошибку,
// таймаут, неуспешный HTTP-статус или нетекстовое тело ответа.
// Status равен нулю, если ответ получен не был.
type TransportError struct {
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: unexpected status code %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Options задает параметры HTTP-клиента.
type Options struct {
	Timeout   time.Duration
	UserAgent string
}

// HTTPFetcher загружает ленты по HTTP. Для каждого адреса прокси
// создается отдельный resty-клиент, повторы запросов отключены.
type HTTPFetcher struct {
	opts    Options
	log     *slog.Logger
	mu      sync.Mutex
	clients map[string]*resty.Client
}

// NewHTTPFetcher создает новый экземпляр HTTPFetcher.
func NewHTTPFetcher(opts Options, log *slog.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		opts:    opts,
		log:     log.With("component", "fetcher"),
		clients: make(map[string]*resty.Client),
	}
}

func (f *HTTPFetcher) client(proxy string) *resty.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.clients[proxy]; ok {
		return c
	}
	c := resty.New().SetRetryCount(0)
	if f.opts.Timeout > 0 {
		c.SetTimeout(f.opts.Timeout)
	}
	if f.opts.UserAgent != "" {
		c.SetHeader("User-Agent", f.opts.UserAgent)
	}
	if proxy != "" {
		c.SetProxy(proxy)
	}
	f.clients[proxy] = c
	return c
}

// Fetch выполняет одну попытку загрузки url, при непустом proxy через прокси.
// Возвращает тело ответа или *TransportError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url, proxy string) ([]byte, error) {
	log := f.log.With(slog.String("op", "Fetch"), slog.String("url", url))
	start := time.Now()
	resp, err := f.client(proxy).R().SetContext(ctx).Get(url)
	if err != nil {
		log.Error("HTTP request failed", slog.Any("error", err))
		return nil, &TransportError{URL: url, Err: err}
	}
	if !resp.IsSuccess() {
		log.Error("Unexpected status code", slog.Int("status_code", resp.StatusCode()))
		return nil, &TransportError{
			URL:    url,
			Status: resp.StatusCode(),
			Err:    fmt.Errorf("%s", http.StatusText(resp.StatusCode())),
		}
	}
	body := resp.Body()
	if !utf8.Valid(body) {
		charset := declaredCharset(resp.Header().Get("Content-Type"), body)
		if charset == "" {
			log.Error("Response body is not text")
			return nil, &TransportError{URL: url, Err: ErrNotText}
		}
		log.Debug("Body is not utf-8, relying on declared charset", slog.String("charset", charset))
	}
	log.Debug("Fetched URL", slog.Int("bytes", len(body)), slog.Duration("duration", time.Since(start)))
	return body, nil
}

// declaredCharset возвращает кодировку из параметра charset заголовка Content-Type
// или из атрибута encoding XML-пролога. Пустая строка - кодировка не объявлена
// или объявлена как utf-8, которой тело не соответствует.
func declaredCharset(contentType string, body []byte) string {
	if contentType != "" {
		if _, params, err := mime.ParseMediaType(contentType); err == nil && !isUTF8(params["charset"]) {
			return params["charset"]
		}
	}
	head := body
	if len(head) > 256 {
		head = head[:256]
	}
	head = bytes.TrimPrefix(head, []byte("\xef\xbb\xbf"))
	if m := prologEncoding.FindSubmatch(head); m != nil && !isUTF8(string(m[1])) {
		return string(m[1])
	}
	return ""
}

func isUTF8(charset string) bool {
	return charset == "" || strings.EqualFold(charset, "utf-8") || strings.EqualFold(charset, "utf8")
}
