package digest

import (
	"log/slog"
	"strings"

	"feedrelay/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

// DefaultFontMarkers - размеры шрифта, которыми рассылка оформляет блок статьи.
var DefaultFontMarkers = []string{"1.05em", "1.2em"}

// Options параметризует эвристику для конкретной рассылки.
type Options struct {
	// LinkPrefix - префикс ссылок на статьи, например https://golangweekly.com/link/.
	LinkPrefix  string
	FontMarkers []string
}

// TableExtractor восстанавливает статьи из HTML выпуска рассылки.
// Каждая статья сверстана отдельной таблицей с border, cellpadding и
// cellspacing равными "0" и без align. Внутри первой ячейки ожидаются
// ссылка на статью и ровно два абзаца: описание и автор.
//
// Таблицы, не похожие на статью, пропускаются без ошибки.
type TableExtractor struct {
	opts Options
	log  *slog.Logger
}

// NewTableExtractor создает экстрактор. Пустой список маркеров заменяется DefaultFontMarkers.
func NewTableExtractor(opts Options, log *slog.Logger) *TableExtractor {
	if len(opts.FontMarkers) == 0 {
		opts.FontMarkers = DefaultFontMarkers
	}
	return &TableExtractor{
		opts: opts,
		log:  log.With("component", "digest"),
	}
}

// Extract возвращает статьи в порядке документа, дубликаты сохраняются.
func (e *TableExtractor) Extract(fragment string) []domain.SubArticle {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		e.log.Debug("Failed to parse digest html", slog.Any("error", err))
		return nil
	}
	var articles []domain.SubArticle
	doc.Find("table").Each(func(i int, table *goquery.Selection) {
		if !isLayoutTable(table) {
			return
		}
		outer, err := goquery.OuterHtml(table)
		if err != nil || !e.looksLikeArticle(outer) {
			return
		}
		article, reason := parseArticle(table)
		if reason != "" {
			e.log.Debug("Skipping digest candidate", slog.Int("table", i), slog.String("reason", reason))
			return
		}
		articles = append(articles, article)
	})
	return articles
}

func isLayoutTable(table *goquery.Selection) bool {
	for _, name := range []string{"border", "cellpadding", "cellspacing"} {
		if v, _ := table.Attr(name); v != "0" {
			return false
		}
	}
	align, _ := table.Attr("align")
	return align == ""
}

func (e *TableExtractor) looksLikeArticle(outer string) bool {
	if e.opts.LinkPrefix == "" || !strings.Contains(outer, e.opts.LinkPrefix) {
		return false
	}
	for _, marker := range e.opts.FontMarkers {
		if strings.Contains(outer, marker) {
			return true
		}
	}
	return false
}

// parseArticle разбирает принятую таблицу. Непустая причина означает пропуск кандидата.
func parseArticle(table *goquery.Selection) (domain.SubArticle, string) {
	td := table.Find("td").First()
	if td.Length() == 0 {
		return domain.SubArticle{}, "no cell"
	}
	link := td.Find("a").First()
	href, ok := link.Attr("href")
	if !ok {
		return domain.SubArticle{}, "no link"
	}
	href = Normalize(href)
	if href == "" {
		return domain.SubArticle{}, "empty link"
	}
	title, err := link.Html()
	if err != nil {
		return domain.SubArticle{}, "bad title"
	}
	paragraphs := td.Find("p")
	if paragraphs.Length() != 2 {
		return domain.SubArticle{}, "paragraph count"
	}

	var description strings.Builder
	paragraphs.Eq(0).Contents().Each(func(_ int, node *goquery.Selection) {
		if goquery.NodeName(node) == "#text" {
			description.WriteString(strings.TrimSpace(node.Text()))
		}
	})
	var byline []string
	collectText(paragraphs.Eq(1), &byline)

	return domain.SubArticle{
		URL:         href,
		Title:       Normalize(title),
		Description: Normalize(description.String()),
		Byline:      Normalize(strings.Join(byline, " ")),
	}, ""
}

func collectText(s *goquery.Selection, parts *[]string) {
	s.Contents().Each(func(_ int, node *goquery.Selection) {
		if goquery.NodeName(node) == "#text" {
			*parts = append(*parts, node.Text())
			return
		}
		collectText(node, parts)
	})
}

// Normalize обрезает пробелы по краям и схлопывает любые пробельные
// последовательности, включая табы и переводы строк, в один пробел.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
