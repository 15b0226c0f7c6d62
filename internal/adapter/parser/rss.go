package parser

import (
	"bytes"
	"fmt"

	"feedrelay/internal/domain"

	"github.com/mmcdole/gofeed/rss"
)

// ParseRSS разбирает RSS 2.0 канал. У каждого item обязательны title, link,
// description, guid и pubDate; content:encoded и dc:creator необязательны.
func (p *Parser) ParseRSS(data []byte) (*domain.RSSChannel, error) {
	feed, err := (&rss.Parser{}).Parse(bytes.NewReader(data))
	if err != nil {
		return nil, p.fail(GrammarRSS, err)
	}
	if blank(feed.Title) {
		return nil, p.fail(GrammarRSS, missing("channel/title"))
	}

	out := &domain.RSSChannel{
		Title:       feed.Title,
		Link:        feed.Link,
		Description: feed.Description,
		Items:       make([]domain.RSSItem, 0, len(feed.Items)),
	}
	for i, it := range feed.Items {
		var guid string
		if it.GUID != nil {
			guid = it.GUID.Value
		}
		required := []struct {
			name  string
			value string
		}{
			{"title", it.Title},
			{"link", it.Link},
			{"description", it.Description},
			{"guid", guid},
			{"pubDate", it.PubDate},
		}
		for _, f := range required {
			if blank(f.value) {
				return nil, p.fail(GrammarRSS, missing(fmt.Sprintf("item[%d]/%s", i, f.name)))
			}
		}

		item := domain.RSSItem{
			Title:       it.Title,
			Link:        it.Link,
			Description: it.Description,
			GUID:        guid,
			PubDate:     timeOf(it.PubDateParsed),
			RawPubDate:  it.PubDate,
			Content:     it.Content,
		}
		if it.DublinCoreExt != nil && len(it.DublinCoreExt.Creator) > 0 {
			item.Creator = it.DublinCoreExt.Creator[0]
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}
