package parser

import (
	"bytes"
	"fmt"
	"time"

	"feedrelay/internal/domain"

	"github.com/mmcdole/gofeed/atom"
)

// ParseAtom разбирает Atom-документ. Заголовок и id ленты обязательны,
// каждая запись должна содержать id, title и ссылку; summary и content
// при отсутствии остаются пустыми.
func (p *Parser) ParseAtom(data []byte) (*domain.AtomFeed, error) {
	feed, err := (&atom.Parser{}).Parse(bytes.NewReader(data))
	if err != nil {
		return nil, p.fail(GrammarAtom, err)
	}
	if blank(feed.Title) {
		return nil, p.fail(GrammarAtom, missing("feed/title"))
	}
	if blank(feed.ID) {
		return nil, p.fail(GrammarAtom, missing("feed/id"))
	}

	out := &domain.AtomFeed{
		Title:   feed.Title,
		ID:      feed.ID,
		Updated: timeOf(feed.UpdatedParsed),
		Entries: make([]domain.FeedEntry, 0, len(feed.Entries)),
	}
	for i, e := range feed.Entries {
		link := entryLink(e)
		switch {
		case blank(e.ID):
			return nil, p.fail(GrammarAtom, missing(fmt.Sprintf("entry[%d]/id", i)))
		case blank(e.Title):
			return nil, p.fail(GrammarAtom, missing(fmt.Sprintf("entry[%d]/title", i)))
		case blank(link):
			return nil, p.fail(GrammarAtom, missing(fmt.Sprintf("entry[%d]/link", i)))
		}
		entry := domain.FeedEntry{
			ID:        e.ID,
			Title:     e.Title,
			Link:      link,
			Published: timeOf(e.PublishedParsed),
			Updated:   timeOf(e.UpdatedParsed),
			Summary:   e.Summary,
		}
		if e.Content != nil {
			entry.Content = e.Content.Value
		}
		out.Entries = append(out.Entries, entry)
	}
	return out, nil
}

// entryLink выбирает rel="alternate" (или ссылку без rel), иначе первую ссылку.
func entryLink(e *atom.Entry) string {
	for _, l := range e.Links {
		if l != nil && (l.Rel == "" || l.Rel == "alternate") && l.Href != "" {
			return l.Href
		}
	}
	for _, l := range e.Links {
		if l != nil && l.Href != "" {
			return l.Href
		}
	}
	return ""
}

func timeOf(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
