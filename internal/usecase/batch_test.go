package usecase

import (
	"context"
	"testing"

	"feedrelay/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExtractor возвращает заранее заданные статьи по тексту выпуска и
// запоминает, какие выпуски были разобраны.
type fakeExtractor struct {
	articles map[string][]domain.SubArticle
	parsed   []string
}

func (f *fakeExtractor) Extract(html string) []domain.SubArticle {
	f.parsed = append(f.parsed, html)
	return f.articles[html]
}

func articles(urls ...string) []domain.SubArticle {
	out := make([]domain.SubArticle, 0, len(urls))
	for _, u := range urls {
		out = append(out, domain.SubArticle{URL: u, Title: "title " + u})
	}
	return out
}

func TestSelectIssue_StopsAtFirstIssueWithNewArticles(t *testing.T) {
	extractor := &fakeExtractor{articles: map[string][]domain.SubArticle{
		"issue-503": articles("a1", "a2"),
		"issue-502": articles("b1", "b2", "b3"),
		"issue-501": articles("c1"),
	}}
	store := newFakeMarkerStore("a1", "a2", "b2")
	issues := []domain.DigestIssue{
		{Title: "#503", Description: "issue-503"},
		{Title: "#502", Description: "issue-502"},
		{Title: "#501", Description: "issue-501"},
	}

	issue, got := SelectIssue(issues, extractor, func(c []domain.SubArticle) []domain.SubArticle {
		return Select(context.Background(), store, "ns", c, func(a domain.SubArticle) string { return a.URL }, 5, discardLogger())
	})

	require.NotNil(t, issue)
	assert.Equal(t, "#502", issue.Title)
	assert.Equal(t, articles("b1", "b3"), got)
	assert.Equal(t, []string{"issue-503", "issue-502"}, extractor.parsed, "the third issue is never parsed")
	assert.False(t, store.marked["c1"])
}

func TestSelectIssue_HitBelowCapStillStops(t *testing.T) {
	extractor := &fakeExtractor{articles: map[string][]domain.SubArticle{
		"new":   articles("x1"),
		"older": articles("y1", "y2"),
	}}
	issues := []domain.DigestIssue{{Description: "new"}, {Description: "older"}}

	issue, got := SelectIssue(issues, extractor, func(c []domain.SubArticle) []domain.SubArticle {
		return Select(context.Background(), newFakeMarkerStore(), "ns", c, func(a domain.SubArticle) string { return a.URL }, 5, discardLogger())
	})

	require.NotNil(t, issue)
	assert.Len(t, got, 1)
	assert.Equal(t, []string{"new"}, extractor.parsed)
}

func TestSelectIssue_NoHit(t *testing.T) {
	extractor := &fakeExtractor{articles: map[string][]domain.SubArticle{"only": articles("z1")}}
	store := newFakeMarkerStore("z1")

	issue, got := SelectIssue([]domain.DigestIssue{{Description: "only"}, {Description: "empty"}}, extractor,
		func(c []domain.SubArticle) []domain.SubArticle {
			return Select(context.Background(), store, "ns", c, func(a domain.SubArticle) string { return a.URL }, 5, discardLogger())
		})

	assert.Nil(t, issue)
	assert.Empty(t, got)
}

func TestSelectIssue_NoIssues(t *testing.T) {
	issue, got := SelectIssue(nil, &fakeExtractor{}, func(c []domain.SubArticle) []domain.SubArticle { return c })

	assert.Nil(t, issue)
	assert.Empty(t, got)
}
