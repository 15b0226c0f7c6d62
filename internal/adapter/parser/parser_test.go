package parser

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *Parser {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>The Go Blog</title>
  <id>tag:blog.golang.org,2013:blog.golang.org</id>
  <updated>2024-08-13T00:00:00+00:00</updated>
  <entry>
    <title>Go 1.23 is released</title>
    <id>tag:blog.golang.org,2013:blog.golang.org/go1.23</id>
    <link rel="alternate" href="https://go.dev/blog/go1.23"></link>
    <published>2024-08-13T00:00:00+00:00</published>
    <updated>2024-08-13T00:00:00+00:00</updated>
    <summary type="html">Go 1.23 brings range-over-func.</summary>
    <content type="html">&lt;p&gt;Today the Go team is happy to release Go 1.23.&lt;/p&gt;</content>
  </entry>
  <entry>
    <title>Range Over Function Types</title>
    <id>tag:blog.golang.org,2013:blog.golang.org/range-functions</id>
    <link rel="self" href="https://go.dev/blog/range-functions.atom"></link>
    <link href="https://go.dev/blog/range-functions"></link>
    <updated>2024-08-20T00:00:00+00:00</updated>
  </entry>
</feed>`

func TestParseAtom_Success(t *testing.T) {
	feed, err := newTestParser().ParseAtom([]byte(atomFeed))

	require.NoError(t, err)
	assert.Equal(t, "The Go Blog", feed.Title)
	assert.Equal(t, "tag:blog.golang.org,2013:blog.golang.org", feed.ID)
	assert.True(t, feed.Updated.Equal(time.Date(2024, 8, 13, 0, 0, 0, 0, time.UTC)))
	require.Len(t, feed.Entries, 2)

	first := feed.Entries[0]
	assert.Equal(t, "tag:blog.golang.org,2013:blog.golang.org/go1.23", first.ID)
	assert.Equal(t, "https://go.dev/blog/go1.23", first.Link)
	assert.Equal(t, "Go 1.23 brings range-over-func.", first.Summary)
	assert.Contains(t, first.Content, "Today the Go team is happy to release Go 1.23.")
	assert.True(t, first.Published.Equal(time.Date(2024, 8, 13, 0, 0, 0, 0, time.UTC)))

	second := feed.Entries[1]
	assert.Equal(t, "https://go.dev/blog/range-functions", second.Link)
	assert.Empty(t, second.Summary)
	assert.Empty(t, second.Content)
	assert.True(t, second.Published.IsZero())
}

func TestParseAtom_EmptyFeed(t *testing.T) {
	feed, err := newTestParser().ParseAtom([]byte(`<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Inside Rust Blog</title>
  <id>https://blog.rust-lang.org/inside-rust/</id>
</feed>`))

	require.NoError(t, err)
	assert.Empty(t, feed.Entries)
}

func TestParseAtom_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed xml", `<feed xmlns="http://www.w3.org/2005/Atom"><title>Broken`},
		{"not xml", `{"title": "json feed"}`},
		{"rss document", `<rss version="2.0"><channel><title>t</title></channel></rss>`},
		{"missing feed id", `<feed xmlns="http://www.w3.org/2005/Atom"><title>t</title></feed>`},
		{"entry without link", `<feed xmlns="http://www.w3.org/2005/Atom"><title>t</title><id>f</id>
			<entry><id>e1</id><title>no link</title></entry></feed>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed, err := newTestParser().ParseAtom([]byte(tt.doc))

			require.Error(t, err)
			assert.Nil(t, feed)
			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, GrammarAtom, parseErr.Grammar)
		})
	}
}

const rssChannel = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel>
    <title>Redis Blog</title>
    <link>https://redis.io/blog/</link>
    <description>News from Redis</description>
    <item>
      <title>Redis 8 is GA</title>
      <link>https://redis.io/blog/redis-8-ga/</link>
      <description>Redis 8 is now generally available.</description>
      <guid isPermaLink="false">https://redis.io/?p=1001</guid>
      <pubDate>Thu, 01 May 2025 14:00:00 +0000</pubDate>
      <content:encoded><![CDATA[<p>Full article body</p>]]></content:encoded>
      <dc:creator>Redis Team</dc:creator>
    </item>
    <item>
      <title>Vector sets</title>
      <link>https://redis.io/blog/vector-sets/</link>
      <description>A new data type.</description>
      <guid>https://redis.io/?p=1002</guid>
      <pubDate>Wed, 30 Apr 2025 09:30:00 +0000</pubDate>
    </item>
  </channel>
</rss>`

func TestParseRSS_Success(t *testing.T) {
	channel, err := newTestParser().ParseRSS([]byte(rssChannel))

	require.NoError(t, err)
	assert.Equal(t, "Redis Blog", channel.Title)
	assert.Equal(t, "News from Redis", channel.Description)
	require.Len(t, channel.Items, 2)

	first := channel.Items[0]
	assert.Equal(t, "https://redis.io/?p=1001", first.GUID)
	assert.Equal(t, "<p>Full article body</p>", first.Content)
	assert.Equal(t, "Redis Team", first.Creator)
	assert.Equal(t, "Thu, 01 May 2025 14:00:00 +0000", first.RawPubDate)
	assert.True(t, first.PubDate.Equal(time.Date(2025, 5, 1, 14, 0, 0, 0, time.UTC)))

	second := channel.Items[1]
	assert.Empty(t, second.Content)
	assert.Empty(t, second.Creator)
}

func TestParseRSS_EmptyChannel(t *testing.T) {
	channel, err := newTestParser().ParseRSS([]byte(`<rss version="2.0"><channel><title>Golang Weekly</title><description>d</description></channel></rss>`))

	require.NoError(t, err)
	assert.Empty(t, channel.Items)
}

func TestParseRSS_Latin1Channel(t *testing.T) {
	doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><rss version=\"2.0\"><channel><title>Caf\xe9</title><description>d</description></channel></rss>"

	channel, err := newTestParser().ParseRSS([]byte(doc))

	require.NoError(t, err)
	assert.Equal(t, "Café", channel.Title)
}

func TestParseRSS_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed xml", `<rss version="2.0"><channel><title>t</title><item>`},
		{"atom document", atomFeed},
		{"missing guid", `<rss version="2.0"><channel><title>t</title>
			<item><title>a</title><link>https://x/a</link><description>d</description><pubDate>Thu, 01 May 2025 14:00:00 +0000</pubDate></item>
			</channel></rss>`},
		{"missing pubDate", `<rss version="2.0"><channel><title>t</title>
			<item><title>a</title><link>https://x/a</link><description>d</description><guid>g</guid></item>
			</channel></rss>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			channel, err := newTestParser().ParseRSS([]byte(tt.doc))

			require.Error(t, err)
			assert.Nil(t, channel)
			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, GrammarRSS, parseErr.Grammar)
		})
	}
}

func TestParseRSS_MissingFieldIsWrapped(t *testing.T) {
	_, err := newTestParser().ParseRSS([]byte(`<rss version="2.0"><channel><title>t</title>
		<item><title>a</title><description>d</description><guid>g</guid><pubDate>x</pubDate></item>
		</channel></rss>`))

	assert.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), "item[0]/link")
}
