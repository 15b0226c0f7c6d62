package domain

import "time"

// SourceKind определяет грамматику ленты и способ извлечения новых элементов.
type SourceKind string

const (
	// KindAtom - Atom-лента, каждая запись является отдельным материалом.
	KindAtom SourceKind = "atom"
	// KindRSS - RSS 2.0 канал, каждый item является отдельным материалом.
	KindRSS SourceKind = "rss"
	// KindDigest - RSS 2.0 канал, description каждого item содержит HTML-выпуск рассылки.
	KindDigest SourceKind = "digest"
)

// FeedEntry представляет одну запись плоской ленты (Atom entry или обычный RSS item).
type FeedEntry struct {
	ID        string
	Title     string
	Link      string
	Published time.Time
	Updated   time.Time
	Summary   string
	Content   string
	Author    string
}

// AtomFeed представляет разобранную Atom-ленту.
type AtomFeed struct {
	Title   string
	ID      string
	Updated time.Time
	Entries []FeedEntry
}

// RSSItem представляет элемент RSS-канала в исходном виде.
type RSSItem struct {
	Title       string
	Link        string
	Description string
	GUID        string
	PubDate     time.Time
	RawPubDate  string
	Content     string
	Creator     string
}

// RSSChannel представляет разобранный RSS-канал.
type RSSChannel struct {
	Title       string
	Link        string
	Description string
	Items       []RSSItem
}

// DigestIssue - один выпуск рассылки. Существует только во время извлечения.
type DigestIssue struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	PubDate     time.Time `json:"pub_date"`
	RawPubDate  string    `json:"-"`
	Description string    `json:"-"`
}

// SubArticle - статья, восстановленная из HTML выпуска рассылки.
// Идентичность для дедупликации - нормализованный URL.
type SubArticle struct {
	URL         string
	Title       string
	Description string
	Byline      string
}

// Item - единая форма доставляемого материала независимо от происхождения.
type Item struct {
	SourceID  string    `json:"source_id"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Summary   string    `json:"summary"`
	Content   string    `json:"content,omitempty"`
	Author    string    `json:"author,omitempty"`
	Published time.Time `json:"published"`
	Updated   time.Time `json:"updated,omitempty"`
}

// Batch - результат одного запуска источника.
// Issue заполняется только для digest-источников.
type Batch struct {
	SourceID string       `json:"source_id"`
	Kind     SourceKind   `json:"kind"`
	Issue    *DigestIssue `json:"issue,omitempty"`
	Items    []Item       `json:"items"`
}

// Event - единица доставки получателям. Для atom и rss источников
// событие содержит один материал, для digest - все новые статьи выпуска.
type Event struct {
	ID         string     `json:"id"`
	SourceID   string     `json:"source_id"`
	SourceName string     `json:"source_name"`
	Kind       SourceKind `json:"kind"`
	Title      string     `json:"title"`
	Link       string     `json:"link"`
	Items      []Item     `json:"items"`
	Summary    string     `json:"summary,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
