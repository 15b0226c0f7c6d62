package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"feedrelay/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	name   string
	err    error
	mu     sync.Mutex
	events []domain.Event
	times  []time.Time
}

func (p *recordingPublisher) Name() string { return p.name }

func (p *recordingPublisher) Publish(_ context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	p.times = append(p.times, time.Now())
	return p.err
}

type stubSummarizer struct {
	text string
	err  error
}

func (s stubSummarizer) Summarize(_ context.Context, event domain.Event) (string, error) {
	return s.text + " " + event.Title, s.err
}

func newProcessor(src *Source, store MarkerStore, summarizer Summarizer, pause time.Duration, pubs ...Publisher) *FeedProcessingUseCase {
	return NewFeedProcessingUseCase([]SourceRoute{{Source: src, Publishers: pubs}}, summarizer, store, pause, discardLogger())
}

func TestProcessSource_OneEventPerEntry(t *testing.T) {
	store := newFakeMarkerStore()
	src, _ := newTestSource(domain.KindAtom, goBlogAtom, store)
	pub := &recordingPublisher{name: "lark"}
	uc := newProcessor(src, store, stubSummarizer{text: "summary of"}, 0, pub)

	report, err := uc.ProcessSource(context.Background(), "src")

	require.NoError(t, err)
	assert.Equal(t, 3, report.Items)
	assert.Equal(t, 3, report.Events)
	require.Len(t, pub.events, 3)
	first := pub.events[0]
	assert.Equal(t, "Go 1.23", first.Title)
	assert.Equal(t, "https://go.dev/blog/go1.23", first.Link)
	assert.Equal(t, "summary of Go 1.23", first.Summary)
	assert.Equal(t, domain.KindAtom, first.Kind)
	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, pub.events[1].ID)

	report, err = uc.ProcessSource(context.Background(), "src")
	require.NoError(t, err)
	assert.Zero(t, report.Items)
	assert.Len(t, pub.events, 3)
}

func TestProcessSource_DigestIsOneEvent(t *testing.T) {
	store := newFakeMarkerStore()
	src, _ := newTestSource(domain.KindDigest, weeklyRSS([]int{1, 2, 3}), store)
	pub := &recordingPublisher{name: "lark"}
	uc := newProcessor(src, store, nil, 0, pub)

	report, err := uc.ProcessSource(context.Background(), "src")

	require.NoError(t, err)
	assert.Equal(t, 3, report.Items)
	require.Len(t, pub.events, 1)
	event := pub.events[0]
	assert.Len(t, event.Items, 3)
	assert.Equal(t, "[Source] - Tue, 23 Apr 2024", event.Title)
	assert.Equal(t, "https://golangweekly.com/issues/500", event.Link)
	assert.Empty(t, event.Summary)
}

func TestProcessSource_PublisherFailureDoesNotStopOthers(t *testing.T) {
	store := newFakeMarkerStore()
	src, _ := newTestSource(domain.KindRSS, redisBlogRSS, store)
	broken := &recordingPublisher{name: "broken", err: errors.New("code 19001: invalid webhook")}
	healthy := &recordingPublisher{name: "healthy"}
	uc := newProcessor(src, store, nil, 0, broken, healthy)

	report, err := uc.ProcessSource(context.Background(), "src")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid webhook")
	assert.Equal(t, 2, report.Failed)
	assert.Len(t, healthy.events, 2)
}

func TestProcessSource_SummarizerFailureKeepsDelivering(t *testing.T) {
	store := newFakeMarkerStore()
	src, _ := newTestSource(domain.KindRSS, redisBlogRSS, store)
	pub := &recordingPublisher{name: "lark"}
	uc := newProcessor(src, store, stubSummarizer{err: errors.New("429 too many requests")}, 0, pub)

	_, err := uc.ProcessSource(context.Background(), "src")

	require.NoError(t, err)
	require.Len(t, pub.events, 2)
	assert.Empty(t, pub.events[0].Summary)
}

func TestProcessSource_PausesBetweenEvents(t *testing.T) {
	store := newFakeMarkerStore()
	src, _ := newTestSource(domain.KindRSS, redisBlogRSS, store)
	pub := &recordingPublisher{name: "lark"}
	uc := newProcessor(src, store, nil, 60*time.Millisecond, pub)

	_, err := uc.ProcessSource(context.Background(), "src")

	require.NoError(t, err)
	require.Len(t, pub.times, 2)
	assert.GreaterOrEqual(t, pub.times[1].Sub(pub.times[0]), 40*time.Millisecond)
}

func TestProcessSource_CancelledDuringPause(t *testing.T) {
	store := newFakeMarkerStore()
	src, _ := newTestSource(domain.KindRSS, redisBlogRSS, store)
	pub := &recordingPublisher{name: "lark"}
	uc := newProcessor(src, store, nil, time.Hour, pub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := uc.ProcessSource(ctx, "src")

	require.Error(t, err)
	assert.Len(t, pub.events, 1)
}

func TestProcessSource_UnknownSource(t *testing.T) {
	src, _ := newTestSource(domain.KindAtom, goBlogAtom, nil)
	uc := newProcessor(src, nil, nil, 0)

	_, err := uc.ProcessSource(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestPreview_DoesNotPublishOrMark(t *testing.T) {
	store := newFakeMarkerStore()
	src, _ := newTestSource(domain.KindAtom, goBlogAtom, store)
	pub := &recordingPublisher{name: "lark"}
	uc := newProcessor(src, store, nil, 0, pub)

	batch, err := uc.Preview(context.Background(), "src", 2)

	require.NoError(t, err)
	assert.Len(t, batch.Items, 2)
	assert.Empty(t, pub.events)
	assert.Empty(t, store.calls)
}

func TestResetMarker(t *testing.T) {
	store := newFakeMarkerStore("range")
	src, _ := newTestSource(domain.KindAtom, goBlogAtom, store)
	uc := newProcessor(src, store, nil, 0)

	require.NoError(t, uc.ResetMarker(context.Background(), "src", "range"))

	assert.Equal(t, []string{"feedrelay:src/range"}, store.deleted)
	assert.ErrorIs(t, uc.ResetMarker(context.Background(), "other", "k"), ErrUnknownSource)
}

func TestResetMarker_NoStore(t *testing.T) {
	src, _ := newTestSource(domain.KindAtom, goBlogAtom, nil)
	uc := newProcessor(src, nil, nil, 0)

	assert.ErrorIs(t, uc.ResetMarker(context.Background(), "src", "k"), ErrDedupDisabled)
}

func TestSources(t *testing.T) {
	src, _ := newTestSource(domain.KindAtom, goBlogAtom, nil)
	uc := newProcessor(src, nil, nil, 0)

	sources := uc.Sources()
	require.Len(t, sources, 1)
	assert.Equal(t, "feedrelay:src", sources[0].Namespace)
	assert.Equal(t, []string{"src"}, uc.SourceIDs())
}
