package fetcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher() *HTTPFetcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHTTPFetcher(Options{Timeout: 2 * time.Second, UserAgent: "feedrelay-test"}, logger)
}

func TestHTTPFetcher_Fetch_Success(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "feedrelay-test", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<feed>тест</feed>"))
	}))
	defer testServer.Close()

	data, err := newTestFetcher().Fetch(context.Background(), testServer.URL, "")

	require.NoError(t, err)
	assert.Equal(t, "<feed>тест</feed>", string(data))
}

func TestHTTPFetcher_Fetch_NotFound(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer testServer.Close()

	data, err := newTestFetcher().Fetch(context.Background(), testServer.URL, "")

	require.Error(t, err)
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, http.StatusNotFound, transportErr.Status)
	assert.Contains(t, err.Error(), "unexpected status code 404")
	assert.Nil(t, data)
}

func TestHTTPFetcher_Fetch_BinaryBody(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte{0xff, 0xfe, 0xfd})
	}))
	defer testServer.Close()

	_, err := newTestFetcher().Fetch(context.Background(), testServer.URL, "")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotText)
}

func TestHTTPFetcher_Fetch_DeclaredCharset(t *testing.T) {
	latin1 := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><rss version=\"2.0\"><channel><title>Caf\xe9</title></channel></rss>")
	tests := []struct {
		name        string
		contentType string
	}{
		{"content type charset", "application/rss+xml; charset=ISO-8859-1"},
		{"xml prolog only", "application/rss+xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.Write(latin1)
			}))
			defer testServer.Close()

			data, err := newTestFetcher().Fetch(context.Background(), testServer.URL, "")

			require.NoError(t, err)
			assert.Equal(t, latin1, data)
		})
	}
}

func TestDeclaredCharset(t *testing.T) {
	assert.Equal(t, "ISO-8859-1", declaredCharset("text/xml; charset=ISO-8859-1", nil))
	assert.Equal(t, "windows-1251", declaredCharset("", []byte(`<?xml version='1.0' encoding='windows-1251'?><rss/>`)))
	assert.Empty(t, declaredCharset("text/xml", []byte("<rss/>")))
	assert.Empty(t, declaredCharset("", []byte{0xff, 0xfe, 0xfd}))
	assert.Empty(t, declaredCharset("text/xml; charset=UTF-8", []byte("<rss/>")))
}

func TestHTTPFetcher_InvalidURL(t *testing.T) {
	data, err := newTestFetcher().Fetch(context.Background(), "invalid://url", "")

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Zero(t, transportErr.Status)
	assert.Nil(t, data)
}

func TestHTTPFetcher_ContextCancelled(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("slow response"))
	}))
	defer testServer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data, err := newTestFetcher().Fetch(ctx, testServer.URL, "")

	assert.Error(t, err)
	assert.Nil(t, data)
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer testServer.Close()

	f := NewHTTPFetcher(Options{Timeout: 50 * time.Millisecond}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := f.Fetch(context.Background(), testServer.URL, "")

	var transportErr *TransportError
	assert.True(t, errors.As(err, &transportErr))
}

func TestHTTPFetcher_UsesProxy(t *testing.T) {
	var proxiedHost string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxiedHost = r.URL.Host
		w.Write([]byte("via proxy"))
	}))
	defer proxy.Close()

	data, err := newTestFetcher().Fetch(context.Background(), "http://feeds.example.invalid/feed.xml", proxy.URL)

	require.NoError(t, err)
	assert.Equal(t, "via proxy", string(data))
	assert.Equal(t, "feeds.example.invalid", proxiedHost)
}
