package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/extractor/internal/fetch"
)

func testFetchClient() *fetch.Client {
	return fetch.New(1000, 5*time.Second)
}

func articlePage() string {
	var b strings.Builder
	b.WriteString("<html><head><title>Understanding Worker Pools</title></head><body><article>")
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, "<p>Paragraph %d explains how bounded worker pools keep memory usage predictable under sustained load, and why unbounded goroutine spawning eventually exhausts the scheduler.</p>", i)
	}
	b.WriteString("</article></body></html>")
	return b.String()
}

func TestArticleExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, articlePage())
	}))
	defer srv.Close()

	e := NewArticleExtractor(testFetchClient(), 150)
	result, err := e.Extract(context.Background(), Reference{URL: srv.URL + "/post"})
	require.NoError(t, err)

	assert.Contains(t, result.Content, "bounded worker pools")
	assert.NotEmpty(t, result.Title)
	assert.Equal(t, srv.URL+"/post", result.Metadata["source_url"])
	assert.Greater(t, result.Metadata["word_count"].(int), 100)
}

func TestArticleExtractTooShort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><article><p>Tiny.</p></article></body></html>")
	}))
	defer srv.Close()

	e := NewArticleExtractor(testFetchClient(), 150)
	_, err := e.Extract(context.Background(), Reference{URL: srv.URL})
	require.Error(t, err)
	assert.Equal(t, KindEmptyContent, KindOf(err))
}

func TestArticleExtractServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	e := NewArticleExtractor(testFetchClient(), 150)
	_, err := e.Extract(context.Background(), Reference{URL: srv.URL})
	require.Error(t, err)
	assert.Equal(t, KindUnreachable, KindOf(err))
}

func TestArticleExtractUpstreamStatus(t *testing.T) {
	cases := []struct {
		status int
		want   Kind
	}{
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusNotFound, KindUnreachable},
		{http.StatusInternalServerError, KindUnreachable},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("status %d", tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			e := NewArticleExtractor(testFetchClient(), 150)
			_, err := e.Extract(context.Background(), Reference{URL: srv.URL})
			require.Error(t, err)
			assert.Equal(t, tc.want, KindOf(err))
		})
	}
}
