package extract

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/markusmobius/go-trafilatura"

	"nexus/extractor/internal/fetch"
)

// ArticleExtractor fetches a web page and pulls out the main readable text,
// discarding navigation and boilerplate. It is also the ordered-fallback
// default strategy for any URL matching no specialized platform.
type ArticleExtractor struct {
	client   *fetch.Client
	minChars int
}

func NewArticleExtractor(client *fetch.Client, minChars int) *ArticleExtractor {
	return &ArticleExtractor{client: client, minChars: minChars}
}

func (e *ArticleExtractor) Extract(ctx context.Context, ref Reference) (*Result, error) {
	resp, err := e.client.Get(ctx, ref.URL, nil)
	if err != nil {
		return nil, Wrap(KindUnreachable, "fetch page", err)
	}
	defer resp.Body.Close()

	if err := httpStatusError("fetch page", resp.StatusCode); err != nil {
		return nil, err
	}

	parsed, _ := url.Parse(ref.URL)
	result, err := trafilatura.Extract(resp.Body, trafilatura.Options{
		OriginalURL:     parsed,
		ExcludeComments: true,
		Focus:           trafilatura.FavorRecall,
	})
	if err != nil {
		return nil, Wrap(KindEmptyContent, "extract readable text", err)
	}

	content := strings.TrimSpace(result.ContentText)
	if len(content) < e.minChars {
		// Sparse text is a failure, not a success-with-empty-string:
		// downstream consumers assume non-empty content for completed jobs.
		return nil, Failf(KindEmptyContent, "extracted text too short (%d chars, need %d)", len(content), e.minChars)
	}

	title := strings.TrimSpace(result.Metadata.Title)
	if title == "" {
		title = ref.URL
	}

	metadata := map[string]any{
		"author":     result.Metadata.Author,
		"sitename":   result.Metadata.Sitename,
		"source_url": ref.URL,
		"word_count": len(strings.Fields(content)),
	}
	if !result.Metadata.Date.IsZero() {
		metadata["date"] = result.Metadata.Date.Format("2006-01-02")
	}

	return &Result{Title: title, Content: content, Metadata: metadata}, nil
}

// httpStatusError maps an upstream HTTP status to a classified failure.
func httpStatusError(op string, code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return Failf(KindRateLimited, "%s: upstream returned 429", op)
	case code >= 400:
		return Failf(KindUnreachable, "%s: upstream returned %d", op, code)
	default:
		return nil
	}
}
