package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"nexus/extractor/internal/fetch"
)

const (
	maxCommentDepth = 3
	threadBodyLimit = 4 << 20
)

// ThreadExtractor fetches a discussion thread through Reddit's public JSON
// endpoint: the root post plus a bounded number of comments, concatenated
// with speaker/turn delimiters.
type ThreadExtractor struct {
	client      *fetch.Client
	maxComments int
}

func NewThreadExtractor(client *fetch.Client, maxComments int) *ThreadExtractor {
	return &ThreadExtractor{client: client, maxComments: maxComments}
}

type redditListing struct {
	Data struct {
		Children []redditThing `json:"children"`
	} `json:"data"`
}

type redditThing struct {
	Kind string     `json:"kind"`
	Data redditItem `json:"data"`
}

type redditItem struct {
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	Subreddit   string          `json:"subreddit"`
	Selftext    string          `json:"selftext"`
	Body        string          `json:"body"`
	Score       int             `json:"score"`
	NumComments int             `json:"num_comments"`
	CreatedUTC  float64         `json:"created_utc"`
	Replies     json.RawMessage `json:"replies"`
}

func (e *ThreadExtractor) Extract(ctx context.Context, ref Reference) (*Result, error) {
	resp, err := e.client.Get(ctx, jsonEndpoint(ref.URL), map[string]string{
		"User-Agent": "nexus-extractor/1.0 (research bot)",
	})
	if err != nil {
		return nil, Wrap(KindUnreachable, "fetch thread", err)
	}

	if err := httpStatusError("fetch thread", resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}

	body, err := fetch.ReadBody(resp, threadBodyLimit)
	if err != nil {
		return nil, Wrap(KindUnreachable, "read thread", err)
	}

	// Reddit returns a two-element array: [post listing, comment listing].
	var listings []redditListing
	if err := json.Unmarshal(body, &listings); err != nil {
		return nil, Wrap(KindCorrupt, "decode thread JSON", err)
	}
	if len(listings) < 2 || len(listings[0].Data.Children) == 0 {
		return nil, Failf(KindCorrupt, "unexpected thread API response shape")
	}

	post := listings[0].Data.Children[0].Data

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n", post.Title)
	fmt.Fprintf(&sb, "Posted by u/%s in r/%s\n", post.Author, post.Subreddit)
	fmt.Fprintf(&sb, "Score: %d | Comments: %d\n\n", post.Score, post.NumComments)

	if post.Selftext != "" {
		sb.WriteString("## Post Content\n")
		sb.WriteString(post.Selftext)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Top Comments\n\n")
	remaining := e.maxComments
	writeComments(&sb, listings[1].Data.Children, 0, &remaining)

	return &Result{
		Title:   fmt.Sprintf("[r/%s] %s", post.Subreddit, post.Title),
		Content: sb.String(),
		Metadata: map[string]any{
			"subreddit":    post.Subreddit,
			"author":       post.Author,
			"score":        post.Score,
			"num_comments": post.NumComments,
			"created_utc":  post.CreatedUTC,
			"source_url":   ref.URL,
		},
	}, nil
}

// writeComments walks the comment tree in the platform's default ranking,
// decrementing remaining until the bound is spent.
func writeComments(sb *strings.Builder, things []redditThing, depth int, remaining *int) {
	for _, thing := range things {
		if *remaining <= 0 {
			return
		}
		if thing.Kind != "t1" {
			continue
		}
		c := thing.Data
		if c.Body == "" || c.Body == "[deleted]" || c.Body == "[removed]" {
			continue
		}

		indent := strings.Repeat("  ", depth)
		fmt.Fprintf(sb, "%s**u/%s** (%d points):\n", indent, c.Author, c.Score)
		fmt.Fprintf(sb, "%s%s\n\n", indent, c.Body)
		*remaining--

		if depth < maxCommentDepth && len(c.Replies) > 0 {
			var replies redditListing
			if err := json.Unmarshal(c.Replies, &replies); err == nil {
				writeComments(sb, replies.Data.Children, depth+1, remaining)
			}
		}
	}
}

// jsonEndpoint converts a thread URL into its JSON API form. Desktop and
// legacy subdomains resolve to the same endpoint, so the host is left alone
// apart from the old.reddit normalization.
func jsonEndpoint(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.TrimSuffix(rawURL, "/") + ".json"
	}
	if u.Host == "old.reddit.com" || u.Host == "m.reddit.com" {
		u.Host = "www.reddit.com"
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(u.Path, ".json") {
		u.Path += ".json"
	}
	return u.String()
}
