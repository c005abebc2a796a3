package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/extractor/internal/fetch"
)

func testFetchClient() *fetch.Client {
	return fetch.New(1000, 5*time.Second)
}

func TestVideoID(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want string
	}{
		{"watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch extra params", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=30s", "dQw4w9WgXcQ"},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"short link with query", "https://youtu.be/dQw4w9WgXcQ?si=xyz", "dQw4w9WgXcQ"},
		{"shorts", "https://www.youtube.com/shorts/abc123xyz", "abc123xyz"},
		{"embed", "https://www.youtube.com/embed/abc123xyz", "abc123xyz"},
		{"live", "https://www.youtube.com/live/abc123xyz", "abc123xyz"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := VideoID(tc.url)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestVideoIDErrors(t *testing.T) {
	for _, url := range []string{
		"https://www.youtube.com/",
		"https://youtu.be/",
		"https://www.youtube.com/feed/subscriptions",
	} {
		_, err := VideoID(url)
		assert.Error(t, err, url)
	}
}

func playerStub(t *testing.T, tracks []CaptionTrack, timedTextBody string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/player", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "3", r.Header.Get("X-Youtube-Client-Name"))

		var req struct {
			VideoID string `json:"videoId"`
			Context struct {
				Client struct {
					ClientName string `json:"clientName"`
				} `json:"client"`
			} `json:"context"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ANDROID", req.Context.Client.ClientName)

		json.NewEncoder(w).Encode(map[string]any{
			"videoDetails": map[string]any{
				"videoId":          req.VideoID,
				"title":            "Test Video",
				"author":           "Test Channel",
				"lengthSeconds":    "212",
				"viewCount":        "1000000",
				"shortDescription": "A description.",
			},
			"captions": map[string]any{
				"playerCaptionsTracklistRenderer": map[string]any{
					"captionTracks": tracks,
				},
			},
		})
	})
	mux.HandleFunc("/timedtext", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, timedTextBody)
	})

	return httptest.NewServer(mux)
}

func TestLookup(t *testing.T) {
	srv := playerStub(t, nil, "")
	defer srv.Close()

	c := NewClientWithEndpoint(testFetchClient(), srv.URL+"/player")
	v, err := c.Lookup(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)

	assert.Equal(t, "dQw4w9WgXcQ", v.ID)
	assert.Equal(t, "Test Video", v.Title)
	assert.Equal(t, "Test Channel", v.Channel)
	assert.Equal(t, 212, v.DurationSeconds)
	assert.Equal(t, int64(1000000), v.ViewCount)
	assert.Empty(t, v.Tracks)
}

func TestLookupUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"playabilityStatus": map[string]string{
				"status": "ERROR",
				"reason": "Video unavailable",
			},
		})
	}))
	defer srv.Close()

	c := NewClientWithEndpoint(testFetchClient(), srv.URL)
	_, err := c.Lookup(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Video unavailable")
}

func TestCaptionText(t *testing.T) {
	var playerCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/player", func(w http.ResponseWriter, r *http.Request) {
		playerCalls++
	})
	mux.HandleFunc("/timedtext", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?>
<transcript>
  <text start="0.0" dur="2.5">Hello &amp;amp; welcome</text>
  <text start="2.5" dur="3.0">to the &lt;b&gt;show&lt;/b&gt;</text>
  <text start="5.5" dur="1.0">   </text>
</transcript>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClientWithEndpoint(testFetchClient(), srv.URL+"/player")
	text, err := c.CaptionText(context.Background(), []CaptionTrack{
		{BaseURL: srv.URL + "/timedtext", LanguageCode: "en"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello & welcome to the show", text)
	// Caption download works off the tracks it is handed; /player stays cold.
	assert.Equal(t, 0, playerCalls)
}

func TestCaptionTextNoTracks(t *testing.T) {
	c := NewClientWithEndpoint(testFetchClient(), "http://example.invalid/player")
	_, err := c.CaptionText(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoCaptions)
}

func TestCaptionTextEmptyTranscript(t *testing.T) {
	srv := playerStub(t, nil, `<?xml version="1.0"?><transcript></transcript>`)
	defer srv.Close()

	c := NewClientWithEndpoint(testFetchClient(), srv.URL+"/player")
	_, err := c.CaptionText(context.Background(), []CaptionTrack{
		{BaseURL: srv.URL + "/timedtext", LanguageCode: "en"},
	})
	assert.ErrorIs(t, err, ErrNoCaptions)
}

func TestPickBestTrack(t *testing.T) {
	manual := CaptionTrack{BaseURL: "manual-en", LanguageCode: "en"}
	auto := CaptionTrack{BaseURL: "auto-en", LanguageCode: "en", Kind: "asr"}
	french := CaptionTrack{BaseURL: "manual-fr", LanguageCode: "fr"}
	british := CaptionTrack{BaseURL: "manual-en-gb", LanguageCode: "en-GB"}

	cases := []struct {
		name   string
		tracks []CaptionTrack
		want   string
	}{
		{"manual beats auto", []CaptionTrack{auto, manual}, "manual-en"},
		{"auto when no manual", []CaptionTrack{french, auto}, "auto-en"},
		{"english variant fallback", []CaptionTrack{french, british}, "manual-en-gb"},
		{"first when nothing matches", []CaptionTrack{french}, "manual-fr"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, pickBestTrack(tc.tracks, []string{"en"}).BaseURL)
		})
	}
}
