// Package youtube talks to the Innertube API: video metadata, caption
// track discovery, and timedtext transcript download.
//
// The ANDROID client context is used because the web /player endpoint
// frequently answers LOGIN_REQUIRED from datacenter IPs.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"nexus/extractor/internal/fetch"
)

const (
	defaultPlayerURL = "https://www.youtube.com/youtubei/v1/player?prettyPrint=false"
	androidVersion   = "19.09.37"
	androidUA        = "com.google.android.youtube/" + androidVersion + " (Linux; U; Android 11) gzip"
	timedTextLimit   = 512 * 1024
	playerBodyLimit  = 4 << 20
)

var ErrNoCaptions = errors.New("no caption tracks available")

var tagRE = regexp.MustCompile(`<[^>]+>`)

type Client struct {
	client    *fetch.Client
	playerURL string
}

func NewClient(client *fetch.Client) *Client {
	return &Client{client: client, playerURL: defaultPlayerURL}
}

// NewClientWithEndpoint is used by tests to point at a stub server.
func NewClientWithEndpoint(client *fetch.Client, playerURL string) *Client {
	return &Client{client: client, playerURL: playerURL}
}

// Video is the metadata and caption inventory for one video.
type Video struct {
	ID              string
	Title           string
	Channel         string
	Description     string
	DurationSeconds int
	ViewCount       int64
	Tracks          []CaptionTrack
}

type CaptionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

type playerResp struct {
	VideoDetails *struct {
		VideoID          string `json:"videoId"`
		Title            string `json:"title"`
		Author           string `json:"author"`
		LengthSeconds    string `json:"lengthSeconds"`
		ViewCount        string `json:"viewCount"`
		ShortDescription string `json:"shortDescription"`
	} `json:"videoDetails"`
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []CaptionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

// VideoID extracts the video id from any of the usual URL shapes:
// watch?v=, youtu.be/, shorts/, embed/.
func VideoID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse video URL: %w", err)
	}

	if strings.EqualFold(u.Hostname(), "youtu.be") {
		if id := strings.Trim(u.Path, "/"); id != "" {
			return id, nil
		}
		return "", fmt.Errorf("no video id in %s", rawURL)
	}

	if v := u.Query().Get("v"); v != "" {
		return v, nil
	}
	for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
		if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
			if id, _, _ := strings.Cut(rest, "/"); id != "" {
				return id, nil
			}
		}
	}
	return "", fmt.Errorf("no video id in %s", rawURL)
}

// Lookup fetches metadata and caption tracks through /player.
func (c *Client) Lookup(ctx context.Context, videoURL string) (*Video, error) {
	id, err := VideoID(videoURL)
	if err != nil {
		return nil, err
	}

	reqBody, err := json.Marshal(map[string]any{
		"videoId": id,
		"context": map[string]any{
			"client": map[string]any{
				"clientName":        "ANDROID",
				"clientVersion":     androidVersion,
				"androidSdkVersion": 30,
				"hl":                "en",
				"gl":                "US",
			},
		},
		"racyCheckOk":    true,
		"contentCheckOk": true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.playerURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", androidUA)
	req.Header.Set("X-Youtube-Client-Name", "3")
	req.Header.Set("X-Youtube-Client-Version", androidVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("innertube player: %w", err)
	}

	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("innertube player: status %d", resp.StatusCode)
	}

	body, err := fetch.ReadBody(resp, playerBodyLimit)
	if err != nil {
		return nil, err
	}

	var pr playerResp
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("decode player response: %w", err)
	}
	if pr.VideoDetails == nil {
		reason := "no video details"
		if pr.PlayabilityStatus != nil && pr.PlayabilityStatus.Reason != "" {
			reason = pr.PlayabilityStatus.Reason
		}
		return nil, fmt.Errorf("video unavailable: %s", reason)
	}

	v := &Video{
		ID:          pr.VideoDetails.VideoID,
		Title:       pr.VideoDetails.Title,
		Channel:     pr.VideoDetails.Author,
		Description: pr.VideoDetails.ShortDescription,
	}
	v.DurationSeconds, _ = strconv.Atoi(pr.VideoDetails.LengthSeconds)
	v.ViewCount, _ = strconv.ParseInt(pr.VideoDetails.ViewCount, 10, 64)
	if pr.Captions != nil {
		v.Tracks = pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	}
	return v, nil
}

// CaptionText downloads the best of the given caption tracks as plain text.
// The track inventory comes from a prior Lookup, so there is no second
// /player round trip. Returns ErrNoCaptions when no track yields usable
// text, so the caller can fall through to local transcription.
func (c *Client) CaptionText(ctx context.Context, tracks []CaptionTrack) (string, error) {
	if len(tracks) == 0 {
		return "", ErrNoCaptions
	}

	track := pickBestTrack(tracks, []string{"en"})
	text, err := c.fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrNoCaptions
	}
	return text, nil
}

// pickBestTrack prefers a manual track in a preferred language, then an
// auto-generated one, then any English track, then whatever is first.
func pickBestTrack(tracks []CaptionTrack, langs []string) CaptionTrack {
	for _, lang := range langs {
		for _, t := range tracks {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t
			}
		}
	}
	for _, lang := range langs {
		for _, t := range tracks {
			if t.LanguageCode == lang {
				return t
			}
		}
	}
	for _, t := range tracks {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t
		}
	}
	return tracks[0]
}

type timedText struct {
	Lines []struct {
		Text string `xml:",chardata"`
	} `xml:"text"`
}

func (c *Client) fetchTimedText(ctx context.Context, baseURL string) (string, error) {
	resp, err := c.client.Get(ctx, baseURL, nil)
	if err != nil {
		return "", fmt.Errorf("fetch timedtext: %w", err)
	}

	body, err := fetch.ReadBody(resp, timedTextLimit)
	if err != nil {
		return "", err
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("parse timedtext XML: %w", err)
	}

	var sb strings.Builder
	for _, line := range tt.Lines {
		text := strings.TrimSpace(html.UnescapeString(tagRE.ReplaceAllString(line.Text, "")))
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}
