// Package transcribe implements the two-tier transcription fallback:
// platform captions first when the source has them, then local
// speech-to-text.
package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"nexus/extractor/internal/extract"
	"nexus/extractor/internal/youtube"
)

// CaptionFetcher downloads caption text for tracks already discovered during
// the metadata lookup.
type CaptionFetcher interface {
	CaptionText(ctx context.Context, tracks []youtube.CaptionTrack) (string, error)
}

// SpeechEngine runs local speech-to-text over an audio file.
type SpeechEngine interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// AudioDownloader fetches the audio track of a remote video into destDir
// and returns the downloaded file path.
type AudioDownloader interface {
	Download(ctx context.Context, videoURL, destDir string) (string, error)
}

// Controller evaluates an ordered list of transcription tiers and returns
// the first success.
type Controller struct {
	captions   CaptionFetcher
	engine     SpeechEngine
	downloader AudioDownloader
}

func NewController(captions CaptionFetcher, engine SpeechEngine, downloader AudioDownloader) *Controller {
	return &Controller{captions: captions, engine: engine, downloader: downloader}
}

type tier struct {
	name string
	run  func(ctx context.Context) (string, error)
}

// Transcribe implements extract.Transcriber. Any failure of the captions
// tier (absent, disabled, fetch error) falls through to local transcription;
// only when the last tier fails does the operation fail as a whole. A source
// without discovered tracks skips the captions tier outright.
func (c *Controller) Transcribe(ctx context.Context, src extract.MediaSource, withCaptions bool) (string, error) {
	var tiers []tier
	if withCaptions && len(src.Tracks) > 0 {
		tiers = append(tiers, tier{name: "captions", run: func(ctx context.Context) (string, error) {
			return c.captions.CaptionText(ctx, src.Tracks)
		}})
	}
	tiers = append(tiers, tier{name: "local", run: func(ctx context.Context) (string, error) {
		return c.localTranscribe(ctx, src)
	}})

	var lastErr error
	for i, t := range tiers {
		text, err := t.run(ctx)
		if err == nil && text != "" {
			return text, nil
		}
		if err == nil {
			err = fmt.Errorf("%s tier produced empty transcript", t.name)
		}
		lastErr = err
		if ctx.Err() != nil {
			// The attempt budget is spent; no point starting another tier.
			return "", ctx.Err()
		}
		if i < len(tiers)-1 {
			slog.InfoContext(ctx, "transcription tier failed, falling back", "tier", t.name, "error", err)
		}
	}
	return "", fmt.Errorf("all transcription tiers exhausted: %w", lastErr)
}

// localTranscribe runs the speech engine over local audio, downloading the
// remote track first when needed. Downloaded audio is scoped to this call
// and removed on every exit path.
func (c *Controller) localTranscribe(ctx context.Context, src extract.MediaSource) (string, error) {
	audioPath := src.AudioPath

	if audioPath == "" {
		dir, err := os.MkdirTemp("", "extract-audio-")
		if err != nil {
			return "", fmt.Errorf("create temp dir: %w", err)
		}
		defer os.RemoveAll(dir)

		audioPath, err = c.downloader.Download(ctx, src.VideoURL, dir)
		if err != nil {
			return "", fmt.Errorf("download audio: %w", err)
		}
		return c.engine.Transcribe(ctx, audioPath)
	}

	return c.engine.Transcribe(ctx, audioPath)
}
