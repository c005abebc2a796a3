package extract

import (
	"context"

	"nexus/extractor/internal/youtube"
)

// MediaSource identifies the audio to transcribe: either a remote video page
// whose audio stream can be downloaded, or an already-local media file.
// Tracks carries the caption inventory already discovered during the metadata
// lookup, so the captions tier never repeats the platform call.
type MediaSource struct {
	VideoURL  string
	AudioPath string
	Tracks    []youtube.CaptionTrack
}

// Transcriber is the two-tier transcription fallback controller. When
// withCaptions is true the cheap platform-caption tier runs first; uploaded
// media has no platform to supply captions, so that tier is skipped and the
// controller starts at local speech-to-text.
type Transcriber interface {
	Transcribe(ctx context.Context, src MediaSource, withCaptions bool) (string, error)
}
