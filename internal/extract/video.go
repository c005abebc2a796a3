package extract

import (
	"context"

	"nexus/extractor/internal/youtube"
)

// VideoPlatform supplies metadata for a video reference.
type VideoPlatform interface {
	Lookup(ctx context.Context, videoURL string) (*youtube.Video, error)
}

// VideoExtractor fetches video metadata and obtains a transcript through the
// transcription fallback controller, using the platform's audio stream as the
// fallback's audio source.
type VideoExtractor struct {
	platform    VideoPlatform
	transcriber Transcriber
}

func NewVideoExtractor(platform VideoPlatform, transcriber Transcriber) *VideoExtractor {
	return &VideoExtractor{platform: platform, transcriber: transcriber}
}

func (e *VideoExtractor) Extract(ctx context.Context, ref Reference) (*Result, error) {
	if _, err := youtube.VideoID(ref.URL); err != nil {
		return nil, Wrap(KindCorrupt, "parse video reference", err)
	}

	v, err := e.platform.Lookup(ctx, ref.URL)
	if err != nil {
		return nil, Wrap(KindUnreachable, "fetch video metadata", err)
	}

	transcript, err := e.transcriber.Transcribe(ctx, MediaSource{VideoURL: ref.URL, Tracks: v.Tracks}, true)
	if err != nil {
		return nil, Wrap(KindTranscriptionFailed, "obtain transcript", err)
	}

	return &Result{
		Title:   v.Title,
		Content: transcript,
		Metadata: map[string]any{
			"duration":    v.DurationSeconds,
			"channel":     v.Channel,
			"video_id":    v.ID,
			"view_count":  v.ViewCount,
			"description": truncate(v.Description, 500),
			"source_url":  ref.URL,
		},
	}, nil
}
