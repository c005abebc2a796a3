package transcribe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// YtdlpDownloader fetches the audio-only stream of a remote video with
// yt-dlp, writing into the caller-owned destination directory.
type YtdlpDownloader struct {
	bin string
}

func NewYtdlpDownloader(bin string) *YtdlpDownloader {
	return &YtdlpDownloader{bin: bin}
}

func (d *YtdlpDownloader) Download(ctx context.Context, videoURL, destDir string) (string, error) {
	cmd := exec.CommandContext(ctx, d.bin,
		"--quiet", "--no-warnings", "--no-progress",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "128K",
		"--output", filepath.Join(destDir, "audio.%(ext)s"),
		videoURL,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("yt-dlp run: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	// The postprocessor decides the final extension; find what landed.
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return "", fmt.Errorf("scan download dir: %w", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "audio.") {
			return filepath.Join(destDir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("yt-dlp produced no audio file in %s", destDir)
}

// FFmpegDemuxer strips the audio track out of a local video container.
type FFmpegDemuxer struct {
	bin string
}

func NewFFmpegDemuxer(bin string) *FFmpegDemuxer {
	return &FFmpegDemuxer{bin: bin}
}

func (d *FFmpegDemuxer) Demux(ctx context.Context, videoPath, audioPath string) error {
	cmd := exec.CommandContext(ctx, d.bin,
		"-i", videoPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-q:a", "4",
		"-y", audioPath,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg run: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
