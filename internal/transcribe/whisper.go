package transcribe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// WhisperEngine shells out to the whisper CLI for local speech-to-text.
// The model size comes from configuration; tiny is fastest and least
// accurate, large the opposite.
type WhisperEngine struct {
	bin   string
	model string
}

func NewWhisperEngine(bin, model string) *WhisperEngine {
	return &WhisperEngine{bin: bin, model: model}
}

func (e *WhisperEngine) Transcribe(ctx context.Context, audioPath string) (string, error) {
	outDir, err := os.MkdirTemp("", "whisper-out-")
	if err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	cmd := exec.CommandContext(ctx, e.bin,
		audioPath,
		"--model", e.model,
		"--output_format", "txt",
		"--output_dir", outDir,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("whisper run: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	text, err := os.ReadFile(filepath.Join(outDir, base+".txt"))
	if err != nil {
		return "", fmt.Errorf("read whisper output: %w", err)
	}
	return strings.TrimSpace(string(text)), nil
}
