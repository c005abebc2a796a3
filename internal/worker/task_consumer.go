// Package worker hosts the queue intake: extraction requests arriving over
// NSQ instead of HTTP, sharing the same orchestration path.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"nexus/extractor/features/extraction"
	"nexus/extractor/internal/middleware"
)

// Submitter accepts a URL reference for extraction. Satisfied by
// *extraction.Service.
type Submitter interface {
	Submit(ctx context.Context, rawURL string, corr extraction.Correlation) (*extraction.Extraction, error)
}

// TaskPayload is the message shape on the extract.task topic.
type TaskPayload struct {
	URL           string `json:"url"`
	ChannelID     string `json:"channel_id"`
	ThreadRef     string `json:"thread_ref"`
	CorrelationID string `json:"correlation_id"`
}

type TaskConsumer struct {
	submitter Submitter
}

func NewTaskConsumer(s Submitter) *TaskConsumer {
	return &TaskConsumer{submitter: s}
}

func (h *TaskConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload TaskPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison pill: invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	if payload.URL == "" {
		slog.Error("poison pill: task without url")
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}

	ex, err := h.submitter.Submit(ctx, payload.URL, extraction.Correlation{
		ChannelID: payload.ChannelID,
		ThreadRef: payload.ThreadRef,
	})
	if err != nil {
		slog.ErrorContext(ctx, "queued extraction submit failed", "url", payload.URL, "error", err)
		return err // Retry
	}

	slog.InfoContext(ctx, "queued extraction accepted",
		"extraction_id", ex.ID, "source_kind", ex.SourceKind)
	return nil
}
