package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"nexus/extractor/internal/config"
	"nexus/extractor/internal/extract"
)

// EventPublisher pushes a message onto a topic. Satisfied by *nsq.Producer.
type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// Service owns the extraction lifecycle: admission, dispatch to the strategy
// matching the classified kind, and the terminal transition with results or
// error detail. Each accepted reference is processed at most once at a time.
type Service struct {
	repo       Repository
	extractors extract.Registry
	pub        EventPublisher
	timeout    time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewService(repo Repository, extractors extract.Registry, pub EventPublisher, timeout time.Duration) *Service {
	return &Service{
		repo:       repo,
		extractors: extractors,
		pub:        pub,
		timeout:    timeout,
		inflight:   make(map[string]struct{}),
	}
}

// Submit accepts a URL reference: classify, persist as pending, then process
// in the background. Returns as soon as the record is durable.
func (s *Service) Submit(ctx context.Context, rawURL string, corr Correlation) (*Extraction, error) {
	kind := extract.Classify(rawURL)
	ex := &Extraction{
		ID:         NewID(),
		URL:        rawURL,
		SourceKind: kind,
		Status:     StatusPending,
		ChannelID:  corr.ChannelID,
		ThreadRef:  corr.ThreadRef,
	}
	if err := s.repo.Create(ctx, ex); err != nil {
		return nil, fmt.Errorf("create extraction: %w", err)
	}

	go s.process(context.WithoutCancel(ctx), ex, extract.Reference{URL: rawURL})
	return ex, nil
}

// SubmitFile accepts an uploaded file already staged at path. The stored URL
// is a file reference so the record reads the same way as URL submissions.
func (s *Service) SubmitFile(ctx context.Context, path, filename string, corr Correlation) (*Extraction, error) {
	ex := &Extraction{
		ID:         NewID(),
		URL:        "file://" + filename,
		SourceKind: extract.SourceFile,
		Status:     StatusPending,
		ChannelID:  corr.ChannelID,
		ThreadRef:  corr.ThreadRef,
	}
	if err := s.repo.Create(ctx, ex); err != nil {
		return nil, fmt.Errorf("create extraction: %w", err)
	}

	go s.process(context.WithoutCancel(ctx), ex, extract.Reference{Path: path, Filename: filename})
	return ex, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Extraction, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, status Status, limit int) ([]Summary, error) {
	return s.repo.List(ctx, status, limit)
}

// Process runs one extraction attempt end to end. Exported so queue intake
// can drive the same path synchronously. Concurrent attempts for the same id
// are rejected with ErrAlreadyInProgress.
func (s *Service) Process(ctx context.Context, ex *Extraction, ref extract.Reference) error {
	if !s.acquire(ex.ID) {
		return ErrAlreadyInProgress
	}
	defer s.release(ex.ID)

	// A staged upload is scoped to this attempt and removed once the record
	// reaches a terminal state, whichever one that is.
	if ref.Path != "" {
		defer s.removeStaged(ctx, ref.Path)
	}

	if err := s.repo.Transition(ctx, ex.ID, StatusPending, StatusProcessing, TerminalFields{}); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	// The attempt budget applies to the extractor only; terminal persistence
	// must still happen after the budget expires.
	attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.runExtractor(attemptCtx, ex.SourceKind, ref)
	if err != nil {
		detail := fmt.Sprintf("%s: %s", extract.KindOf(err), err.Error())
		slog.ErrorContext(ctx, "extraction failed",
			"extraction_id", ex.ID, "source_kind", ex.SourceKind, "error", err)
		if trErr := s.repo.Transition(ctx, ex.ID, StatusProcessing, StatusFailed,
			TerminalFields{ErrorDetail: detail}); trErr != nil {
			return fmt.Errorf("mark failed: %w", trErr)
		}
		s.notify(ctx, ex, StatusFailed, "", detail)
		return err
	}

	var metadata json.RawMessage
	if len(result.Metadata) > 0 {
		if raw, mErr := json.Marshal(result.Metadata); mErr == nil {
			metadata = raw
		}
	}
	if err := s.repo.Transition(ctx, ex.ID, StatusProcessing, StatusCompleted, TerminalFields{
		Title:    result.Title,
		Content:  result.Content,
		Metadata: metadata,
	}); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	slog.InfoContext(ctx, "extraction completed",
		"extraction_id", ex.ID, "source_kind", ex.SourceKind, "content_chars", len(result.Content))
	s.notify(ctx, ex, StatusCompleted, result.Title, "")
	return nil
}

func (s *Service) runExtractor(ctx context.Context, kind extract.SourceKind, ref extract.Reference) (*extract.Result, error) {
	extractor, ok := s.extractors[kind]
	if !ok {
		return nil, extract.Failf(extract.KindUnsupported, "no extractor for source kind %q", kind)
	}
	return extractor.Extract(ctx, ref)
}

// process is the background wrapper around Process for fire-and-forget
// submissions; errors are already persisted on the record, so they are only
// logged here.
func (s *Service) process(ctx context.Context, ex *Extraction, ref extract.Reference) {
	if err := s.Process(ctx, ex, ref); err != nil {
		slog.ErrorContext(ctx, "background extraction finished with error",
			"extraction_id", ex.ID, "error", err)
	}
}

func (s *Service) removeStaged(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.WarnContext(ctx, "failed to remove staged upload", "path", path, "error", err)
	}
}

func (s *Service) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Service) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}

// resultEvent is the terminal notification published when the submission
// carried a correlation. Delivery is best effort; the durable record is the
// source of truth.
type resultEvent struct {
	ExtractionID string `json:"extraction_id"`
	Status       Status `json:"status"`
	Title        string `json:"title,omitempty"`
	ErrorDetail  string `json:"error_detail,omitempty"`
	ChannelID    string `json:"channel_id"`
	ThreadRef    string `json:"thread_ref,omitempty"`
}

func (s *Service) notify(ctx context.Context, ex *Extraction, status Status, title, detail string) {
	if s.pub == nil || ex.ChannelID == "" {
		return
	}
	body, err := json.Marshal(resultEvent{
		ExtractionID: ex.ID,
		Status:       status,
		Title:        title,
		ErrorDetail:  detail,
		ChannelID:    ex.ChannelID,
		ThreadRef:    ex.ThreadRef,
	})
	if err != nil {
		return
	}
	if err := s.pub.Publish(config.TopicExtractResult, body); err != nil {
		slog.WarnContext(ctx, "result notification publish failed",
			"extraction_id", ex.ID, "error", err)
	}
}
