// Package app wires configuration, storage, the extractor strategies and the
// HTTP surface into one runnable unit.
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"nexus/extractor/features/extraction"
	"nexus/extractor/internal/config"
	"nexus/extractor/internal/extract"
	"nexus/extractor/internal/fetch"
	"nexus/extractor/internal/middleware"
	"nexus/extractor/internal/transcribe"
	"nexus/extractor/internal/worker"
	"nexus/extractor/internal/youtube"
)

type App struct {
	Handler      http.Handler
	Service      *extraction.Service
	TaskConsumer *worker.TaskConsumer

	port int
}

// fetchTimeout bounds a single outbound HTTP request; the per-extraction
// budget is enforced separately by the orchestrator.
const fetchTimeout = 60 * time.Second

func New(cfg *config.Config, db *sql.DB, pub extraction.EventPublisher) *App {
	fetcher := fetch.New(cfg.FetchRatePerSec, fetchTimeout)

	yt := youtube.NewClient(fetcher)
	transcriber := transcribe.NewController(
		yt,
		transcribe.NewWhisperEngine(cfg.WhisperBin, cfg.WhisperModel),
		transcribe.NewYtdlpDownloader(cfg.YtdlpBin),
	)

	extractors := extract.NewRegistry(
		extract.NewArticleExtractor(fetcher, cfg.MinArticleChars),
		extract.NewVideoExtractor(yt, transcriber),
		extract.NewThreadExtractor(fetcher, cfg.MaxComments),
		extract.NewRepositoryExtractor(fetcher, cfg.GitHubToken),
		extract.NewFileExtractor(transcriber, transcribe.NewFFmpegDemuxer(cfg.FFmpegBin)),
	)

	repo := extraction.NewPostgresRepo(db)
	service := extraction.NewService(repo, extractors, pub, cfg.ExtractTimeout())
	handler := extraction.NewHandler(service, cfg.UploadDir, int(cfg.MaxUploadSizeMB))

	auth := middleware.APIKey(cfg.APIKey)

	mux := http.NewServeMux()
	mux.Handle("POST /extractions", middleware.CorrelationID(auth(handler.Create)))
	mux.Handle("POST /extractions/file", middleware.CorrelationID(auth(handler.Upload)))
	mux.Handle("GET /extractions", middleware.CorrelationID(auth(handler.List)))
	mux.Handle("GET /extractions/{id}", middleware.CorrelationID(auth(handler.Get)))

	// Health stays public so orchestration probes work without the key.
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(map[string]any{
			"status":       "ok",
			"auth_enabled": cfg.AuthEnabled(),
		}); err != nil {
			slog.Error("failed to encode health response", "error", err)
		}
	})

	return &App{
		Handler:      mux,
		Service:      service,
		TaskConsumer: worker.NewTaskConsumer(service),
		port:         cfg.ServerPort,
	}
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.port),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
