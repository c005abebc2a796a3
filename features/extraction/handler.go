package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"nexus/extractor/internal/extract"
	"nexus/extractor/internal/middleware"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Handler struct {
	service   *Service
	uploadDir string
	maxUpload int64
}

func NewHandler(service *Service, uploadDir string, maxUploadMB int) *Handler {
	return &Handler{
		service:   service,
		uploadDir: uploadDir,
		maxUpload: int64(maxUploadMB) << 20,
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	var req struct {
		URL       string `json:"url"`
		ChannelID string `json:"channel_id"`
		ThreadRef string `json:"thread_ref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	if req.URL == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", "URL is required", http.StatusBadRequest)
		return
	}
	if parsed, err := url.Parse(req.URL); err != nil || parsed.Host == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", "URL must be absolute", http.StatusBadRequest)
		return
	}

	slog.InfoContext(ctx, "accepting extraction", "url", req.URL, "correlationId", correlationID)

	ex, err := h.service.Submit(ctx, req.URL, Correlation{ChannelID: req.ChannelID, ThreadRef: req.ThreadRef})
	if err != nil {
		slog.ErrorContext(ctx, "failed to accept extraction", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.writeAccepted(ctx, w, ex)
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "File too large", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "Unable to retrieve file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	if !extract.KnownFileExt(ext) {
		h.writeError(ctx, w, "BAD_REQUEST", fmt.Sprintf("Unsupported file type %q", ext), http.StatusBadRequest)
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o750); err != nil {
		slog.ErrorContext(ctx, "failed to create upload directory", "error", err, "path", h.uploadDir)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to create upload directory", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(header.Filename))
	path := filepath.Clean(filepath.Join(h.uploadDir, filename))

	dst, err := os.Create(path)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create file", "error", err, "path", path)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to save file", http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		h.removeUpload(ctx, path)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to write file", http.StatusInternalServerError)
		return
	}
	if err := dst.Close(); err != nil {
		h.removeUpload(ctx, path)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to save file", http.StatusInternalServerError)
		return
	}

	slog.InfoContext(ctx, "accepting file extraction",
		"filename", header.Filename, "correlationId", correlationID)

	ex, err := h.service.SubmitFile(ctx, path, header.Filename, Correlation{
		ChannelID: r.FormValue("channel_id"),
		ThreadRef: r.FormValue("thread_ref"),
	})
	if err != nil {
		h.removeUpload(ctx, path)
		slog.ErrorContext(ctx, "failed to accept file extraction", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.writeAccepted(ctx, w, ex)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	ex, err := h.service.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeError(ctx, w, "NOT_FOUND", "Extraction not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(ctx, "failed to get extraction", "id", id, "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": ex}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	statusParam := r.URL.Query().Get("status")
	if statusParam != "" && !ValidStatus(statusParam) {
		h.writeError(ctx, w, "VALIDATION_ERROR", fmt.Sprintf("Unknown status %q", statusParam), http.StatusBadRequest)
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(ctx, w, "VALIDATION_ERROR", "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
		if limit > maxListLimit {
			limit = maxListLimit
		}
	}

	summaries, err := h.service.List(ctx, Status(statusParam), limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list extractions", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if summaries == nil {
		summaries = []Summary{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": summaries,
		"meta": map[string]int{"count": len(summaries)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeAccepted(ctx context.Context, w http.ResponseWriter, ex *Extraction) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	resp := map[string]interface{}{
		"data": map[string]string{
			"id":      ex.ID,
			"status":  string(ex.Status),
			"message": fmt.Sprintf("extraction started for %s content", ex.SourceKind),
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) removeUpload(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil {
		slog.WarnContext(ctx, "failed to clean up uploaded file", "error", err, "path", path)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
