package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/extractor/internal/config"
)

type nopPublisher struct{}

func (nopPublisher) Publish(topic string, body []byte) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		ServerPort:            8000,
		UploadDir:             "./uploads",
		MaxUploadSizeMB:       10,
		ExtractTimeoutSeconds: 600,
		MinArticleChars:       150,
		MaxComments:           20,
		FetchRatePerSec:       2,
		WhisperBin:            "whisper",
		WhisperModel:          "base",
		YtdlpBin:              "yt-dlp",
		FFmpegBin:             "ffmpeg",
	}
}

func TestHealthEndpoint(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	a := New(testConfig(), db, nopPublisher{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["auth_enabled"])
}

// Health stays reachable without the API key even when auth is enabled,
// while the extraction routes require it.
func TestAuthBoundary(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cfg := testConfig()
	cfg.APIKey = "secret"
	a := New(cfg, db, nopPublisher{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["auth_enabled"])

	req = httptest.NewRequest(http.MethodGet, "/extractions", nil)
	rec = httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/extractions/abc12345", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
