package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

// whisperModels are the model sizes accepted by the local transcription
// engine, from fastest/least accurate to slowest/most accurate.
var whisperModels = map[string]bool{
	"tiny": true, "base": true, "small": true, "medium": true, "large": true,
}

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"extractor"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"extractor"`

	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	NSQDHost           string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP           string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	NSQLookupd         string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	EnableTaskConsumer bool   `envconfig:"ENABLE_TASK_CONSUMER" default:"true"`

	// Server
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8000"`
	APIKey          string `envconfig:"EXTRACTOR_API_KEY"`
	UploadDir       string `envconfig:"UPLOAD_DIR" default:"./uploads"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`

	// Extraction
	ExtractTimeoutSeconds int     `envconfig:"EXTRACT_TIMEOUT_SECONDS" default:"600"`
	MinArticleChars       int     `envconfig:"MIN_ARTICLE_CHARS" default:"150"`
	MaxComments           int     `envconfig:"MAX_COMMENTS" default:"20"`
	FetchRatePerSec       float64 `envconfig:"FETCH_RATE_PER_SEC" default:"2"`
	GitHubToken           string  `envconfig:"GITHUB_TOKEN"`

	// Transcription
	WhisperBin   string `envconfig:"WHISPER_BIN" default:"whisper"`
	WhisperModel string `envconfig:"WHISPER_MODEL" default:"base"`
	YtdlpBin     string `envconfig:"YTDLP_BIN" default:"yt-dlp"`
	FFmpegBin    string `envconfig:"FFMPEG_BIN" default:"ffmpeg"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root.
	// Ignore errors, as env vars might be set in the shell.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if !whisperModels[c.WhisperModel] {
		return fmt.Errorf("invalid WHISPER_MODEL %q: must be one of tiny, base, small, medium, large", c.WhisperModel)
	}
	if c.ExtractTimeoutSeconds <= 0 {
		return fmt.Errorf("EXTRACT_TIMEOUT_SECONDS must be positive, got %d", c.ExtractTimeoutSeconds)
	}
	if c.MinArticleChars < 0 {
		return fmt.Errorf("MIN_ARTICLE_CHARS must not be negative, got %d", c.MinArticleChars)
	}
	return nil
}

// ExtractTimeout is the overall per-attempt budget for a single extraction.
func (c *Config) ExtractTimeout() time.Duration {
	return time.Duration(c.ExtractTimeoutSeconds) * time.Second
}

// AuthEnabled reports whether the shared-secret boundary check is active.
func (c *Config) AuthEnabled() bool {
	return c.APIKey != ""
}
