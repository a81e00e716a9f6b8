package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/seantiz/tatool/internal/model"
)

const (
	defaultListenAddr   = ":3000"
	defaultDBPath       = "tatool.db"
	defaultMode         = model.ModeWeb
	defaultProjectsPath = "projects"
	defaultBaseURL      = "http://localhost:3000"

	envListenAddr   = "TATOOL_LISTEN_ADDR"
	envDBPath       = "TATOOL_DB_PATH"
	envLogLevel     = "TATOOL_LOG_LEVEL"
	envMode         = "TATOOL_MODE"
	envProjectsPath = "TATOOL_PROJECTS_PATH"
	envBaseURL      = "TATOOL_BASE_URL"
	envFetchTimeout = "TATOOL_FETCH_TIMEOUT"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr   string
	DBPath       string
	LogLevel     slog.Level
	Mode         string
	ProjectsPath string
	BaseURL      string

	// FetchTimeout bounds a single resource request. Zero means no timeout.
	FetchTimeout time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:   defaultListenAddr,
		DBPath:       defaultDBPath,
		LogLevel:     slog.LevelInfo,
		Mode:         defaultMode,
		ProjectsPath: defaultProjectsPath,
		BaseURL:      defaultBaseURL,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envMode); v != "" {
		cfg.Mode = parseMode(v)
	}
	if v := os.Getenv(envProjectsPath); v != "" {
		cfg.ProjectsPath = v
	}
	if v := os.Getenv(envBaseURL); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv(envFetchTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.FetchTimeout = d
		}
	}

	return cfg
}

// ParseMode normalizes a run mode name, falling back to web for anything
// that is not lab.
func ParseMode(s string) string {
	return parseMode(s)
}

func parseMode(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), model.ModeLab) {
		return model.ModeLab
	}
	return model.ModeWeb
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
