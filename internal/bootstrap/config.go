package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/target/mmk-auth/config"
	domainauth "github.com/target/mmk-auth/internal/domain/auth"
)

// InitLogger installs the process logger: JSON at info level, or text at
// debug level in development mode.
func InitLogger(w io.Writer, dev bool) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	var handler slog.Handler
	if dev {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// LoadConfig reads an optional .env file, then the environment.
func LoadConfig() (config.AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateConfig rejects combinations that cannot be wired.
func ValidateConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if cfg.Security.SuperRole != "" {
		if _, err := domainauth.ParseRole(cfg.Security.SuperRole); err != nil {
			return fmt.Errorf("AUTH_SUPER_ROLE: %w", err)
		}
	}
	if cfg.NeedsRedis() && !cfg.Redis.UseSentinel && strings.TrimSpace(cfg.Redis.URI) == "" {
		return errors.New("a redis backend is selected but REDIS_URI is empty")
	}
	return nil
}
