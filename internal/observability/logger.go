package observability

import (
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/postfire-sar-etl/internal/config"
)

// NewLogger builds the process-wide structured logger from config.
// LOG_FORMAT selects json or text output; LOG_LEVEL maps onto slog levels
// with info as the fallback for unknown values.
func NewLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.LogFormat) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
