// Package logging configures the process wide zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/jrsteele09/go-session-server/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs the global logger. DEV gets a coloured console writer,
// every other environment writes JSON lines to stdout.
func Setup(cfg config.EnvConfig) zerolog.Logger {
	return SetupWriter(cfg, os.Stdout)
}

func SetupWriter(cfg config.EnvConfig, out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(cfg.GetLogLevel())

	w := out
	if cfg.IsDev() {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	logger := zerolog.New(w).With().Timestamp().Str("app", cfg.GetAppName()).Logger()
	log.Logger = logger
	return logger
}
