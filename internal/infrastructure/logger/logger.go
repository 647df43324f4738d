package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tickfolio/internal/infrastructure/config"
)

// Setup installs the global logger. Logs go to stderr by default so the
// console sink has stdout to itself.
func Setup(cfg config.Log) {
	log.Logger = New(cfg, nil)
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
}

// New builds a logger; w overrides the configured output when non-nil.
func New(cfg config.Log, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
		if strings.EqualFold(cfg.Output, "stdout") {
			w = os.Stdout
		}
	}
	if !strings.EqualFold(cfg.Format, "json") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
