package helper

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rag-chatbot/internal/config"
)

// InitLogger configures the global zerolog logger. When cfg.File is set the
// log goes to that file instead of stdout, which the terminal UI needs. The
// returned closer releases the file, if any.
func InitLogger(cfg config.LogConfig) (io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out, closer = f, f
	}

	if cfg.Format == "json" {
		log.Logger = zerolog.New(out).With().Timestamp().Caller().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: cfg.File != ""}).With().Caller().Logger()
	}
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
