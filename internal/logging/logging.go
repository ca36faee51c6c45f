package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process-wide logger. Dev gets a human console writer,
// everything else gets JSON lines.
func New(env, component string) zerolog.Logger {
	var logger zerolog.Logger
	if env == "dev" {
		out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		logger = zerolog.New(out)
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.With().
		Timestamp().
		Str("component", component).
		Logger()
}
