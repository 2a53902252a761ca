package log

import (
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/rs/zerolog"
)

// LevelEnv names the environment variable holding the log level.
const LevelEnv = "KFLOW_LOG_LEVEL"

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerologr.NameFieldName = "logger"
	zerologr.NameSeparator = "/"
}

// New returns a logger writing JSON to stderr inside Kubernetes and
// human-readable lines to stderr elsewhere. The level is read from
// KFLOW_LOG_LEVEL and defaults to info.
func New() *zerolog.Logger {
	var output io.Writer
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		output = os.Stderr
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02T15:04:05.999Z07:00"}
	}
	return NewWithWriter(output, os.Getenv(LevelEnv))
}

// NewWithWriter builds a logger on w. An empty or unknown level means info.
func NewWithWriter(w io.Writer, level string) *zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	logger := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return &logger
}

// Logr adapts l for packages that log through logr. Debug level enables
// V(1) messages.
func Logr(l *zerolog.Logger) logr.Logger {
	return zerologr.New(l)
}
