package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	corelogger "github.com/kilianp07/solarcharger/core/logger"
)

var (
	outMu  sync.RWMutex
	output io.Writer = os.Stdout
)

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger creates a ZerologLogger using the APP_ENV environment variable
// to determine the output format. All logs include the provided component field.
func NewZerologLogger(component string) Logger {
	outMu.RLock()
	w := output
	outMu.RUnlock()
	if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	z := zerolog.New(w).With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

// SetLevel sets the process wide minimum level.
func SetLevel(l corelogger.Level) {
	zerolog.SetGlobalLevel(zerologLevel(l))
}

// SetOutput redirects loggers created afterwards.
func SetOutput(w io.Writer) {
	outMu.Lock()
	output = w
	outMu.Unlock()
}

func zerologLevel(l corelogger.Level) zerolog.Level {
	switch l {
	case corelogger.LevelDebug:
		return zerolog.DebugLevel
	case corelogger.LevelInfo:
		return zerolog.InfoLevel
	case corelogger.LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.WarnLevel
	}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	ev := l.log.Debug()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
