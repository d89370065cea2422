// Package logging sets up zerolog for the tockboot command.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger builds the console logger for app at the given level and
// installs it as the global logger.
func InitLogger(app, level string) (zerolog.Logger, error) {
	return newLogger(os.Stderr, app, level)
}

func newLogger(out io.Writer, app, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log level: %w", err)
	}

	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).Level(lvl).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger, nil
}

// Adapter exposes a zerolog.Logger through the key/value Logger interface
// used by the bootloader package.
type Adapter struct {
	Logger zerolog.Logger
}

// Debug logs msg at debug level with keysAndValues as fields.
func (a Adapter) Debug(msg string, keysAndValues ...interface{}) {
	a.Logger.Debug().Fields(keysAndValues).Msg(msg)
}

// Info logs msg at info level.
func (a Adapter) Info(msg string, keysAndValues ...interface{}) {
	a.Logger.Info().Fields(keysAndValues).Msg(msg)
}

// Error logs msg at error level.
func (a Adapter) Error(msg string, keysAndValues ...interface{}) {
	a.Logger.Error().Fields(keysAndValues).Msg(msg)
}
