package logger

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once sync.Once //nolint:gochecknoglobals // process-wide logger
	log  zerolog.Logger
)

// Get returns the process logger. The debug flag is only honoured on the
// first call, later calls return the already configured logger.
func Get(debug ...bool) *zerolog.Logger {
	once.Do(func() {
		level := zerolog.InfoLevel
		isDebug := len(debug) > 0 && debug[0]
		if isDebug {
			level = zerolog.DebugLevel
		}
		zerolog.TimeFieldFormat = time.RFC3339
		if isDebug {
			log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly}).
				Level(level).With().Timestamp().Caller().Logger()
			return
		}
		log = zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	})
	return &log
}
