// Package logger provides the process-wide structured logger used by every
// spatio component. It is configured once from the environment and reused;
// callers attach request-scoped fields with zerolog's With() instead of
// creating new loggers.
package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the global logger instance. Reassigned by SetLevel/SetLevelFromString.
var Logger zerolog.Logger

func init() {
	logFile := os.Getenv("SPATIO_LOG_FILE")
	levelStr := os.Getenv("SPATIO_LOG_LEVEL")
	if levelStr == "" {
		levelStr = "warn"
	}

	zerolog.SetGlobalLevel(parseLevel(levelStr))

	var output interface {
		Write(p []byte) (n int, err error)
	}

	if logFile != "" {
		output = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // MB
			MaxBackups: 7,
			MaxAge:     30, // days
			Compress:   true,
		}
	} else {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "2006-01-02 15:04:05.000",
		}
	}

	Logger = zerolog.New(output).With().Timestamp().Logger()
	log.Logger = Logger
}

func parseLevel(levelStr string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG", "DBG":
		return zerolog.DebugLevel
	case "INFO", "INF":
		return zerolog.InfoLevel
	case "WARNING", "WARN":
		return zerolog.WarnLevel
	case "ERROR", "ERR":
		return zerolog.ErrorLevel
	case "FATAL":
		return zerolog.FatalLevel
	case "PANIC":
		return zerolog.PanicLevel
	case "TRACE":
		return zerolog.TraceLevel
	default:
		return zerolog.WarnLevel
	}
}

// SetLevel changes the global log level at runtime.
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
	Logger = Logger.Level(level)
	log.Logger = Logger
}

// SetLevelFromString is SetLevel for callers holding a config string.
func SetLevelFromString(levelStr string) {
	SetLevel(parseLevel(levelStr))
}
