package ffmpeg

import (
	"log/slog"
	"strings"
)

// libav log levels from libavutil/log.h.
const (
	LogQuiet   = -8
	LogPanic   = 0
	LogFatal   = 8
	LogError   = 16
	LogWarning = 24
	LogInfo    = 32
	LogVerbose = 40
	LogDebug   = 48
	LogTrace   = 56
)

// SlogLevel maps a libav log level onto the slog scale.
func SlogLevel(avLevel int) slog.Level {
	switch {
	case avLevel <= LogError:
		return slog.LevelError
	case avLevel <= LogWarning:
		return slog.LevelWarn
	case avLevel <= LogInfo:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// ParseLogLevel converts a libav level name ("warning", "info", ...) to its value.
func ParseLogLevel(name string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "quiet":
		return LogQuiet, true
	case "panic":
		return LogPanic, true
	case "fatal":
		return LogFatal, true
	case "error":
		return LogError, true
	case "warning", "warn":
		return LogWarning, true
	case "info":
		return LogInfo, true
	case "verbose":
		return LogVerbose, true
	case "debug":
		return LogDebug, true
	case "trace":
		return LogTrace, true
	}
	return 0, false
}

// TrimLogMessage strips the trailing newline libav puts on every line.
func TrimLogMessage(msg string) string {
	return strings.TrimRight(msg, "\r\n ")
}
