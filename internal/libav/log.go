package libav

import (
	"context"
	"log/slog"

	"github.com/asticode/go-astiav"

	"github.com/smazurov/framestamp/internal/ffmpeg"
)

// BridgeLogs routes libav log output at or above level (an AV log level) to logger.
func BridgeLogs(logger *slog.Logger, level int) {
	astiav.SetLogLevel(astiav.LogLevel(level))
	astiav.SetLogCallback(func(c astiav.Classer, l astiav.LogLevel, _, msg string) {
		msg = ffmpeg.TrimLogMessage(msg)
		if msg == "" {
			return
		}
		attrs := []any{"av_level", int(l)}
		if c != nil {
			if cl := c.Class(); cl != nil {
				attrs = append(attrs, "component", cl.Name())
			}
		}
		logger.Log(context.Background(), ffmpeg.SlogLevel(int(l)), msg, attrs...)
	})
}

// ResetLogs restores libav's default stderr logging.
func ResetLogs() {
	astiav.ResetLogCallback()
}
