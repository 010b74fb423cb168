package supervisor

import (
	"strings"

	"github.com/AnushSomasundaram/Calendarllm/internal/sidecar/protocol"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// forwardLog writes a worker log event to log at the mapped level.
func forwardLog(log *zap.Logger, event protocol.LogEvent) {
	log.Log(logLevel(event.Level), event.Message, zap.String("source", "worker"))
}

func logLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
