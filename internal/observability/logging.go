// Package observability provides structured logging and metrics.
package observability

import (
	"context"
	"log/slog"
	"os"
)

// NewLogger builds the process logger: JSON output in production, text
// output for local development. The session engine takes this logger at
// construction; nothing in the core depends on a package-level instance.
func NewLogger(env string) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if env == "production" || env == "prod" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// WSLogger provides structured logging for WebSocket session events.
type WSLogger struct {
	logger *slog.Logger
}

// NewWSLogger wraps a logger for session-event logging.
func NewWSLogger(logger *slog.Logger) *WSLogger {
	return &WSLogger{logger: logger}
}

// LogConnect logs a successful admission.
func (l *WSLogger) LogConnect(ctx context.Context, username, remoteIP string, reconnect bool) {
	l.logger.InfoContext(ctx, "websocket connected",
		slog.String("username", username),
		slog.String("remote_ip", remoteIP),
		slog.Bool("reconnect", reconnect),
	)
}

// LogDisconnect logs a connection close.
func (l *WSLogger) LogDisconnect(ctx context.Context, username, reason string) {
	l.logger.InfoContext(ctx, "websocket disconnected",
		slog.String("username", username),
		slog.String("reason", reason),
	)
}

// LogFrame logs a processed inbound frame.
func (l *WSLogger) LogFrame(ctx context.Context, username, opcode string) {
	l.logger.DebugContext(ctx, "frame processed",
		slog.String("username", username),
		slog.String("opcode", opcode),
	)
}

// LogProtocolError logs a malformed or otherwise dropped frame.
func (l *WSLogger) LogProtocolError(ctx context.Context, username string, err error) {
	l.logger.WarnContext(ctx, "frame dropped",
		slog.String("username", username),
		slog.String("error", err.Error()),
	)
}
