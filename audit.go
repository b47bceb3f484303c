package goIdentity

import (
	"io"

	internalaudit "github.com/MrEthical07/goIdentity/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is one token lifecycle audit record.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink discards events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers events in a channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink logs events through a zap logger.
type ZapSink = internalaudit.ZapSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(logger)
}
