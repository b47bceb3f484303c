package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Event is one token lifecycle audit record. It never carries token values.
type Event struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Tenant    string            `json:"tenant,omitempty"`
	Provider  string            `json:"provider,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// MarshalLogObject writes the event as flat zap fields, with metadata keys
// prefixed "meta.".
func (e Event) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", e.ID)
	enc.AddTime("timestamp", e.Timestamp)
	enc.AddBool("success", e.Success)
	for _, f := range [...]struct{ key, val string }{
		{"user_id", e.UserID},
		{"tenant", e.Tenant},
		{"provider", e.Provider},
		{"ip", e.IP},
		{"error", e.Error},
	} {
		if f.val != "" {
			enc.AddString(f.key, f.val)
		}
	}
	for k, v := range e.Metadata {
		enc.AddString("meta."+k, v)
	}
	return nil
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink hands events to a buffered channel for the caller to drain.
type ChannelSink struct {
	ch chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, max(buffer, 1))}
}

// Emit blocks until the event is taken or ctx ends.
func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.ch <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event { return s.ch }

// JSONWriterSink writes one JSON object per line to w.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		w = io.Discard
	}
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil {
		return
	}
	s.mu.Lock()
	_ = s.enc.Encode(event)
	s.mu.Unlock()
}

// ZapSink logs each event under the "audit" logger: info for successes,
// warn for failures.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger.Named("audit")}
}

func (s *ZapSink) Emit(_ context.Context, event Event) {
	level := zapcore.InfoLevel
	if !event.Success {
		level = zapcore.WarnLevel
	}
	s.logger.Log(level, event.EventType, zap.Inline(event))
}
