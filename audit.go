package securecore

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Audit event types emitted by the engine.
const (
	EventLoginSuccess     = "login_success"
	EventLoginFailure     = "login_failure"
	EventLockoutTriggered = "lockout_triggered"
	EventTokensIssued     = "tokens_issued"
	EventTokenRevoked     = "token_revoked"
	EventSessionCreated   = "session_created"
	EventSessionDestroyed = "session_destroyed"
	EventSessionAnomaly   = "session_anomaly"
	EventCSRFRejected     = "csrf_rejected"
)

// AuditEvent is one security-relevant occurrence. Passwords and raw tokens
// are never placed in events.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives events from the engine's dispatcher. Emit must be safe
// for concurrent use.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards all events.
type NoOpSink struct{}

// Emit implements [AuditSink].
func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events into a buffered channel for the host
// application to drain.
type ChannelSink struct {
	events chan AuditEvent
}

// NewChannelSink creates a channel sink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

// Emit implements [AuditSink].
func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events exposes the sink's channel.
func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line to the writer.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink creates a line-delimited JSON sink.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

// Emit implements [AuditSink].
func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// ZerologSink emits events through a zerolog logger. Failures log at warn,
// successes at info.
type ZerologSink struct {
	logger zerolog.Logger
}

// NewZerologSink wraps a zerolog logger as an audit sink.
func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return &ZerologSink{logger: logger}
}

// Emit implements [AuditSink].
func (s *ZerologSink) Emit(_ context.Context, event AuditEvent) {
	evt := s.logger.Info()
	if !event.Success {
		evt = s.logger.Warn()
	}

	evt = evt.
		Time("at", event.Timestamp).
		Str("event", event.EventType).
		Bool("success", event.Success)
	if event.UserID != "" {
		evt = evt.Str("user_id", event.UserID)
	}
	if event.Email != "" {
		evt = evt.Str("email", event.Email)
	}
	if event.SessionID != "" {
		evt = evt.Str("session_id", event.SessionID)
	}
	if event.IP != "" {
		evt = evt.Str("ip", event.IP)
	}
	if event.UserAgent != "" {
		evt = evt.Str("user_agent", event.UserAgent)
	}
	if event.Error != "" {
		evt = evt.Str("error", event.Error)
	}
	for k, v := range event.Metadata {
		evt = evt.Str(k, v)
	}
	evt.Msg("audit")
}
