package audit

import (
	"context"

	"github.com/rs/zerolog"
)

// ZerologSink writes audit events as structured log lines. Failures are
// logged at warn level, successes at info.
type ZerologSink struct {
	logger zerolog.Logger
}

func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return &ZerologSink{logger: logger}
}

func (s *ZerologSink) Emit(_ context.Context, event Event) {
	var e *zerolog.Event
	if event.Success {
		e = s.logger.Info()
	} else {
		e = s.logger.Warn()
	}

	e = e.Str("audit_id", event.ID).
		Str("type", event.Type).
		Str("event", event.Event).
		Time("timestamp", event.Timestamp).
		Bool("success", event.Success)
	if event.PrincipalID != "" {
		e = e.Str("principal_id", event.PrincipalID)
	}
	if event.SessionID != "" {
		e = e.Str("session_id", event.SessionID)
	}
	if event.IP != "" {
		e = e.Str("ip", event.IP)
	}
	if event.UserAgent != "" {
		e = e.Str("user_agent", event.UserAgent)
	}
	if event.Reason != "" {
		e = e.Str("reason", event.Reason)
	}
	if len(event.Metadata) > 0 {
		d := zerolog.Dict()
		for k, v := range event.Metadata {
			d = d.Str(k, v)
		}
		e = e.Dict("metadata", d)
	}
	e.Msg("audit")
}
