package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"secret-vault/backend/internal/telemetry"
	"secret-vault/backend/internal/telemetry/domain"
)

const instrumentationName = "secret-vault.security"

// recordEmitter is the part of otellog.Logger the emitter needs.
type recordEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends security events as OTel log records
// via provider. A nil provider yields a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger(instrumentationName)}
}

// NewEventEmitterWithLogger returns an emitter writing to logger.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.SecurityEvent) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts event to a log record. Empty fields are omitted.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.SecurityEvent) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	rec.SetEventName(event.Type)
	rec.SetSeverity(otellog.SeverityInfo)
	if event.Reason != "" {
		rec.SetSeverity(otellog.SeverityWarn)
	}
	rec.SetBody(otellog.StringValue(event.Type))
	add := func(k, v string) {
		if v != "" {
			rec.AddAttributes(otellog.String(k, v))
		}
	}
	add("event_type", event.Type)
	add("user_id", event.UserID)
	add("email", event.Email)
	add("source", event.Source)
	add("reason", event.Reason)
	if t := event.CreatedAt; !t.IsZero() {
		rec.SetTimestamp(t)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	e.logger.Emit(ctx, rec)
	return nil
}
