package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"secret-vault/backend/internal/telemetry/domain"
)

// emitTimeout is the max time allowed for a single async emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the servers stop before shutting down
// OTel providers, so in-flight async emits can complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not blocked.
// emitter and event may be nil, in which case nothing happens. The goroutine does not
// inherit ctx cancellation.
func EmitAsync(ctx context.Context, emitter EventEmitter, event *domain.SecurityEvent) {
	if emitter == nil || event == nil {
		return
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			log.Warn().Err(err).Str("event_type", event.Type).Msg("telemetry: async emit failed")
		}
	}()
}
