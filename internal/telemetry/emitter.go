package telemetry

import (
	"context"
	"errors"

	"secret-vault/backend/internal/telemetry/domain"
)

// EventEmitter emits security events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.SecurityEvent) error
}

// MultiEmitter sends each event to every emitter in order. Nil entries are skipped.
type MultiEmitter []EventEmitter

// Emit calls every emitter and returns their errors joined.
func (m MultiEmitter) Emit(ctx context.Context, event *domain.SecurityEvent) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
