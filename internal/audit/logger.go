// Package audit persists security events of a user so the account activity page can show them.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"secret-vault/backend/internal/audit/domain"
	auditrepo "secret-vault/backend/internal/audit/repository"
	teldomain "secret-vault/backend/internal/telemetry/domain"
)

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// Logger is a telemetry.EventEmitter that writes events to the audit repository.
// Events without a user and account deletions are skipped: neither has a row to attach to.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	nowF        func() time.Time
}

// NewLogger returns a Logger that persists to repo and uses ipExtractor for the client IP.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor, nowF: time.Now}
}

// Emit writes one audit log entry.
func (l *Logger) Emit(ctx context.Context, event *teldomain.SecurityEvent) error {
	if l.repo == nil || event == nil || event.UserID == "" || event.Type == teldomain.EventAccountDeleted {
		return nil
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	at := event.CreatedAt
	if at.IsZero() {
		at = l.nowF().UTC()
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    event.UserID,
		Action:    event.Type,
		Source:    event.Source,
		Reason:    event.Reason,
		IP:        ip,
		CreatedAt: at,
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Warn().Err(err).Str("action", event.Type).Msg("audit: failed to persist event")
		return err
	}
	return nil
}
