package domain

import (
	"errors"
	"time"
)

// ErrStorageUnavailable wraps failures of the audit store.
var ErrStorageUnavailable = errors.New("audit storage unavailable")

// AuditLog is one persisted security event of a user, shown on the account activity page.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Source    string
	Reason    string
	IP        string
	CreatedAt time.Time
}
