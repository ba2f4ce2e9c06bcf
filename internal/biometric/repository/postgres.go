package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"secret-vault/backend/internal/biometric/domain"
	"secret-vault/backend/internal/db"
)

const credentialColumns = `credential_id, user_id, public_key, attestation_type, aaguid, sign_count,
	transports, backup_eligible, backup_state, created_at, last_used_at`

// PostgresRepository stores credentials in webauthn_credentials.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a credential repository over conn.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCredential(row scanner) (*domain.Credential, error) {
	var (
		c          domain.Credential
		signCount  int64
		transports string
		lastUsed   sql.NullTime
	)
	err := row.Scan(&c.ID, &c.UserID, &c.PublicKey, &c.AttestationType, &c.AAGUID, &signCount,
		&transports, &c.BackupEligible, &c.BackupState, &c.CreatedAt, &lastUsed)
	if err != nil {
		return nil, err
	}
	c.SignCount = uint32(signCount)
	c.Transports = splitTransports(transports)
	if lastUsed.Valid {
		t := lastUsed.Time
		c.LastUsedAt = &t
	}
	return &c, nil
}

func splitTransports(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// Create inserts c.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Credential) error {
	q := `INSERT INTO webauthn_credentials (` + credentialColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, q,
		c.ID, c.UserID, c.PublicKey, c.AttestationType, c.AAGUID, int64(c.SignCount),
		strings.Join(c.Transports, ","), c.BackupEligible, c.BackupState, c.CreatedAt, c.LastUsedAt)
	if err != nil {
		return storageErr(err)
	}
	return nil
}

// Get returns the credential with credentialID, or nil if not found.
func (r *PostgresRepository) Get(ctx context.Context, credentialID []byte) (*domain.Credential, error) {
	q := `SELECT ` + credentialColumns + ` FROM webauthn_credentials WHERE credential_id = $1`
	c, err := scanCredential(r.db.QueryRowContext(ctx, q, credentialID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr(err)
	}
	return c, nil
}

// ListByUser returns the user's credentials, oldest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Credential, error) {
	q := `SELECT ` + credentialColumns + ` FROM webauthn_credentials WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()
	var out []*domain.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

// CountByUser returns how many credentials the user has.
func (r *PostgresRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	const q = `SELECT COUNT(*) FROM webauthn_credentials WHERE user_id = $1`
	var n int
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&n); err != nil {
		return 0, storageErr(err)
	}
	return n, nil
}

// UpdateSignCount records a successful assertion.
func (r *PostgresRepository) UpdateSignCount(ctx context.Context, credentialID []byte, count uint32, usedAt time.Time) error {
	const q = `UPDATE webauthn_credentials SET sign_count = $2, last_used_at = $3 WHERE credential_id = $1`
	if _, err := r.db.ExecContext(ctx, q, credentialID, int64(count), usedAt); err != nil {
		return storageErr(err)
	}
	return nil
}

// DeleteByUser removes every credential of the user and returns the number removed.
func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	const q = `DELETE FROM webauthn_credentials WHERE user_id = $1`
	res, err := r.db.ExecContext(ctx, q, userID)
	if err != nil {
		return 0, storageErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr(err)
	}
	return n, nil
}
