package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"secret-vault/backend/internal/db"
	"secret-vault/backend/internal/otp/domain"
)

// PostgresStore is a Store backed by the otp_codes table. The (email, purpose)
// primary key makes Put a single atomic upsert.
type PostgresStore struct {
	db db.DBTX
}

// NewPostgresStore returns a PostgresStore using conn.
func NewPostgresStore(conn db.DBTX) *PostgresStore {
	return &PostgresStore{db: conn}
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}

// Put inserts the code, replacing any existing row for the pair.
func (s *PostgresStore) Put(ctx context.Context, c *domain.OneTimeCode) error {
	const q = `INSERT INTO otp_codes (email, purpose, code_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email, purpose) DO UPDATE
		SET code_hash = EXCLUDED.code_hash, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`
	if _, err := s.db.ExecContext(ctx, q, c.Email, string(c.Purpose), c.CodeHash, c.ExpiresAt, c.CreatedAt); err != nil {
		return storageErr(err)
	}
	return nil
}

// Get returns the code for the pair or (nil, nil). Expired rows are returned as stored.
func (s *PostgresStore) Get(ctx context.Context, email string, purpose domain.Purpose) (*domain.OneTimeCode, error) {
	const q = `SELECT email, purpose, code_hash, expires_at, created_at
		FROM otp_codes WHERE email = $1 AND purpose = $2`
	var (
		c domain.OneTimeCode
		p string
	)
	err := s.db.QueryRowContext(ctx, q, email, string(purpose)).Scan(&c.Email, &p, &c.CodeHash, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr(err)
	}
	c.Purpose = domain.Purpose(p)
	return &c, nil
}

// Consume deletes the row only if its hash still matches c.CodeHash.
func (s *PostgresStore) Consume(ctx context.Context, c *domain.OneTimeCode) (bool, error) {
	const q = `DELETE FROM otp_codes WHERE email = $1 AND purpose = $2 AND code_hash = $3`
	res, err := s.db.ExecContext(ctx, q, c.Email, string(c.Purpose), c.CodeHash)
	if err != nil {
		return false, storageErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr(err)
	}
	return n == 1, nil
}

// InvalidateAll deletes the code for the pair, if any.
func (s *PostgresStore) InvalidateAll(ctx context.Context, email string, purpose domain.Purpose) error {
	const q = `DELETE FROM otp_codes WHERE email = $1 AND purpose = $2`
	if _, err := s.db.ExecContext(ctx, q, email, string(purpose)); err != nil {
		return storageErr(err)
	}
	return nil
}

// DeleteExpired removes rows with expires_at at or before before and returns how many.
func (s *PostgresStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	const q = `DELETE FROM otp_codes WHERE expires_at <= $1`
	res, err := s.db.ExecContext(ctx, q, before)
	if err != nil {
		return 0, storageErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr(err)
	}
	return n, nil
}
