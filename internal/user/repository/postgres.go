package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"secret-vault/backend/internal/db"
	"secret-vault/backend/internal/user/domain"
)

const (
	uniqueViolation    = "23505"
	usernameConstraint = "users_username_key"
)

const userColumns = `id, name, username, email, password_hash, two_factor_enabled, created_at, updated_at`

// PostgresRepository stores users in the users table.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a user repository over conn.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if pgErr.ConstraintName == usernameConstraint {
			return domain.ErrUsernameTaken
		}
		return domain.ErrEmailTaken
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}

func (r *PostgresRepository) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` = $1`
	var u domain.User
	err := r.db.QueryRowContext(ctx, q, arg).Scan(
		&u.ID, &u.Name, &u.Username, &u.Email, &u.PasswordHash, &u.TwoFactorEnabled, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, mapErr(err)
	}
	return &u, nil
}

// GetByID returns the user for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, "id", id)
}

// GetByEmail returns the user with the given (already normalized) email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "email", email)
}

// GetByUsername returns a user with the given username, or nil if not found.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, "username", username)
}

// Create inserts u. The ID must be set by the caller.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	q := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, q,
		u.ID, u.Name, u.Username, u.Email, u.PasswordHash, u.TwoFactorEnabled, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	return nil
}

// Update writes every mutable column of u.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) error {
	const q = `UPDATE users SET name = $2, username = $3, email = $4, password_hash = $5,
		two_factor_enabled = $6, updated_at = $7 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q,
		u.ID, u.Name, u.Username, u.Email, u.PasswordHash, u.TwoFactorEnabled, u.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	return nil
}

// Delete removes the user. Credentials and vault entries go with it through ON DELETE CASCADE.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return mapErr(err)
	}
	return nil
}
