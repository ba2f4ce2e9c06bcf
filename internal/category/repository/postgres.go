package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"secret-vault/backend/internal/category/domain"
	"secret-vault/backend/internal/db"
)

const uniqueViolation = "23505"

const categoryColumns = `user_id, value, label, icon, position, created_at`

// PostgresRepository stores categories in the categories table.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a category repository over conn.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}

// List returns the user's categories ordered by position.
func (r *PostgresRepository) List(ctx context.Context, userID string) ([]*domain.Category, error) {
	q := `SELECT ` + categoryColumns + ` FROM categories WHERE user_id = $1 ORDER BY position, created_at`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()
	var out []*domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.UserID, &c.Value, &c.Label, &c.Icon, &c.Position, &c.CreatedAt); err != nil {
			return nil, storageErr(err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

// Seed inserts cats in one statement. Rows whose (user_id, value) exists are skipped, so
// concurrent seeds of the same user converge.
func (r *PostgresRepository) Seed(ctx context.Context, cats []domain.Category) error {
	if len(cats) == 0 {
		return nil
	}
	const cols = 6
	var (
		b    strings.Builder
		args = make([]any, 0, len(cats)*cols)
	)
	b.WriteString(`INSERT INTO categories (` + categoryColumns + `) VALUES `)
	for i, c := range cats {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := 0; j < cols; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString("$" + strconv.Itoa(i*cols+j+1))
		}
		b.WriteString(")")
		args = append(args, c.UserID, c.Value, c.Label, c.Icon, c.Position, c.CreatedAt)
	}
	b.WriteString(` ON CONFLICT (user_id, value) DO NOTHING`)
	if _, err := r.db.ExecContext(ctx, b.String(), args...); err != nil {
		return storageErr(err)
	}
	return nil
}

// Create inserts c.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Category) error {
	q := `INSERT INTO categories (` + categoryColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, q, c.UserID, c.Value, c.Label, c.Icon, c.Position, c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrCategoryExists
		}
		return storageErr(err)
	}
	return nil
}

// Update writes the label and icon of c.
func (r *PostgresRepository) Update(ctx context.Context, c *domain.Category) error {
	const q = `UPDATE categories SET label = $3, icon = $4 WHERE user_id = $1 AND value = $2`
	res, err := r.db.ExecContext(ctx, q, c.UserID, c.Value, c.Label, c.Icon)
	if err != nil {
		return storageErr(err)
	}
	return requireRow(res)
}

// Delete removes one category.
func (r *PostgresRepository) Delete(ctx context.Context, userID, value string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE user_id = $1 AND value = $2`, userID, value)
	if err != nil {
		return storageErr(err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(err)
	}
	if n == 0 {
		return domain.ErrCategoryNotFound
	}
	return nil
}
