package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"secret-vault/backend/internal/db"
	"secret-vault/backend/internal/vault/domain"
)

const entryColumns = `id, user_id, title, website, username, password_enc, notes_enc, category,
	favorite, created_at, updated_at`

// PostgresRepository stores entries in vault_entries.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns an entry repository over conn.
func NewPostgresRepository(conn db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: conn}
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*domain.SealedEntry, error) {
	var (
		e        domain.SealedEntry
		category string
	)
	err := row.Scan(&e.ID, &e.UserID, &e.Title, &e.Website, &e.Username, &e.Password, &e.Notes,
		&category, &e.Favorite, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Category = domain.Category(category)
	return &e, nil
}

func entryArgs(e *domain.SealedEntry) []any {
	return []any{e.ID, e.UserID, e.Title, e.Website, e.Username, e.Password, e.Notes,
		string(e.Category), e.Favorite, e.CreatedAt, e.UpdatedAt}
}

// Create inserts e.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.SealedEntry) error {
	return r.CreateMany(ctx, []*domain.SealedEntry{e})
}

// CreateMany inserts entries with a single multi-row INSERT.
func (r *PostgresRepository) CreateMany(ctx context.Context, entries []*domain.SealedEntry) error {
	if len(entries) == 0 {
		return nil
	}
	const cols = 11
	var (
		b    strings.Builder
		args = make([]any, 0, len(entries)*cols)
	)
	b.WriteString(`INSERT INTO vault_entries (` + entryColumns + `) VALUES `)
	for i, e := range entries {
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
		args = append(args, entryArgs(e)...)
	}
	if _, err := r.db.ExecContext(ctx, b.String(), args...); err != nil {
		return storageErr(err)
	}
	return nil
}

// Get returns the entry, or nil if not found.
func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*domain.SealedEntry, error) {
	q := `SELECT ` + entryColumns + ` FROM vault_entries WHERE id = $1 AND user_id = $2`
	e, err := scanEntry(r.db.QueryRowContext(ctx, q, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return e, nil
}

// List returns matching entries, most recently updated first.
func (r *PostgresRepository) List(ctx context.Context, userID string, f domain.Filter) ([]*domain.SealedEntry, error) {
	var (
		where = []string{"user_id = $1"}
		args  = []any{userID}
	)
	if f.Category != "" {
		args = append(args, string(f.Category))
		where = append(where, "category = $"+strconv.Itoa(len(args)))
	}
	if f.FavoriteOnly {
		where = append(where, "favorite")
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+escapeLike(s)+"%")
		n := "$" + strconv.Itoa(len(args))
		where = append(where, "(title ILIKE "+n+" OR website ILIKE "+n+" OR username ILIKE "+n+")")
	}
	q := `SELECT ` + entryColumns + ` FROM vault_entries WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY updated_at DESC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()
	var out []*domain.SealedEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

// Update overwrites the mutable columns of e.
func (r *PostgresRepository) Update(ctx context.Context, e *domain.SealedEntry) error {
	q := `UPDATE vault_entries SET title = $3, website = $4, username = $5, password_enc = $6,
		notes_enc = $7, category = $8, favorite = $9, updated_at = $10
		WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, q, e.ID, e.UserID, e.Title, e.Website, e.Username,
		e.Password, e.Notes, string(e.Category), e.Favorite, e.UpdatedAt)
	if err != nil {
		return storageErr(err)
	}
	return requireRow(res)
}

// Delete removes one entry.
func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vault_entries WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return storageErr(err)
	}
	return requireRow(res)
}

// DeleteMany removes the listed entries owned by userID.
func (r *PostgresRepository) DeleteMany(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := []any{userID}
	q := `DELETE FROM vault_entries WHERE user_id = $1 AND id IN (` + placeholders(&args, ids) + `)`
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, storageErr(err)
	}
	return rowsAffected(res)
}

// SetCategory moves the listed entries owned by userID to c.
func (r *PostgresRepository) SetCategory(ctx context.Context, userID string, ids []string, c domain.Category, updatedAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := []any{userID, string(c), updatedAt}
	q := `UPDATE vault_entries SET category = $2, updated_at = $3
		WHERE user_id = $1 AND id IN (` + placeholders(&args, ids) + `)`
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, storageErr(err)
	}
	return rowsAffected(res)
}

// ReassignCategory moves all of userID's entries in from to to.
func (r *PostgresRepository) ReassignCategory(ctx context.Context, userID string, from, to domain.Category, updatedAt time.Time) (int64, error) {
	const q = `UPDATE vault_entries SET category = $3, updated_at = $4 WHERE user_id = $1 AND category = $2`
	res, err := r.db.ExecContext(ctx, q, userID, string(from), string(to), updatedAt)
	if err != nil {
		return 0, storageErr(err)
	}
	return rowsAffected(res)
}

// placeholders appends ids to args and returns the matching "$n, $m" list.
func placeholders(args *[]any, ids []string) string {
	ph := make([]string, len(ids))
	for i, id := range ids {
		*args = append(*args, id)
		ph[i] = "$" + strconv.Itoa(len(*args))
	}
	return strings.Join(ph, ", ")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr(err)
	}
	return n, nil
}

func requireRow(res sql.Result) error {
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}
