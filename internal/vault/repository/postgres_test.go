package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"secret-vault/backend/internal/vault/domain"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewPostgresRepository(conn), mock
}

var entryCols = []string{"id", "user_id", "title", "website", "username", "password_enc", "notes_enc",
	"category", "favorite", "created_at", "updated_at"}

func sealed(id, user string, at time.Time) *domain.SealedEntry {
	return &domain.SealedEntry{
		ID: id, UserID: user, Title: "Bank", Website: "bank.example", Username: "ada",
		Password: "iv:tag:ct", Category: domain.CategoryFinance, CreatedAt: at, UpdatedAt: at,
	}
}

func TestCreateMany_SingleStatement(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a, b := sealed("e1", "u1", now), sealed("e2", "u1", now)
	mock.ExpectExec(`INSERT INTO vault_entries .* VALUES \(\$1, .*\$11\), \(\$12, .*\$22\)`).
		WithArgs("e1", "u1", "Bank", "bank.example", "ada", "iv:tag:ct", "", "finance", false, now, now,
			"e2", "u1", "Bank", "bank.example", "ada", "iv:tag:ct", "", "finance", false, now, now).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := repo.CreateMany(context.Background(), []*domain.SealedEntry{a, b}); err != nil {
		t.Fatalf("CreateMany: %v", err)
	}
	if err := repo.CreateMany(context.Background(), nil); err != nil {
		t.Fatalf("empty CreateMany: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestGet_ScopedByOwner(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`FROM vault_entries WHERE id = \$1 AND user_id = \$2`).
		WithArgs("e1", "u1").
		WillReturnRows(sqlmock.NewRows(entryCols).AddRow("e1", "u1", "Bank", "", "", "iv:tag:ct", "", "finance", true, now, now))
	mock.ExpectQuery(`FROM vault_entries WHERE id = \$1 AND user_id = \$2`).
		WithArgs("e1", "u2").
		WillReturnRows(sqlmock.NewRows(entryCols))

	e, err := repo.Get(context.Background(), "u1", "e1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.Category != domain.CategoryFinance || !e.Favorite {
		t.Errorf("unexpected entry: %+v", e)
	}
	other, err := repo.Get(context.Background(), "u2", "e1")
	if other != nil || err != nil {
		t.Fatalf("want (nil, nil), got (%+v, %v)", other, err)
	}
}

func TestList_BuildsFilter(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`WHERE user_id = \$1 AND category = \$2 AND favorite AND \(title ILIKE \$3 OR website ILIKE \$3 OR username ILIKE \$3\) ORDER BY updated_at DESC`).
		WithArgs("u1", "work", `%50\%\_off%`).
		WillReturnRows(sqlmock.NewRows(entryCols))

	_, err := repo.List(context.Background(), "u1", domain.Filter{Search: " 50%_off ", Category: domain.CategoryWork, FavoriteOnly: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestUpdateAndDelete_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE vault_entries SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM vault_entries WHERE id = \$1 AND user_id = \$2`).
		WithArgs("e1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Update(context.Background(), sealed("e1", "u1", now)); !errors.Is(err, domain.ErrEntryNotFound) {
		t.Errorf("Update err = %v", err)
	}
	if err := repo.Delete(context.Background(), "u1", "e1"); !errors.Is(err, domain.ErrEntryNotFound) {
		t.Errorf("Delete err = %v", err)
	}
}

func TestBatchOperations(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()
	mock.ExpectExec(`DELETE FROM vault_entries WHERE user_id = \$1 AND id IN \(\$2, \$3\)`).
		WithArgs("u1", "e1", "e2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE vault_entries SET category = \$2, updated_at = \$3\s+WHERE user_id = \$1 AND id IN \(\$4\)`).
		WithArgs("u1", "social", now, "e3").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.DeleteMany(context.Background(), "u1", []string{"e1", "e2"})
	if err != nil || n != 1 {
		t.Fatalf("DeleteMany = %d, %v", n, err)
	}
	n, err = repo.SetCategory(context.Background(), "u1", []string{"e3"}, domain.CategorySocial, now)
	if err != nil || n != 1 {
		t.Fatalf("SetCategory = %d, %v", n, err)
	}
	if n, err := repo.DeleteMany(context.Background(), "u1", nil); n != 0 || err != nil {
		t.Errorf("empty DeleteMany = %d, %v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestPostgresRepository_ReassignCategory(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE vault_entries SET category = \$3, updated_at = \$4 WHERE user_id = \$1 AND category = \$2`).
		WithArgs("u1", "crypto", "other", now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.ReassignCategory(context.Background(), "u1", "crypto", domain.CategoryOther, now)
	if err != nil || n != 3 {
		t.Fatalf("ReassignCategory = %d, %v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestStorageErrorWrapped(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`FROM vault_entries`).WillReturnError(errors.New("connection reset"))
	if _, err := repo.List(context.Background(), "u1", domain.Filter{}); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	older, newer := sealed("e1", "u1", t0), sealed("e2", "u1", t0.Add(time.Hour))
	newer.Title, newer.Website, newer.Favorite = "Chat", "chat.example", true
	if err := repo.CreateMany(ctx, []*domain.SealedEntry{older, newer, sealed("e3", "u2", t0)}); err != nil {
		t.Fatal(err)
	}

	all, _ := repo.List(ctx, "u1", domain.Filter{})
	if len(all) != 2 || all[0].ID != "e2" {
		t.Fatalf("List = %+v, want newest first", all)
	}
	favs, _ := repo.List(ctx, "u1", domain.Filter{FavoriteOnly: true})
	if len(favs) != 1 || favs[0].ID != "e2" {
		t.Errorf("favorites = %+v", favs)
	}
	found, _ := repo.List(ctx, "u1", domain.Filter{Search: "BANK.ex"})
	if len(found) != 1 || found[0].ID != "e1" {
		t.Errorf("search = %+v", found)
	}
	if e, _ := repo.Get(ctx, "u1", "e3"); e != nil {
		t.Error("other user's entry visible")
	}
	if n, _ := repo.SetCategory(ctx, "u1", []string{"e1", "e3"}, domain.CategoryWork, t0); n != 1 {
		t.Errorf("SetCategory = %d, want 1", n)
	}
	if n, _ := repo.ReassignCategory(ctx, "u1", domain.CategoryWork, domain.CategoryOther, t0); n != 1 {
		t.Errorf("ReassignCategory = %d, want 1", n)
	}
	if e, _ := repo.Get(ctx, "u2", "e3"); e == nil || e.Category != domain.CategoryFinance {
		t.Errorf("other user's entry reassigned: %+v", e)
	}
	if n, _ := repo.DeleteMany(ctx, "u1", []string{"e1", "e2", "e3"}); n != 2 {
		t.Errorf("DeleteMany = %d, want 2", n)
	}
	if err := repo.Delete(ctx, "u1", "e1"); !errors.Is(err, domain.ErrEntryNotFound) {
		t.Errorf("Delete err = %v", err)
	}
}
