package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"secret-vault/backend/internal/audit/domain"
)

func TestPostgres_CreateAndList(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer conn.Close()
	repo := NewPostgresRepository(conn)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO audit_logs`).
		WithArgs("a1", "u1", "signin_succeeded", "identity", "", "10.0.0.1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM audit_logs\s+WHERE user_id = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("u1", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "action", "source", "reason", "ip", "created_at"}).
			AddRow("a1", "u1", "signin_succeeded", "identity", "", "10.0.0.1", now))

	a := &domain.AuditLog{ID: "a1", UserID: "u1", Action: "signin_succeeded", Source: "identity", IP: "10.0.0.1", CreatedAt: now}
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	list, err := repo.ListByUser(context.Background(), "u1", 20, 0)
	if err != nil || len(list) != 1 || list[0].IP != "10.0.0.1" {
		t.Fatalf("ListByUser = %+v, %v", list, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestPostgres_CreateError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	mock.ExpectExec(`INSERT INTO audit_logs`).WillReturnError(errors.New("fk violation"))
	err = NewPostgresRepository(conn).Create(context.Background(), &domain.AuditLog{ID: "a1"})
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestMemory_Pagination(t *testing.T) {
	repo := NewMemoryRepository()
	t0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_ = repo.Create(context.Background(), &domain.AuditLog{ID: string(rune('a' + i)), UserID: "u1", CreatedAt: t0.Add(time.Duration(i) * time.Minute)})
	}
	_ = repo.Create(context.Background(), &domain.AuditLog{ID: "z", UserID: "u2", CreatedAt: t0})

	page, _ := repo.ListByUser(context.Background(), "u1", 2, 1)
	if len(page) != 2 || page[0].ID != "d" || page[1].ID != "c" {
		t.Fatalf("page = %+v", page)
	}
	if rest, _ := repo.ListByUser(context.Background(), "u1", 10, 5); len(rest) != 0 {
		t.Errorf("past end = %+v", rest)
	}
}
