package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"secret-vault/backend/internal/biometric/domain"
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

var credCols = []string{"credential_id", "user_id", "public_key", "attestation_type", "aaguid", "sign_count",
	"transports", "backup_eligible", "backup_state", "created_at", "last_used_at"}

func TestCreate_JoinsTransports(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c := &domain.Credential{
		ID: []byte{1, 2}, UserID: "u-1", PublicKey: []byte{9}, AttestationType: "none",
		SignCount: 3, Transports: []string{"internal", "hybrid"}, BackupEligible: true, CreatedAt: now,
	}
	mock.ExpectExec(`INSERT INTO webauthn_credentials`).
		WithArgs(c.ID, "u-1", c.PublicKey, "none", c.AAGUID, int64(3), "internal,hybrid", true, false, now, c.LastUsedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestGet_ScanAndNotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM webauthn_credentials WHERE credential_id = \$1`).
		WithArgs([]byte{1}).
		WillReturnRows(sqlmock.NewRows(credCols).AddRow([]byte{1}, "u-1", []byte{9}, "none", nil, int64(7), "usb,nfc", false, false, now, now))
	mock.ExpectQuery(`FROM webauthn_credentials WHERE credential_id = \$1`).
		WithArgs([]byte{2}).
		WillReturnRows(sqlmock.NewRows(credCols))

	c, err := repo.Get(context.Background(), []byte{1})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.SignCount != 7 || len(c.Transports) != 2 || c.Transports[1] != "nfc" || c.LastUsedAt == nil {
		t.Errorf("unexpected credential: %+v", c)
	}

	missing, err := repo.Get(context.Background(), []byte{2})
	if missing != nil || err != nil {
		t.Fatalf("want (nil, nil), got (%+v, %v)", missing, err)
	}
}

func TestListByUser(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`FROM webauthn_credentials WHERE user_id = \$1 ORDER BY created_at`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(credCols).
			AddRow([]byte{1}, "u-1", []byte{9}, "none", nil, int64(0), "", false, false, now, nil).
			AddRow([]byte{2}, "u-1", []byte{8}, "packed", nil, int64(4), "internal", true, true, now, nil))

	list, err := repo.ListByUser(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 2 || list[0].Transports != nil || list[1].AttestationType != "packed" {
		t.Errorf("unexpected list: %+v", list)
	}
}

func TestCountByUser_Error(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM webauthn_credentials`).WillReturnError(errors.New("conn reset"))

	if _, err := repo.CountByUser(context.Background(), "u-1"); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("want ErrStorageUnavailable, got %v", err)
	}
}

func TestUpdateSignCount(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	used := time.Now().UTC()
	mock.ExpectExec(`UPDATE webauthn_credentials SET sign_count = \$2, last_used_at = \$3 WHERE credential_id = \$1`).
		WithArgs([]byte{1}, int64(8), used).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateSignCount(context.Background(), []byte{1}, 8, used); err != nil {
		t.Fatalf("UpdateSignCount: %v", err)
	}
}

func TestDeleteByUser(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`DELETE FROM webauthn_credentials WHERE user_id = \$1`).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteByUser(context.Background(), "u-1")
	if err != nil || n != 3 {
		t.Fatalf("DeleteByUser = (%d, %v), want (3, nil)", n, err)
	}
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	base := time.Now()
	_ = r.Create(ctx, &domain.Credential{ID: []byte("b"), UserID: "u1", CreatedAt: base.Add(time.Second)})
	_ = r.Create(ctx, &domain.Credential{ID: []byte("a"), UserID: "u1", CreatedAt: base})
	_ = r.Create(ctx, &domain.Credential{ID: []byte("c"), UserID: "u2", CreatedAt: base})

	list, _ := r.ListByUser(ctx, "u1")
	if len(list) != 2 || string(list[0].ID) != "a" {
		t.Fatalf("ListByUser order wrong: %+v", list)
	}
	if err := r.UpdateSignCount(ctx, []byte("a"), 5, base); err != nil {
		t.Fatal(err)
	}
	got, _ := r.Get(ctx, []byte("a"))
	if got.SignCount != 5 || got.LastUsedAt == nil {
		t.Errorf("UpdateSignCount not applied: %+v", got)
	}
	n, _ := r.DeleteByUser(ctx, "u1")
	if n != 2 {
		t.Errorf("DeleteByUser = %d, want 2", n)
	}
	if cnt, _ := r.CountByUser(ctx, "u2"); cnt != 1 {
		t.Errorf("CountByUser(u2) = %d, want 1", cnt)
	}
}
