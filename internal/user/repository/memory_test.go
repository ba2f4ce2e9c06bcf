package repository

import (
	"context"
	"errors"
	"testing"

	"secret-vault/backend/internal/user/domain"
)

func TestMemoryRepository_UniqueEmailAndUsername(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	a := testUser()
	if err := r.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	dupEmail := testUser()
	dupEmail.ID, dupEmail.Username = "u-2", "other"
	if err := r.Create(ctx, dupEmail); !errors.Is(err, domain.ErrEmailTaken) {
		t.Errorf("same email: want ErrEmailTaken, got %v", err)
	}

	dupName := testUser()
	dupName.ID, dupName.Email = "u-3", "ada@other.example"
	if err := r.Create(ctx, dupName); !errors.Is(err, domain.ErrUsernameTaken) {
		t.Errorf("same username: want ErrUsernameTaken, got %v", err)
	}

	b := testUser()
	b.ID, b.Email, b.Username = "u-4", "bob@example.com", "bob"
	if err := r.Create(ctx, b); err != nil {
		t.Fatalf("Create b: %v", err)
	}
	b.Username = "ada"
	if err := r.Update(ctx, b); !errors.Is(err, domain.ErrUsernameTaken) {
		t.Errorf("rename to taken username: want ErrUsernameTaken, got %v", err)
	}
	a.Name = "Ada L."
	if err := r.Update(ctx, a); err != nil {
		t.Errorf("updating a user against its own row: %v", err)
	}
}
