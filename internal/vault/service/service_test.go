package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"secret-vault/backend/internal/security"
	"secret-vault/backend/internal/vault"
	"secret-vault/backend/internal/vault/domain"
	"secret-vault/backend/internal/vault/repository"
)

type fixture struct {
	svc  *Service
	repo *repository.MemoryRepository
	now  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c, err := security.NewCipher(bytes.Repeat([]byte{7}, security.KeySize))
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	f := &fixture{repo: repository.NewMemoryRepository(), now: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)}
	f.svc = NewService(f.repo, vault.NewSealer(c), WithClock(func() time.Time { return f.now }))
	return f
}

func (f *fixture) tick() { f.now = f.now.Add(time.Minute) }

func ptr[T any](v T) *T { return &v }

func TestCreate_SealsAndReturnsPlaintext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, err := f.svc.Create(ctx, "u1", Input{Title: " Bank ", Password: "s3cret", Notes: "pin 0000"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if e.Title != "Bank" || e.Category != domain.CategoryOther || e.Password != "s3cret" {
		t.Errorf("entry = %+v", e)
	}
	stored, _ := f.repo.Get(ctx, "u1", e.ID)
	if stored.Password == "s3cret" || stored.Notes == "pin 0000" {
		t.Fatal("secrets stored in clear")
	}
	got, err := f.svc.Get(ctx, "u1", e.ID)
	if err != nil || got.Password != "s3cret" || got.Notes != "pin 0000" {
		t.Fatalf("Get = %+v, %v", got, err)
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	var ve *domain.ValidationError
	if _, err := f.svc.Create(context.Background(), "u1", Input{Title: "x"}); !errors.As(err, &ve) {
		t.Errorf("missing password err = %v", err)
	}
	if _, err := f.svc.Create(context.Background(), "u1", Input{Title: "x", Password: "p", Category: "crypto"}); !errors.As(err, &ve) {
		t.Errorf("bad category err = %v", err)
	}
}

func TestGet_OtherUserAndMalformedID(t *testing.T) {
	f := newFixture(t)
	e, _ := f.svc.Create(context.Background(), "u1", Input{Title: "x", Password: "p"})
	if _, err := f.svc.Get(context.Background(), "u2", e.ID); !errors.Is(err, domain.ErrEntryNotFound) {
		t.Errorf("other user err = %v", err)
	}
	if _, err := f.svc.Get(context.Background(), "u1", "not-a-uuid"); !errors.Is(err, domain.ErrEntryNotFound) {
		t.Errorf("malformed id err = %v", err)
	}
}

func TestUpdate_PartialPatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, _ := f.svc.Create(ctx, "u1", Input{Title: "Mail", Username: "ada", Password: "old", Notes: "n"})
	f.tick()

	got, err := f.svc.Update(ctx, "u1", e.ID, Patch{Password: ptr("new"), Notes: ptr(""), Category: ptr("email")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Title != "Mail" || got.Username != "ada" {
		t.Errorf("untouched fields changed: %+v", got)
	}
	if got.Password != "new" || got.Notes != "" || got.Category != domain.CategoryEmail {
		t.Errorf("patched fields wrong: %+v", got)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Error("UpdatedAt should advance")
	}
	stored, _ := f.repo.Get(ctx, "u1", e.ID)
	if stored.Notes != "" {
		t.Error("cleared notes should be stored empty")
	}

	var ve *domain.ValidationError
	if _, err := f.svc.Update(ctx, "u1", e.ID, Patch{Title: ptr("  ")}); !errors.As(err, &ve) {
		t.Errorf("empty title err = %v", err)
	}
}

func TestList_FilterAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.svc.Create(ctx, "u1", Input{Title: "Bank", Website: "bank.example", Password: "p", Category: "finance"})
	f.tick()
	b, _ := f.svc.Create(ctx, "u1", Input{Title: "Chat", Username: "ada", Password: "p", Category: "social", Favorite: true})
	f.svc.Create(ctx, "u2", Input{Title: "Bank", Password: "p"})

	all, err := f.svc.List(ctx, "u1", domain.Filter{})
	if err != nil || len(all) != 2 || all[0].ID != b.ID {
		t.Fatalf("List = %+v, %v", all, err)
	}
	fin, _ := f.svc.List(ctx, "u1", domain.Filter{Category: domain.CategoryFinance})
	if len(fin) != 1 || fin[0].ID != a.ID {
		t.Errorf("category filter = %+v", fin)
	}
	found, _ := f.svc.List(ctx, "u1", domain.Filter{Search: "ADA"})
	if len(found) != 1 || found[0].ID != b.ID {
		t.Errorf("search = %+v", found)
	}
}

func TestList_TamperedEntryFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, _ := f.svc.Create(ctx, "u1", Input{Title: "x", Password: "p"})
	stored, _ := f.repo.Get(ctx, "u1", e.ID)
	other, err := security.NewCipher(bytes.Repeat([]byte{8}, security.KeySize))
	if err != nil {
		t.Fatal(err)
	}
	stored.Password, _ = other.EncryptString("p")
	f.repo.Update(ctx, stored)

	list, err := f.svc.List(ctx, "u1", domain.Filter{})
	if !errors.Is(err, security.ErrTamperedOrCorrupt) {
		t.Fatalf("err = %v, want ErrTamperedOrCorrupt", err)
	}
	if list != nil {
		t.Error("no entries on failure")
	}
}

func TestToggleFavoriteAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e, _ := f.svc.Create(ctx, "u1", Input{Title: "x", Password: "p"})
	fav, err := f.svc.ToggleFavorite(ctx, "u1", e.ID)
	if err != nil || !fav {
		t.Fatalf("ToggleFavorite = %v, %v", fav, err)
	}
	if fav, _ = f.svc.ToggleFavorite(ctx, "u1", e.ID); fav {
		t.Error("second toggle should clear")
	}
	if err := f.svc.Delete(ctx, "u2", e.ID); !errors.Is(err, domain.ErrEntryNotFound) {
		t.Errorf("delete by other user err = %v", err)
	}
	if err := f.svc.Delete(ctx, "u1", e.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := f.svc.Delete(ctx, "u1", e.ID); !errors.Is(err, domain.ErrEntryNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestImportAndExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, err := f.svc.Import(ctx, "u1", []Input{
		{Title: "Bank", Website: "bank.example", Username: "ada", Password: "p1", Notes: "n1", Category: "finance"},
		{Title: "", Password: "p2"},
		{Title: "NoPassword"},
	})
	if err != nil || n != 1 {
		t.Fatalf("Import = %d, %v", n, err)
	}
	rows, err := f.svc.Export(ctx, "u1")
	if err != nil || len(rows) != 1 {
		t.Fatalf("Export = %+v, %v", rows, err)
	}
	want := ExportRow{Name: "Bank", URL: "bank.example", Username: "ada", Password: "p1", Note: "n1"}
	if rows[0] != want {
		t.Errorf("row = %+v, want %+v", rows[0], want)
	}
	list, _ := f.svc.List(ctx, "u1", domain.Filter{})
	if list[0].Category != domain.CategoryOther {
		t.Errorf("imported category = %q, want other", list[0].Category)
	}

	if _, err := f.svc.Import(ctx, "u1", []Input{{Title: "x"}}); !errors.Is(err, domain.ErrNothingToImport) {
		t.Errorf("empty import err = %v", err)
	}
}

func TestBatchOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _ := f.svc.Create(ctx, "u1", Input{Title: "a", Password: "p"})
	b, _ := f.svc.Create(ctx, "u1", Input{Title: "b", Password: "p"})
	c, _ := f.svc.Create(ctx, "u2", Input{Title: "c", Password: "p"})

	n, err := f.svc.MoveMany(ctx, "u1", []string{a.ID, b.ID, c.ID, "junk"}, "work")
	if err != nil || n != 2 {
		t.Fatalf("MoveMany = %d, %v", n, err)
	}
	work, _ := f.svc.List(ctx, "u1", domain.Filter{Category: domain.CategoryWork})
	if len(work) != 2 {
		t.Errorf("work entries = %d", len(work))
	}

	var ve *domain.ValidationError
	if _, err := f.svc.MoveMany(ctx, "u1", []string{a.ID}, ""); !errors.As(err, &ve) || ve.Msg != "Category is required" {
		t.Errorf("missing category err = %v", err)
	}
	if _, err := f.svc.DeleteMany(ctx, "u1", nil); !errors.As(err, &ve) {
		t.Errorf("empty ids err = %v", err)
	}

	n, err = f.svc.DeleteMany(ctx, "u1", []string{a.ID, c.ID})
	if err != nil || n != 1 {
		t.Fatalf("DeleteMany = %d, %v", n, err)
	}
	if _, err := f.svc.Get(ctx, "u2", c.ID); err != nil {
		t.Error("other user's entry must survive")
	}
}

type stubCategories struct {
	owned map[string]bool
	err   error
	calls int
}

func (c *stubCategories) Has(_ context.Context, _, value string) (bool, error) {
	c.calls++
	return c.owned[value], c.err
}

func TestCreate_UserCategories(t *testing.T) {
	f := newFixture(t)
	cats := &stubCategories{owned: map[string]bool{"crypto": true}}
	f.svc = NewService(f.repo, f.svc.sealer, WithCategories(cats))
	ctx := context.Background()

	e, err := f.svc.Create(ctx, "u1", Input{Title: "Exchange", Password: "p", Category: " Crypto "})
	if err != nil || e.Category != "crypto" {
		t.Fatalf("Create = %+v, %v", e, err)
	}
	var ve *domain.ValidationError
	if _, err := f.svc.Create(ctx, "u1", Input{Title: "Bank", Password: "p", Category: "finance"}); !errors.As(err, &ve) {
		t.Errorf("category the user removed: want ValidationError, got %v", err)
	}
	before := cats.calls
	if _, err := f.svc.Create(ctx, "u1", Input{Title: "Misc", Password: "p"}); err != nil {
		t.Errorf("other is always allowed: %v", err)
	}
	if cats.calls != before {
		t.Error("other must not need a lookup")
	}

	cats.err = domain.ErrStorageUnavailable
	if _, err := f.svc.Create(ctx, "u1", Input{Title: "X", Password: "p", Category: "crypto"}); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("lookup failure: want ErrStorageUnavailable, got %v", err)
	}
}
