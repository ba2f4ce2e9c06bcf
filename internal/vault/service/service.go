package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"secret-vault/backend/internal/vault"
	"secret-vault/backend/internal/vault/domain"
	"secret-vault/backend/internal/vault/repository"
)

// Input carries the fields of a new entry.
type Input struct {
	Title    string
	Website  string
	Username string
	Password string
	Notes    string
	Category string
	Favorite bool
}

// Patch carries a partial update. Nil fields are left unchanged.
type Patch struct {
	Title    *string
	Website  *string
	Username *string
	Password *string
	Notes    *string
	Category *string
	Favorite *bool
}

// ExportRow is one entry in the browser password CSV layout.
type ExportRow struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
	Note     string `json:"note"`
}

// CategorySet reports whether a user owns a category.
type CategorySet interface {
	Has(ctx context.Context, userID, value string) (bool, error)
}

type defaultCategories struct{}

func (defaultCategories) Has(_ context.Context, _, value string) (bool, error) {
	return domain.Category(value).IsDefault(), nil
}

// Service manages a user's vault entries. Secrets are sealed before they reach the repository
// and opened only on the way out.
type Service struct {
	repo       repository.Repository
	sealer     *vault.Sealer
	categories CategorySet
	nowF       func() time.Time
	log        zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.nowF = now } }

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.log = l } }

// WithCategories checks entry categories against each user's own set. Without it only the
// default categories are accepted.
func WithCategories(c CategorySet) Option { return func(s *Service) { s.categories = c } }

// NewService returns a Service over repo.
func NewService(repo repository.Repository, sealer *vault.Sealer, opts ...Option) *Service {
	s := &Service{repo: repo, sealer: sealer, categories: defaultCategories{}, nowF: time.Now, log: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func invalid(msg string) error { return &domain.ValidationError{Msg: msg} }

// List returns the user's entries matching f, most recently updated first.
func (s *Service) List(ctx context.Context, userID string, f domain.Filter) ([]domain.Entry, error) {
	sealed, err := s.repo.List(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	return s.openAll(sealed)
}

// Get returns one entry.
func (s *Service) Get(ctx context.Context, userID, id string) (*domain.Entry, error) {
	se, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.open(se)
}

// Create stores a new entry. Title and password are required.
func (s *Service) Create(ctx context.Context, userID string, in Input) (*domain.Entry, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || in.Password == "" {
		return nil, invalid("Title and password are required")
	}
	category, err := s.category(ctx, userID, in.Category)
	if err != nil {
		return nil, err
	}
	now := s.nowF().UTC()
	e := domain.Entry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Website:   strings.TrimSpace(in.Website),
		Username:  strings.TrimSpace(in.Username),
		Password:  in.Password,
		Notes:     in.Notes,
		Category:  category,
		Favorite:  in.Favorite,
		CreatedAt: now,
		UpdatedAt: now,
	}
	se, err := s.sealer.Seal(e)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &se); err != nil {
		return nil, err
	}
	return &e, nil
}

// Update applies p to an entry and returns the result.
func (s *Service) Update(ctx context.Context, userID, id string, p Patch) (*domain.Entry, error) {
	se, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		if t == "" {
			return nil, invalid("Title cannot be empty")
		}
		se.Title = t
	}
	if p.Website != nil {
		se.Website = strings.TrimSpace(*p.Website)
	}
	if p.Username != nil {
		se.Username = strings.TrimSpace(*p.Username)
	}
	if p.Password != nil {
		if *p.Password == "" {
			return nil, invalid("Password cannot be empty")
		}
		if se.Password, err = s.sealer.SealPassword(*p.Password); err != nil {
			return nil, err
		}
	}
	if p.Notes != nil {
		if se.Notes, err = s.sealer.SealNotes(*p.Notes); err != nil {
			return nil, err
		}
	}
	if p.Category != nil {
		c, err := s.category(ctx, userID, *p.Category)
		if err != nil {
			return nil, err
		}
		se.Category = c
	}
	if p.Favorite != nil {
		se.Favorite = *p.Favorite
	}
	se.UpdatedAt = s.nowF().UTC()
	if err := s.repo.Update(ctx, se); err != nil {
		return nil, err
	}
	return s.open(se)
}

// Delete removes one entry.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrEntryNotFound
	}
	return s.repo.Delete(ctx, userID, id)
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (s *Service) ToggleFavorite(ctx context.Context, userID, id string) (bool, error) {
	se, err := s.load(ctx, userID, id)
	if err != nil {
		return false, err
	}
	se.Favorite = !se.Favorite
	se.UpdatedAt = s.nowF().UTC()
	if err := s.repo.Update(ctx, se); err != nil {
		return false, err
	}
	return se.Favorite, nil
}

// Export returns every entry decrypted, newest first.
func (s *Service) Export(ctx context.Context, userID string) ([]ExportRow, error) {
	entries, err := s.List(ctx, userID, domain.Filter{})
	if err != nil {
		return nil, err
	}
	rows := make([]ExportRow, len(entries))
	for i, e := range entries {
		rows[i] = ExportRow{Name: e.Title, URL: e.Website, Username: e.Username, Password: e.Password, Note: e.Notes}
	}
	s.log.Info().Str("user_id", userID).Int("entries", len(rows)).Msg("vault: exported")
	return rows, nil
}

// Import stores every row that has a title and a password under CategoryOther and returns
// how many were stored. Rows missing either are skipped.
func (s *Service) Import(ctx context.Context, userID string, rows []Input) (int, error) {
	now := s.nowF().UTC()
	batch := make([]*domain.SealedEntry, 0, len(rows))
	for _, r := range rows {
		title := strings.TrimSpace(r.Title)
		if title == "" || r.Password == "" {
			continue
		}
		se, err := s.sealer.Seal(domain.Entry{
			ID:        uuid.NewString(),
			UserID:    userID,
			Title:     title,
			Website:   strings.TrimSpace(r.Website),
			Username:  strings.TrimSpace(r.Username),
			Password:  r.Password,
			Notes:     r.Notes,
			Category:  domain.CategoryOther,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return 0, err
		}
		batch = append(batch, &se)
	}
	if len(batch) == 0 {
		return 0, domain.ErrNothingToImport
	}
	if err := s.repo.CreateMany(ctx, batch); err != nil {
		return 0, err
	}
	s.log.Info().Str("user_id", userID).Int("imported", len(batch)).Int("skipped", len(rows)-len(batch)).Msg("vault: imported")
	return len(batch), nil
}

// DeleteMany removes the listed entries and returns how many were removed.
func (s *Service) DeleteMany(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, invalid("No passwords to delete")
	}
	return s.repo.DeleteMany(ctx, userID, validIDs(ids))
}

// MoveMany moves the listed entries to category and returns how many changed.
func (s *Service) MoveMany(ctx context.Context, userID string, ids []string, category string) (int64, error) {
	if len(ids) == 0 {
		return 0, invalid("No passwords selected")
	}
	if strings.TrimSpace(category) == "" {
		return 0, invalid("Category is required")
	}
	c, err := s.category(ctx, userID, category)
	if err != nil {
		return 0, err
	}
	return s.repo.SetCategory(ctx, userID, validIDs(ids), c, s.nowF().UTC())
}

// category parses raw and checks the user owns it. CategoryOther is always owned.
func (s *Service) category(ctx context.Context, userID, raw string) (domain.Category, error) {
	c, err := domain.ParseCategory(raw)
	if err != nil {
		return "", invalid("Invalid category")
	}
	if c == domain.CategoryOther {
		return c, nil
	}
	ok, err := s.categories.Has(ctx, userID, string(c))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", invalid("Invalid category")
	}
	return c, nil
}

// load fetches a sealed entry. Malformed ids are reported as not found.
func (s *Service) load(ctx context.Context, userID, id string) (*domain.SealedEntry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrEntryNotFound
	}
	se, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if se == nil {
		return nil, domain.ErrEntryNotFound
	}
	return se, nil
}

func (s *Service) open(se *domain.SealedEntry) (*domain.Entry, error) {
	e, err := s.sealer.Open(*se)
	if err != nil {
		s.log.Error().Err(err).Str("entry_id", se.ID).Msg("vault: entry failed to decrypt")
		return nil, err
	}
	return &e, nil
}

func (s *Service) openAll(sealed []*domain.SealedEntry) ([]domain.Entry, error) {
	out := make([]domain.Entry, 0, len(sealed))
	for _, se := range sealed {
		e, err := s.open(se)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

func validIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			out = append(out, id)
		}
	}
	return out
}
