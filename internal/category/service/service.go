package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"secret-vault/backend/internal/category/domain"
	"secret-vault/backend/internal/category/repository"
	vaultdomain "secret-vault/backend/internal/vault/domain"
)

// EntryReassigner moves a user's vault entries from one category to another.
type EntryReassigner interface {
	ReassignCategory(ctx context.Context, userID string, from, to vaultdomain.Category, updatedAt time.Time) (int64, error)
}

// Service manages each user's categories. Accounts are seeded with domain.Defaults by
// EnsureDefaults; until then reads report the defaults without storing them.
type Service struct {
	repo    repository.Repository
	entries EntryReassigner
	nowF    func() time.Time
	log     zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.nowF = now } }

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.log = l } }

// NewService returns a Service over repo. entries receives the reassignment when a
// category is deleted.
func NewService(repo repository.Repository, entries EntryReassigner, opts ...Option) *Service {
	s := &Service{repo: repo, entries: entries, nowF: time.Now, log: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func invalid(msg string) error { return &domain.ValidationError{Msg: msg} }

// EnsureDefaults seeds the defaults for a user that has no stored categories. It is safe to
// call any number of times; "other" can never be deleted, so a seeded user always has rows.
func (s *Service) EnsureDefaults(ctx context.Context, userID string) error {
	_, err := s.stored(ctx, userID)
	return err
}

// stored returns the user's rows, seeding them first if there are none.
func (s *Service) stored(ctx context.Context, userID string) ([]*domain.Category, error) {
	cats, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cats) > 0 {
		return cats, nil
	}
	if err := s.repo.Seed(ctx, domain.DefaultsFor(userID, s.nowF().UTC())); err != nil {
		return nil, err
	}
	s.log.Debug().Str("user_id", userID).Msg("categories: seeded defaults")
	return s.repo.List(ctx, userID)
}

// List returns the user's categories in display order. It never writes.
func (s *Service) List(ctx context.Context, userID string) ([]domain.Category, error) {
	cats, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cats) == 0 {
		return domain.DefaultsFor(userID, time.Time{}), nil
	}
	return values(cats), nil
}

// Has reports whether the user has a category with the given value.
func (s *Service) Has(ctx context.Context, userID, value string) (bool, error) {
	cats, err := s.List(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, c := range cats {
		if c.Value == value {
			return true, nil
		}
	}
	return false, nil
}

// Add creates a category whose value is derived from label and returns the updated list.
func (s *Service) Add(ctx context.Context, userID, label, icon string) ([]domain.Category, error) {
	if label == "" || icon == "" {
		return nil, invalid("Label and icon are required")
	}
	label, err := domain.NormalizeLabel(label)
	if err != nil {
		return nil, err
	}
	cats, err := s.stored(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cats) >= domain.MaxCategories {
		return nil, invalid("Maximum " + strconv.Itoa(domain.MaxCategories) + " categories allowed")
	}
	taken := make(map[string]bool, len(cats)+1)
	taken[vaultdomain.CategoryAll] = true
	next := 0
	for _, c := range cats {
		taken[c.Value] = true
		if c.Position >= next {
			next = c.Position + 1
		}
	}
	c := &domain.Category{
		UserID:    userID,
		Value:     domain.Slug(label, taken),
		Label:     label,
		Icon:      icon,
		Position:  next,
		CreatedAt: s.nowF().UTC(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return s.List(ctx, userID)
}

// Update changes the label and/or icon of a category. Nil fields are left unchanged; the
// value stays the same so entries keep pointing at it.
func (s *Service) Update(ctx context.Context, userID, value string, label, icon *string) ([]domain.Category, error) {
	cats, err := s.stored(ctx, userID)
	if err != nil {
		return nil, err
	}
	c := find(cats, value)
	if c == nil {
		return nil, domain.ErrCategoryNotFound
	}
	if label != nil {
		l, err := domain.NormalizeLabel(*label)
		if err != nil {
			return nil, err
		}
		c.Label = l
	}
	if icon != nil {
		if *icon == "" {
			return nil, invalid("Icon cannot be empty")
		}
		c.Icon = *icon
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return s.List(ctx, userID)
}

// Delete removes a category and moves its entries to "other".
func (s *Service) Delete(ctx context.Context, userID, value string) ([]domain.Category, error) {
	if value == domain.Other {
		return nil, invalid(`Cannot delete the "other" category`)
	}
	cats, err := s.stored(ctx, userID)
	if err != nil {
		return nil, err
	}
	if find(cats, value) == nil {
		return nil, domain.ErrCategoryNotFound
	}
	moved, err := s.entries.ReassignCategory(ctx, userID, vaultdomain.Category(value), vaultdomain.CategoryOther, s.nowF().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, userID, value); err != nil && !errors.Is(err, domain.ErrCategoryNotFound) {
		return nil, err
	}
	s.log.Debug().Str("user_id", userID).Str("category", value).Int64("moved", moved).Msg("categories: deleted")
	return s.List(ctx, userID)
}

func find(cats []*domain.Category, value string) *domain.Category {
	for _, c := range cats {
		if c.Value == value {
			return c
		}
	}
	return nil
}

func values(cats []*domain.Category) []domain.Category {
	out := make([]domain.Category, len(cats))
	for i, c := range cats {
		out[i] = *c
	}
	return out
}
