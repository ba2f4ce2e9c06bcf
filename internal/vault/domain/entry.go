package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrEntryNotFound is returned when an entry does not exist or belongs to another user.
	ErrEntryNotFound = errors.New("vault entry not found")
	// ErrNothingToImport is returned when an import batch has no usable rows.
	ErrNothingToImport = errors.New("no valid entries to import")
	// ErrInvalidCategory is returned for a malformed category or one the user does not have.
	ErrInvalidCategory = errors.New("invalid category")
	// ErrStorageUnavailable wraps failures of the backing store.
	ErrStorageUnavailable = errors.New("vault storage unavailable")
)

// Category is the slug of one of the owner's categories.
type Category string

// The categories every account starts with. Users may add, rename and remove their own;
// CategoryOther always exists.
const (
	CategorySocial        Category = "social"
	CategoryEmail         Category = "email"
	CategoryFinance       Category = "finance"
	CategoryShopping      Category = "shopping"
	CategoryWork          Category = "work"
	CategoryEntertainment Category = "entertainment"
	CategoryOther         Category = "other"
)

// DefaultCategories lists the seeded categories in display order.
var DefaultCategories = []Category{
	CategorySocial, CategoryEmail, CategoryFinance, CategoryShopping,
	CategoryWork, CategoryEntertainment, CategoryOther,
}

// CategoryAll is the list filter meaning "no category filter"; it is never a slug.
const CategoryAll = "all"

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// IsDefault reports whether c is one of DefaultCategories.
func (c Category) IsDefault() bool {
	for _, k := range DefaultCategories {
		if c == k {
			return true
		}
	}
	return false
}

// ParseCategory trims and lowercases s and checks it is a well-formed slug. An empty value
// is CategoryOther. Whether the owner has the category is checked by the caller.
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CategoryOther, nil
	}
	if s == CategoryAll || !slugPattern.MatchString(s) {
		return "", ErrInvalidCategory
	}
	return Category(s), nil
}

// Entry is a decrypted vault entry.
type Entry struct {
	ID        string
	UserID    string
	Title     string
	Website   string
	Username  string
	Password  string
	Notes     string
	Category  Category
	Favorite  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SealedEntry is an Entry as stored: Password and Notes hold cipher envelopes.
// Notes is empty when the entry has no notes.
type SealedEntry struct {
	ID        string
	UserID    string
	Title     string
	Website   string
	Username  string
	Password  string
	Notes     string
	Category  Category
	Favorite  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Filter narrows List results. A zero Filter matches everything.
type Filter struct {
	// Search is a case-insensitive substring matched against title, website and username.
	Search       string
	Category     Category
	FavoriteOnly bool
}

// ValidationError is a user-facing input error.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }
