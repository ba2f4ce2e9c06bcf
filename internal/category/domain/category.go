package domain

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	// ErrCategoryNotFound is returned when the user has no category with the given value.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrCategoryExists is returned when a value is already taken by another of the user's categories.
	ErrCategoryExists = errors.New("category already exists")
	// ErrStorageUnavailable wraps failures of the backing store.
	ErrStorageUnavailable = errors.New("category storage unavailable")
)

const (
	// Other is the fallback category. It cannot be deleted and receives the entries of
	// deleted categories.
	Other = "other"
	// MaxCategories caps how many categories one user may hold.
	MaxCategories = 20
	// MaxLabelLen is the longest label in characters.
	MaxLabelLen = 30
)

// Category is one of a user's entry categories. Value is the slug stored on entries.
type Category struct {
	UserID    string
	Value     string
	Label     string
	Icon      string
	Position  int
	CreatedAt time.Time
}

// Defaults are the categories every account is seeded with, in display order.
var Defaults = []Category{
	{Value: "social", Label: "Social", Icon: "Globe"},
	{Value: "email", Label: "Email", Icon: "Mail"},
	{Value: "finance", Label: "Finance", Icon: "Landmark"},
	{Value: "shopping", Label: "Shopping", Icon: "ShoppingBag"},
	{Value: "work", Label: "Work", Icon: "Briefcase"},
	{Value: "entertainment", Label: "Entertainment", Icon: "Gamepad2"},
	{Value: Other, Label: "Other", Icon: "Key"},
}

// DefaultsFor returns a copy of Defaults owned by userID with positions set.
func DefaultsFor(userID string, at time.Time) []Category {
	out := make([]Category, len(Defaults))
	for i, c := range Defaults {
		c.UserID = userID
		c.Position = i
		c.CreatedAt = at
		out[i] = c
	}
	return out
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug derives a value from label that is not in taken. Runs of other characters become a
// single hyphen; a label with nothing usable becomes "category". Collisions get -2, -3, ...
func Slug(label string, taken map[string]bool) string {
	base := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(label), "-"), "-")
	if base == "" {
		base = "category"
	}
	slug := base
	for n := 2; taken[slug]; n++ {
		slug = base + "-" + strconv.Itoa(n)
	}
	return slug
}

// NormalizeLabel trims label and checks its length.
func NormalizeLabel(label string) (string, error) {
	label = strings.TrimSpace(label)
	if n := utf8.RuneCountInString(label); n == 0 || n > MaxLabelLen {
		return "", &ValidationError{Msg: "Label must be 1-" + strconv.Itoa(MaxLabelLen) + " characters"}
	}
	return label, nil
}

// ValidationError is a user-facing input error.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }
