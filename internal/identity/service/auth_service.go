package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	otpdomain "secret-vault/backend/internal/otp/domain"
	"secret-vault/backend/internal/security"
	"secret-vault/backend/internal/telemetry"
	teldomain "secret-vault/backend/internal/telemetry/domain"
	userdomain "secret-vault/backend/internal/user/domain"
	userrepo "secret-vault/backend/internal/user/repository"
)

// Sentinel errors for the auth service; the HTTP handler maps them to status codes.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrIncorrectPassword      = errors.New("incorrect password")
	ErrUserNotFound           = errors.New("user not found")
	ErrSameEmail              = errors.New("new email is the same as the current one")
	ErrUsernameTaken          = errors.New("username already taken")
	ErrInvalidResetToken      = errors.New("reset token is invalid or expired")
)

// ValidationError reports a malformed request field. Its message is safe to show to the client.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(msg string) error { return &ValidationError{Msg: msg} }

// MinPasswordLength is the shortest accepted account password.
const MinPasswordLength = 8

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	usernameStrip   = regexp.MustCompile(`[^a-z0-9_]+`)
)

const (
	minUsernameLen = 3
	maxUsernameLen = 30
	// signupCreateAttempts bounds retries when a concurrent signup takes the chosen username.
	signupCreateAttempts = 3
)

// AccountInitializer prepares per-account state for a newly created user.
type AccountInitializer interface {
	EnsureDefaults(ctx context.Context, userID string) error
}

// CodeVerifier issues and checks one-time email codes.
type CodeVerifier interface {
	Issue(ctx context.Context, email string, purpose otpdomain.Purpose) error
	Verify(ctx context.Context, email string, purpose otpdomain.Purpose, code string) error
}

// TokenIssuer mints and checks session and reset tokens.
type TokenIssuer interface {
	IssueSession(userID string) (string, time.Time, error)
	IssueResetToken(email string) (string, time.Time, error)
	VerifyPurpose(token, purpose string) (*security.Claims, error)
}

// AuthResult is a signed-in user with a fresh session token.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *userdomain.User
}

// SignInResult is the outcome of a password sign-in. When TwoFactorRequired is set a login
// code was emailed and Session is nil; CompleteSignIn finishes the flow.
type SignInResult struct {
	Session           *AuthResult
	TwoFactorRequired bool
	Email             string
}

// AuthService implements account signup, sign-in with optional email 2FA, password reset,
// and the signed-in account settings.
type AuthService struct {
	users       userrepo.Repository
	codes       CodeVerifier
	hasher      *security.Hasher
	tokens      TokenIssuer
	events      telemetry.EventEmitter
	initializer AccountInitializer
	nowF        func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies. events may be nil.
func NewAuthService(users userrepo.Repository, codes CodeVerifier, hasher *security.Hasher, tokens TokenIssuer, events telemetry.EventEmitter) *AuthService {
	return &AuthService{
		users:  users,
		codes:  codes,
		hasher: hasher,
		tokens: tokens,
		events: events,
		nowF:   time.Now,
	}
}

// SetAccountInitializer makes a run after every completed signup. A failure is logged and does
// not fail the signup.
func (s *AuthService) SetAccountInitializer(a AccountInitializer) {
	s.initializer = a
}

// StartSignup validates the registration form and emails a signup code.
func (s *AuthService) StartSignup(ctx context.Context, name, email, password string) error {
	email = otpdomain.NormalizeEmail(email)
	if err := validateSignup(name, email, password); err != nil {
		return err
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrEmailAlreadyRegistered
	}
	return s.codes.Issue(ctx, email, otpdomain.PurposeSignup)
}

// CompleteSignup checks the signup code, creates the account, and signs it in.
func (s *AuthService) CompleteSignup(ctx context.Context, name, email, password, code string) (*AuthResult, error) {
	email = otpdomain.NormalizeEmail(email)
	if err := validateSignup(name, email, password); err != nil {
		return nil, err
	}
	if err := s.codes.Verify(ctx, email, otpdomain.PurposeSignup, code); err != nil {
		return nil, err
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	now := s.nowF().UTC()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.createWithUsername(ctx, user); err != nil {
		return nil, err
	}
	if s.initializer != nil {
		if err := s.initializer.EnsureDefaults(ctx, user.ID); err != nil {
			log.Warn().Err(err).Str("user_id", user.ID).Msg("identity: account defaults not seeded")
		}
	}
	s.emit(ctx, teldomain.EventSignupCompleted, user.ID, email, "")
	return s.session(user)
}

// createWithUsername gives user the first free username derived from its email and inserts
// it, picking again if a concurrent signup claims the name first.
func (s *AuthService) createWithUsername(ctx context.Context, user *userdomain.User) error {
	base := baseUsername(user.Email)
	for attempt := 0; ; attempt++ {
		username, err := s.freeUsername(ctx, base)
		if err != nil {
			return err
		}
		user.Username = username
		err = s.users.Create(ctx, user)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, userdomain.ErrEmailTaken):
			return ErrEmailAlreadyRegistered
		case errors.Is(err, userdomain.ErrUsernameTaken) && attempt+1 < signupCreateAttempts:
			continue
		default:
			return err
		}
	}
}

// freeUsername returns base, or base with the smallest numeric suffix from 2 up that no
// account uses.
func (s *AuthService) freeUsername(ctx context.Context, base string) (string, error) {
	for n := 1; ; n++ {
		candidate := base
		if n > 1 {
			suffix := strconv.Itoa(n)
			candidate = truncate(base, maxUsernameLen-len(suffix)) + suffix
		}
		taken, err := s.users.GetByUsername(ctx, candidate)
		if err != nil {
			return "", err
		}
		if taken == nil {
			return candidate, nil
		}
	}
}

// baseUsername derives a username from the local part of email that passes UpdateProfile's
// rules: lowercase letters, digits and underscores, 3 to 30 characters.
func baseUsername(email string) string {
	base := usernameStrip.ReplaceAllString(strings.ToLower(userdomain.UsernameFromEmail(email)), "")
	if base == "" {
		base = "user"
	}
	for len(base) < minUsernameLen {
		base += "_"
	}
	return truncate(base, maxUsernameLen)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// SignIn checks email and password. Accounts with two-step verification get a login code
// instead of a session.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	email = otpdomain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, invalid("All fields are required")
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.emit(ctx, teldomain.EventSignInFailed, "", email, "invalid_credentials")
		return nil, ErrInvalidCredentials
	}
	if s.hasher.Compare(user.PasswordHash, password) != nil {
		s.emit(ctx, teldomain.EventSignInFailed, user.ID, email, "invalid_credentials")
		return nil, ErrInvalidCredentials
	}
	if user.TwoFactorEnabled {
		if err := s.codes.Issue(ctx, email, otpdomain.PurposeLogin); err != nil {
			return nil, err
		}
		s.emit(ctx, teldomain.EventTwoFactorChallenged, user.ID, email, "")
		return &SignInResult{TwoFactorRequired: true, Email: email}, nil
	}
	res, err := s.session(user)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, teldomain.EventSignInSucceeded, user.ID, email, "")
	return &SignInResult{Session: res, Email: email}, nil
}

// CompleteSignIn checks the login code from SignIn and returns a session.
func (s *AuthService) CompleteSignIn(ctx context.Context, email, code string) (*AuthResult, error) {
	email = otpdomain.NormalizeEmail(email)
	if email == "" || code == "" {
		return nil, invalid("Email and code are required")
	}
	if err := s.codes.Verify(ctx, email, otpdomain.PurposeLogin, code); err != nil {
		s.emit(ctx, teldomain.EventSignInFailed, "", email, "two_factor")
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	s.emit(ctx, teldomain.EventSignInSucceeded, user.ID, email, "")
	return s.session(user)
}

// StartPasswordReset emails a reset code when the address belongs to an account. Unknown
// addresses succeed silently so callers cannot enumerate accounts.
func (s *AuthService) StartPasswordReset(ctx context.Context, email string) error {
	email = otpdomain.NormalizeEmail(email)
	if email == "" {
		return invalid("Email is required")
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}
	return s.codes.Issue(ctx, email, otpdomain.PurposeReset)
}

// VerifyPasswordReset exchanges a reset code for a short-lived reset token.
func (s *AuthService) VerifyPasswordReset(ctx context.Context, email, code string) (string, error) {
	email = otpdomain.NormalizeEmail(email)
	if email == "" || code == "" {
		return "", invalid("Email and code are required")
	}
	if err := s.codes.Verify(ctx, email, otpdomain.PurposeReset, code); err != nil {
		return "", err
	}
	token, _, err := s.tokens.IssueResetToken(email)
	return token, err
}

// ResetPassword sets a new password for the account named by a reset token.
func (s *AuthService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if resetToken == "" || newPassword == "" {
		return invalid("All fields are required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	claims, err := s.tokens.VerifyPurpose(resetToken, security.PurposeReset)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidResetToken, err)
	}
	user, err := s.users.GetByEmail(ctx, otpdomain.NormalizeEmail(claims.Email))
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return err
	}
	s.emit(ctx, teldomain.EventPasswordReset, user.ID, user.Email, "")
	return nil
}

// StartEmailChange confirms the password and emails a code to the new address.
func (s *AuthService) StartEmailChange(ctx context.Context, userID, newEmail, password string) error {
	newEmail = otpdomain.NormalizeEmail(newEmail)
	if newEmail == "" || password == "" {
		return invalid("New email and password are required")
	}
	if err := validateEmail(newEmail); err != nil {
		return err
	}
	user, err := s.authorize(ctx, userID, password)
	if err != nil {
		return err
	}
	if user.Email == newEmail {
		return ErrSameEmail
	}
	if err := s.ensureEmailFree(ctx, newEmail, userID); err != nil {
		return err
	}
	return s.codes.Issue(ctx, newEmail, otpdomain.PurposeEmailChange)
}

// CompleteEmailChange checks the code sent to newEmail and moves the account to it.
func (s *AuthService) CompleteEmailChange(ctx context.Context, userID, newEmail, code string) (*userdomain.User, error) {
	newEmail = otpdomain.NormalizeEmail(newEmail)
	if newEmail == "" || code == "" {
		return nil, invalid("New email and code are required")
	}
	if err := s.codes.Verify(ctx, newEmail, otpdomain.PurposeEmailChange, code); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, newEmail, userID); err != nil {
		return nil, err
	}
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	old := user.Email
	user.Email = newEmail
	user.UpdatedAt = s.nowF().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, userdomain.ErrEmailTaken) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, err
	}
	s.emit(ctx, teldomain.EventEmailChanged, user.ID, old, "")
	return user, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == "" || next == "" {
		return invalid("Current and new passwords are required")
	}
	if len(next) < MinPasswordLength {
		return invalid(fmt.Sprintf("New password must be at least %d characters", MinPasswordLength))
	}
	user, err := s.authorize(ctx, userID, current)
	if err != nil {
		return err
	}
	if err := s.setPassword(ctx, user, next); err != nil {
		return err
	}
	s.emit(ctx, teldomain.EventPasswordChanged, user.ID, user.Email, "")
	return nil
}

// SetTwoFactor turns email two-step verification on or off after checking the password.
func (s *AuthService) SetTwoFactor(ctx context.Context, userID string, enabled bool, password string) (*userdomain.User, error) {
	if password == "" {
		return nil, invalid("Enabled status and password are required")
	}
	user, err := s.authorize(ctx, userID, password)
	if err != nil {
		return nil, err
	}
	user.TwoFactorEnabled = enabled
	user.UpdatedAt = s.nowF().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	reason := "disabled"
	if enabled {
		reason = "enabled"
	}
	s.emit(ctx, teldomain.EventTwoFactorToggled, user.ID, user.Email, reason)
	return user, nil
}

// UpdateProfile sets the display name and username. Usernames are stored lowercase.
func (s *AuthService) UpdateProfile(ctx context.Context, userID, name, username string) (*userdomain.User, error) {
	name = strings.TrimSpace(name)
	username = strings.ToLower(strings.TrimSpace(username))
	if name == "" || username == "" {
		return nil, invalid("Name and username are required")
	}
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return nil, invalid("Username must be 3-30 characters")
	}
	if !usernamePattern.MatchString(username) {
		return nil, invalid("Username can only contain letters, numbers, and underscores")
	}
	taken, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken != nil && taken.ID != userID {
		return nil, ErrUsernameTaken
	}
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Name = name
	user.Username = username
	user.UpdatedAt = s.nowF().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, userdomain.ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	s.emit(ctx, teldomain.EventProfileUpdated, user.ID, user.Email, "")
	return user, nil
}

// DeleteAccount removes the account and everything it owns after checking the password.
func (s *AuthService) DeleteAccount(ctx context.Context, userID, password string) error {
	if password == "" {
		return invalid("Password is required")
	}
	user, err := s.authorize(ctx, userID, password)
	if err != nil {
		return err
	}
	if err := s.users.Delete(ctx, user.ID); err != nil {
		return err
	}
	s.emit(ctx, teldomain.EventAccountDeleted, user.ID, user.Email, "")
	return nil
}

// Me returns the signed-in user.
func (s *AuthService) Me(ctx context.Context, userID string) (*userdomain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// authorize loads the user and checks password against the stored hash.
func (s *AuthService) authorize(ctx context.Context, userID, password string) (*userdomain.User, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, ErrIncorrectPassword
	}
	return user, nil
}

func (s *AuthService) ensureEmailFree(ctx context.Context, email, userID string) error {
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != userID {
		return ErrEmailAlreadyRegistered
	}
	return nil
}

func (s *AuthService) setPassword(ctx context.Context, user *userdomain.User, password string) error {
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	user.PasswordHash = hashed
	user.UpdatedAt = s.nowF().UTC()
	return s.users.Update(ctx, user)
}

func (s *AuthService) session(user *userdomain.User) (*AuthResult, error) {
	token, exp, err := s.tokens.IssueSession(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: exp, User: user}, nil
}

func (s *AuthService) emit(ctx context.Context, typ, userID, email, reason string) {
	telemetry.EmitAsync(ctx, s.events, &teldomain.SecurityEvent{
		Type:   typ,
		UserID: userID,
		Email:  email,
		Source: "identity",
		Reason: reason,
	})
}

func validateSignup(name, email, password string) error {
	if strings.TrimSpace(name) == "" || email == "" || password == "" {
		return invalid("All fields are required")
	}
	if err := validateEmail(email); err != nil {
		return err
	}
	return validatePassword(password)
}

func validateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return invalid("Invalid email format")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return invalid(fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	return nil
}
