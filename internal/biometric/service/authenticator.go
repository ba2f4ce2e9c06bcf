package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/rs/zerolog"

	"secret-vault/backend/internal/biometric/domain"
	"secret-vault/backend/internal/biometric/repository"
	"secret-vault/backend/internal/challenge"
	"secret-vault/backend/internal/telemetry"
	teldomain "secret-vault/backend/internal/telemetry/domain"
	userdomain "secret-vault/backend/internal/user/domain"
)

const (
	ceremonyRegistration   = "registration"
	ceremonyAuthentication = "authentication"
)

// UserLookup resolves the ceremony owner. GetByID returns (nil, nil) when the user does not exist.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// Config identifies the relying party.
type Config struct {
	RPID          string
	RPDisplayName string
	RPOrigins     []string
}

// Authenticator runs WebAuthn registration and authentication ceremonies for signed-in users.
// Each ceremony is a begin/complete pair joined by a single-use challenge held in a challenge.Store.
type Authenticator struct {
	wa         *webauthn.WebAuthn
	challenges challenge.Store
	creds      repository.Repository
	users      UserLookup
	nowF       func() time.Time
	metrics    *telemetry.Metrics
	events     telemetry.EventEmitter
	log        zerolog.Logger
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithClock sets the time source used for credential timestamps.
func WithClock(now func() time.Time) Option { return func(a *Authenticator) { a.nowF = now } }

// WithMetrics records ceremony counters.
func WithMetrics(m *telemetry.Metrics) Option { return func(a *Authenticator) { a.metrics = m } }

// WithEventEmitter emits security events for completed ceremonies.
func WithEventEmitter(e telemetry.EventEmitter) Option { return func(a *Authenticator) { a.events = e } }

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(a *Authenticator) { a.log = l } }

// NewAuthenticator returns an Authenticator for the relying party in cfg.
func NewAuthenticator(cfg Config, challenges challenge.Store, creds repository.Repository, users UserLookup, opts ...Option) (*Authenticator, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RPID,
		RPDisplayName: cfg.RPDisplayName,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("webauthn config: %w", err)
	}
	a := &Authenticator{
		wa:         wa,
		challenges: challenges,
		creds:      creds,
		users:      users,
		nowF:       time.Now,
		log:        zerolog.Nop(),
	}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// BeginRegistration returns creation options for a new platform credential. Credentials the
// user already has are excluded, and user verification is required.
func (a *Authenticator) BeginRegistration(ctx context.Context, userID string) (*protocol.CredentialCreation, error) {
	user, err := a.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	exclude := make([]protocol.CredentialDescriptor, 0, len(user.credentials))
	for _, c := range user.credentials {
		exclude = append(exclude, c.Descriptor())
	}
	creation, session, err := a.wa.BeginRegistration(user,
		webauthn.WithExclusions(exclude),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			ResidentKey:             protocol.ResidentKeyRequirementPreferred,
			UserVerification:        protocol.VerificationRequired,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("begin registration: %w", err)
	}
	if err := a.saveSession(ctx, ceremonyRegistration, userID, session); err != nil {
		return nil, err
	}
	return creation, nil
}

// CompleteRegistration verifies the attestation in body against the pending challenge and
// stores the new credential. The challenge is consumed before anything else, so a failed
// attempt requires a new BeginRegistration.
func (a *Authenticator) CompleteRegistration(ctx context.Context, userID string, body []byte) (*domain.Credential, error) {
	cred, err := a.completeRegistration(ctx, userID, body)
	a.record(ctx, ceremonyRegistration, userID, err)
	return cred, err
}

func (a *Authenticator) completeRegistration(ctx context.Context, userID string, body []byte) (*domain.Credential, error) {
	session, err := a.takeSession(ctx, ceremonyRegistration, userID)
	if err != nil {
		return nil, err
	}
	user, err := a.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVerificationFailed, err)
	}
	wc, err := a.wa.CreateCredential(user, *session, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVerificationFailed, err)
	}
	cred := fromWebAuthn(userID, wc)
	cred.CreatedAt = a.nowF().UTC()
	if err := a.creds.Create(ctx, cred); err != nil {
		return nil, err
	}
	return cred, nil
}

// BeginAuthentication returns assertion options restricted to the user's credentials.
func (a *Authenticator) BeginAuthentication(ctx context.Context, userID string) (*protocol.CredentialAssertion, error) {
	user, err := a.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(user.credentials) == 0 {
		return nil, domain.ErrNoCredentialsRegistered
	}
	assertion, session, err := a.wa.BeginLogin(user, webauthn.WithUserVerification(protocol.VerificationRequired))
	if err != nil {
		return nil, fmt.Errorf("begin authentication: %w", err)
	}
	if err := a.saveSession(ctx, ceremonyAuthentication, userID, session); err != nil {
		return nil, err
	}
	return assertion, nil
}

// CompleteAuthentication verifies the assertion in body and advances the credential's
// signature counter. A counter that does not increase fails with ErrSignCountNotIncreasing.
func (a *Authenticator) CompleteAuthentication(ctx context.Context, userID string, body []byte) (*domain.Credential, error) {
	cred, err := a.completeAuthentication(ctx, userID, body)
	a.record(ctx, ceremonyAuthentication, userID, err)
	return cred, err
}

func (a *Authenticator) completeAuthentication(ctx context.Context, userID string, body []byte) (*domain.Credential, error) {
	session, err := a.takeSession(ctx, ceremonyAuthentication, userID)
	if err != nil {
		return nil, err
	}
	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVerificationFailed, err)
	}
	stored, err := a.creds.Get(ctx, parsed.RawID)
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.UserID != userID {
		return nil, domain.ErrCredentialNotFound
	}
	user, err := a.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := a.wa.ValidateLogin(user, *session, parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrVerificationFailed, err)
	}
	count := parsed.Response.AuthenticatorData.Counter
	if err := domain.CheckSignCount(stored.SignCount, count); err != nil {
		a.log.Warn().Str("user_id", userID).Uint32("stored", stored.SignCount).Uint32("got", count).
			Msg("biometric: sign count did not increase")
		return nil, err
	}
	now := a.nowF().UTC()
	if err := a.creds.UpdateSignCount(ctx, stored.ID, count, now); err != nil {
		return nil, err
	}
	stored.SignCount = count
	stored.LastUsedAt = &now
	return stored, nil
}

// RemoveAll deletes every credential of the user.
func (a *Authenticator) RemoveAll(ctx context.Context, userID string) error {
	n, err := a.creds.DeleteByUser(ctx, userID)
	if err != nil {
		return err
	}
	a.log.Info().Str("user_id", userID).Int64("removed", n).Msg("biometric: credentials cleared")
	telemetry.EmitAsync(ctx, a.events, &teldomain.SecurityEvent{
		Type: teldomain.EventBiometricCleared, UserID: userID, Source: "biometric",
	})
	return nil
}

// Status returns how many credentials the user has registered.
func (a *Authenticator) Status(ctx context.Context, userID string) (int, error) {
	return a.creds.CountByUser(ctx, userID)
}

func (a *Authenticator) loadUser(ctx context.Context, userID string) (*webauthnUser, error) {
	u, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	creds, err := a.creds.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newWebAuthnUser(u, creds), nil
}

func challengeKey(ceremony, userID string) string {
	return ceremony + ":" + userID
}

func (a *Authenticator) saveSession(ctx context.Context, ceremony, userID string, session *webauthn.SessionData) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return a.challenges.Set(ctx, challengeKey(ceremony, userID), string(raw))
}

func (a *Authenticator) takeSession(ctx context.Context, ceremony, userID string) (*webauthn.SessionData, error) {
	raw, ok, err := a.challenges.Consume(ctx, challengeKey(ceremony, userID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrChallengeNotFound
	}
	var session webauthn.SessionData
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func (a *Authenticator) record(ctx context.Context, ceremony, userID string, err error) {
	a.metrics.Ceremony(ctx, ceremony, ceremonyOutcome(err))
	ev := &teldomain.SecurityEvent{UserID: userID, Source: "biometric"}
	switch {
	case err == nil && ceremony == ceremonyRegistration:
		ev.Type = teldomain.EventBiometricRegistered
	case err == nil:
		ev.Type = teldomain.EventBiometricUnlocked
	default:
		ev.Type = teldomain.EventBiometricFailed
		ev.Reason = ceremonyOutcome(err)
		a.log.Debug().Err(err).Str("ceremony", ceremony).Str("user_id", userID).Msg("biometric: ceremony failed")
	}
	telemetry.EmitAsync(ctx, a.events, ev)
}

func ceremonyOutcome(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeOK
	case errors.Is(err, domain.ErrChallengeNotFound):
		return telemetry.OutcomeExpired
	case errors.Is(err, domain.ErrCredentialNotFound), errors.Is(err, domain.ErrUserNotFound):
		return telemetry.OutcomeNotFound
	case errors.Is(err, domain.ErrVerificationFailed):
		return telemetry.OutcomeInvalid
	default:
		return telemetry.OutcomeError
	}
}
