package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"secret-vault/backend/internal/otp"
	"secret-vault/backend/internal/otp/domain"
	"secret-vault/backend/internal/otp/repository"
	"secret-vault/backend/internal/telemetry"
)

// DefaultDispatchTimeout bounds a single email send.
const DefaultDispatchTimeout = 15 * time.Second

// Mailer sends a code to an address for a purpose.
type Mailer interface {
	SendOTP(ctx context.Context, to, code string, purpose domain.Purpose) error
}

// Engine issues and verifies one-time codes for the four verification purposes.
//
// The engine does not throttle attempts. A 6-digit code with a 10-minute window is
// only safe behind per-client rate limiting, which the HTTP layer applies.
type Engine struct {
	store           repository.Store
	mailer          Mailer
	ttl             time.Duration
	dispatchTimeout time.Duration
	nowF            func() time.Time
	genF            func() (string, error)
	metrics         *telemetry.Metrics
	log             zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source for both issuing and expiry checks.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.nowF = now } }

// WithTTL sets the code lifetime.
func WithTTL(d time.Duration) Option { return func(e *Engine) { e.ttl = d } }

// WithDispatchTimeout bounds each email send.
func WithDispatchTimeout(d time.Duration) Option { return func(e *Engine) { e.dispatchTimeout = d } }

// WithMetrics records issue and verify counters.
func WithMetrics(m *telemetry.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

// withGenerator replaces code generation in tests.
func withGenerator(f func() (string, error)) Option { return func(e *Engine) { e.genF = f } }

// NewEngine returns an Engine over store and mailer.
func NewEngine(store repository.Store, mailer Mailer, opts ...Option) *Engine {
	e := &Engine{
		store:           store,
		mailer:          mailer,
		ttl:             repository.DefaultCodeTTL,
		dispatchTimeout: DefaultDispatchTimeout,
		nowF:            time.Now,
		genF:            otp.GenerateCode,
		log:             zerolog.Nop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Issue creates a fresh code for (email, purpose), replacing any earlier one, and emails it.
// If the email cannot be sent the new code is invalidated and ErrEmailDispatchFailed is returned.
func (e *Engine) Issue(ctx context.Context, email string, purpose domain.Purpose) error {
	if !purpose.Valid() {
		return domain.ErrInvalidPurpose
	}
	email = domain.NormalizeEmail(email)
	code, err := e.genF()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	now := e.nowF().UTC()
	rec := &domain.OneTimeCode{
		Email:     email,
		Purpose:   purpose,
		CodeHash:  otp.HashCode(code),
		ExpiresAt: now.Add(e.ttl),
		CreatedAt: now,
	}
	if err := e.store.Put(ctx, rec); err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.dispatchTimeout)
	defer cancel()
	if err := e.mailer.SendOTP(sendCtx, email, code, purpose); err != nil {
		// Only remove the code this call created; a concurrent Issue may have replaced it.
		if _, invErr := e.store.Consume(context.WithoutCancel(ctx), rec); invErr != nil {
			e.log.Error().Err(invErr).Str("purpose", string(purpose)).Msg("otp: invalidate after failed dispatch")
		}
		e.log.Warn().Err(err).Str("purpose", string(purpose)).Msg("otp: email dispatch failed")
		return fmt.Errorf("%w: %v", domain.ErrEmailDispatchFailed, err)
	}
	e.metrics.OTPIssued(ctx, string(purpose))
	e.log.Debug().Str("purpose", string(purpose)).Time("expires_at", rec.ExpiresAt).Msg("otp: issued")
	return nil
}

// Verify checks code against the active code for (email, purpose) and consumes it on success.
//
// Rules apply in order: domain.ErrCodeNotFound when no code exists, domain.ErrInvalidCode on
// mismatch, then domain.ErrCodeExpired when the matching code has lapsed (it is removed).
// A wrong guess against a lapsed code leaves it in place for the reaper.
func (e *Engine) Verify(ctx context.Context, email string, purpose domain.Purpose, code string) error {
	if !purpose.Valid() {
		return domain.ErrInvalidPurpose
	}
	email = domain.NormalizeEmail(email)
	err := e.verify(ctx, email, purpose, code)
	e.metrics.OTPVerified(ctx, string(purpose), outcome(err))
	return err
}

func (e *Engine) verify(ctx context.Context, email string, purpose domain.Purpose, code string) error {
	rec, err := e.store.Get(ctx, email, purpose)
	if err != nil {
		return err
	}
	if rec == nil {
		return domain.ErrCodeNotFound
	}
	if !otp.CodeEqual(code, rec.CodeHash) {
		return domain.ErrInvalidCode
	}
	if rec.ExpiredAt(e.nowF().UTC()) {
		if err := e.store.InvalidateAll(ctx, email, purpose); err != nil {
			return err
		}
		return domain.ErrCodeExpired
	}
	ok, err := e.store.Consume(ctx, rec)
	if err != nil {
		return err
	}
	if !ok {
		// Lost a race with another verify or a reissue.
		return domain.ErrCodeNotFound
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeOK
	case errors.Is(err, domain.ErrCodeNotFound):
		return telemetry.OutcomeNotFound
	case errors.Is(err, domain.ErrInvalidCode):
		return telemetry.OutcomeInvalid
	case errors.Is(err, domain.ErrCodeExpired):
		return telemetry.OutcomeExpired
	default:
		return telemetry.OutcomeError
	}
}
