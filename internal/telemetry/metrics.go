package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome labels shared by the counters.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeExpired  = "expired"
	OutcomeError    = "error"
)

// Metrics holds the counters recorded by the verification engine and the biometric
// authenticator. A nil *Metrics records nothing.
type Metrics struct {
	otpIssued   metric.Int64Counter
	otpVerified metric.Int64Counter
	ceremonies  metric.Int64Counter
}

// NewMetrics creates the counters on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	issued, err := meter.Int64Counter("vault.otp.issued",
		metric.WithDescription("One-time codes issued, by purpose."))
	if err != nil {
		return nil, err
	}
	verified, err := meter.Int64Counter("vault.otp.verified",
		metric.WithDescription("One-time code verifications, by purpose and outcome."))
	if err != nil {
		return nil, err
	}
	ceremonies, err := meter.Int64Counter("vault.webauthn.ceremonies",
		metric.WithDescription("Completed WebAuthn ceremonies, by ceremony and outcome."))
	if err != nil {
		return nil, err
	}
	return &Metrics{otpIssued: issued, otpVerified: verified, ceremonies: ceremonies}, nil
}

// OTPIssued counts an issued code.
func (m *Metrics) OTPIssued(ctx context.Context, purpose string) {
	if m == nil {
		return
	}
	m.otpIssued.Add(ctx, 1, metric.WithAttributes(attribute.String("purpose", purpose)))
}

// OTPVerified counts a verification attempt.
func (m *Metrics) OTPVerified(ctx context.Context, purpose, outcome string) {
	if m == nil {
		return
	}
	m.otpVerified.Add(ctx, 1, metric.WithAttributes(
		attribute.String("purpose", purpose),
		attribute.String("outcome", outcome),
	))
}

// Ceremony counts a completed registration or authentication ceremony.
func (m *Metrics) Ceremony(ctx context.Context, ceremony, outcome string) {
	if m == nil {
		return
	}
	m.ceremonies.Add(ctx, 1, metric.WithAttributes(
		attribute.String("ceremony", ceremony),
		attribute.String("outcome", outcome),
	))
}
