package mailer

import (
	"context"

	"secret-vault/backend/internal/mailer/resend"
	"secret-vault/backend/internal/otp/domain"
)

// Sender delivers a single email.
type Sender interface {
	Send(ctx context.Context, msg resend.Message) error
}

// OTPMailer renders verification emails and hands them to a Sender.
type OTPMailer struct {
	sender Sender
	from   string
}

// NewOTPMailer returns an OTPMailer sending from the given address.
func NewOTPMailer(sender Sender, from string) *OTPMailer {
	return &OTPMailer{sender: sender, from: from}
}

// SendOTP emails code to to using the template for purpose. The code is never logged.
func (m *OTPMailer) SendOTP(ctx context.Context, to, code string, purpose domain.Purpose) error {
	msg, err := Render(purpose, code)
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, resend.Message{
		From:    m.from,
		To:      []string{to},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
}
