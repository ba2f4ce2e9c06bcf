// Package mailer renders the verification emails sent by the one-time code engine.
package mailer

import (
	"bytes"
	"fmt"
	"html/template"

	"secret-vault/backend/internal/otp/domain"
)

// Message is a rendered email.
type Message struct {
	Subject string
	HTML    string
}

type content struct {
	subject string
	heading string
	body    string
}

var contents = map[domain.Purpose]content{
	domain.PurposeSignup: {
		subject: "Verify your email - Vault",
		heading: "Email Verification",
		body:    "Use the code below to verify your email and complete your registration.",
	},
	domain.PurposeReset: {
		subject: "Reset your password - Vault",
		heading: "Password Reset",
		body:    "Use the code below to reset your password.",
	},
	domain.PurposeLogin: {
		subject: "Sign-in verification - Vault",
		heading: "2-Step Verification",
		body:    "Use the code below to complete your sign-in.",
	},
	domain.PurposeEmailChange: {
		subject: "Verify your new email - Vault",
		heading: "Email Change Verification",
		body:    "Use the code below to verify your new email address.",
	},
}

var otpTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background: #f4f4f5; padding: 24px;">
  <div style="max-width: 480px; margin: 0 auto; background: #ffffff; border-radius: 8px; padding: 32px;">
    <h2 style="margin-top: 0;">{{.Heading}}</h2>
    <p>{{.Body}}</p>
    <p style="font-size: 32px; font-weight: bold; letter-spacing: 8px; text-align: center;">{{.Code}}</p>
    <p style="color: #71717a; font-size: 13px;">This code expires in 10 minutes. If you did not request it, you can ignore this email.</p>
  </div>
</body>
</html>
`))

// Render builds the email for purpose carrying code.
func Render(purpose domain.Purpose, code string) (Message, error) {
	c, ok := contents[purpose]
	if !ok {
		return Message{}, fmt.Errorf("mailer: %w: %q", domain.ErrInvalidPurpose, purpose)
	}
	var buf bytes.Buffer
	err := otpTemplate.Execute(&buf, struct {
		Heading, Body, Code string
	}{c.heading, c.body, code})
	if err != nil {
		return Message{}, fmt.Errorf("mailer: render: %w", err)
	}
	return Message{Subject: c.subject, HTML: buf.String()}, nil
}
