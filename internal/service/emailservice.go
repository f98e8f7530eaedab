package service

import (
	"strings"

	"Verdantwebserver/internal/email"
)

// Mailer is the outbound notifier consumed by the auth services. The
// SMTP-backed implementation is EmailService; tests substitute stubs.
type Mailer interface {
	SendPasswordReset(toEmail, resetURL string) error
	SendEmailVerification(toEmail, verifyURL string) error
}

type EmailService struct {
	Sender *email.Sender
}

func (s *EmailService) SendPasswordReset(toEmail, resetURL string) error {
	body := strings.Join([]string{
		"You requested a password reset for your Verdant account.",
		"",
		"Reset your password using this link (valid for 10 minutes):",
		resetURL,
		"",
		"If you did not request this, you can ignore this email.",
	}, "\n")

	return s.Sender.Send(email.Message{
		To:       toEmail,
		Subject:  "Reset your Verdant password",
		TextBody: body,
	})
}

func (s *EmailService) SendEmailVerification(toEmail, verifyURL string) error {
	body := strings.Join([]string{
		"Welcome to Verdant!",
		"",
		"Confirm your email address using this link:",
		verifyURL,
		"",
		"If you did not create this account, you can ignore this email.",
	}, "\n")

	return s.Sender.Send(email.Message{
		To:       toEmail,
		Subject:  "Confirm your Verdant email",
		TextBody: body,
	})
}
