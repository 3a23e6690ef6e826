package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrymomot/authcore/pkg/email"
	"github.com/dmitrymomot/authcore/pkg/email/templates"
)

// ChallengeNotice is what a notifier needs to deliver an OTP.
type ChallengeNotice struct {
	Email     string
	FirstName string
	Code      string
	ExpiresIn time.Duration
}

// ChallengeNotifier delivers a challenge code out of band.
type ChallengeNotifier interface {
	NotifyChallenge(ctx context.Context, notice ChallengeNotice) error
}

// ChallengeNotifierFunc adapts a function to ChallengeNotifier.
type ChallengeNotifierFunc func(ctx context.Context, notice ChallengeNotice) error

// NotifyChallenge calls f.
func (f ChallengeNotifierFunc) NotifyChallenge(ctx context.Context, notice ChallengeNotice) error {
	return f(ctx, notice)
}

const verifyAccountSubject = "Verify Your Account"

// EmailNotifier sends challenge codes by email.
type EmailNotifier struct {
	sender  email.EmailSender
	appName string
}

// NewEmailNotifier sends codes through sender, signed with appName.
func NewEmailNotifier(sender email.EmailSender, appName string) *EmailNotifier {
	return &EmailNotifier{sender: sender, appName: appName}
}

// NotifyChallenge renders the verification email and sends it.
func (n *EmailNotifier) NotifyChallenge(ctx context.Context, notice ChallengeNotice) error {
	body, err := templates.Render(ctx, templates.VerifyAccount(templates.VerifyAccountParams{
		AppName:   n.appName,
		FirstName: notice.FirstName,
		Code:      notice.Code,
		ExpiresIn: notice.ExpiresIn.Round(time.Minute).String(),
	}))
	if err != nil {
		return fmt.Errorf("render verification email: %w", err)
	}

	return n.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   notice.Email,
		Subject:  verifyAccountSubject,
		BodyHTML: body,
		Tag:      "email-verification",
	})
}

var _ ChallengeNotifier = (*EmailNotifier)(nil)
