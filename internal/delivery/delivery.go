package delivery

import "context"

// EmailMessage represents an email to be sent.
type EmailMessage struct {
	From     string
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mailer sends a single email.
type Mailer interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
}

// SMSSender delivers a short text message (one-time codes) to a phone
// number. The concrete provider is abstracted away from the engines.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, body string) error
}
