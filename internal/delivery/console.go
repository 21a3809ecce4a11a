package delivery

import (
	"context"

	"go.uber.org/zap"
)

// ConsoleMailer logs emails instead of sending them; used in development
// and tests.
type ConsoleMailer struct {
	logger *zap.Logger
}

// NewConsoleMailer creates a logging mailer.
func NewConsoleMailer(logger *zap.Logger) *ConsoleMailer {
	return &ConsoleMailer{logger: logger}
}

// SendEmail logs the email envelope. The body is logged at Debug so dev
// runs can see verification links.
func (m *ConsoleMailer) SendEmail(ctx context.Context, msg EmailMessage) error {
	m.logger.Info("email delivery (console)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	m.logger.Debug("email body", zap.String("text", msg.TextBody))
	return nil
}

// ConsoleSMSSender logs SMS messages instead of sending them.
type ConsoleSMSSender struct {
	logger *zap.Logger
}

// NewConsoleSMSSender creates a logging SMS sender.
func NewConsoleSMSSender(logger *zap.Logger) *ConsoleSMSSender {
	return &ConsoleSMSSender{logger: logger}
}

// SendSMS logs the message. The code itself is logged at Debug only.
func (s *ConsoleSMSSender) SendSMS(ctx context.Context, phone, body string) error {
	s.logger.Info("sms delivery (console)", zap.String("phone", phone))
	s.logger.Debug("sms body", zap.String("body", body))
	return nil
}
