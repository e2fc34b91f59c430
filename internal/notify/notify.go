package notify

import (
	"context"

	"marketplace/pkg/log"
)

// Mailer sends transactional email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMSSender sends outbound text messages.
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

// TelegramSender sends chat messages to shop owners.
type TelegramSender interface {
	Send(ctx context.Context, chatID int64, message string) error
}

// LogMailer writes email to the log instead of a provider. Stands in
// until an SMTP or API provider is wired; the task pipeline around it
// is real either way.
type LogMailer struct{}

// Send logs the message.
func (LogMailer) Send(ctx context.Context, to, subject, body string) error {
	log.WithFields(map[string]interface{}{
		"to":      to,
		"subject": subject,
	}).Info("Email sent")
	return nil
}

// LogSMSSender writes SMS to the log instead of a gateway.
type LogSMSSender struct{}

// Send logs the message.
func (LogSMSSender) Send(ctx context.Context, phone, message string) error {
	log.WithFields(map[string]interface{}{
		"phone": phone,
	}).Info("SMS sent")
	return nil
}
