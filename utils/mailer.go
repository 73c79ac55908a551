package utils

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// Mailer sends sequence emails over SMTP. It satisfies the automation
// engine's Mailer collaborator interface.
type Mailer struct {
	dialer    *gomail.Dialer
	fromEmail string
	fromName  string
}

func NewMailer(host, port, username, password, fromEmail, fromName string) (*Mailer, error) {
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP port %q: %w", port, err)
	}
	return &Mailer{
		dialer:    gomail.NewDialer(host, portNum, username, password),
		fromEmail: fromEmail,
		fromName:  fromName,
	}, nil
}

// SendEmail delivers one message and returns the generated message id. The
// context is honored up front; gomail's dial/send itself is synchronous.
func (m *Mailer) SendEmail(ctx context.Context, toEmail, toName, subject, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	messageID := uuid.New().String()

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.fromEmail, m.fromName)
	msg.SetAddressHeader("To", toEmail, toName)
	msg.SetHeader("Subject", subject)
	msg.SetHeader("Message-ID", fmt.Sprintf("<%s@leadnest>", messageID))
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return "", fmt.Errorf("smtp send to %s: %w", toEmail, err)
	}
	return messageID, nil
}
