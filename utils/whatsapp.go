package utils

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// WhatsAppSender is the messaging collaborator for whatsapp steps. No real
// WhatsApp Business API account is wired in this deployment, so sends are
// simulated: logged and reported as delivered. Swap in a real client by
// implementing the same method against the provider's API.
type WhatsAppSender struct {
	log *logrus.Entry
}

func NewWhatsAppSender() *WhatsAppSender {
	return &WhatsAppSender{log: logrus.WithField("component", "whatsapp_sender")}
}

func (w *WhatsAppSender) SendWhatsApp(ctx context.Context, phone, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if phone == "" {
		return fmt.Errorf("empty phone number")
	}
	w.log.WithFields(logrus.Fields{
		"phone": phone,
		"chars": len(body),
	}).Info("simulated whatsapp send")
	return nil
}
