package models

import (
	"time"

	"gorm.io/gorm"
)

// InboundEmail records an inbox message already turned into a lead, keyed by
// the IMAP Message-ID so the inbox worker never ingests the same message
// twice.
type InboundEmail struct {
	gorm.Model
	MessageID string `gorm:"not null;uniqueIndex" json:"message_id"`
	FromName  string `json:"from_name"`
	FromEmail string `gorm:"index" json:"from_email"`
	Subject   string `json:"subject"`

	LeadID     *uint     `gorm:"index" json:"lead_id"`
	ReceivedAt time.Time `json:"received_at"`
}
