package models

import "gorm.io/gorm"

// Template channels
const (
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
)

// MessageTemplate holds the reusable message bodies referenced by email and
// whatsapp sequence steps. Bodies may use Go template placeholders rendered
// against the lead ({{.Name}}, {{.Email}}, {{.Phone}}).
type MessageTemplate struct {
	gorm.Model
	UserID uint `gorm:"index" json:"user_id"`

	Name    string `gorm:"not null" json:"name"`
	Channel string `gorm:"not null;default:'email'" json:"channel"` // email, whatsapp
	Subject string `json:"subject"`
	Body    string `gorm:"type:text;not null" json:"body"`
}
