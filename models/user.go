package models

import (
	"time"

	"gorm.io/gorm"
)

// User is an agent account. Authentication is deliberately minimal: password
// login issuing a JWT, with TokenVersion bumping to invalidate old tokens.
type User struct {
	gorm.Model
	Name         string `gorm:"not null" json:"name"`
	Email        string `gorm:"not null;uniqueIndex" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	IsActive     bool `gorm:"default:true" json:"is_active"`
	TokenVersion int  `gorm:"default:1" json:"-"`

	LastLoginAt *time.Time `json:"last_login_at"`
}
