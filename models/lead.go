package models

import (
	"time"

	"gorm.io/gorm"
)

// Lead lifecycle statuses
const (
	LeadStatusNew         = "new"
	LeadStatusContacted   = "contacted"
	LeadStatusQualified   = "qualified"
	LeadStatusNegotiating = "negotiating"
	LeadStatusWon         = "won"
	LeadStatusLost        = "lost"
)

// Lead quality buckets
const (
	LeadQualityHot  = "HOT"
	LeadQualityWarm = "WARM"
	LeadQualityCold = "COLD"
)

// Lead represents a prospective client tracked through the sales pipeline.
// Soft deletion via gorm.Model.DeletedAt keeps deleted leads out of every
// automation query and listing.
type Lead struct {
	gorm.Model
	UserID uint `gorm:"index" json:"user_id"`

	Name  string `gorm:"not null" json:"name"`
	Email string `gorm:"index" json:"email"`
	Phone string `json:"phone"`

	Status  string `gorm:"default:'new';index" json:"status"`   // new, contacted, qualified, negotiating, won, lost
	Quality string `gorm:"default:'WARM';index" json:"quality"` // HOT, WARM, COLD
	Score   int    `gorm:"default:0" json:"score"`

	Source         string     `json:"source"` // manual, email, api
	NextFollowUpAt *time.Time `json:"next_follow_up_at"`
	LastContactAt  *time.Time `json:"last_contact_at"`

	// Relations
	Activities  []LeadActivity       `gorm:"foreignKey:LeadID" json:"activities,omitempty"`
	Tasks       []LeadTask           `gorm:"foreignKey:LeadID" json:"tasks,omitempty"`
	Enrollments []SequenceEnrollment `gorm:"foreignKey:LeadID" json:"enrollments,omitempty"`
}

// ValidStatus reports whether s is a known lead status.
func ValidStatus(s string) bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified,
		LeadStatusNegotiating, LeadStatusWon, LeadStatusLost:
		return true
	}
	return false
}

// ValidQuality reports whether q is a known quality bucket.
func ValidQuality(q string) bool {
	switch q {
	case LeadQualityHot, LeadQualityWarm, LeadQualityCold:
		return true
	}
	return false
}

// LeadActivity is the append-only activity feed for a lead (emails sent,
// messages dispatched, notes, status changes).
type LeadActivity struct {
	gorm.Model
	LeadID uint `gorm:"not null;index" json:"lead_id"`

	ActivityType string    `gorm:"not null" json:"activity_type"` // email_sent, whatsapp_sent, note, status_change, task_created
	Content      string    `gorm:"type:text" json:"content"`
	OccurredAt   time.Time `gorm:"not null" json:"occurred_at"`

	Lead Lead `json:"-"`
}

// LeadTask is a follow-up task attached to a lead, created manually or by a
// task automation step.
type LeadTask struct {
	gorm.Model
	LeadID uint `gorm:"not null;index" json:"lead_id"`

	Title       string     `gorm:"not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	DueAt       *time.Time `json:"due_at"`
	Done        bool       `gorm:"default:false" json:"done"`

	Lead Lead `json:"-"`
}
