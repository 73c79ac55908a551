package models

import "gorm.io/gorm"

// Sequence trigger types
const (
	TriggerNewLead        = "new_lead"
	TriggerStatusChange   = "status_change"
	TriggerInactivityDays = "inactivity_days"
	TriggerQualityChange  = "quality_change"
	TriggerManual         = "manual"
)

// Sequence step types
const (
	StepDelay    = "delay"
	StepEmail    = "email"
	StepWhatsApp = "whatsapp"
	StepTask     = "task"
)

// Sequence represents an automated follow-up sequence: a trigger condition
// plus an ordered list of steps. Step order is fixed at edit time; the
// engine never reorders steps.
type Sequence struct {
	gorm.Model
	UserID uint `gorm:"index" json:"user_id"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	TriggerType string `gorm:"not null;index" json:"trigger_type"` // new_lead, status_change, inactivity_days, quality_change, manual

	// Trigger conditions are a closed set of typed, optional matchers rather
	// than a free-form map. A nil field means "don't care"; set fields must
	// match the lead exactly. InactivityDays applies only to the
	// inactivity_days trigger and is evaluated against a cutoff timestamp,
	// not by field equality.
	MatchStatus    *string `json:"match_status"`
	MatchQuality   *string `json:"match_quality"`
	MatchSource    *string `json:"match_source"`
	InactivityDays int     `gorm:"default:0" json:"inactivity_days"`

	Active bool `gorm:"default:false;index" json:"active"`

	// Aggregate counters
	TotalEnrolled  int `gorm:"default:0" json:"total_enrolled"`
	TotalCompleted int `gorm:"default:0" json:"total_completed"`

	// Relations
	Steps []SequenceStep `gorm:"foreignKey:SequenceID" json:"steps,omitempty"`
}

// SequenceStep is one unit of work in a sequence. Config is a tagged union:
// the fields that apply depend on Type. A delay step never performs an
// external side effect; it only pushes the enrollment's next action time.
type SequenceStep struct {
	gorm.Model
	SequenceID uint `gorm:"not null;index" json:"sequence_id"`

	Position int    `gorm:"not null" json:"position"` // 0-based, first executed step is 0
	Type     string `gorm:"not null" json:"type"`     // delay, email, whatsapp, task

	// delay config
	DelayHours int `gorm:"default:0" json:"delay_hours"`

	// email / whatsapp config
	TemplateID *uint `json:"template_id"`

	// task config
	TaskTitle       string `json:"task_title"`
	TaskDescription string `json:"task_description"`

	Template *MessageTemplate `gorm:"foreignKey:TemplateID" json:"-"`
}

// ValidTriggerType reports whether t is a known trigger type.
func ValidTriggerType(t string) bool {
	switch t {
	case TriggerNewLead, TriggerStatusChange, TriggerInactivityDays,
		TriggerQualityChange, TriggerManual:
		return true
	}
	return false
}

// ValidStepType reports whether t is a known step type.
func ValidStepType(t string) bool {
	switch t {
	case StepDelay, StepEmail, StepWhatsApp, StepTask:
		return true
	}
	return false
}
