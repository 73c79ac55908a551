package models

import (
	"time"

	"gorm.io/gorm"
)

// Enrollment statuses. completed and failed are terminal.
const (
	EnrollmentActive    = "active"
	EnrollmentCompleted = "completed"
	EnrollmentFailed    = "failed"
)

// SequenceEnrollment is the per-lead, per-sequence progress cursor. The
// unique index on (lead_id, sequence_id) enforces at most one enrollment per
// pair. CurrentStepIndex is monotonically non-decreasing; only the scheduler
// mutates an enrollment after creation.
type SequenceEnrollment struct {
	gorm.Model
	LeadID     uint `gorm:"not null;uniqueIndex:idx_lead_sequence" json:"lead_id"`
	SequenceID uint `gorm:"not null;uniqueIndex:idx_lead_sequence" json:"sequence_id"`

	CurrentStepIndex int    `gorm:"default:0" json:"current_step_index"`
	Status           string `gorm:"default:'active';index" json:"status"` // active, completed, failed

	NextActionAt time.Time  `gorm:"not null;index" json:"next_action_at"`
	LastActionAt *time.Time `json:"last_action_at"`

	// Relations
	Lead     Lead     `json:"-"`
	Sequence Sequence `json:"-"`
}

// AutomationLog is the append-only audit record of step execution attempts.
// One row per attempt; rows are never mutated.
type AutomationLog struct {
	gorm.Model
	EnrollmentID uint `gorm:"not null;index" json:"enrollment_id"`
	LeadID       uint `gorm:"index" json:"lead_id"`

	StepType   string    `json:"step_type"`
	Action     string    `gorm:"not null" json:"action"` // executed, scheduled, completed, failed
	Success    bool      `json:"success"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	ExecutedAt time.Time `gorm:"not null" json:"executed_at"`

	Enrollment SequenceEnrollment `json:"-"`
}
