package automation

import (
	"context"
	"errors"
	"time"

	"leadnest/models"

	"gorm.io/gorm"
)

// LeadStore is the lead persistence collaborator consumed by the engine.
type LeadStore interface {
	GetLead(ctx context.Context, id uint) (*models.Lead, error)
	UpdateLead(ctx context.Context, id uint, patch map[string]interface{}) error
	CreateActivity(ctx context.Context, leadID uint, activityType, content string) error
	CreateTask(ctx context.Context, leadID uint, title, description string, dueAt time.Time) error
	ListInactiveLeads(ctx context.Context, cutoff time.Time) ([]models.Lead, error)
}

// SequenceStore resolves sequence definitions and maintains their counters.
type SequenceStore interface {
	GetSequence(ctx context.Context, id uint) (*models.Sequence, error)
	ListActiveSequences(ctx context.Context) ([]models.Sequence, error)
	IncrementEnrolled(ctx context.Context, id uint) error
	IncrementCompleted(ctx context.Context, id uint) error
}

// EnrollmentStore owns the enrollment cursor rows and the automation audit log.
type EnrollmentStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.SequenceEnrollment, error)
	// Claim conditionally pushes next_action_at forward for a still-due,
	// still-active enrollment. It reports false when another scheduler
	// instance already claimed the row.
	Claim(ctx context.Context, id uint, now, until time.Time) (bool, error)
	Update(ctx context.Context, e *models.SequenceEnrollment) error
	Create(ctx context.Context, leadID, sequenceID uint, now time.Time) (*models.SequenceEnrollment, error)
	Exists(ctx context.Context, leadID, sequenceID uint) (bool, error)
	AppendLog(ctx context.Context, entry *models.AutomationLog) error
}

// TemplateStore resolves message templates referenced by steps.
type TemplateStore interface {
	GetTemplate(ctx context.Context, id uint) (*models.MessageTemplate, error)
}

// Mailer is the external email-sending collaborator. It returns the outbound
// message id on success.
type Mailer interface {
	SendEmail(ctx context.Context, toEmail, toName, subject, body string) (string, error)
}

// Messenger is the external WhatsApp-sending collaborator.
type Messenger interface {
	SendWhatsApp(ctx context.Context, phone, body string) error
}

// GormStore is the GORM-backed implementation of all store interfaces. The
// handle is injected at construction; the package keeps no global client.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetLead(ctx context.Context, id uint) (*models.Lead, error) {
	var lead models.Lead
	if err := s.db.WithContext(ctx).First(&lead, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lead, nil
}

func (s *GormStore) UpdateLead(ctx context.Context, id uint, patch map[string]interface{}) error {
	return s.db.WithContext(ctx).Model(&models.Lead{}).Where("id = ?", id).Updates(patch).Error
}

func (s *GormStore) CreateActivity(ctx context.Context, leadID uint, activityType, content string) error {
	activity := models.LeadActivity{
		LeadID:       leadID,
		ActivityType: activityType,
		Content:      content,
		OccurredAt:   time.Now(),
	}
	return s.db.WithContext(ctx).Create(&activity).Error
}

func (s *GormStore) CreateTask(ctx context.Context, leadID uint, title, description string, dueAt time.Time) error {
	task := models.LeadTask{
		LeadID:      leadID,
		Title:       title,
		Description: description,
		DueAt:       &dueAt,
	}
	return s.db.WithContext(ctx).Create(&task).Error
}

func (s *GormStore) ListInactiveLeads(ctx context.Context, cutoff time.Time) ([]models.Lead, error) {
	var leads []models.Lead
	err := s.db.WithContext(ctx).
		Where("last_contact_at IS NOT NULL AND last_contact_at <= ?", cutoff).
		Where("status NOT IN ?", []string{models.LeadStatusWon, models.LeadStatusLost}).
		Find(&leads).Error
	return leads, err
}

func (s *GormStore) GetSequence(ctx context.Context, id uint) (*models.Sequence, error) {
	var seq models.Sequence
	err := s.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&seq, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &seq, nil
}

func (s *GormStore) ListActiveSequences(ctx context.Context) ([]models.Sequence, error) {
	var seqs []models.Sequence
	err := s.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("active = ?", true).
		Find(&seqs).Error
	return seqs, err
}

func (s *GormStore) IncrementEnrolled(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Model(&models.Sequence{}).Where("id = ?", id).
		Update("total_enrolled", gorm.Expr("total_enrolled + ?", 1)).Error
}

func (s *GormStore) IncrementCompleted(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Model(&models.Sequence{}).Where("id = ?", id).
		Update("total_completed", gorm.Expr("total_completed + ?", 1)).Error
}

func (s *GormStore) ListDue(ctx context.Context, now time.Time, limit int) ([]models.SequenceEnrollment, error) {
	var enrollments []models.SequenceEnrollment
	err := s.db.WithContext(ctx).
		Where("status = ? AND next_action_at <= ?", models.EnrollmentActive, now).
		Order("next_action_at ASC").
		Limit(limit).
		Find(&enrollments).Error
	return enrollments, err
}

func (s *GormStore) Claim(ctx context.Context, id uint, now, until time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.SequenceEnrollment{}).
		Where("id = ? AND status = ? AND next_action_at <= ?", id, models.EnrollmentActive, now).
		Update("next_action_at", until)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) Update(ctx context.Context, e *models.SequenceEnrollment) error {
	return s.db.WithContext(ctx).Model(&models.SequenceEnrollment{}).
		Where("id = ?", e.ID).
		Updates(map[string]interface{}{
			"current_step_index": e.CurrentStepIndex,
			"status":             e.Status,
			"next_action_at":     e.NextActionAt,
			"last_action_at":     e.LastActionAt,
		}).Error
}

func (s *GormStore) Create(ctx context.Context, leadID, sequenceID uint, now time.Time) (*models.SequenceEnrollment, error) {
	enrollment := models.SequenceEnrollment{
		LeadID:           leadID,
		SequenceID:       sequenceID,
		CurrentStepIndex: 0,
		Status:           models.EnrollmentActive,
		NextActionAt:     now,
	}
	if err := s.db.WithContext(ctx).Create(&enrollment).Error; err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (s *GormStore) Exists(ctx context.Context, leadID, sequenceID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.SequenceEnrollment{}).
		Where("lead_id = ? AND sequence_id = ?", leadID, sequenceID).
		Count(&count).Error
	return count > 0, err
}

func (s *GormStore) AppendLog(ctx context.Context, entry *models.AutomationLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *GormStore) GetTemplate(ctx context.Context, id uint) (*models.MessageTemplate, error) {
	var tmpl models.MessageTemplate
	if err := s.db.WithContext(ctx).First(&tmpl, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tmpl, nil
}
