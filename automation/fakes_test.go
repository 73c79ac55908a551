package automation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"leadnest/models"
)

// fakeStore is an in-memory implementation of all store interfaces used to
// exercise the engine, executor and trigger evaluator without a database.
type fakeStore struct {
	leads       map[uint]*models.Lead
	sequences   map[uint]*models.Sequence
	enrollments map[uint]*models.SequenceEnrollment
	templates   map[uint]*models.MessageTemplate

	logs       []models.AutomationLog
	activities []models.LeadActivity
	tasks      []models.LeadTask

	completedCounts map[uint]int
	enrolledCounts  map[uint]int

	nextEnrollmentID uint
	listDueErr       error
	claimAlwaysFalse bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		leads:            make(map[uint]*models.Lead),
		sequences:        make(map[uint]*models.Sequence),
		enrollments:      make(map[uint]*models.SequenceEnrollment),
		templates:        make(map[uint]*models.MessageTemplate),
		completedCounts:  make(map[uint]int),
		enrolledCounts:   make(map[uint]int),
		nextEnrollmentID: 1,
	}
}

func (f *fakeStore) addLead(id uint, lead models.Lead) *models.Lead {
	lead.ID = id
	f.leads[id] = &lead
	return &lead
}

func (f *fakeStore) addSequence(id uint, seq models.Sequence) *models.Sequence {
	seq.ID = id
	f.sequences[id] = &seq
	return &seq
}

func (f *fakeStore) addTemplate(id uint, tmpl models.MessageTemplate) {
	tmpl.ID = id
	f.templates[id] = &tmpl
}

func (f *fakeStore) addEnrollment(e models.SequenceEnrollment) *models.SequenceEnrollment {
	e.ID = f.nextEnrollmentID
	f.nextEnrollmentID++
	f.enrollments[e.ID] = &e
	return &e
}

// LeadStore

func (f *fakeStore) GetLead(_ context.Context, id uint) (*models.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return nil, nil
	}
	copied := *lead
	return &copied, nil
}

func (f *fakeStore) UpdateLead(_ context.Context, id uint, patch map[string]interface{}) error {
	lead, ok := f.leads[id]
	if !ok {
		return fmt.Errorf("lead %d not found", id)
	}
	if v, ok := patch["last_contact_at"]; ok {
		t := v.(time.Time)
		lead.LastContactAt = &t
	}
	return nil
}

func (f *fakeStore) CreateActivity(_ context.Context, leadID uint, activityType, content string) error {
	f.activities = append(f.activities, models.LeadActivity{
		LeadID:       leadID,
		ActivityType: activityType,
		Content:      content,
		OccurredAt:   time.Now(),
	})
	return nil
}

func (f *fakeStore) CreateTask(_ context.Context, leadID uint, title, description string, dueAt time.Time) error {
	f.tasks = append(f.tasks, models.LeadTask{
		LeadID:      leadID,
		Title:       title,
		Description: description,
		DueAt:       &dueAt,
	})
	return nil
}

func (f *fakeStore) ListInactiveLeads(_ context.Context, cutoff time.Time) ([]models.Lead, error) {
	var result []models.Lead
	for _, lead := range f.leads {
		if lead.LastContactAt == nil || lead.LastContactAt.After(cutoff) {
			continue
		}
		if lead.Status == models.LeadStatusWon || lead.Status == models.LeadStatusLost {
			continue
		}
		result = append(result, *lead)
	}
	return result, nil
}

// SequenceStore

func (f *fakeStore) GetSequence(_ context.Context, id uint) (*models.Sequence, error) {
	seq, ok := f.sequences[id]
	if !ok {
		return nil, nil
	}
	copied := *seq
	return &copied, nil
}

func (f *fakeStore) ListActiveSequences(_ context.Context) ([]models.Sequence, error) {
	var result []models.Sequence
	for _, seq := range f.sequences {
		if seq.Active {
			result = append(result, *seq)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (f *fakeStore) IncrementEnrolled(_ context.Context, id uint) error {
	f.enrolledCounts[id]++
	return nil
}

func (f *fakeStore) IncrementCompleted(_ context.Context, id uint) error {
	f.completedCounts[id]++
	return nil
}

// EnrollmentStore

func (f *fakeStore) ListDue(_ context.Context, now time.Time, limit int) ([]models.SequenceEnrollment, error) {
	if f.listDueErr != nil {
		return nil, f.listDueErr
	}
	var due []models.SequenceEnrollment
	for _, e := range f.enrollments {
		if e.Status == models.EnrollmentActive && !e.NextActionAt.After(now) {
			due = append(due, *e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (f *fakeStore) Claim(_ context.Context, id uint, now, until time.Time) (bool, error) {
	if f.claimAlwaysFalse {
		return false, nil
	}
	e, ok := f.enrollments[id]
	if !ok || e.Status != models.EnrollmentActive || e.NextActionAt.After(now) {
		return false, nil
	}
	e.NextActionAt = until
	return true, nil
}

func (f *fakeStore) Update(_ context.Context, updated *models.SequenceEnrollment) error {
	e, ok := f.enrollments[updated.ID]
	if !ok {
		return fmt.Errorf("enrollment %d not found", updated.ID)
	}
	e.CurrentStepIndex = updated.CurrentStepIndex
	e.Status = updated.Status
	e.NextActionAt = updated.NextActionAt
	e.LastActionAt = updated.LastActionAt
	return nil
}

func (f *fakeStore) Create(_ context.Context, leadID, sequenceID uint, now time.Time) (*models.SequenceEnrollment, error) {
	return f.addEnrollment(models.SequenceEnrollment{
		LeadID:           leadID,
		SequenceID:       sequenceID,
		CurrentStepIndex: 0,
		Status:           models.EnrollmentActive,
		NextActionAt:     now,
	}), nil
}

func (f *fakeStore) Exists(_ context.Context, leadID, sequenceID uint) (bool, error) {
	for _, e := range f.enrollments {
		if e.LeadID == leadID && e.SequenceID == sequenceID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) AppendLog(_ context.Context, entry *models.AutomationLog) error {
	f.logs = append(f.logs, *entry)
	return nil
}

// TemplateStore

func (f *fakeStore) GetTemplate(_ context.Context, id uint) (*models.MessageTemplate, error) {
	tmpl, ok := f.templates[id]
	if !ok {
		return nil, nil
	}
	copied := *tmpl
	return &copied, nil
}

// fakeMailer records sends and can be forced to fail.
type fakeMailer struct {
	sent []sentEmail
	err  error
}

type sentEmail struct {
	To      string
	Subject string
	Body    string
}

func (m *fakeMailer) SendEmail(_ context.Context, toEmail, _, subject, body string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, sentEmail{To: toEmail, Subject: subject, Body: body})
	return fmt.Sprintf("msg-%d", len(m.sent)), nil
}

// fakeMessenger records whatsapp sends and can be forced to fail.
type fakeMessenger struct {
	sent []sentWhatsApp
	err  error
}

type sentWhatsApp struct {
	Phone string
	Body  string
}

func (m *fakeMessenger) SendWhatsApp(_ context.Context, phone, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentWhatsApp{Phone: phone, Body: body})
	return nil
}
