package automation

import (
	"context"
	"time"

	"leadnest/models"

	"github.com/sirupsen/logrus"
)

// TriggerEvaluator decides, for a lead event, which active sequences the lead
// should be enrolled into. Matching is strict equality on the sequence's set
// condition fields; the inactivity trigger is the one special case, evaluated
// by cutoff query in RunInactivityScan instead.
type TriggerEvaluator struct {
	sequences   SequenceStore
	enrollments EnrollmentStore
	leads       LeadStore
	log         *logrus.Entry
}

func NewTriggerEvaluator(sequences SequenceStore, enrollments EnrollmentStore, leads LeadStore) *TriggerEvaluator {
	return &TriggerEvaluator{
		sequences:   sequences,
		enrollments: enrollments,
		leads:       leads,
		log:         logrus.WithField("component", "trigger_evaluator"),
	}
}

// HandleEvent enrolls the lead into every active sequence whose trigger type
// equals the event and whose conditions match the lead. Returns the
// enrollments created.
func (t *TriggerEvaluator) HandleEvent(ctx context.Context, lead *models.Lead, event string) ([]models.SequenceEnrollment, error) {
	sequences, err := t.sequences.ListActiveSequences(ctx)
	if err != nil {
		return nil, err
	}

	var created []models.SequenceEnrollment
	for i := range sequences {
		seq := &sequences[i]
		if seq.TriggerType != event {
			continue
		}
		if !matchConditions(seq, lead) {
			continue
		}
		enrollment, err := t.Enroll(ctx, lead, seq)
		if err != nil {
			t.log.WithError(err).WithFields(logrus.Fields{
				"lead_id":     lead.ID,
				"sequence_id": seq.ID,
			}).Error("creating enrollment")
			continue
		}
		if enrollment != nil {
			created = append(created, *enrollment)
		}
	}
	return created, nil
}

// Enroll creates a single enrollment at step 0, eligible immediately. An
// existing enrollment for the (lead, sequence) pair blocks creation and is
// skipped silently, whatever its status.
func (t *TriggerEvaluator) Enroll(ctx context.Context, lead *models.Lead, seq *models.Sequence) (*models.SequenceEnrollment, error) {
	exists, err := t.enrollments.Exists(ctx, lead.ID, seq.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	enrollment, err := t.enrollments.Create(ctx, lead.ID, seq.ID, time.Now())
	if err != nil {
		return nil, err
	}
	if err := t.sequences.IncrementEnrolled(ctx, seq.ID); err != nil {
		t.log.WithError(err).WithField("sequence_id", seq.ID).Warn("incrementing enrolled counter")
	}
	return enrollment, nil
}

// RunInactivityScan enrolls leads whose last contact predates each
// inactivity sequence's cutoff. Returns the number of enrollments created.
func (t *TriggerEvaluator) RunInactivityScan(ctx context.Context, now time.Time) (int, error) {
	sequences, err := t.sequences.ListActiveSequences(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range sequences {
		seq := &sequences[i]
		if seq.TriggerType != models.TriggerInactivityDays || seq.InactivityDays <= 0 {
			continue
		}

		cutoff := now.AddDate(0, 0, -seq.InactivityDays)
		leads, err := t.leads.ListInactiveLeads(ctx, cutoff)
		if err != nil {
			t.log.WithError(err).WithField("sequence_id", seq.ID).Error("listing inactive leads")
			continue
		}

		for j := range leads {
			lead := &leads[j]
			if !matchConditions(seq, lead) {
				continue
			}
			enrollment, err := t.Enroll(ctx, lead, seq)
			if err != nil {
				t.log.WithError(err).WithFields(logrus.Fields{
					"lead_id":     lead.ID,
					"sequence_id": seq.ID,
				}).Error("enrolling inactive lead")
				continue
			}
			if enrollment != nil {
				created++
			}
		}
	}
	return created, nil
}

// matchConditions applies the sequence's typed trigger conditions with strict
// equality. Nil fields match anything.
func matchConditions(seq *models.Sequence, lead *models.Lead) bool {
	if seq.MatchStatus != nil && *seq.MatchStatus != lead.Status {
		return false
	}
	if seq.MatchQuality != nil && *seq.MatchQuality != lead.Quality {
		return false
	}
	if seq.MatchSource != nil && *seq.MatchSource != lead.Source {
		return false
	}
	return true
}
