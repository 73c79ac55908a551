package automation

import (
	"context"
	"fmt"
	"time"

	"leadnest/models"

	"github.com/sirupsen/logrus"
)

// Result actions reported in a run summary.
const (
	ActionScheduled = "scheduled" // delay step consumed, next action pushed out
	ActionExecuted  = "executed"  // side-effect step attempted
	ActionCompleted = "completed" // enrollment reached the end of its sequence
	ActionFailed    = "failed"    // lead or sequence could not be resolved
	ActionSkipped   = "skipped"   // claim lost to another scheduler instance
)

// StepResult describes what happened to one enrollment during a run.
type StepResult struct {
	EnrollmentID uint   `json:"enrollment_id"`
	Action       string `json:"action"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

// RunSummary is the structured output of one scheduler pass, returned to the
// invoking trigger for logging and monitoring.
type RunSummary struct {
	Processed int          `json:"processed"`
	Results   []StepResult `json:"results"`
}

// Engine drives all due enrollments one step forward per pass. All
// collaborators are injected; the engine holds no global state.
type Engine struct {
	leads       LeadStore
	sequences   SequenceStore
	enrollments EnrollmentStore
	executor    *StepExecutor

	batchSize   int
	stepTimeout time.Duration
	log         *logrus.Entry
}

func NewEngine(leads LeadStore, sequences SequenceStore, enrollments EnrollmentStore, executor *StepExecutor, batchSize int, stepTimeout time.Duration) *Engine {
	if batchSize <= 0 {
		batchSize = 50
	}
	if stepTimeout <= 0 {
		stepTimeout = 30 * time.Second
	}
	return &Engine{
		leads:       leads,
		sequences:   sequences,
		enrollments: enrollments,
		executor:    executor,
		batchSize:   batchSize,
		stepTimeout: stepTimeout,
		log:         logrus.WithField("component", "automation_engine"),
	}
}

// RunDue processes one batch of due enrollments sequentially. Errors inside a
// single enrollment are contained in its StepResult; only a failure of the
// initial due fetch is returned as a hard error.
func (e *Engine) RunDue(ctx context.Context, now time.Time) (*RunSummary, error) {
	due, err := e.enrollments.ListDue(ctx, now, e.batchSize)
	if err != nil {
		return nil, fmt.Errorf("fetching due enrollments: %w", err)
	}

	summary := &RunSummary{Results: make([]StepResult, 0, len(due))}
	for i := range due {
		if ctx.Err() != nil {
			break
		}
		result := e.processEnrollment(ctx, &due[i], now)
		summary.Results = append(summary.Results, result)
		if result.Action != ActionSkipped {
			summary.Processed++
		}
	}

	e.log.WithFields(logrus.Fields{
		"due":       len(due),
		"processed": summary.Processed,
	}).Info("automation pass finished")

	return summary, nil
}

func (e *Engine) processEnrollment(ctx context.Context, enrollment *models.SequenceEnrollment, now time.Time) StepResult {
	result := StepResult{EnrollmentID: enrollment.ID}

	// Claim the row before doing anything observable so a second scheduler
	// instance scanning the same batch cannot double-execute a step.
	claimed, err := e.enrollments.Claim(ctx, enrollment.ID, now, now.Add(e.stepTimeout))
	if err != nil {
		result.Action = ActionSkipped
		result.Error = err.Error()
		return result
	}
	if !claimed {
		result.Action = ActionSkipped
		return result
	}

	sequence, lead, resolveErr := e.resolve(ctx, enrollment)
	if resolveErr != nil {
		return e.failEnrollment(ctx, enrollment, now, resolveErr)
	}

	// Cursor already past the last step: terminal completion, nothing runs.
	if enrollment.CurrentStepIndex >= len(sequence.Steps) {
		return e.completeEnrollment(ctx, enrollment, now)
	}

	step := sequence.Steps[enrollment.CurrentStepIndex]

	if step.Type == models.StepDelay {
		enrollment.CurrentStepIndex++
		enrollment.NextActionAt = now.Add(time.Duration(step.DelayHours) * time.Hour)
		enrollment.LastActionAt = &now
		if enrollment.CurrentStepIndex >= len(sequence.Steps) {
			enrollment.Status = models.EnrollmentCompleted
			e.markSequenceCompleted(ctx, sequence.ID)
		}
		if err := e.enrollments.Update(ctx, enrollment); err != nil {
			e.log.WithError(err).WithField("enrollment_id", enrollment.ID).Error("persisting delay step")
			result.Action = ActionScheduled
			result.Error = err.Error()
			return result
		}
		e.appendLog(ctx, enrollment, step.Type, ActionScheduled, true, "")
		result.Action = ActionScheduled
		result.Success = true
		return result
	}

	// Side-effect step. The executor runs exactly once per eligible pass;
	// the cursor advances regardless of outcome. Failed steps are NOT
	// retried ("attempted, move on"). Whether a bounded retry would be
	// better is an open policy question; for now a failure is logged and
	// the enrollment keeps moving.
	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	execErr := e.executor.Execute(stepCtx, step, lead, sequence, now)
	cancel()

	enrollment.CurrentStepIndex++
	enrollment.LastActionAt = &now
	if enrollment.CurrentStepIndex >= len(sequence.Steps) {
		enrollment.Status = models.EnrollmentCompleted
		e.markSequenceCompleted(ctx, sequence.ID)
	} else {
		enrollment.NextActionAt = now
	}

	if err := e.enrollments.Update(ctx, enrollment); err != nil {
		e.log.WithError(err).WithField("enrollment_id", enrollment.ID).Error("persisting enrollment state")
	}

	result.Action = ActionExecuted
	if execErr != nil {
		result.Error = execErr.Error()
		e.appendLog(ctx, enrollment, step.Type, ActionExecuted, false, execErr.Error())
		e.log.WithError(execErr).WithFields(logrus.Fields{
			"enrollment_id": enrollment.ID,
			"step_type":     step.Type,
			"step_index":    enrollment.CurrentStepIndex - 1,
		}).Warn("step execution failed, cursor advanced")
	} else {
		result.Success = true
		e.appendLog(ctx, enrollment, step.Type, ActionExecuted, true, "")
	}
	return result
}

// resolve loads the enrollment's sequence and lead. A missing row or a
// deactivated sequence is a resolution error: deactivating a sequence stops
// its in-flight enrollments, it does not just block new ones.
func (e *Engine) resolve(ctx context.Context, enrollment *models.SequenceEnrollment) (*models.Sequence, *models.Lead, error) {
	sequence, err := e.sequences.GetSequence(ctx, enrollment.SequenceID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving sequence %d: %w", enrollment.SequenceID, err)
	}
	if sequence == nil {
		return nil, nil, fmt.Errorf("sequence %d no longer exists", enrollment.SequenceID)
	}
	if !sequence.Active {
		return nil, nil, fmt.Errorf("sequence %d is no longer active", enrollment.SequenceID)
	}

	lead, err := e.leads.GetLead(ctx, enrollment.LeadID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving lead %d: %w", enrollment.LeadID, err)
	}
	if lead == nil {
		return nil, nil, fmt.Errorf("lead %d no longer exists", enrollment.LeadID)
	}

	return sequence, lead, nil
}

func (e *Engine) failEnrollment(ctx context.Context, enrollment *models.SequenceEnrollment, now time.Time, cause error) StepResult {
	enrollment.Status = models.EnrollmentFailed
	enrollment.LastActionAt = &now
	if err := e.enrollments.Update(ctx, enrollment); err != nil {
		e.log.WithError(err).WithField("enrollment_id", enrollment.ID).Error("marking enrollment failed")
	}
	e.appendLog(ctx, enrollment, "", ActionFailed, false, cause.Error())
	return StepResult{
		EnrollmentID: enrollment.ID,
		Action:       ActionFailed,
		Error:        cause.Error(),
	}
}

func (e *Engine) completeEnrollment(ctx context.Context, enrollment *models.SequenceEnrollment, now time.Time) StepResult {
	enrollment.Status = models.EnrollmentCompleted
	enrollment.LastActionAt = &now
	if err := e.enrollments.Update(ctx, enrollment); err != nil {
		e.log.WithError(err).WithField("enrollment_id", enrollment.ID).Error("marking enrollment completed")
	}
	e.markSequenceCompleted(ctx, enrollment.SequenceID)
	e.appendLog(ctx, enrollment, "", ActionCompleted, true, "")
	return StepResult{
		EnrollmentID: enrollment.ID,
		Action:       ActionCompleted,
		Success:      true,
	}
}

func (e *Engine) markSequenceCompleted(ctx context.Context, sequenceID uint) {
	if err := e.sequences.IncrementCompleted(ctx, sequenceID); err != nil {
		e.log.WithError(err).WithField("sequence_id", sequenceID).Warn("incrementing completion counter")
	}
}

func (e *Engine) appendLog(ctx context.Context, enrollment *models.SequenceEnrollment, stepType, action string, success bool, errDetail string) {
	entry := &models.AutomationLog{
		EnrollmentID: enrollment.ID,
		LeadID:       enrollment.LeadID,
		StepType:     stepType,
		Action:       action,
		Success:      success,
		Error:        errDetail,
		ExecutedAt:   time.Now(),
	}
	if err := e.enrollments.AppendLog(ctx, entry); err != nil {
		e.log.WithError(err).WithField("enrollment_id", enrollment.ID).Error("appending automation log")
	}
}
