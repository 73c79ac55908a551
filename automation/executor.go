package automation

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"leadnest/models"

	"github.com/sirupsen/logrus"
)

// DefaultTaskTitle is used when a task step omits its title.
const DefaultTaskTitle = "Automated Task"

// StepExecutor interprets a single sequence step against a lead and performs
// its side effect. Delay steps never reach the executor; the engine handles
// them without any external call.
type StepExecutor struct {
	leads     LeadStore
	templates TemplateStore
	mailer    Mailer
	messenger Messenger
	log       *logrus.Entry
}

func NewStepExecutor(leads LeadStore, templates TemplateStore, mailer Mailer, messenger Messenger) *StepExecutor {
	return &StepExecutor{
		leads:     leads,
		templates: templates,
		mailer:    mailer,
		messenger: messenger,
		log:       logrus.WithField("component", "step_executor"),
	}
}

// Execute runs one step for one lead. Side effects are attributable to
// exactly one execution: the caller invokes Execute at most once per
// (enrollment, step index) pair in a pass.
func (x *StepExecutor) Execute(ctx context.Context, step models.SequenceStep, lead *models.Lead, sequence *models.Sequence, now time.Time) error {
	switch step.Type {
	case models.StepEmail:
		return x.executeEmail(ctx, step, lead, sequence, now)
	case models.StepWhatsApp:
		return x.executeWhatsApp(ctx, step, lead, sequence, now)
	case models.StepTask:
		return x.executeTask(ctx, step, lead, now)
	default:
		// Unknown step types are a configuration problem, not a batch
		// failure: warn and move on.
		x.log.WithFields(logrus.Fields{
			"step_type": step.Type,
			"lead_id":   lead.ID,
		}).Warn("unrecognized step type, skipping")
		return nil
	}
}

func (x *StepExecutor) executeEmail(ctx context.Context, step models.SequenceStep, lead *models.Lead, sequence *models.Sequence, now time.Time) error {
	if lead.Email == "" {
		return fmt.Errorf("lead %d has no email address", lead.ID)
	}

	subject, body, err := x.renderTemplate(ctx, step.TemplateID, lead, sequence)
	if err != nil {
		return err
	}

	messageID, err := x.mailer.SendEmail(ctx, lead.Email, lead.Name, subject, body)
	if err != nil {
		return fmt.Errorf("sending email to lead %d: %w", lead.ID, err)
	}

	content := fmt.Sprintf("Sequence %q sent email %q (message id %s)", sequence.Name, subject, messageID)
	if err := x.leads.CreateActivity(ctx, lead.ID, "email_sent", content); err != nil {
		x.log.WithError(err).WithField("lead_id", lead.ID).Error("recording email activity")
	}
	x.touchLead(ctx, lead.ID, now)
	return nil
}

func (x *StepExecutor) executeWhatsApp(ctx context.Context, step models.SequenceStep, lead *models.Lead, sequence *models.Sequence, now time.Time) error {
	phone := normalizePhone(lead.Phone)
	if phone == "" {
		return fmt.Errorf("lead %d has no phone number", lead.ID)
	}

	_, body, err := x.renderTemplate(ctx, step.TemplateID, lead, sequence)
	if err != nil {
		return err
	}

	if err := x.messenger.SendWhatsApp(ctx, phone, body); err != nil {
		return fmt.Errorf("sending whatsapp to lead %d: %w", lead.ID, err)
	}

	content := fmt.Sprintf("Sequence %q sent WhatsApp message to %s", sequence.Name, phone)
	if err := x.leads.CreateActivity(ctx, lead.ID, "whatsapp_sent", content); err != nil {
		x.log.WithError(err).WithField("lead_id", lead.ID).Error("recording whatsapp activity")
	}
	x.touchLead(ctx, lead.ID, now)
	return nil
}

func (x *StepExecutor) executeTask(ctx context.Context, step models.SequenceStep, lead *models.Lead, now time.Time) error {
	title := step.TaskTitle
	if title == "" {
		title = DefaultTaskTitle
	}

	// Due at end of today in the server's location.
	dueAt := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())
	if err := x.leads.CreateTask(ctx, lead.ID, title, step.TaskDescription, dueAt); err != nil {
		return fmt.Errorf("creating task for lead %d: %w", lead.ID, err)
	}

	if err := x.leads.CreateActivity(ctx, lead.ID, "task_created", fmt.Sprintf("Task %q created by automation", title)); err != nil {
		x.log.WithError(err).WithField("lead_id", lead.ID).Error("recording task activity")
	}
	return nil
}

// renderTemplate resolves and renders the step's template against the lead.
func (x *StepExecutor) renderTemplate(ctx context.Context, templateID *uint, lead *models.Lead, sequence *models.Sequence) (subject, body string, err error) {
	if templateID == nil {
		return "", "", fmt.Errorf("step has no template reference")
	}

	tmpl, err := x.templates.GetTemplate(ctx, *templateID)
	if err != nil {
		return "", "", fmt.Errorf("resolving template %d: %w", *templateID, err)
	}
	if tmpl == nil {
		return "", "", fmt.Errorf("template %d no longer exists", *templateID)
	}

	data := map[string]string{
		"Name":     lead.Name,
		"Email":    lead.Email,
		"Phone":    lead.Phone,
		"Sequence": sequence.Name,
	}

	body, err = renderText(tmpl.Body, data)
	if err != nil {
		return "", "", fmt.Errorf("rendering template %d body: %w", *templateID, err)
	}
	subject, err = renderText(tmpl.Subject, data)
	if err != nil {
		return "", "", fmt.Errorf("rendering template %d subject: %w", *templateID, err)
	}
	return subject, body, nil
}

func renderText(text string, data map[string]string) (string, error) {
	t, err := template.New("message").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// touchLead updates contact bookkeeping after an outbound message.
func (x *StepExecutor) touchLead(ctx context.Context, leadID uint, now time.Time) {
	if err := x.leads.UpdateLead(ctx, leadID, map[string]interface{}{
		"last_contact_at": now,
	}); err != nil {
		x.log.WithError(err).WithField("lead_id", leadID).Error("updating last contact time")
	}
}

// normalizePhone strips all whitespace from a phone number before handoff to
// the messaging collaborator.
func normalizePhone(phone string) string {
	return strings.Join(strings.Fields(phone), "")
}
