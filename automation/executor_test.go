package automation

import (
	"context"
	"testing"

	"leadnest/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteEmailRendersTemplatePlaceholders(t *testing.T) {
	store := newFakeStore()
	mailer := &fakeMailer{}
	now := testClock()

	lead := store.addLead(1, models.Lead{Name: "Clara Fischer", Email: "clara@example.com", Phone: "+49 30 111"})
	seq := store.addSequence(10, models.Sequence{Name: "Buyer Onboarding"})
	store.addTemplate(5, models.MessageTemplate{
		Channel: "email",
		Subject: "{{.Name}}, about your search",
		Body:    "Hi {{.Name}} ({{.Email}}), welcome to {{.Sequence}}.",
	})

	executor := NewStepExecutor(store, store, mailer, &fakeMessenger{})
	err := executor.Execute(context.Background(),
		models.SequenceStep{Type: models.StepEmail, TemplateID: uintPtr(5)}, lead, seq, now)
	require.NoError(t, err)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Clara Fischer, about your search", mailer.sent[0].Subject)
	assert.Equal(t, "Hi Clara Fischer (clara@example.com), welcome to Buyer Onboarding.", mailer.sent[0].Body)
}

func TestExecuteEmailRequiresAddressAndTemplate(t *testing.T) {
	store := newFakeStore()
	mailer := &fakeMailer{}
	now := testClock()
	seq := store.addSequence(10, models.Sequence{Name: "Welcome"})
	store.addTemplate(5, models.MessageTemplate{Subject: "Hi", Body: "Hi"})
	executor := NewStepExecutor(store, store, mailer, &fakeMessenger{})

	noEmail := store.addLead(1, models.Lead{Name: "Anon"})
	err := executor.Execute(context.Background(),
		models.SequenceStep{Type: models.StepEmail, TemplateID: uintPtr(5)}, noEmail, seq, now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no email address")

	lead := store.addLead(2, models.Lead{Name: "Anna", Email: "anna@example.com"})
	err = executor.Execute(context.Background(),
		models.SequenceStep{Type: models.StepEmail}, lead, seq, now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no template reference")

	err = executor.Execute(context.Background(),
		models.SequenceStep{Type: models.StepEmail, TemplateID: uintPtr(404)}, lead, seq, now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template 404 no longer exists")

	assert.Empty(t, mailer.sent)
}

func TestExecuteWhatsAppNormalizesPhone(t *testing.T) {
	store := newFakeStore()
	messenger := &fakeMessenger{}
	now := testClock()

	lead := store.addLead(1, models.Lead{Name: "Anna", Phone: "+49 171 234 5678"})
	seq := store.addSequence(10, models.Sequence{Name: "Nudge"})
	store.addTemplate(6, models.MessageTemplate{Channel: "whatsapp", Body: "Hi {{.Name}}"})

	executor := NewStepExecutor(store, store, &fakeMailer{}, messenger)
	err := executor.Execute(context.Background(),
		models.SequenceStep{Type: models.StepWhatsApp, TemplateID: uintPtr(6)}, lead, seq, now)
	require.NoError(t, err)

	require.Len(t, messenger.sent, 1)
	assert.Equal(t, "+491712345678", messenger.sent[0].Phone)
	assert.Equal(t, "Hi Anna", messenger.sent[0].Body)
	require.Len(t, store.activities, 1)
	assert.Equal(t, "whatsapp_sent", store.activities[0].ActivityType)
}

func TestExecuteWhatsAppRequiresPhone(t *testing.T) {
	store := newFakeStore()
	messenger := &fakeMessenger{}
	lead := store.addLead(1, models.Lead{Name: "Anna", Phone: "   "})
	seq := store.addSequence(10, models.Sequence{Name: "Nudge"})
	store.addTemplate(6, models.MessageTemplate{Body: "Hi"})

	executor := NewStepExecutor(store, store, &fakeMailer{}, messenger)
	err := executor.Execute(context.Background(),
		models.SequenceStep{Type: models.StepWhatsApp, TemplateID: uintPtr(6)}, lead, seq, testClock())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no phone number")
	assert.Empty(t, messenger.sent)
}

func TestExecuteTaskUsesDefaultTitle(t *testing.T) {
	store := newFakeStore()
	now := testClock()
	lead := store.addLead(1, models.Lead{Name: "Anna"})
	seq := store.addSequence(10, models.Sequence{Name: "Manual follow-up"})

	executor := NewStepExecutor(store, store, &fakeMailer{}, &fakeMessenger{})
	err := executor.Execute(context.Background(),
		models.SequenceStep{Type: models.StepTask, TaskDescription: "Check in by phone"}, lead, seq, now)
	require.NoError(t, err)

	require.Len(t, store.tasks, 1)
	assert.Equal(t, DefaultTaskTitle, store.tasks[0].Title)
	assert.Equal(t, "Check in by phone", store.tasks[0].Description)

	// Due at end of the current day.
	require.NotNil(t, store.tasks[0].DueAt)
	due := *store.tasks[0].DueAt
	assert.Equal(t, now.Year(), due.Year())
	assert.Equal(t, now.Day(), due.Day())
	assert.Equal(t, 23, due.Hour())
	assert.Equal(t, 59, due.Minute())
}

func TestExecuteUnknownStepTypeIsNoop(t *testing.T) {
	store := newFakeStore()
	mailer := &fakeMailer{}
	messenger := &fakeMessenger{}
	lead := store.addLead(1, models.Lead{Name: "Anna"})
	seq := store.addSequence(10, models.Sequence{Name: "Odd"})

	executor := NewStepExecutor(store, store, mailer, messenger)
	err := executor.Execute(context.Background(),
		models.SequenceStep{Type: "carrier_pigeon"}, lead, seq, testClock())
	require.NoError(t, err)
	assert.Empty(t, mailer.sent)
	assert.Empty(t, messenger.sent)
	assert.Empty(t, store.tasks)
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"+49 171 234":    "+49171234",
		"  0171 234567 ": "0171234567",
		"+491712345678":  "+491712345678",
		"":               "",
		"   ":            "",
	}
	for input, want := range cases {
		assert.Equal(t, want, normalizePhone(input), "input %q", input)
	}
}

func TestRenderTextRejectsBrokenTemplate(t *testing.T) {
	_, err := renderText("Hi {{.Name", map[string]string{"Name": "Anna"})
	require.Error(t, err)

	out, err := renderText("Hi {{.Name}}", map[string]string{"Name": "Anna"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Anna", out)
}

func TestExecuteEmailUpdatesLastContact(t *testing.T) {
	store := newFakeStore()
	now := testClock()
	lead := store.addLead(1, models.Lead{Name: "Anna", Email: "anna@example.com"})
	seq := store.addSequence(10, models.Sequence{Name: "Welcome"})
	store.addTemplate(5, models.MessageTemplate{Subject: "Hi", Body: "Hi"})

	executor := NewStepExecutor(store, store, &fakeMailer{}, &fakeMessenger{})
	err := executor.Execute(context.Background(),
		models.SequenceStep{Type: models.StepEmail, TemplateID: uintPtr(5)}, lead, seq, now)
	require.NoError(t, err)

	require.NotNil(t, store.leads[1].LastContactAt)
	assert.True(t, store.leads[1].LastContactAt.Equal(now))
}

func TestExecuteTaskDoesNotTouchLastContact(t *testing.T) {
	store := newFakeStore()
	lead := store.addLead(1, models.Lead{Name: "Anna"})
	seq := store.addSequence(10, models.Sequence{Name: "Welcome"})

	executor := NewStepExecutor(store, store, &fakeMailer{}, &fakeMessenger{})
	err := executor.Execute(context.Background(),
		models.SequenceStep{Type: models.StepTask, TaskTitle: "Call"}, lead, seq, testClock())
	require.NoError(t, err)

	// Tasks are internal reminders, not outbound contact.
	assert.Nil(t, store.leads[1].LastContactAt)
}
