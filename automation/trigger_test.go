package automation

import (
	"context"
	"testing"
	"time"

	"leadnest/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestHandleEventEnrollsMatchingSequences(t *testing.T) {
	store := newFakeStore()
	lead := store.addLead(1, models.Lead{
		Name: "Anna", Email: "anna@example.com",
		Status: models.LeadStatusNew, Quality: models.LeadQualityHot, Source: "portal",
	})

	store.addSequence(10, models.Sequence{
		Name: "All new leads", TriggerType: models.TriggerNewLead, Active: true,
	})
	store.addSequence(11, models.Sequence{
		Name: "Hot portal leads", TriggerType: models.TriggerNewLead, Active: true,
		MatchQuality: strPtr(models.LeadQualityHot), MatchSource: strPtr("portal"),
	})
	store.addSequence(12, models.Sequence{
		Name: "Cold only", TriggerType: models.TriggerNewLead, Active: true,
		MatchQuality: strPtr(models.LeadQualityCold),
	})
	store.addSequence(13, models.Sequence{
		Name: "Inactive sequence", TriggerType: models.TriggerNewLead, Active: false,
	})
	store.addSequence(14, models.Sequence{
		Name: "Status change watcher", TriggerType: models.TriggerStatusChange, Active: true,
	})

	triggers := NewTriggerEvaluator(store, store, store)
	created, err := triggers.HandleEvent(context.Background(), lead, models.TriggerNewLead)
	require.NoError(t, err)
	require.Len(t, created, 2)

	enrolled := map[uint]bool{}
	for _, e := range created {
		enrolled[e.SequenceID] = true
		assert.Equal(t, lead.ID, e.LeadID)
		assert.Equal(t, 0, e.CurrentStepIndex)
		assert.Equal(t, models.EnrollmentActive, e.Status)
	}
	assert.True(t, enrolled[10])
	assert.True(t, enrolled[11])
	assert.False(t, enrolled[12], "quality mismatch must not enroll")
	assert.False(t, enrolled[13], "inactive sequence must not enroll")
	assert.False(t, enrolled[14], "different trigger type must not enroll")

	assert.Equal(t, 1, store.enrolledCounts[10])
	assert.Equal(t, 1, store.enrolledCounts[11])
}

func TestHandleEventNewEnrollmentIsImmediatelyEligible(t *testing.T) {
	store := newFakeStore()
	lead := store.addLead(1, models.Lead{Name: "Anna", Status: models.LeadStatusNew})
	store.addSequence(10, models.Sequence{
		Name: "Welcome", TriggerType: models.TriggerNewLead, Active: true,
	})

	triggers := NewTriggerEvaluator(store, store, store)
	before := time.Now()
	created, err := triggers.HandleEvent(context.Background(), lead, models.TriggerNewLead)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.False(t, created[0].NextActionAt.Before(before))
	assert.False(t, created[0].NextActionAt.After(time.Now()))
}

func TestEnrollSkipsExistingEnrollmentWhateverStatus(t *testing.T) {
	store := newFakeStore()
	lead := store.addLead(1, models.Lead{Name: "Anna"})
	seq := store.addSequence(10, models.Sequence{Name: "Welcome", Active: true})

	store.addEnrollment(models.SequenceEnrollment{
		LeadID: 1, SequenceID: 10, Status: models.EnrollmentCompleted,
	})

	triggers := NewTriggerEvaluator(store, store, store)
	enrollment, err := triggers.Enroll(context.Background(), lead, seq)
	require.NoError(t, err)
	assert.Nil(t, enrollment, "completed enrollment still blocks re-enrollment")
	assert.Zero(t, store.enrolledCounts[10])
	assert.Len(t, store.enrollments, 1)
}

func TestHandleEventStatusChangeMatchesNewStatus(t *testing.T) {
	store := newFakeStore()
	lead := store.addLead(1, models.Lead{
		Name: "Anna", Status: models.LeadStatusQualified, Quality: models.LeadQualityWarm,
	})
	store.addSequence(10, models.Sequence{
		Name: "Qualified follow-up", TriggerType: models.TriggerStatusChange, Active: true,
		MatchStatus: strPtr(models.LeadStatusQualified),
	})
	store.addSequence(11, models.Sequence{
		Name: "Negotiation follow-up", TriggerType: models.TriggerStatusChange, Active: true,
		MatchStatus: strPtr(models.LeadStatusNegotiating),
	})

	triggers := NewTriggerEvaluator(store, store, store)
	created, err := triggers.HandleEvent(context.Background(), lead, models.TriggerStatusChange)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, uint(10), created[0].SequenceID)
}

func TestRunInactivityScanEnrollsStaleLeads(t *testing.T) {
	store := newFakeStore()
	now := testClock()

	stale := now.AddDate(0, 0, -10)
	fresh := now.AddDate(0, 0, -2)
	store.addLead(1, models.Lead{Name: "Stale", Status: models.LeadStatusContacted, LastContactAt: &stale})
	store.addLead(2, models.Lead{Name: "Fresh", Status: models.LeadStatusContacted, LastContactAt: &fresh})
	wonStale := stale
	store.addLead(3, models.Lead{Name: "Won", Status: models.LeadStatusWon, LastContactAt: &wonStale})

	store.addSequence(10, models.Sequence{
		Name: "Reactivation", TriggerType: models.TriggerInactivityDays,
		InactivityDays: 7, Active: true,
	})

	triggers := NewTriggerEvaluator(store, store, store)
	created, err := triggers.RunInactivityScan(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	require.Len(t, store.enrollments, 1)
	for _, e := range store.enrollments {
		assert.Equal(t, uint(1), e.LeadID)
		assert.Equal(t, uint(10), e.SequenceID)
	}
}

func TestRunInactivityScanIsIdempotent(t *testing.T) {
	store := newFakeStore()
	now := testClock()

	stale := now.AddDate(0, 0, -10)
	store.addLead(1, models.Lead{Name: "Stale", Status: models.LeadStatusContacted, LastContactAt: &stale})
	store.addSequence(10, models.Sequence{
		Name: "Reactivation", TriggerType: models.TriggerInactivityDays,
		InactivityDays: 7, Active: true,
	})

	triggers := NewTriggerEvaluator(store, store, store)
	created, err := triggers.RunInactivityScan(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	// A second scan on the same data must not double-enroll.
	created, err = triggers.RunInactivityScan(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Len(t, store.enrollments, 1)
}

func TestRunInactivityScanIgnoresMisconfiguredSequences(t *testing.T) {
	store := newFakeStore()
	now := testClock()

	stale := now.AddDate(0, 0, -30)
	store.addLead(1, models.Lead{Name: "Stale", Status: models.LeadStatusContacted, LastContactAt: &stale})
	store.addSequence(10, models.Sequence{
		Name: "Broken", TriggerType: models.TriggerInactivityDays,
		InactivityDays: 0, Active: true,
	})

	triggers := NewTriggerEvaluator(store, store, store)
	created, err := triggers.RunInactivityScan(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Empty(t, store.enrollments)
}

func TestMatchConditionsStrictEquality(t *testing.T) {
	lead := &models.Lead{Status: models.LeadStatusNew, Quality: models.LeadQualityHot, Source: "portal"}

	assert.True(t, matchConditions(&models.Sequence{}, lead), "nil conditions match anything")
	assert.True(t, matchConditions(&models.Sequence{
		MatchStatus:  strPtr(models.LeadStatusNew),
		MatchQuality: strPtr(models.LeadQualityHot),
		MatchSource:  strPtr("portal"),
	}, lead))
	assert.False(t, matchConditions(&models.Sequence{MatchStatus: strPtr(models.LeadStatusWon)}, lead))
	assert.False(t, matchConditions(&models.Sequence{MatchQuality: strPtr(models.LeadQualityCold)}, lead))
	assert.False(t, matchConditions(&models.Sequence{MatchSource: strPtr("referral")}, lead))
}
