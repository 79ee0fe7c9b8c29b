package repository_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/waseller/campaign-engine/internal/errors"
	"github.com/waseller/campaign-engine/internal/model"
	"github.com/waseller/campaign-engine/internal/repository"
)

func newCampaignRepo(t *testing.T) *repository.CampaignRepository {
	return &repository.CampaignRepository{DB: newTestDB(t)}
}

func draftCampaign(name string) *model.Campaign {
	return &model.Campaign{
		Name: name,
		Message: model.MessageSpec{
			Kind: model.MessageKindText,
			Body: "Flash sale today!",
		},
		Audience:      model.AudienceSpec{Kind: model.AudienceAll},
		RatePerMinute: 30,
	}
}

func TestCampaignCreateAndGet(t *testing.T) {
	repo := newCampaignRepo(t)

	c := draftCampaign("summer-sale")
	c.Message = model.MessageSpec{
		Kind:    model.MessageKindButtons,
		Body:    "Pick a size",
		Buttons: []model.Button{{ID: "s", Title: "Small"}, {ID: "l", Title: "Large"}},
	}
	c.Audience = model.AudienceSpec{Kind: model.AudienceLabels, Labels: []string{"vip", "repeat"}}

	require.NoError(t, repo.Create(c))
	require.NotZero(t, c.ID)

	got, err := repo.GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "summer-sale", got.Name)
	assert.Equal(t, model.CampaignStatusDraft, got.Status)
	assert.Equal(t, model.MessageKindButtons, got.Message.Kind)
	require.Len(t, got.Message.Buttons, 2)
	assert.Equal(t, "Small", got.Message.Buttons[0].Title)
	assert.Equal(t, []string{"vip", "repeat"}, got.Audience.Labels)
	assert.Equal(t, model.AudienceLabels, got.Audience.Kind)
}

func TestCampaignGetNotFound(t *testing.T) {
	repo := newCampaignRepo(t)

	_, err := repo.GetByID(42)
	var notFound *appErrors.ErrCampaignNotFound
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, 42, notFound.CampaignID)
}

func TestCampaignListFiltersByStatus(t *testing.T) {
	repo := newCampaignRepo(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(draftCampaign("draft")))
	}
	scheduled := draftCampaign("scheduled")
	scheduled.Status = model.CampaignStatusScheduled
	scheduled.ScheduledAt = timePtr(time.Now().UTC().Add(time.Hour))
	require.NoError(t, repo.Create(scheduled))

	all, total, err := repo.List(0, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, all, 4)
	// Newest first.
	assert.Greater(t, all[0].ID, all[1].ID)

	drafts, total, err := repo.List(0, 10, model.CampaignStatusDraft)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, drafts, 3)
}

func TestCampaignTransitionTable(t *testing.T) {
	repo := newCampaignRepo(t)

	c := draftCampaign("transitions")
	require.NoError(t, repo.Create(c))

	require.NoError(t, repo.Transition(c.ID, model.CampaignStatusDraft, model.CampaignStatusSending))
	require.NoError(t, repo.Transition(c.ID, model.CampaignStatusSending, model.CampaignStatusPaused))
	require.NoError(t, repo.Transition(c.ID, model.CampaignStatusPaused, model.CampaignStatusSending))
	require.NoError(t, repo.Transition(c.ID, model.CampaignStatusSending, model.CampaignStatusCompleted))

	// Completed can be reopened for a failed-recipient retry.
	require.NoError(t, repo.Transition(c.ID, model.CampaignStatusCompleted, model.CampaignStatusSending))

	// Failed is terminal.
	dead := draftCampaign("dead")
	require.NoError(t, repo.Create(dead))
	require.NoError(t, repo.Transition(dead.ID, model.CampaignStatusDraft, model.CampaignStatusFailed))
	err := repo.Transition(dead.ID, model.CampaignStatusFailed, model.CampaignStatusSending)
	var invalid *appErrors.ErrInvalidTransition
	require.True(t, errors.As(err, &invalid))
}

func TestReopenAfterFailedRequeue(t *testing.T) {
	conn := newTestDB(t)
	campaigns := &repository.CampaignRepository{DB: conn}
	recipients := &repository.RecipientRepository{DB: conn}
	now := time.Now().UTC().Truncate(time.Second)

	c := draftCampaign("retry-me")
	require.NoError(t, campaigns.Create(c))
	require.NoError(t, campaigns.SetTargetCount(c.ID, 2))
	require.NoError(t, campaigns.Transition(c.ID, model.CampaignStatusDraft, model.CampaignStatusSending))

	_, err := recipients.Enroll(c.ID, []string{"919800000001", "919800000002"})
	require.NoError(t, err)
	pending, err := recipients.ListPending(c.ID, 10)
	require.NoError(t, err)
	for _, r := range pending {
		require.NoError(t, recipients.MarkFailed(r.ID, "number unreachable", now))
		require.NoError(t, campaigns.IncrementFailed(c.ID))
	}
	require.NoError(t, campaigns.Transition(c.ID, model.CampaignStatusSending, model.CampaignStatusCompleted))
	require.NoError(t, campaigns.MarkCompleted(c.ID, now))

	n, err := recipients.RequeueFailed(c.ID)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.NoError(t, campaigns.DecrementFailed(c.ID, n))
	require.NoError(t, campaigns.Transition(c.ID, model.CampaignStatusCompleted, model.CampaignStatusSending))

	got, err := campaigns.GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusSending, got.Status)
	assert.Nil(t, got.CompletedAt)
	assert.Zero(t, got.FailedCount)

	// The requeued rows count as outstanding again, so the counters
	// reconcile against the target.
	outstanding, err := recipients.OutstandingCount(c.ID)
	require.NoError(t, err)
	assert.Equal(t, got.TargetCount, got.SentCount+got.FailedCount+outstanding)
}

func TestDecrementFailedNeverGoesNegative(t *testing.T) {
	repo := newCampaignRepo(t)

	c := draftCampaign("floor")
	require.NoError(t, repo.Create(c))
	require.NoError(t, repo.IncrementFailed(c.ID))

	// Decrementing past zero leaves the counter untouched.
	require.NoError(t, repo.DecrementFailed(c.ID, 5))
	got, err := repo.GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.FailedCount)

	require.NoError(t, repo.DecrementFailed(c.ID, 1))
	got, err = repo.GetByID(c.ID)
	require.NoError(t, err)
	assert.Zero(t, got.FailedCount)
}

func TestCampaignTransitionIsConditional(t *testing.T) {
	repo := newCampaignRepo(t)

	c := draftCampaign("race")
	require.NoError(t, repo.Create(c))

	require.NoError(t, repo.Transition(c.ID, model.CampaignStatusDraft, model.CampaignStatusSending))

	// A second caller holding the stale draft status loses.
	err := repo.Transition(c.ID, model.CampaignStatusDraft, model.CampaignStatusSending)
	var invalid *appErrors.ErrInvalidTransition
	require.True(t, errors.As(err, &invalid))

	got, err := repo.GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusSending, got.Status)
}

func TestCampaignListScheduledDue(t *testing.T) {
	repo := newCampaignRepo(t)
	now := time.Now().UTC()

	due := draftCampaign("due")
	due.Status = model.CampaignStatusScheduled
	due.ScheduledAt = timePtr(now.Add(-time.Minute))
	require.NoError(t, repo.Create(due))

	future := draftCampaign("future")
	future.Status = model.CampaignStatusScheduled
	future.ScheduledAt = timePtr(now.Add(time.Hour))
	require.NoError(t, repo.Create(future))

	require.NoError(t, repo.Create(draftCampaign("unscheduled-draft")))

	got, err := repo.ListScheduledDue(now, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due.ID, got[0].ID)
}

func TestCampaignCountersAndTimestamps(t *testing.T) {
	repo := newCampaignRepo(t)
	now := time.Now().UTC().Truncate(time.Second)

	c := draftCampaign("counters")
	require.NoError(t, repo.Create(c))

	require.NoError(t, repo.SetTargetCount(c.ID, 25))
	require.NoError(t, repo.IncrementSent(c.ID))
	require.NoError(t, repo.IncrementSent(c.ID))
	require.NoError(t, repo.IncrementFailed(c.ID))
	require.NoError(t, repo.MarkStarted(c.ID, now))
	// MarkStarted is write-once.
	require.NoError(t, repo.MarkStarted(c.ID, now.Add(time.Hour)))

	got, err := repo.GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, got.TargetCount)
	assert.Equal(t, 2, got.SentCount)
	assert.Equal(t, 1, got.FailedCount)
	require.NotNil(t, got.StartedAt)
	assert.True(t, got.StartedAt.Equal(now))
}

func TestCampaignUpdateAndDelete(t *testing.T) {
	repo := newCampaignRepo(t)

	c := draftCampaign("editable")
	require.NoError(t, repo.Create(c))

	c.Name = "renamed"
	c.Message.Body = "New copy"
	require.NoError(t, repo.Update(c))

	got, err := repo.GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, "New copy", got.Message.Body)

	require.NoError(t, repo.Delete(c.ID))
	_, err = repo.GetByID(c.ID)
	var notFound *appErrors.ErrCampaignNotFound
	assert.True(t, errors.As(err, &notFound))

	// Deleting again reports not found.
	err = repo.Delete(c.ID)
	assert.True(t, errors.As(err, &notFound))
}
