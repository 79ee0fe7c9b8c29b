// internal/service/campaign_service.go
package service

import (
	"time"

	"github.com/rs/zerolog/log"

	appErrors "github.com/waseller/campaign-engine/internal/errors"
	"github.com/waseller/campaign-engine/internal/model"
	"github.com/waseller/campaign-engine/internal/repository"
)

type CampaignService struct {
	CampaignRepo  repository.CampaignRepositoryInterface
	RecipientRepo repository.RecipientRepositoryInterface
	Resolver      *AudienceResolver
	Now           func() time.Time
}

func (s *CampaignService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// CreateCampaignInput is the control-API payload for create and update.
type CreateCampaignInput struct {
	Name          string             `json:"name"`
	Message       model.MessageSpec  `json:"message"`
	Audience      model.AudienceSpec `json:"audience"`
	RatePerMinute int                `json:"rate_per_minute"`
	ScheduledAt   *time.Time         `json:"scheduled_at,omitempty"`
}

func validateInput(in CreateCampaignInput) error {
	if in.Name == "" {
		return appErrors.NewValidation("name", "is required")
	}
	switch in.Message.Kind {
	case model.MessageKindText:
		if in.Message.Body == "" {
			return appErrors.NewValidation("message", "text campaigns need a body")
		}
	case model.MessageKindTemplate:
		if in.Message.TemplateName == "" {
			return appErrors.NewValidation("message", "template campaigns need a template name")
		}
	case model.MessageKindImage:
		if in.Message.MediaURL == "" {
			return appErrors.NewValidation("message", "image campaigns need a media url")
		}
	case model.MessageKindButtons:
		if in.Message.Body == "" || len(in.Message.Buttons) == 0 {
			return appErrors.NewValidation("message", "buttons campaigns need a body and at least one button")
		}
	default:
		return appErrors.NewValidation("message", "unknown kind: "+in.Message.Kind)
	}
	return validateAudience(in.Audience)
}

// Create validates and persists a new campaign in draft, or scheduled when a
// scheduled_at is supplied. The returned count is an audience preview; the
// real target_count is fixed later, at enrollment.
func (s *CampaignService) Create(in CreateCampaignInput) (*model.Campaign, int, error) {
	if err := validateInput(in); err != nil {
		return nil, 0, err
	}

	preview, err := s.Resolver.Count(in.Audience)
	if err != nil {
		return nil, 0, err
	}

	c := &model.Campaign{
		Name:          in.Name,
		Message:       in.Message,
		Audience:      in.Audience,
		RatePerMinute: in.RatePerMinute,
		Status:        model.CampaignStatusDraft,
		ScheduledAt:   in.ScheduledAt,
	}
	if in.ScheduledAt != nil {
		c.Status = model.CampaignStatusScheduled
	}
	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, 0, err
	}
	return c, preview, nil
}

// Update mutates a campaign that has not started sending yet.
func (s *CampaignService) Update(id int, in CreateCampaignInput) (*model.Campaign, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	c, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CampaignStatusDraft && c.Status != model.CampaignStatusScheduled {
		return nil, appErrors.NewInvalidTransition(id, c.Status, c.Status)
	}

	c.Name = in.Name
	c.Message = in.Message
	c.Audience = in.Audience
	c.RatePerMinute = in.RatePerMinute
	c.ScheduledAt = in.ScheduledAt
	if in.ScheduledAt != nil {
		c.Status = model.CampaignStatusScheduled
	} else {
		c.Status = model.CampaignStatusDraft
	}
	if err := s.CampaignRepo.Update(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CampaignService) Delete(id int) error {
	return s.CampaignRepo.Delete(id)
}

// List returns a page of campaigns. The offset is applied as given, not
// rounded to a page boundary.
func (s *CampaignService) List(offset, limit int, status string) ([]*model.Campaign, map[string]int, error) {
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	campaigns, total, err := s.CampaignRepo.List(offset, limit, status)
	if err != nil {
		return nil, nil, err
	}

	pagination := map[string]int{
		"limit":       limit,
		"offset":      offset,
		"total_count": total,
		"total_pages": (total + limit - 1) / limit,
	}
	return campaigns, pagination, nil
}

// GetWithStats returns a campaign plus live per-status recipient counts.
func (s *CampaignService) GetWithStats(id int) (*model.CampaignWithStats, error) {
	c, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	stats, err := s.RecipientRepo.CountByStatus(id)
	if err != nil {
		return nil, err
	}
	return &model.CampaignWithStats{Campaign: *c, Stats: stats}, nil
}

// Preview resolves only the audience count for a target spec.
func (s *CampaignService) Preview(spec model.AudienceSpec) (int, error) {
	return s.Resolver.Count(spec)
}

// Start enrolls the campaign's audience and moves it to sending. Enrollment
// is idempotent: phones already enrolled are skipped and target_count is
// recomputed from the persisted recipient rows, so calling Start twice
// neither duplicates recipients nor changes the target. An empty audience
// fails the campaign outright.
func (s *CampaignService) Start(id int) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CampaignStatusDraft && c.Status != model.CampaignStatusScheduled {
		return nil, appErrors.NewInvalidTransition(id, c.Status, model.CampaignStatusSending)
	}

	phones, err := s.Resolver.Resolve(c.Audience)
	if err != nil {
		return nil, err
	}
	if len(phones) == 0 {
		if terr := s.CampaignRepo.Transition(id, c.Status, model.CampaignStatusFailed); terr != nil {
			return nil, terr
		}
		log.Warn().Int("campaign_id", id).Msg("campaign failed: empty audience")
		return nil, appErrors.NewEmptyAudience(id)
	}

	count, err := s.RecipientRepo.Enroll(id, phones)
	if err != nil {
		return nil, err
	}
	if err := s.CampaignRepo.SetTargetCount(id, count); err != nil {
		return nil, err
	}
	if err := s.CampaignRepo.Transition(id, c.Status, model.CampaignStatusSending); err != nil {
		return nil, err
	}
	if err := s.CampaignRepo.MarkStarted(id, s.now()); err != nil {
		return nil, err
	}

	log.Info().Int("campaign_id", id).Int("target_count", count).Msg("campaign enrolled and sending")
	return s.CampaignRepo.GetByID(id)
}

// RetryFailed returns a campaign's failed recipients to pending for another
// dispatch attempt. failed_count is compensated by the number of rows
// requeued, and a completed campaign is reopened to sending so the
// orchestrator picks the rows up again.
func (s *CampaignService) RetryFailed(id int) (int, error) {
	c, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return 0, err
	}

	n, err := s.RecipientRepo.RequeueFailed(id)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	if err := s.CampaignRepo.DecrementFailed(id, n); err != nil {
		return n, err
	}
	if c.Status == model.CampaignStatusCompleted {
		if err := s.CampaignRepo.Transition(id, model.CampaignStatusCompleted, model.CampaignStatusSending); err != nil {
			return n, err
		}
	}

	log.Info().Int("campaign_id", id).Int("requeued", n).Msg("failed recipients requeued")
	return n, nil
}

// Pause stops new batches; recipients already in the active batch complete.
func (s *CampaignService) Pause(id int) error {
	return s.CampaignRepo.Transition(id, model.CampaignStatusSending, model.CampaignStatusPaused)
}

func (s *CampaignService) Resume(id int) error {
	return s.CampaignRepo.Transition(id, model.CampaignStatusPaused, model.CampaignStatusSending)
}

// Recipients lists recipient rows for a campaign joined with customer names.
func (s *CampaignService) Recipients(id int, status string, offset, limit int) ([]*model.RecipientWithCustomer, map[string]int, error) {
	if limit < 1 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	// 404 for unknown campaigns rather than an empty page.
	if _, err := s.CampaignRepo.GetByID(id); err != nil {
		return nil, nil, err
	}

	rows, total, err := s.RecipientRepo.ListByCampaign(id, status, offset, limit)
	if err != nil {
		return nil, nil, err
	}
	pagination := map[string]int{
		"limit":       limit,
		"offset":      offset,
		"total_count": total,
		"total_pages": (total + limit - 1) / limit,
	}
	return rows, pagination, nil
}
