// internal/service/dispatcher.go
package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/waseller/campaign-engine/internal/gateway"
	"github.com/waseller/campaign-engine/internal/model"
	"github.com/waseller/campaign-engine/internal/repository"
)

// Sender is the outbound gateway surface the engine depends on.
type Sender interface {
	SendText(ctx context.Context, phone, text string) (*gateway.SendResult, error)
	SendTemplate(ctx context.Context, phone, name string, params []string) (*gateway.SendResult, error)
	SendImage(ctx context.Context, phone, mediaURL, caption string) (*gateway.SendResult, error)
	SendButtons(ctx context.Context, phone, body string, buttons []model.Button) (*gateway.SendResult, error)
}

// DefaultRate is the messages-per-minute throttle applied when a campaign
// has none configured.
const DefaultRate = 30

// maxBatchSize caps how many recipients one drain may touch.
const maxBatchSize = 50

// Dispatcher drains pending recipients for a sending campaign at a bounded
// rate, recording the outcome per recipient.
type Dispatcher struct {
	Campaigns  repository.CampaignRepositoryInterface
	Recipients repository.RecipientRepositoryInterface
	Sender     Sender

	// Sleep and Now are injectable for tests; nil means the real clock.
	Sleep func(time.Duration)
	Now   func() time.Time
}

// DrainResult summarizes one dispatch batch.
type DrainResult struct {
	Sent      int
	Failed    int
	Skipped   int
	Completed bool
}

func (d *Dispatcher) sleep(dur time.Duration) {
	if d.Sleep != nil {
		d.Sleep(dur)
		return
	}
	time.Sleep(dur)
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

// sendInterval is the pause between consecutive sends for a rate,
// ceil(60000/rate) milliseconds.
func sendInterval(rate int) time.Duration {
	if rate <= 0 {
		rate = DefaultRate
	}
	ms := (60000 + rate - 1) / rate
	return time.Duration(ms) * time.Millisecond
}

// batchSize bounds one drain to roughly five minutes of sending at the
// campaign's rate.
func batchSize(rate int) int {
	if rate <= 0 {
		rate = DefaultRate
	}
	n := (rate*5 + 59) / 60
	if n > maxBatchSize {
		return maxBatchSize
	}
	if n < 1 {
		return 1
	}
	return n
}

// Drain fetches up to one batch of pending recipients and sends to each in
// retrieval order. Every recipient is claimed with a conditional update
// before sending, so overlapping invocations never double-send; the
// campaign's live status is re-read per recipient so a pause lands at the
// next send, and the context deadline is checked before each send so the
// batch never overruns the tick budget.
func (d *Dispatcher) Drain(ctx context.Context, campaign *model.Campaign, maxBatch int) (*DrainResult, error) {
	if maxBatch <= 0 || maxBatch > maxBatchSize {
		maxBatch = batchSize(campaign.RatePerMinute)
	}
	interval := sendInterval(campaign.RatePerMinute)

	pending, err := d.Recipients.ListPending(campaign.ID, maxBatch)
	if err != nil {
		return nil, err
	}

	result := &DrainResult{}
	for i, recipient := range pending {
		if budgetExceeded(ctx, interval) {
			log.Warn().Int("campaign_id", campaign.ID).Int("remaining", len(pending)-i).
				Msg("tick budget exhausted, leaving rest of batch pending")
			break
		}

		// Honor a pause requested mid-batch.
		live, err := d.Campaigns.GetByID(campaign.ID)
		if err != nil {
			return result, err
		}
		if live.Status != model.CampaignStatusSending {
			log.Info().Int("campaign_id", campaign.ID).Str("status", live.Status).
				Msg("campaign no longer sending, stopping batch")
			return result, nil
		}

		claimed, err := d.Recipients.Claim(recipient.ID, d.now())
		if err != nil {
			return result, err
		}
		if !claimed {
			// Another invocation owns this row.
			result.Skipped++
			continue
		}

		d.dispatchOne(ctx, live, recipient, result)

		if i < len(pending)-1 {
			d.sleep(interval)
		}
	}

	outstanding, err := d.Recipients.OutstandingCount(campaign.ID)
	if err != nil {
		return result, err
	}
	if outstanding == 0 {
		if err := d.Campaigns.Transition(campaign.ID, model.CampaignStatusSending, model.CampaignStatusCompleted); err != nil {
			return result, err
		}
		if err := d.Campaigns.MarkCompleted(campaign.ID, d.now()); err != nil {
			return result, err
		}
		result.Completed = true
		log.Info().Int("campaign_id", campaign.ID).Msg("campaign completed")
	}
	return result, nil
}

func (d *Dispatcher) dispatchOne(ctx context.Context, campaign *model.Campaign, recipient *model.Recipient, result *DrainResult) {
	res, err := d.send(ctx, campaign, recipient.Phone)

	switch {
	case err != nil:
		d.recordFailure(campaign.ID, recipient.ID, err.Error(), result)
	case !res.Success:
		detail := res.Error
		if detail == "" {
			detail = "gateway rejected message"
		}
		d.recordFailure(campaign.ID, recipient.ID, detail, result)
	default:
		if err := d.Recipients.MarkSent(recipient.ID, res.MessageID, d.now()); err != nil {
			log.Error().Err(err).Int("recipient_id", recipient.ID).Msg("failed to mark recipient sent")
			return
		}
		if err := d.Campaigns.IncrementSent(campaign.ID); err != nil {
			log.Error().Err(err).Int("campaign_id", campaign.ID).Msg("failed to increment sent_count")
		}
		result.Sent++
	}
}

func (d *Dispatcher) recordFailure(campaignID, recipientID int, detail string, result *DrainResult) {
	if err := d.Recipients.MarkFailed(recipientID, detail, d.now()); err != nil {
		log.Error().Err(err).Int("recipient_id", recipientID).Msg("failed to mark recipient failed")
		return
	}
	if err := d.Campaigns.IncrementFailed(campaignID); err != nil {
		log.Error().Err(err).Int("campaign_id", campaignID).Msg("failed to increment failed_count")
	}
	result.Failed++
}

// send picks the gateway primitive matching the campaign's message kind.
func (d *Dispatcher) send(ctx context.Context, c *model.Campaign, phone string) (*gateway.SendResult, error) {
	switch c.Message.Kind {
	case model.MessageKindTemplate:
		return d.Sender.SendTemplate(ctx, phone, c.Message.TemplateName, c.Message.TemplateParams)
	case model.MessageKindImage:
		return d.Sender.SendImage(ctx, phone, c.Message.MediaURL, c.Message.Body)
	case model.MessageKindButtons:
		return d.Sender.SendButtons(ctx, phone, c.Message.Body, c.Message.Buttons)
	default:
		return d.Sender.SendText(ctx, phone, c.Message.Body)
	}
}

// budgetExceeded reports whether the context is done or has less than one
// send interval of budget left.
func budgetExceeded(ctx context.Context, interval time.Duration) bool {
	if ctx.Err() != nil {
		return true
	}
	if deadline, ok := ctx.Deadline(); ok {
		return time.Until(deadline) < interval
	}
	return false
}
