// internal/service/orchestrator.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	appErrors "github.com/waseller/campaign-engine/internal/errors"
	"github.com/waseller/campaign-engine/internal/model"
	"github.com/waseller/campaign-engine/internal/repository"
)

// Per-tick batch bounds.
const (
	scheduledBatch = 5
	sendingBatch   = 3

	// staleClaimAge is how long a processing claim may sit before a later
	// tick assumes its owner died and requeues the row.
	staleClaimAge = 10 * time.Minute
)

// Orchestrator is the periodic entry point. One Tick promotes due scheduled
// campaigns, drains in-flight ones and runs the lifecycle reminders. It holds
// no state of its own: the store is the single source of truth, so any
// external scheduler (cron, timer, queue consumer) can invoke it.
type Orchestrator struct {
	Campaigns  repository.CampaignRepositoryInterface
	Recipients repository.RecipientRepositoryInterface
	Service    *CampaignService
	Dispatcher *Dispatcher
	Reminders  *ReminderEngine

	Now func() time.Time
}

// TickSummary reports what one invocation did.
type TickSummary struct {
	Promoted  int
	Drained   int
	Requeued  int
	Errors    int
	Reminders *ReminderSummary
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

// Tick runs one orchestration pass. Failures are resolved at the smallest
// scope: one campaign erroring (or panicking) is logged and skipped, the
// tick continues with the next.
func (o *Orchestrator) Tick(ctx context.Context) *TickSummary {
	summary := &TickSummary{}
	start := o.now()

	requeued, err := o.Recipients.RequeueStale(start.Add(-staleClaimAge))
	if err != nil {
		summary.Errors++
		log.Error().Err(err).Msg("stale claim requeue failed")
	} else if requeued > 0 {
		summary.Requeued = requeued
		log.Warn().Int("count", requeued).Msg("requeued stale processing recipients")
	}

	o.promoteDue(summary)
	o.drainSending(ctx, summary)

	if o.Reminders != nil {
		summary.Reminders = o.Reminders.Run(ctx)
		summary.Errors += summary.Reminders.Errors
	}

	log.Info().
		Int("promoted", summary.Promoted).
		Int("drained", summary.Drained).
		Int("errors", summary.Errors).
		Dur("took", o.now().Sub(start)).
		Msg("tick finished")
	return summary
}

func (o *Orchestrator) promoteDue(summary *TickSummary) {
	due, err := o.Campaigns.ListScheduledDue(o.now(), scheduledBatch)
	if err != nil {
		summary.Errors++
		log.Error().Err(err).Msg("listing due scheduled campaigns failed")
		return
	}

	for _, c := range due {
		campaign := c
		err := o.isolate(fmt.Sprintf("promote campaign %d", campaign.ID), func() error {
			_, err := o.Service.Start(campaign.ID)
			return err
		})
		var emptyErr *appErrors.ErrEmptyAudience
		if errors.As(err, &emptyErr) {
			// The campaign was moved to failed; that is an outcome, not a
			// tick error.
			continue
		}
		if err != nil {
			summary.Errors++
			continue
		}
		summary.Promoted++
	}
}

func (o *Orchestrator) drainSending(ctx context.Context, summary *TickSummary) {
	sending, err := o.Campaigns.ListByStatus(model.CampaignStatusSending, sendingBatch)
	if err != nil {
		summary.Errors++
		log.Error().Err(err).Msg("listing sending campaigns failed")
		return
	}

	for _, c := range sending {
		campaign := c
		err := o.isolate(fmt.Sprintf("drain campaign %d", campaign.ID), func() error {
			_, err := o.Dispatcher.Drain(ctx, campaign, 0)
			return err
		})
		if err != nil {
			summary.Errors++
			continue
		}
		summary.Drained++
	}
}

// isolate runs fn, converting a panic into an error so one campaign cannot
// abort the rest of the tick. State not advanced here is retried naturally
// on the next tick.
func (o *Orchestrator) isolate(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", name, r)
			log.Error().Interface("panic", r).Str("op", name).Msg("recovered from panic")
		}
	}()
	if err = fn(); err != nil {
		log.Error().Err(err).Str("op", name).Msg("tick operation failed, skipping")
	}
	return err
}
