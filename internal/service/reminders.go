// internal/service/reminders.go
package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/waseller/campaign-engine/internal/model"
	"github.com/waseller/campaign-engine/internal/repository"
)

// Cooldown windows for event-log guarded reminders.
const (
	paymentReminderCooldown = 2 * time.Hour
	winbackCooldown         = 14 * 24 * time.Hour
)

// ReminderEngine runs the automated lifecycle messages: cart recovery,
// payment reminders, delivery confirmation, review and win-back prompts.
// Each procedure reads a bounded page per tick and a failure on one
// candidate never stops the rest of the page.
type ReminderEngine struct {
	Carts     repository.CartRepositoryInterface
	Orders    repository.OrderRepositoryInterface
	Customers repository.CustomerRepositoryInterface
	Events    repository.ReminderEventRepositoryInterface
	Sender    Sender

	MinCartValue float64
	PageSize     int
	// SendDelay is the small pause between reminder sends so lifecycle
	// traffic respects gateway rate limits.
	SendDelay time.Duration

	Sleep func(time.Duration)
	Now   func() time.Time
}

// ReminderSummary counts what one tick did.
type ReminderSummary struct {
	CartReminders    int
	PaymentReminders int
	DeliveryChecks   int
	ReviewRequests   int
	Winbacks         int
	Errors           int
}

func (e *ReminderEngine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

func (e *ReminderEngine) sleep() {
	if e.SendDelay <= 0 {
		return
	}
	if e.Sleep != nil {
		e.Sleep(e.SendDelay)
		return
	}
	time.Sleep(e.SendDelay)
}

func (e *ReminderEngine) pageSize() int {
	if e.PageSize <= 0 {
		return 20
	}
	return e.PageSize
}

// Run executes all four procedures. Each is isolated: one failing wholesale
// (query error) is logged and the others still run.
func (e *ReminderEngine) Run(ctx context.Context) *ReminderSummary {
	summary := &ReminderSummary{}

	if err := e.runCartRecovery(ctx, summary); err != nil {
		summary.Errors++
		log.Error().Err(err).Msg("cart recovery procedure failed")
	}
	if err := e.runPaymentReminders(ctx, summary); err != nil {
		summary.Errors++
		log.Error().Err(err).Msg("payment reminder procedure failed")
	}
	if err := e.runDeliveryChecks(ctx, summary); err != nil {
		summary.Errors++
		log.Error().Err(err).Msg("delivery check procedure failed")
	}
	if err := e.runReviewAndWinback(ctx, summary); err != nil {
		summary.Errors++
		log.Error().Err(err).Msg("review/winback procedure failed")
	}
	return summary
}

func (e *ReminderEngine) runCartRecovery(ctx context.Context, summary *ReminderSummary) error {
	carts, err := e.Carts.ListRecoveryCandidates(e.now(), e.MinCartValue, e.pageSize())
	if err != nil {
		return err
	}

	for _, cart := range carts {
		if err := e.sendCartReminder(ctx, cart); err != nil {
			summary.Errors++
			log.Error().Err(err).Int("cart_id", cart.ID).Msg("cart reminder failed")
			continue
		}
		summary.CartReminders++
		e.sleep()
	}
	return nil
}

func (e *ReminderEngine) sendCartReminder(ctx context.Context, cart *model.Cart) error {
	name := ""
	if customer, err := e.Customers.GetByPhone(cart.Phone); err == nil && customer != nil {
		name = customer.FirstName
	}

	step := cart.ReminderCount + 1
	res, err := e.Sender.SendText(ctx, cart.Phone, cartReminderText(cart, name, step))
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("gateway rejected cart reminder: %s", res.Error)
	}

	// Marker write right behind the send keeps the next tick from re-firing.
	return e.Carts.IncrementReminder(cart.ID, e.now())
}

func (e *ReminderEngine) runPaymentReminders(ctx context.Context, summary *ReminderSummary) error {
	orders, err := e.Orders.ListPaymentReminderCandidates(e.now(), e.pageSize())
	if err != nil {
		return err
	}

	for _, order := range orders {
		subject := strconv.Itoa(order.ID)
		sent, err := e.Events.SentSince(model.EventPaymentReminder, subject, e.now().Add(-paymentReminderCooldown))
		if err != nil {
			summary.Errors++
			log.Error().Err(err).Int("order_id", order.ID).Msg("payment reminder dedupe check failed")
			continue
		}
		if sent {
			continue
		}

		res, err := e.Sender.SendText(ctx, order.Phone, paymentReminderText(order, e.now()))
		if err != nil || !res.Success {
			summary.Errors++
			log.Error().Err(err).Int("order_id", order.ID).Msg("payment reminder send failed")
			continue
		}
		if err := e.Events.Record(model.EventPaymentReminder, subject, e.now()); err != nil {
			log.Error().Err(err).Int("order_id", order.ID).Msg("payment reminder event record failed")
		}
		summary.PaymentReminders++
		e.sleep()
	}
	return nil
}

func (e *ReminderEngine) runDeliveryChecks(ctx context.Context, summary *ReminderSummary) error {
	orders, err := e.Orders.ListDeliveryCheckCandidates(e.now(), e.pageSize())
	if err != nil {
		return err
	}

	for _, order := range orders {
		res, err := e.Sender.SendButtons(ctx, order.Phone, deliveryCheckText(order), deliveryCheckButtons)
		if err != nil || !res.Success {
			summary.Errors++
			log.Error().Err(err).Int("order_id", order.ID).Msg("delivery check send failed")
			continue
		}
		if err := e.Orders.MarkDeliveryCheckSent(order.ID); err != nil {
			log.Error().Err(err).Int("order_id", order.ID).Msg("delivery check flag update failed")
			continue
		}
		summary.DeliveryChecks++
		e.sleep()
	}
	return nil
}

func (e *ReminderEngine) runReviewAndWinback(ctx context.Context, summary *ReminderSummary) error {
	orders, err := e.Orders.ListReviewCandidates(e.now(), e.pageSize())
	if err != nil {
		return err
	}
	for _, order := range orders {
		res, err := e.Sender.SendText(ctx, order.Phone, reviewRequestText(order))
		if err != nil || !res.Success {
			summary.Errors++
			log.Error().Err(err).Int("order_id", order.ID).Msg("review request send failed")
			continue
		}
		if err := e.Orders.MarkReviewRequestSent(order.ID); err != nil {
			log.Error().Err(err).Int("order_id", order.ID).Msg("review request flag update failed")
			continue
		}
		summary.ReviewRequests++
		e.sleep()
	}

	customers, err := e.Customers.ListWinbackCandidates(e.now(), e.pageSize())
	if err != nil {
		return err
	}
	for _, customer := range customers {
		sent, err := e.Events.SentSince(model.EventWinback, customer.Phone, e.now().Add(-winbackCooldown))
		if err != nil {
			summary.Errors++
			log.Error().Err(err).Str("phone", customer.Phone).Msg("winback dedupe check failed")
			continue
		}
		if sent {
			continue
		}

		res, err := e.Sender.SendText(ctx, customer.Phone, winbackText(customer))
		if err != nil || !res.Success {
			summary.Errors++
			log.Error().Err(err).Str("phone", customer.Phone).Msg("winback send failed")
			continue
		}
		if err := e.Events.Record(model.EventWinback, customer.Phone, e.now()); err != nil {
			log.Error().Err(err).Str("phone", customer.Phone).Msg("winback event record failed")
		}
		summary.Winbacks++
		e.sleep()
	}
	return nil
}
