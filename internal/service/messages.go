// internal/service/messages.go
package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/waseller/campaign-engine/internal/model"
)

// renderText substitutes {placeholder} tokens in a message body.
func renderText(text string, data map[string]string) string {
	for k, v := range data {
		text = strings.ReplaceAll(text, "{"+k+"}", v)
	}
	return text
}

// cartReminderTexts are the recovery message variants, indexed by reminder
// step (1-based). Later steps get progressively more direct.
var cartReminderTexts = [3]string{
	"Hi {name}, you left items worth ₹{total} in your cart. Complete your order before they sell out!",
	"Still thinking it over, {name}? Your cart (₹{total}) is waiting. Checkout takes less than a minute.",
	"Last reminder, {name}: your ₹{total} cart expires soon. Order now to keep your items.",
}

func cartReminderText(cart *model.Cart, name string, step int) string {
	if step < 1 {
		step = 1
	}
	if step > len(cartReminderTexts) {
		step = len(cartReminderTexts)
	}
	return renderText(cartReminderTexts[step-1], map[string]string{
		"name":  name,
		"total": fmt.Sprintf("%.0f", cart.Total),
	})
}

func paymentReminderText(order *model.Order, now time.Time) string {
	remaining := "a few hours"
	if order.PaymentLinkExpiresAt != nil {
		hours := int(order.PaymentLinkExpiresAt.Sub(now).Hours())
		if hours >= 1 {
			remaining = fmt.Sprintf("%d hours", hours)
		} else {
			remaining = "less than an hour"
		}
	}
	return renderText(
		"Your order #{id} of ₹{total} is awaiting payment. Pay here: {link} (link valid for {remaining}).",
		map[string]string{
			"id":        fmt.Sprintf("%d", order.ID),
			"total":     fmt.Sprintf("%.0f", order.Total),
			"link":      order.PaymentLink,
			"remaining": remaining,
		})
}

func deliveryCheckText(order *model.Order) string {
	return fmt.Sprintf("Your order #%d was shipped a few days ago. Has it arrived?", order.ID)
}

var deliveryCheckButtons = []model.Button{
	{ID: "delivered_yes", Title: "Yes, received"},
	{ID: "delivered_no", Title: "Not yet"},
}

func reviewRequestText(order *model.Order) string {
	return fmt.Sprintf("Hope you're enjoying order #%d! We'd love a quick review, it helps us a lot.", order.ID)
}

func winbackText(c *model.Customer) string {
	return renderText(
		"We miss you, {name}! Here's 10% off your next order with code WELCOMEBACK10.",
		map[string]string{"name": c.FirstName})
}
