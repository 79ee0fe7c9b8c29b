package repository

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/waseller/campaign-engine/internal/model"
)

type OrderRepositoryInterface interface {
	// ListPaymentReminderCandidates returns unpaid online orders whose
	// payment link is between 30 minutes and 24 hours old and not expired.
	ListPaymentReminderCandidates(now time.Time, limit int) ([]*model.Order, error)

	// ListDeliveryCheckCandidates returns orders shipped more than five days
	// ago that never got a delivery-confirmation prompt.
	ListDeliveryCheckCandidates(now time.Time, limit int) ([]*model.Order, error)

	// ListReviewCandidates returns orders delivered three to seven days ago
	// without a review request sent.
	ListReviewCandidates(now time.Time, limit int) ([]*model.Order, error)

	MarkDeliveryCheckSent(id int) error
	MarkReviewRequestSent(id int) error
}

type OrderRepository struct {
	DB *sqlx.DB
}

func (r *OrderRepository) ListPaymentReminderCandidates(now time.Time, limit int) ([]*model.Order, error) {
	orders := []*model.Order{}
	query := r.DB.Rebind(`
		SELECT * FROM orders
		WHERE status=? AND payment_status=? AND payment_method=?
		  AND payment_link <> ''
		  AND payment_link_created_at IS NOT NULL
		  AND payment_link_created_at <= ? AND payment_link_created_at >= ?
		  AND (payment_link_expires_at IS NULL OR payment_link_expires_at > ?)
		ORDER BY payment_link_created_at ASC LIMIT ?`)
	err := r.DB.Select(&orders, query,
		model.OrderStatusPending, model.PaymentStatusUnpaid, model.PaymentMethodOnline,
		now.Add(-30*time.Minute), now.Add(-24*time.Hour), now, limit)
	return orders, err
}

func (r *OrderRepository) ListDeliveryCheckCandidates(now time.Time, limit int) ([]*model.Order, error) {
	orders := []*model.Order{}
	query := r.DB.Rebind(`
		SELECT * FROM orders
		WHERE status=? AND shipped_at IS NOT NULL AND shipped_at <= ?
		  AND delivery_check_sent = ?
		ORDER BY shipped_at ASC LIMIT ?`)
	err := r.DB.Select(&orders, query,
		model.OrderStatusShipped, now.Add(-5*24*time.Hour), false, limit)
	return orders, err
}

func (r *OrderRepository) ListReviewCandidates(now time.Time, limit int) ([]*model.Order, error) {
	orders := []*model.Order{}
	query := r.DB.Rebind(`
		SELECT * FROM orders
		WHERE status=? AND delivered_at IS NOT NULL
		  AND delivered_at <= ? AND delivered_at >= ?
		  AND review_request_sent = ?
		ORDER BY delivered_at ASC LIMIT ?`)
	err := r.DB.Select(&orders, query,
		model.OrderStatusDelivered, now.Add(-3*24*time.Hour), now.Add(-7*24*time.Hour), false, limit)
	return orders, err
}

func (r *OrderRepository) MarkDeliveryCheckSent(id int) error {
	_, err := r.DB.Exec(r.DB.Rebind(`UPDATE orders SET delivery_check_sent=? WHERE id=?`), true, id)
	return err
}

func (r *OrderRepository) MarkReviewRequestSent(id int) error {
	_, err := r.DB.Exec(r.DB.Rebind(`UPDATE orders SET review_request_sent=? WHERE id=?`), true, id)
	return err
}

var _ OrderRepositoryInterface = (*OrderRepository)(nil)
