// internal/model/order.go
package model

import "time"

// Order status constants
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Payment method / status constants
const (
	PaymentMethodOnline = "online"
	PaymentMethodCOD    = "cod"

	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"
)

type Order struct {
	ID         int     `db:"id" json:"id"`
	CustomerID int     `db:"customer_id" json:"customer_id"`
	Phone      string  `db:"phone" json:"phone"`
	Status     string  `db:"status" json:"status"`
	Total      float64 `db:"total" json:"total"`

	PaymentMethod        string     `db:"payment_method" json:"payment_method"`
	PaymentStatus        string     `db:"payment_status" json:"payment_status"`
	PaymentLink          string     `db:"payment_link" json:"payment_link,omitempty"`
	PaymentLinkCreatedAt *time.Time `db:"payment_link_created_at" json:"payment_link_created_at,omitempty"`
	PaymentLinkExpiresAt *time.Time `db:"payment_link_expires_at" json:"payment_link_expires_at,omitempty"`

	ShippedAt   *time.Time `db:"shipped_at" json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`

	// One-shot reminder flags.
	DeliveryCheckSent bool `db:"delivery_check_sent" json:"delivery_check_sent"`
	ReviewRequestSent bool `db:"review_request_sent" json:"review_request_sent"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
