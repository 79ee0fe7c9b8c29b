// internal/model/cart.go
package model

import "time"

const (
	CartStatusActive    = "active"
	CartStatusConverted = "converted"
	CartStatusAbandoned = "abandoned"
)

type Cart struct {
	ID         int     `db:"id" json:"id"`
	CustomerID int     `db:"customer_id" json:"customer_id"`
	Phone      string  `db:"phone" json:"phone"`
	Total      float64 `db:"total" json:"total"`
	Status     string  `db:"status" json:"status"`

	// Recovery markers: how many reminders went out and when the last one did.
	ReminderCount  int        `db:"reminder_count" json:"reminder_count"`
	LastReminderAt *time.Time `db:"last_reminder_at" json:"last_reminder_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
