// internal/model/customer.go
package model

import "time"

type Customer struct {
	ID        int    `db:"id" json:"id"`
	Phone     string `db:"phone" json:"phone"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`

	// Labels are stored serialized; the repository handles (de)serialization.
	Labels  []string `json:"labels"`
	Segment string   `db:"segment" json:"segment"`
	Tier    string   `db:"tier" json:"tier"`

	OrderCount int     `db:"order_count" json:"order_count"`
	TotalSpent float64 `db:"total_spent" json:"total_spent"`
	OptedIn    bool    `db:"opted_in" json:"opted_in"`

	LastSeenAt  *time.Time `db:"last_seen_at" json:"last_seen_at,omitempty"`
	LastOrderAt *time.Time `db:"last_order_at" json:"last_order_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Name returns the customer display name.
func (c *Customer) Name() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}
