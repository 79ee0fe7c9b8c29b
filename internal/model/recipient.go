// internal/model/recipient.go
package model

import "time"

// Recipient status constants. Transitions are one-directional:
// pending -> processing -> sent|failed; sent may later advance to
// delivered/read via delivery callbacks. processing is a transient claim
// held by the dispatcher for the duration of one send.
const (
	RecipientStatusPending    = "pending"
	RecipientStatusProcessing = "processing"
	RecipientStatusSent       = "sent"
	RecipientStatusDelivered  = "delivered"
	RecipientStatusRead       = "read"
	RecipientStatusFailed     = "failed"
)

// Recipient is one (campaign, phone) pairing tracked through its own send
// lifecycle. (campaign_id, phone) is unique; re-enrollment is a no-op.
type Recipient struct {
	ID         int    `db:"id" json:"id"`
	CampaignID int    `db:"campaign_id" json:"campaign_id"`
	Phone      string `db:"phone" json:"phone"`
	Status     string `db:"status" json:"status"`

	MessageID   string `db:"message_id" json:"message_id,omitempty"`
	ErrorDetail string `db:"error_detail" json:"error_detail,omitempty"`

	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ClaimedAt   *time.Time `db:"claimed_at" json:"-"`
	SentAt      *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	DeliveredAt *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	ReadAt      *time.Time `db:"read_at" json:"read_at,omitempty"`
	FailedAt    *time.Time `db:"failed_at" json:"failed_at,omitempty"`
}

// RecipientWithCustomer joins a recipient row with the customer display name.
type RecipientWithCustomer struct {
	Recipient
	CustomerName string `db:"customer_name" json:"customer_name"`
}
