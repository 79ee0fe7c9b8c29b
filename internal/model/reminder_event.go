// internal/model/reminder_event.go
package model

import "time"

// Reminder event types recorded in the append-only dedupe log.
const (
	EventPaymentReminder = "payment_reminder"
	EventWinback         = "winback"
)

// ReminderEvent is one row in the append-only event log used to enforce
// cooldown windows for lifecycle reminders that have no flag on the
// subject entity itself.
type ReminderEvent struct {
	ID        string    `db:"id" json:"id"`
	EventType string    `db:"event_type" json:"event_type"`
	Subject   string    `db:"subject" json:"subject"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
