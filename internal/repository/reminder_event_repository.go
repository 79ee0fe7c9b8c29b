package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ReminderEventRepositoryInterface interface {
	// Record appends one event to the dedupe log.
	Record(eventType, subject string, at time.Time) error
	// SentSince reports whether an event of the given type fired for the
	// subject inside the cooldown window starting at since.
	SentSince(eventType, subject string, since time.Time) (bool, error)
}

type ReminderEventRepository struct {
	DB *sqlx.DB
}

func (r *ReminderEventRepository) Record(eventType, subject string, at time.Time) error {
	_, err := r.DB.Exec(r.DB.Rebind(`
		INSERT INTO reminder_events (id, event_type, subject, created_at)
		VALUES (?, ?, ?, ?)`),
		uuid.NewString(), eventType, subject, at)
	return err
}

func (r *ReminderEventRepository) SentSince(eventType, subject string, since time.Time) (bool, error) {
	var count int
	err := r.DB.Get(&count, r.DB.Rebind(`
		SELECT COUNT(*) FROM reminder_events
		WHERE event_type=? AND subject=? AND created_at >= ?`),
		eventType, subject, since)
	return count > 0, err
}

var _ ReminderEventRepositoryInterface = (*ReminderEventRepository)(nil)
