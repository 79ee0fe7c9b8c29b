package repository

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/waseller/campaign-engine/internal/model"
)

// RecoveryDelays are the waits before reminders 1, 2 and 3: the first fires
// an hour after the cart was last touched, the later ones relative to the
// previous reminder.
var RecoveryDelays = [3]time.Duration{time.Hour, 24 * time.Hour, 48 * time.Hour}

type CartRepositoryInterface interface {
	// ListRecoveryCandidates returns active carts worth at least minTotal
	// that are due their next recovery reminder.
	ListRecoveryCandidates(now time.Time, minTotal float64, limit int) ([]*model.Cart, error)

	// IncrementReminder bumps reminder_count and stamps last_reminder_at.
	IncrementReminder(id int, at time.Time) error
}

type CartRepository struct {
	DB *sqlx.DB
}

func (r *CartRepository) ListRecoveryCandidates(now time.Time, minTotal float64, limit int) ([]*model.Cart, error) {
	carts := []*model.Cart{}
	// The first reminder waits on cart activity; later ones on the previous
	// reminder's timestamp.
	query := r.DB.Rebind(`
		SELECT * FROM carts
		WHERE status=? AND total >= ? AND reminder_count < 3
		  AND (
			(reminder_count = 0 AND updated_at <= ?)
			OR (reminder_count = 1 AND last_reminder_at <= ?)
			OR (reminder_count = 2 AND last_reminder_at <= ?)
		  )
		ORDER BY updated_at ASC LIMIT ?`)
	err := r.DB.Select(&carts, query,
		model.CartStatusActive, minTotal,
		now.Add(-RecoveryDelays[0]),
		now.Add(-RecoveryDelays[1]),
		now.Add(-RecoveryDelays[2]),
		limit)
	return carts, err
}

func (r *CartRepository) IncrementReminder(id int, at time.Time) error {
	_, err := r.DB.Exec(r.DB.Rebind(`
		UPDATE carts SET reminder_count = reminder_count + 1, last_reminder_at = ?
		WHERE id = ?`), at, id)
	return err
}

var _ CartRepositoryInterface = (*CartRepository)(nil)
