package repository

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/waseller/campaign-engine/internal/model"
)

type RecipientRepositoryInterface interface {
	// Enroll inserts one pending row per phone, skipping phones already
	// enrolled for the campaign, and returns the persisted recipient count.
	Enroll(campaignID int, phones []string) (int, error)

	ListPending(campaignID, limit int) ([]*model.Recipient, error)

	// Claim atomically moves a recipient from pending to processing and
	// reports whether this caller won the row.
	Claim(id int, at time.Time) (bool, error)
	MarkSent(id int, messageID string, at time.Time) error
	MarkFailed(id int, errDetail string, at time.Time) error

	// OutstandingCount counts recipients still pending or processing.
	OutstandingCount(campaignID int) (int, error)
	CountByStatus(campaignID int) (map[string]int, error)
	ListByCampaign(campaignID int, status string, offset, limit int) ([]*model.RecipientWithCustomer, int, error)

	// RequeueStale returns processing rows claimed before the cutoff to
	// pending, recovering claims orphaned by a killed tick.
	RequeueStale(cutoff time.Time) (int, error)
	// RequeueFailed is the operator-driven re-queue of failed recipients.
	RequeueFailed(campaignID int) (int, error)
}

type RecipientRepository struct {
	DB *sqlx.DB
}

// errDetailMax bounds the error text stored on a recipient row.
const errDetailMax = 255

func (r *RecipientRepository) Enroll(campaignID int, phones []string) (int, error) {
	now := time.Now().UTC()
	insert := r.DB.Rebind(`
		INSERT INTO campaign_recipients (campaign_id, phone, status, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (campaign_id, phone) DO NOTHING`)

	tx, err := r.DB.Beginx()
	if err != nil {
		return 0, err
	}
	for _, phone := range phones {
		if _, err := tx.Exec(insert, campaignID, phone, model.RecipientStatusPending, now); err != nil {
			tx.Rollback()
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	var count int
	err = r.DB.Get(&count, r.DB.Rebind(`SELECT COUNT(*) FROM campaign_recipients WHERE campaign_id=?`), campaignID)
	return count, err
}

func (r *RecipientRepository) ListPending(campaignID, limit int) ([]*model.Recipient, error) {
	recipients := []*model.Recipient{}
	query := r.DB.Rebind(`
		SELECT * FROM campaign_recipients
		WHERE campaign_id=? AND status=?
		ORDER BY id ASC LIMIT ?`)
	err := r.DB.Select(&recipients, query, campaignID, model.RecipientStatusPending, limit)
	return recipients, err
}

func (r *RecipientRepository) Claim(id int, at time.Time) (bool, error) {
	res, err := r.DB.Exec(r.DB.Rebind(`
		UPDATE campaign_recipients SET status=?, claimed_at=?
		WHERE id=? AND status=?`),
		model.RecipientStatusProcessing, at, id, model.RecipientStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RecipientRepository) MarkSent(id int, messageID string, at time.Time) error {
	_, err := r.DB.Exec(r.DB.Rebind(`
		UPDATE campaign_recipients SET status=?, message_id=?, sent_at=?
		WHERE id=?`),
		model.RecipientStatusSent, messageID, at, id)
	return err
}

func (r *RecipientRepository) MarkFailed(id int, errDetail string, at time.Time) error {
	if len(errDetail) > errDetailMax {
		errDetail = errDetail[:errDetailMax]
	}
	_, err := r.DB.Exec(r.DB.Rebind(`
		UPDATE campaign_recipients SET status=?, error_detail=?, failed_at=?
		WHERE id=?`),
		model.RecipientStatusFailed, errDetail, at, id)
	return err
}

func (r *RecipientRepository) OutstandingCount(campaignID int) (int, error) {
	var count int
	err := r.DB.Get(&count, r.DB.Rebind(`
		SELECT COUNT(*) FROM campaign_recipients
		WHERE campaign_id=? AND status IN (?, ?)`),
		campaignID, model.RecipientStatusPending, model.RecipientStatusProcessing)
	return count, err
}

func (r *RecipientRepository) CountByStatus(campaignID int) (map[string]int, error) {
	rows, err := r.DB.Query(r.DB.Rebind(`
		SELECT status, COUNT(*) FROM campaign_recipients
		WHERE campaign_id=? GROUP BY status`), campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{
		model.RecipientStatusPending:   0,
		model.RecipientStatusSent:      0,
		model.RecipientStatusDelivered: 0,
		model.RecipientStatusRead:      0,
		model.RecipientStatusFailed:    0,
	}
	total := 0
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
		total += count
	}
	stats["total"] = total
	return stats, rows.Err()
}

func (r *RecipientRepository) ListByCampaign(campaignID int, status string, offset, limit int) ([]*model.RecipientWithCustomer, int, error) {
	where := ` WHERE r.campaign_id=?`
	args := []interface{}{campaignID}
	if status != "" {
		where += ` AND r.status=?`
		args = append(args, status)
	}

	recipients := []*model.RecipientWithCustomer{}
	query := r.DB.Rebind(`
		SELECT r.*, COALESCE(TRIM(c.first_name || ' ' || c.last_name), '') AS customer_name
		FROM campaign_recipients r
		LEFT JOIN customers c ON c.phone = r.phone` + where + `
		ORDER BY r.id ASC LIMIT ? OFFSET ?`)
	if err := r.DB.Select(&recipients, query, append(args, limit, offset)...); err != nil {
		return nil, 0, err
	}

	var total int
	countQuery := r.DB.Rebind(`SELECT COUNT(*) FROM campaign_recipients r` + where)
	if err := r.DB.Get(&total, countQuery, args...); err != nil {
		return nil, 0, err
	}
	return recipients, total, nil
}

func (r *RecipientRepository) RequeueStale(cutoff time.Time) (int, error) {
	res, err := r.DB.Exec(r.DB.Rebind(`
		UPDATE campaign_recipients SET status=?, claimed_at=NULL
		WHERE status=? AND claimed_at < ?`),
		model.RecipientStatusPending, model.RecipientStatusProcessing, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *RecipientRepository) RequeueFailed(campaignID int) (int, error) {
	res, err := r.DB.Exec(r.DB.Rebind(`
		UPDATE campaign_recipients SET status=?, error_detail='', failed_at=NULL
		WHERE campaign_id=? AND status=?`),
		model.RecipientStatusPending, campaignID, model.RecipientStatusFailed)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

var _ RecipientRepositoryInterface = (*RecipientRepository)(nil)
