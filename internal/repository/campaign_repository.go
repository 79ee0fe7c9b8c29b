package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/waseller/campaign-engine/internal/errors"
	"github.com/waseller/campaign-engine/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	Update(c *model.Campaign) error
	Delete(id int) error
	GetByID(id int) (*model.Campaign, error)
	List(offset, limit int, status string) ([]*model.Campaign, int, error)
	ListScheduledDue(now time.Time, limit int) ([]*model.Campaign, error)
	ListByStatus(status string, limit int) ([]*model.Campaign, error)

	Transition(id int, from, to string) error
	MarkStarted(id int, at time.Time) error
	MarkCompleted(id int, at time.Time) error
	SetTargetCount(id, count int) error
	IncrementSent(id int) error
	IncrementFailed(id int) error
	DecrementFailed(id, by int) error
}

// allowedTransitions is the campaign state machine. Anything not listed is
// rejected by Transition.
var allowedTransitions = map[string][]string{
	model.CampaignStatusDraft:     {model.CampaignStatusScheduled, model.CampaignStatusSending, model.CampaignStatusFailed},
	model.CampaignStatusScheduled: {model.CampaignStatusDraft, model.CampaignStatusSending, model.CampaignStatusFailed},
	model.CampaignStatusSending:   {model.CampaignStatusPaused, model.CampaignStatusCompleted},
	model.CampaignStatusPaused:    {model.CampaignStatusSending},
	// Reopened when failed recipients are requeued for another attempt.
	model.CampaignStatusCompleted: {model.CampaignStatusSending},
}

func transitionAllowed(from, to string) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type CampaignRepository struct {
	DB *sqlx.DB
}

// campaignRow is the flat persisted shape; structured fields travel as JSON
// text and are (de)serialized only here, never in business logic.
type campaignRow struct {
	ID             int        `db:"id"`
	Name           string     `db:"name"`
	MessageKind    string     `db:"message_kind"`
	Body           string     `db:"body"`
	TemplateName   string     `db:"template_name"`
	TemplateParams string     `db:"template_params"`
	MediaURL       string     `db:"media_url"`
	Buttons        string     `db:"buttons"`
	AudienceKind   string     `db:"audience_kind"`
	AudienceFilter string     `db:"audience_filter"`
	Status         string     `db:"status"`
	TargetCount    int        `db:"target_count"`
	SentCount      int        `db:"sent_count"`
	DeliveredCount int        `db:"delivered_count"`
	ReadCount      int        `db:"read_count"`
	FailedCount    int        `db:"failed_count"`
	RatePerMinute  int        `db:"rate_per_minute"`
	CreatedAt      time.Time  `db:"created_at"`
	ScheduledAt    *time.Time `db:"scheduled_at"`
	StartedAt      *time.Time `db:"started_at"`
	CompletedAt    *time.Time `db:"completed_at"`
}

const campaignColumns = `id, name, message_kind, body, template_name, template_params, media_url,
	buttons, audience_kind, audience_filter, status, target_count, sent_count, delivered_count,
	read_count, failed_count, rate_per_minute, created_at, scheduled_at, started_at, completed_at`

func (row *campaignRow) toModel() (*model.Campaign, error) {
	c := &model.Campaign{
		ID:   row.ID,
		Name: row.Name,
		Message: model.MessageSpec{
			Kind:         row.MessageKind,
			Body:         row.Body,
			TemplateName: row.TemplateName,
			MediaURL:     row.MediaURL,
		},
		Status:         row.Status,
		TargetCount:    row.TargetCount,
		SentCount:      row.SentCount,
		DeliveredCount: row.DeliveredCount,
		ReadCount:      row.ReadCount,
		FailedCount:    row.FailedCount,
		RatePerMinute:  row.RatePerMinute,
		CreatedAt:      row.CreatedAt,
		ScheduledAt:    row.ScheduledAt,
		StartedAt:      row.StartedAt,
		CompletedAt:    row.CompletedAt,
	}
	if err := json.Unmarshal([]byte(row.TemplateParams), &c.Message.TemplateParams); err != nil {
		return nil, fmt.Errorf("campaign %d: bad template_params: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Buttons), &c.Message.Buttons); err != nil {
		return nil, fmt.Errorf("campaign %d: bad buttons: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.AudienceFilter), &c.Audience); err != nil {
		return nil, fmt.Errorf("campaign %d: bad audience_filter: %w", row.ID, err)
	}
	c.Audience.Kind = row.AudienceKind
	return c, nil
}

func campaignToRow(c *model.Campaign) (*campaignRow, error) {
	params, err := json.Marshal(c.Message.TemplateParams)
	if err != nil {
		return nil, err
	}
	buttons, err := json.Marshal(c.Message.Buttons)
	if err != nil {
		return nil, err
	}
	filter, err := json.Marshal(c.Audience)
	if err != nil {
		return nil, err
	}
	return &campaignRow{
		ID:             c.ID,
		Name:           c.Name,
		MessageKind:    c.Message.Kind,
		Body:           c.Message.Body,
		TemplateName:   c.Message.TemplateName,
		TemplateParams: string(params),
		MediaURL:       c.Message.MediaURL,
		Buttons:        string(buttons),
		AudienceKind:   c.Audience.Kind,
		AudienceFilter: string(filter),
		Status:         c.Status,
		RatePerMinute:  c.RatePerMinute,
		CreatedAt:      c.CreatedAt,
		ScheduledAt:    c.ScheduledAt,
	}, nil
}

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now().UTC()
	if c.Status == "" {
		c.Status = model.CampaignStatusDraft
	}
	row, err := campaignToRow(c)
	if err != nil {
		return err
	}

	query := r.DB.Rebind(`
		INSERT INTO campaigns (name, message_kind, body, template_name, template_params,
			media_url, buttons, audience_kind, audience_filter, status, rate_per_minute,
			created_at, scheduled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	args := []interface{}{
		row.Name, row.MessageKind, row.Body, row.TemplateName, row.TemplateParams,
		row.MediaURL, row.Buttons, row.AudienceKind, row.AudienceFilter, row.Status,
		row.RatePerMinute, row.CreatedAt, row.ScheduledAt,
	}

	if r.DB.DriverName() == "postgres" {
		return r.DB.QueryRow(query+" RETURNING id", args...).Scan(&c.ID)
	}
	res, err := r.DB.Exec(query, args...)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = int(id)
	return nil
}

func (r *CampaignRepository) Update(c *model.Campaign) error {
	row, err := campaignToRow(c)
	if err != nil {
		return err
	}
	query := r.DB.Rebind(`
		UPDATE campaigns
		SET name=?, message_kind=?, body=?, template_name=?, template_params=?,
			media_url=?, buttons=?, audience_kind=?, audience_filter=?, status=?,
			rate_per_minute=?, scheduled_at=?
		WHERE id=?`)
	res, err := r.DB.Exec(query,
		row.Name, row.MessageKind, row.Body, row.TemplateName, row.TemplateParams,
		row.MediaURL, row.Buttons, row.AudienceKind, row.AudienceFilter, row.Status,
		row.RatePerMinute, row.ScheduledAt, row.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewCampaignNotFound(c.ID)
	}
	return nil
}

func (r *CampaignRepository) Delete(id int) error {
	if _, err := r.DB.Exec(r.DB.Rebind(`DELETE FROM campaign_recipients WHERE campaign_id=?`), id); err != nil {
		return err
	}
	res, err := r.DB.Exec(r.DB.Rebind(`DELETE FROM campaigns WHERE id=?`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewCampaignNotFound(id)
	}
	return nil
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	var row campaignRow
	err := r.DB.Get(&row, r.DB.Rebind(`SELECT `+campaignColumns+` FROM campaigns WHERE id=?`), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return row.toModel()
}

func (r *CampaignRepository) List(offset, limit int, status string) ([]*model.Campaign, int, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns`
	countQuery := `SELECT COUNT(*) FROM campaigns`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status=?`
		countQuery += ` WHERE status=?`
		args = append(args, status)
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`

	var rows []campaignRow
	if err := r.DB.Select(&rows, r.DB.Rebind(query), append(args, limit, offset)...); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.DB.Get(&total, r.DB.Rebind(countQuery), args...); err != nil {
		return nil, 0, err
	}

	campaigns := make([]*model.Campaign, 0, len(rows))
	for i := range rows {
		c, err := rows[i].toModel()
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, total, nil
}

// ListScheduledDue returns scheduled campaigns whose scheduled_at has passed,
// oldest first.
func (r *CampaignRepository) ListScheduledDue(now time.Time, limit int) ([]*model.Campaign, error) {
	var rows []campaignRow
	query := r.DB.Rebind(`
		SELECT ` + campaignColumns + ` FROM campaigns
		WHERE status=? AND scheduled_at IS NOT NULL AND scheduled_at <= ?
		ORDER BY scheduled_at ASC LIMIT ?`)
	if err := r.DB.Select(&rows, query, model.CampaignStatusScheduled, now, limit); err != nil {
		return nil, err
	}
	return rowsToModels(rows)
}

func (r *CampaignRepository) ListByStatus(status string, limit int) ([]*model.Campaign, error) {
	var rows []campaignRow
	query := r.DB.Rebind(`
		SELECT ` + campaignColumns + ` FROM campaigns
		WHERE status=? ORDER BY id ASC LIMIT ?`)
	if err := r.DB.Select(&rows, query, status, limit); err != nil {
		return nil, err
	}
	return rowsToModels(rows)
}

func rowsToModels(rows []campaignRow) ([]*model.Campaign, error) {
	out := make([]*model.Campaign, 0, len(rows))
	for i := range rows {
		c, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Transition moves a campaign from one status to another, enforcing the state
// machine table. The conditional WHERE keeps the move atomic: if another
// invocation already changed the status, zero rows match and the caller gets
// ErrInvalidTransition.
func (r *CampaignRepository) Transition(id int, from, to string) error {
	if !transitionAllowed(from, to) {
		return appErrors.NewInvalidTransition(id, from, to)
	}
	query := `UPDATE campaigns SET status=? WHERE id=? AND status=?`
	if from == model.CampaignStatusCompleted {
		// Reopening invalidates the completion stamp.
		query = `UPDATE campaigns SET status=?, completed_at=NULL WHERE id=? AND status=?`
	}
	res, err := r.DB.Exec(r.DB.Rebind(query), to, id, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewInvalidTransition(id, from, to)
	}
	return nil
}

func (r *CampaignRepository) MarkStarted(id int, at time.Time) error {
	_, err := r.DB.Exec(r.DB.Rebind(`UPDATE campaigns SET started_at=? WHERE id=? AND started_at IS NULL`), at, id)
	return err
}

func (r *CampaignRepository) MarkCompleted(id int, at time.Time) error {
	_, err := r.DB.Exec(r.DB.Rebind(`UPDATE campaigns SET completed_at=? WHERE id=?`), at, id)
	return err
}

// SetTargetCount fixes target_count at enrollment time. It is never
// recomputed afterwards.
func (r *CampaignRepository) SetTargetCount(id, count int) error {
	_, err := r.DB.Exec(r.DB.Rebind(`UPDATE campaigns SET target_count=? WHERE id=?`), count, id)
	return err
}

func (r *CampaignRepository) IncrementSent(id int) error {
	_, err := r.DB.Exec(r.DB.Rebind(`UPDATE campaigns SET sent_count=sent_count+1 WHERE id=?`), id)
	return err
}

func (r *CampaignRepository) IncrementFailed(id int) error {
	_, err := r.DB.Exec(r.DB.Rebind(`UPDATE campaigns SET failed_count=failed_count+1 WHERE id=?`), id)
	return err
}

// DecrementFailed compensates failed_count when failed recipients are
// requeued, keeping sent+failed+outstanding equal to target_count.
func (r *CampaignRepository) DecrementFailed(id, by int) error {
	_, err := r.DB.Exec(r.DB.Rebind(
		`UPDATE campaigns SET failed_count=failed_count-? WHERE id=? AND failed_count >= ?`), by, id, by)
	return err
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
