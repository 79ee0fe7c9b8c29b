package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/waseller/campaign-engine/internal/model"
)

type CustomerRepositoryInterface interface {
	GetByPhone(phone string) (*model.Customer, error)

	// CountAudience and ListAudiencePhones evaluate a target spec. Both
	// always apply opted_in as a baseline filter.
	CountAudience(spec model.AudienceSpec) (int, error)
	ListAudiencePhones(spec model.AudienceSpec) ([]string, error)

	// ListWinbackCandidates returns repeat customers who stopped ordering
	// 30-60 days ago but were seen in-app within the last week.
	ListWinbackCandidates(now time.Time, limit int) ([]*model.Customer, error)
}

type CustomerRepository struct {
	DB *sqlx.DB
}

type customerRow struct {
	ID          int        `db:"id"`
	Phone       string     `db:"phone"`
	FirstName   string     `db:"first_name"`
	LastName    string     `db:"last_name"`
	Labels      string     `db:"labels"`
	Segment     string     `db:"segment"`
	Tier        string     `db:"tier"`
	OrderCount  int        `db:"order_count"`
	TotalSpent  float64    `db:"total_spent"`
	OptedIn     bool       `db:"opted_in"`
	LastSeenAt  *time.Time `db:"last_seen_at"`
	LastOrderAt *time.Time `db:"last_order_at"`
	CreatedAt   time.Time  `db:"created_at"`
}

func (row *customerRow) toModel() (*model.Customer, error) {
	c := &model.Customer{
		ID:          row.ID,
		Phone:       row.Phone,
		FirstName:   row.FirstName,
		LastName:    row.LastName,
		Segment:     row.Segment,
		Tier:        row.Tier,
		OrderCount:  row.OrderCount,
		TotalSpent:  row.TotalSpent,
		OptedIn:     row.OptedIn,
		LastSeenAt:  row.LastSeenAt,
		LastOrderAt: row.LastOrderAt,
		CreatedAt:   row.CreatedAt,
	}
	if err := json.Unmarshal([]byte(row.Labels), &c.Labels); err != nil {
		return nil, fmt.Errorf("customer %d: bad labels: %w", row.ID, err)
	}
	return c, nil
}

func (r *CustomerRepository) GetByPhone(phone string) (*model.Customer, error) {
	var row customerRow
	err := r.DB.Get(&row, r.DB.Rebind(`SELECT * FROM customers WHERE phone=?`), phone)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return row.toModel()
}

// audienceWhere builds the conjunctive predicate for a target spec. Labels
// are matched against the serialized label array; every other filter is a
// plain column comparison.
func audienceWhere(spec model.AudienceSpec, now time.Time) (string, []interface{}) {
	where := `opted_in = ?`
	args := []interface{}{true}

	switch spec.Kind {
	case model.AudienceAll:
		// baseline filter only
	case model.AudienceLabels:
		clause := ""
		for _, label := range spec.Labels {
			if clause != "" {
				clause += " OR "
			}
			clause += `labels LIKE ?`
			args = append(args, `%"`+label+`"%`)
		}
		if clause != "" {
			where += ` AND (` + clause + `)`
		}
	case model.AudienceSegment:
		where += ` AND segment = ?`
		args = append(args, spec.Segment)
	case model.AudienceTier:
		where += ` AND tier = ?`
		args = append(args, spec.Tier)
	case model.AudienceCustom:
		if spec.MinOrders != nil {
			where += ` AND order_count >= ?`
			args = append(args, *spec.MinOrders)
		}
		if spec.MaxOrders != nil {
			where += ` AND order_count <= ?`
			args = append(args, *spec.MaxOrders)
		}
		if spec.MinSpent != nil {
			where += ` AND total_spent >= ?`
			args = append(args, *spec.MinSpent)
		}
		if spec.LastActiveDays != nil {
			where += ` AND last_seen_at >= ?`
			args = append(args, now.Add(-time.Duration(*spec.LastActiveDays)*24*time.Hour))
		}
	}
	return where, args
}

func (r *CustomerRepository) CountAudience(spec model.AudienceSpec) (int, error) {
	where, args := audienceWhere(spec, time.Now().UTC())
	var count int
	err := r.DB.Get(&count, r.DB.Rebind(`SELECT COUNT(*) FROM customers WHERE `+where), args...)
	return count, err
}

func (r *CustomerRepository) ListAudiencePhones(spec model.AudienceSpec) ([]string, error) {
	where, args := audienceWhere(spec, time.Now().UTC())
	phones := []string{}
	err := r.DB.Select(&phones, r.DB.Rebind(`SELECT phone FROM customers WHERE `+where+` ORDER BY id ASC`), args...)
	return phones, err
}

func (r *CustomerRepository) ListWinbackCandidates(now time.Time, limit int) ([]*model.Customer, error) {
	var rows []customerRow
	query := r.DB.Rebind(`
		SELECT * FROM customers
		WHERE opted_in = ? AND order_count >= 2
		  AND last_order_at IS NOT NULL AND last_order_at <= ? AND last_order_at >= ?
		  AND last_seen_at IS NOT NULL AND last_seen_at >= ?
		ORDER BY last_order_at ASC LIMIT ?`)
	err := r.DB.Select(&rows, query,
		true,
		now.Add(-30*24*time.Hour),
		now.Add(-60*24*time.Hour),
		now.Add(-7*24*time.Hour),
		limit)
	if err != nil {
		return nil, err
	}

	customers := make([]*model.Customer, 0, len(rows))
	for i := range rows {
		c, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, nil
}

var _ CustomerRepositoryInterface = (*CustomerRepository)(nil)
