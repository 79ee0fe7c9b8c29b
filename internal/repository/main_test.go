package repository_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/waseller/campaign-engine/internal/db"
	"github.com/waseller/campaign-engine/internal/model"
)

// newTestDB opens a fresh in-memory SQLite database with the full schema.
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conn, err := db.Connect(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() { conn.Close() })
	return conn
}

func insertCustomer(t *testing.T, conn *sqlx.DB, c model.Customer) {
	t.Helper()
	labels, err := json.Marshal(c.Labels)
	require.NoError(t, err)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err = conn.Exec(conn.Rebind(`
		INSERT INTO customers (phone, first_name, last_name, labels, segment, tier,
			order_count, total_spent, opted_in, last_seen_at, last_order_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		c.Phone, c.FirstName, c.LastName, string(labels), c.Segment, c.Tier,
		c.OrderCount, c.TotalSpent, c.OptedIn, c.LastSeenAt, c.LastOrderAt, c.CreatedAt)
	require.NoError(t, err)
}

func insertOrder(t *testing.T, conn *sqlx.DB, o model.Order) int {
	t.Helper()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	res, err := conn.Exec(conn.Rebind(`
		INSERT INTO orders (customer_id, phone, status, total, payment_method, payment_status,
			payment_link, payment_link_created_at, payment_link_expires_at,
			shipped_at, delivered_at, delivery_check_sent, review_request_sent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		o.CustomerID, o.Phone, o.Status, o.Total, o.PaymentMethod, o.PaymentStatus,
		o.PaymentLink, o.PaymentLinkCreatedAt, o.PaymentLinkExpiresAt,
		o.ShippedAt, o.DeliveredAt, o.DeliveryCheckSent, o.ReviewRequestSent, o.CreatedAt)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return int(id)
}

func insertCart(t *testing.T, conn *sqlx.DB, c model.Cart) int {
	t.Helper()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	res, err := conn.Exec(conn.Rebind(`
		INSERT INTO carts (customer_id, phone, total, status, reminder_count,
			last_reminder_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		c.CustomerID, c.Phone, c.Total, c.Status, c.ReminderCount,
		c.LastReminderAt, c.CreatedAt, c.UpdatedAt)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return int(id)
}

func timePtr(v time.Time) *time.Time { return &v }
func intPtr(v int) *int              { return &v }
func floatPtr(v float64) *float64    { return &v }
