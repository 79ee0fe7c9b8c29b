package service_test

import (
	"context"
	"fmt"
	"sort"
	"time"

	appErrors "github.com/waseller/campaign-engine/internal/errors"
	"github.com/waseller/campaign-engine/internal/gateway"
	"github.com/waseller/campaign-engine/internal/model"
)

// In-memory fakes backing the service tests. They mirror the conditional
// update semantics of the real repositories so claim and transition races
// behave the same way.

type memCampaignRepo struct {
	campaigns map[int]*model.Campaign
	nextID    int
}

func newMemCampaignRepo() *memCampaignRepo {
	return &memCampaignRepo{campaigns: map[int]*model.Campaign{}}
}

func (m *memCampaignRepo) Create(c *model.Campaign) error {
	m.nextID++
	c.ID = m.nextID
	c.CreatedAt = time.Now().UTC()
	if c.Status == "" {
		c.Status = model.CampaignStatusDraft
	}
	clone := *c
	m.campaigns[c.ID] = &clone
	return nil
}

func (m *memCampaignRepo) Update(c *model.Campaign) error {
	if _, ok := m.campaigns[c.ID]; !ok {
		return appErrors.NewCampaignNotFound(c.ID)
	}
	clone := *c
	m.campaigns[c.ID] = &clone
	return nil
}

func (m *memCampaignRepo) Delete(id int) error {
	if _, ok := m.campaigns[id]; !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	delete(m.campaigns, id)
	return nil
}

func (m *memCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	clone := *c
	return &clone, nil
}

func (m *memCampaignRepo) sorted(desc bool) []*model.Campaign {
	out := make([]*model.Campaign, 0, len(m.campaigns))
	for _, c := range m.campaigns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *memCampaignRepo) List(offset, limit int, status string) ([]*model.Campaign, int, error) {
	matched := []*model.Campaign{}
	for _, c := range m.sorted(true) {
		if status == "" || c.Status == status {
			clone := *c
			matched = append(matched, &clone)
		}
	}
	total := len(matched)
	if offset >= total {
		return []*model.Campaign{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (m *memCampaignRepo) ListScheduledDue(now time.Time, limit int) ([]*model.Campaign, error) {
	out := []*model.Campaign{}
	for _, c := range m.sorted(false) {
		if c.Status == model.CampaignStatusScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			clone := *c
			out = append(out, &clone)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memCampaignRepo) ListByStatus(status string, limit int) ([]*model.Campaign, error) {
	out := []*model.Campaign{}
	for _, c := range m.sorted(false) {
		if c.Status == status {
			clone := *c
			out = append(out, &clone)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memCampaignRepo) Transition(id int, from, to string) error {
	c, ok := m.campaigns[id]
	if !ok || c.Status != from {
		return appErrors.NewInvalidTransition(id, from, to)
	}
	c.Status = to
	if from == model.CampaignStatusCompleted {
		c.CompletedAt = nil
	}
	return nil
}

func (m *memCampaignRepo) MarkStarted(id int, at time.Time) error {
	if c, ok := m.campaigns[id]; ok && c.StartedAt == nil {
		c.StartedAt = &at
	}
	return nil
}

func (m *memCampaignRepo) MarkCompleted(id int, at time.Time) error {
	if c, ok := m.campaigns[id]; ok {
		c.CompletedAt = &at
	}
	return nil
}

func (m *memCampaignRepo) SetTargetCount(id, count int) error {
	if c, ok := m.campaigns[id]; ok {
		c.TargetCount = count
	}
	return nil
}

func (m *memCampaignRepo) IncrementSent(id int) error {
	if c, ok := m.campaigns[id]; ok {
		c.SentCount++
	}
	return nil
}

func (m *memCampaignRepo) IncrementFailed(id int) error {
	if c, ok := m.campaigns[id]; ok {
		c.FailedCount++
	}
	return nil
}

func (m *memCampaignRepo) DecrementFailed(id, by int) error {
	if c, ok := m.campaigns[id]; ok && c.FailedCount >= by {
		c.FailedCount -= by
	}
	return nil
}

type memRecipientRepo struct {
	rows   map[int]*model.Recipient
	nextID int

	// beforeClaim, when set, runs ahead of every Claim. Tests use it to
	// steal a row and exercise the lost-claim path.
	beforeClaim func(id int)
}

func newMemRecipientRepo() *memRecipientRepo {
	return &memRecipientRepo{rows: map[int]*model.Recipient{}}
}

func (m *memRecipientRepo) sorted() []*model.Recipient {
	out := make([]*model.Recipient, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memRecipientRepo) Enroll(campaignID int, phones []string) (int, error) {
	existing := map[string]bool{}
	for _, r := range m.rows {
		if r.CampaignID == campaignID {
			existing[r.Phone] = true
		}
	}
	for _, phone := range phones {
		if existing[phone] {
			continue
		}
		m.nextID++
		m.rows[m.nextID] = &model.Recipient{
			ID:         m.nextID,
			CampaignID: campaignID,
			Phone:      phone,
			Status:     model.RecipientStatusPending,
			CreatedAt:  time.Now().UTC(),
		}
		existing[phone] = true
	}
	return len(existing), nil
}

func (m *memRecipientRepo) ListPending(campaignID, limit int) ([]*model.Recipient, error) {
	out := []*model.Recipient{}
	for _, r := range m.sorted() {
		if r.CampaignID == campaignID && r.Status == model.RecipientStatusPending {
			clone := *r
			out = append(out, &clone)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memRecipientRepo) Claim(id int, at time.Time) (bool, error) {
	if m.beforeClaim != nil {
		m.beforeClaim(id)
	}
	r, ok := m.rows[id]
	if !ok || r.Status != model.RecipientStatusPending {
		return false, nil
	}
	r.Status = model.RecipientStatusProcessing
	r.ClaimedAt = &at
	return true, nil
}

func (m *memRecipientRepo) MarkSent(id int, messageID string, at time.Time) error {
	if r, ok := m.rows[id]; ok {
		r.Status = model.RecipientStatusSent
		r.MessageID = messageID
		r.SentAt = &at
	}
	return nil
}

func (m *memRecipientRepo) MarkFailed(id int, errDetail string, at time.Time) error {
	if r, ok := m.rows[id]; ok {
		r.Status = model.RecipientStatusFailed
		r.ErrorDetail = errDetail
		r.FailedAt = &at
	}
	return nil
}

func (m *memRecipientRepo) OutstandingCount(campaignID int) (int, error) {
	count := 0
	for _, r := range m.rows {
		if r.CampaignID != campaignID {
			continue
		}
		if r.Status == model.RecipientStatusPending || r.Status == model.RecipientStatusProcessing {
			count++
		}
	}
	return count, nil
}

func (m *memRecipientRepo) CountByStatus(campaignID int) (map[string]int, error) {
	stats := map[string]int{
		model.RecipientStatusPending:   0,
		model.RecipientStatusSent:      0,
		model.RecipientStatusDelivered: 0,
		model.RecipientStatusRead:      0,
		model.RecipientStatusFailed:    0,
	}
	total := 0
	for _, r := range m.rows {
		if r.CampaignID == campaignID {
			stats[r.Status]++
			total++
		}
	}
	stats["total"] = total
	return stats, nil
}

func (m *memRecipientRepo) ListByCampaign(campaignID int, status string, offset, limit int) ([]*model.RecipientWithCustomer, int, error) {
	matched := []*model.RecipientWithCustomer{}
	for _, r := range m.sorted() {
		if r.CampaignID != campaignID {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		matched = append(matched, &model.RecipientWithCustomer{Recipient: *r})
	}
	total := len(matched)
	if offset >= total {
		return []*model.RecipientWithCustomer{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (m *memRecipientRepo) RequeueStale(cutoff time.Time) (int, error) {
	count := 0
	for _, r := range m.rows {
		if r.Status == model.RecipientStatusProcessing && r.ClaimedAt != nil && r.ClaimedAt.Before(cutoff) {
			r.Status = model.RecipientStatusPending
			r.ClaimedAt = nil
			count++
		}
	}
	return count, nil
}

func (m *memRecipientRepo) RequeueFailed(campaignID int) (int, error) {
	count := 0
	for _, r := range m.rows {
		if r.CampaignID == campaignID && r.Status == model.RecipientStatusFailed {
			r.Status = model.RecipientStatusPending
			r.ErrorDetail = ""
			r.FailedAt = nil
			count++
		}
	}
	return count, nil
}

type mockCustomerRepo struct {
	phones  []string
	byPhone map[string]*model.Customer
	winback []*model.Customer
}

func (m *mockCustomerRepo) GetByPhone(phone string) (*model.Customer, error) {
	return m.byPhone[phone], nil
}

func (m *mockCustomerRepo) CountAudience(spec model.AudienceSpec) (int, error) {
	return len(m.phones), nil
}

func (m *mockCustomerRepo) ListAudiencePhones(spec model.AudienceSpec) ([]string, error) {
	return m.phones, nil
}

func (m *mockCustomerRepo) ListWinbackCandidates(now time.Time, limit int) ([]*model.Customer, error) {
	return m.winback, nil
}

type mockCartRepo struct {
	candidates []*model.Cart
	increments map[int]int
}

func (m *mockCartRepo) ListRecoveryCandidates(now time.Time, minTotal float64, limit int) ([]*model.Cart, error) {
	out := []*model.Cart{}
	for _, c := range m.candidates {
		if c.Total >= minTotal {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCartRepo) IncrementReminder(id int, at time.Time) error {
	if m.increments == nil {
		m.increments = map[int]int{}
	}
	m.increments[id]++
	return nil
}

type mockOrderRepo struct {
	payment  []*model.Order
	delivery []*model.Order
	review   []*model.Order

	deliveryMarked map[int]bool
	reviewMarked   map[int]bool
}

func (m *mockOrderRepo) ListPaymentReminderCandidates(now time.Time, limit int) ([]*model.Order, error) {
	return m.payment, nil
}

func (m *mockOrderRepo) ListDeliveryCheckCandidates(now time.Time, limit int) ([]*model.Order, error) {
	return m.delivery, nil
}

func (m *mockOrderRepo) ListReviewCandidates(now time.Time, limit int) ([]*model.Order, error) {
	return m.review, nil
}

func (m *mockOrderRepo) MarkDeliveryCheckSent(id int) error {
	if m.deliveryMarked == nil {
		m.deliveryMarked = map[int]bool{}
	}
	m.deliveryMarked[id] = true
	return nil
}

func (m *mockOrderRepo) MarkReviewRequestSent(id int) error {
	if m.reviewMarked == nil {
		m.reviewMarked = map[int]bool{}
	}
	m.reviewMarked[id] = true
	return nil
}

type mockEventRepo struct {
	events []model.ReminderEvent
}

func (m *mockEventRepo) Record(eventType, subject string, at time.Time) error {
	m.events = append(m.events, model.ReminderEvent{EventType: eventType, Subject: subject, CreatedAt: at})
	return nil
}

func (m *mockEventRepo) SentSince(eventType, subject string, since time.Time) (bool, error) {
	for _, e := range m.events {
		if e.EventType == eventType && e.Subject == subject && !e.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// fakeSender records every outbound call and can be told to fail or panic
// for specific phones.
type sentCall struct {
	Kind  string
	Phone string
	Body  string
}

type fakeSender struct {
	calls  []sentCall
	nextID int

	failPhones  map[string]string // phone -> gateway error text
	errPhones   map[string]bool   // phone -> transport error
	panicPhones map[string]bool

	onSend func(phone string)
}

func (s *fakeSender) result(kind, phone, body string) (*gateway.SendResult, error) {
	if s.panicPhones[phone] {
		panic("gateway client wedged")
	}
	if s.onSend != nil {
		s.onSend(phone)
	}
	s.calls = append(s.calls, sentCall{Kind: kind, Phone: phone, Body: body})
	if s.errPhones[phone] {
		return nil, fmt.Errorf("connection reset by peer")
	}
	if detail, ok := s.failPhones[phone]; ok {
		return &gateway.SendResult{Success: false, Error: detail}, nil
	}
	s.nextID++
	return &gateway.SendResult{Success: true, MessageID: fmt.Sprintf("wamid.%d", s.nextID)}, nil
}

func (s *fakeSender) SendText(ctx context.Context, phone, text string) (*gateway.SendResult, error) {
	return s.result(model.MessageKindText, phone, text)
}

func (s *fakeSender) SendTemplate(ctx context.Context, phone, name string, params []string) (*gateway.SendResult, error) {
	return s.result(model.MessageKindTemplate, phone, name)
}

func (s *fakeSender) SendImage(ctx context.Context, phone, mediaURL, caption string) (*gateway.SendResult, error) {
	return s.result(model.MessageKindImage, phone, caption)
}

func (s *fakeSender) SendButtons(ctx context.Context, phone, body string, buttons []model.Button) (*gateway.SendResult, error) {
	return s.result(model.MessageKindButtons, phone, body)
}
