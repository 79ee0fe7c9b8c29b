// internal/model/campaign.go
package model

import "time"

// Campaign status constants
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusSending   = "sending"
	CampaignStatusPaused    = "paused"
	CampaignStatusCompleted = "completed"
	CampaignStatusFailed    = "failed"
)

// Message kind constants
const (
	MessageKindText     = "text"
	MessageKindTemplate = "template"
	MessageKindImage    = "image"
	MessageKindButtons  = "buttons"
)

// Audience kind constants
const (
	AudienceAll     = "all"
	AudienceLabels  = "labels"
	AudienceSegment = "segment"
	AudienceTier    = "tier"
	AudienceCustom  = "custom"
)

// Button is one reply option attached to a buttons message.
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// MessageSpec describes what a campaign sends. Structured parts (params,
// buttons) are serialized to text columns by the repository, never here.
type MessageSpec struct {
	Kind           string   `json:"kind"`
	Body           string   `json:"body,omitempty"`
	TemplateName   string   `json:"template_name,omitempty"`
	TemplateParams []string `json:"template_params,omitempty"`
	MediaURL       string   `json:"media_url,omitempty"`
	Buttons        []Button `json:"buttons,omitempty"`
}

// AudienceSpec describes who a campaign targets. opted_in customers only,
// always; the kind selects which extra predicate applies.
type AudienceSpec struct {
	Kind           string   `json:"kind"`
	Labels         []string `json:"labels,omitempty"`
	Segment        string   `json:"segment,omitempty"`
	Tier           string   `json:"tier,omitempty"`
	MinOrders      *int     `json:"min_orders,omitempty"`
	MaxOrders      *int     `json:"max_orders,omitempty"`
	MinSpent       *float64 `json:"min_spent,omitempty"`
	LastActiveDays *int     `json:"last_active_days,omitempty"`
}

type Campaign struct {
	ID       int          `json:"id"`
	Name     string       `json:"name"`
	Message  MessageSpec  `json:"message"`
	Audience AudienceSpec `json:"audience"`
	Status   string       `json:"status"`

	// Counters are monotonically non-decreasing once sending begins.
	// TargetCount is fixed at enrollment and never recomputed.
	TargetCount    int `json:"target_count"`
	SentCount      int `json:"sent_count"`
	DeliveredCount int `json:"delivered_count"`
	ReadCount      int `json:"read_count"`
	FailedCount    int `json:"failed_count"`

	RatePerMinute int `json:"rate_per_minute"`

	CreatedAt   time.Time  `json:"created_at"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CampaignWithStats combines a campaign with live per-status recipient counts.
type CampaignWithStats struct {
	Campaign
	Stats map[string]int `json:"stats"`
}
