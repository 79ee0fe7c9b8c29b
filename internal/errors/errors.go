// internal/errors/errors.go
package appErrors

import "fmt"

// ErrCampaignNotFound is returned when a campaign id does not exist.
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrValidation covers rejected campaign input (missing name, missing body, ...).
type ErrValidation struct {
	Field  string
	Reason string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) error {
	return &ErrValidation{Field: field, Reason: reason}
}

// ErrInvalidTransition is returned by the status transition helper when the
// requested move is not in the state machine table.
type ErrInvalidTransition struct {
	CampaignID int
	From       string
	To         string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("campaign %d: cannot transition from %s to %s", e.CampaignID, e.From, e.To)
}

func NewInvalidTransition(id int, from, to string) error {
	return &ErrInvalidTransition{CampaignID: id, From: from, To: to}
}

// ErrEmptyAudience marks a campaign start whose resolved audience had no members.
type ErrEmptyAudience struct {
	CampaignID int
}

func (e *ErrEmptyAudience) Error() string {
	return fmt.Sprintf("campaign %d resolved an empty audience", e.CampaignID)
}

func NewEmptyAudience(id int) error {
	return &ErrEmptyAudience{CampaignID: id}
}
