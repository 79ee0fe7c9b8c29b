// internal/service/audience.go
package service

import (
	appErrors "github.com/waseller/campaign-engine/internal/errors"
	"github.com/waseller/campaign-engine/internal/model"
	"github.com/waseller/campaign-engine/internal/repository"
)

// AudienceResolver turns a target spec into a preview count or the full
// phone list used for enrollment. Only opted-in customers ever qualify.
type AudienceResolver struct {
	Customers repository.CustomerRepositoryInterface
}

func validateAudience(spec model.AudienceSpec) error {
	switch spec.Kind {
	case model.AudienceAll, model.AudienceCustom:
		return nil
	case model.AudienceLabels:
		if len(spec.Labels) == 0 {
			return appErrors.NewValidation("audience", "labels target requires at least one label")
		}
	case model.AudienceSegment:
		if spec.Segment == "" {
			return appErrors.NewValidation("audience", "segment target requires a segment name")
		}
	case model.AudienceTier:
		if spec.Tier == "" {
			return appErrors.NewValidation("audience", "tier target requires a tier name")
		}
	default:
		return appErrors.NewValidation("audience", "unknown target kind: "+spec.Kind)
	}
	return nil
}

// Count returns the audience size without enrolling anyone.
func (r *AudienceResolver) Count(spec model.AudienceSpec) (int, error) {
	if err := validateAudience(spec); err != nil {
		return 0, err
	}
	return r.Customers.CountAudience(spec)
}

// Resolve returns the full list of target phone numbers.
func (r *AudienceResolver) Resolve(spec model.AudienceSpec) ([]string, error) {
	if err := validateAudience(spec); err != nil {
		return nil, err
	}
	return r.Customers.ListAudiencePhones(spec)
}
