package matcher

import (
	"fmt"

	"credex/internal/credential/models"
)

// SelectionStrategy picks one credential from candidates given in store order.
type SelectionStrategy interface {
	Name() string
	Pick(candidates []*models.Credential) *models.Credential
}

// FirstMatch picks the earliest stored candidate.
type FirstMatch struct{}

func (FirstMatch) Name() string { return "first" }

func (FirstMatch) Pick(candidates []*models.Credential) *models.Credential {
	if len(candidates) == 0 {
		return nil
	}
	return candidates[0]
}

// MostRecent picks the candidate with the latest CreatedAt. Ties keep store order.
type MostRecent struct{}

func (MostRecent) Name() string { return "most_recent" }

func (MostRecent) Pick(candidates []*models.Credential) *models.Credential {
	var best *models.Credential
	for _, c := range candidates {
		if best == nil || c.CreatedAt.After(best.CreatedAt) {
			best = c
		}
	}
	return best
}

// StrategyByName resolves the VERIFICATION_SELECTION setting.
func StrategyByName(name string) (SelectionStrategy, error) {
	switch name {
	case "", "first":
		return FirstMatch{}, nil
	case "most_recent":
		return MostRecent{}, nil
	default:
		return nil, fmt.Errorf("unknown selection strategy %q", name)
	}
}
