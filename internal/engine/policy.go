package engine

import "github.com/alanyoungcy/marketwatch/internal/domain"

// PolicyInput is what a status policy sees for one market after its
// snapshot has been merged.
type PolicyInput struct {
	Observed     domain.MarketStatus
	Listed       bool
	ListsEmpty   bool
	MissingCount int
}

// Policy may override the observed status of a market before transitions
// are evaluated.
type Policy func(PolicyInput) domain.MarketStatus

// ObservedStatus trusts the detail page.
func ObservedStatus(in PolicyInput) domain.MarketStatus {
	return in.Observed
}

// DisappearancePolicy treats an open market as closed once it has been
// absent from both list sections for threshold consecutive ticks, counting
// the current one. An empty list result never counts as absence. A threshold
// of 0 or less disables inference.
func DisappearancePolicy(threshold int) Policy {
	if threshold <= 0 {
		return ObservedStatus
	}
	return func(in PolicyInput) domain.MarketStatus {
		if in.Observed != domain.StatusOpen || in.ListsEmpty || in.Listed {
			return in.Observed
		}
		if in.MissingCount+1 >= threshold {
			return domain.StatusClosed
		}
		return in.Observed
	}
}
