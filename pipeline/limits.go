package pipeline

// PlanTier identifies a customer's subscription tier.
type PlanTier string

const (
	TierTrial      PlanTier = "trial"
	TierBasic      PlanTier = "basic"
	TierPro        PlanTier = "pro"
	TierEnterprise PlanTier = "enterprise"
)

// Unlimited is the concurrency limit value meaning no limit.
const Unlimited = -1

// ConcurrencyLimit maps a plan tier to the number of jobs an owner may have
// queued or processing at once. Unknown tiers get the most restrictive limit.
func ConcurrencyLimit(tier PlanTier) int {
	switch tier {
	case TierTrial:
		return Unlimited
	case TierBasic:
		return 1
	case TierPro:
		return 3
	case TierEnterprise:
		return 5
	default:
		return 1
	}
}

// PlanResolver looks up the plan tier for an owner. Billing lookups live
// behind this interface; the pipeline only reads the tier at admission time.
type PlanResolver interface {
	PlanFor(ownerID string) (PlanTier, error)
}

// StaticPlans resolves tiers from a fixed map with a default for owners not
// listed. Used in tests and single-tenant deployments.
type StaticPlans struct {
	Plans   map[string]PlanTier
	Default PlanTier
}

// PlanFor implements PlanResolver.
func (p *StaticPlans) PlanFor(ownerID string) (PlanTier, error) {
	if tier, ok := p.Plans[ownerID]; ok {
		return tier, nil
	}
	if p.Default != "" {
		return p.Default, nil
	}
	return TierBasic, nil
}
