package domain

// Plan describes a purchasable tier: its one-time price in minor units and
// the provider-side plan id used for recurring subscriptions. Amounts and
// plan ids come from configuration; this is the resolved catalog.
type Plan struct {
	Tier           string `json:"tier"`
	AmountMinor    int64  `json:"amountMinor"`
	Currency       string `json:"currency"`
	ProviderPlanID string `json:"-"`
	DurationDays   int    `json:"durationDays"`
}

// PlanCatalog resolves tiers to plans in both directions. Lookups by
// amount absorb webhooks whose notes omit the tier.
type PlanCatalog struct {
	plans map[string]Plan
}

func NewPlanCatalog(plans []Plan) *PlanCatalog {
	m := make(map[string]Plan, len(plans))
	for _, p := range plans {
		m[p.Tier] = p
	}
	return &PlanCatalog{plans: m}
}

// ByTier returns the plan for a paid tier.
func (c *PlanCatalog) ByTier(tier string) (Plan, bool) {
	p, ok := c.plans[tier]
	return p, ok
}

// TierForAmount maps a captured amount back to a tier.
func (c *PlanCatalog) TierForAmount(amountMinor int64) (string, bool) {
	for tier, p := range c.plans {
		if p.AmountMinor == amountMinor {
			return tier, true
		}
	}
	return "", false
}

// TierForProviderPlan maps a provider plan id back to a tier.
func (c *PlanCatalog) TierForProviderPlan(planID string) (string, bool) {
	if planID == "" {
		return "", false
	}
	for tier, p := range c.plans {
		if p.ProviderPlanID == planID {
			return tier, true
		}
	}
	return "", false
}

// List returns all plans for the public pricing endpoint.
func (c *PlanCatalog) List() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, tier := range []string{TierWeek, TierMonth, TierYear} {
		if p, ok := c.plans[tier]; ok {
			out = append(out, p)
		}
	}
	return out
}
