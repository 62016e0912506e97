package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() *PlanCatalog {
	return NewPlanCatalog([]Plan{
		{Tier: TierWeek, AmountMinor: 129900, Currency: "INR", ProviderPlanID: "plan_w", DurationDays: 7},
		{Tier: TierMonth, AmountMinor: 349900, Currency: "INR", ProviderPlanID: "plan_m", DurationDays: 30},
		{Tier: TierYear, AmountMinor: 2999900, Currency: "INR", ProviderPlanID: "plan_y", DurationDays: 365},
	})
}

func TestCatalogByTier(t *testing.T) {
	c := testCatalog()

	p, ok := c.ByTier(TierMonth)
	require.True(t, ok)
	assert.Equal(t, int64(349900), p.AmountMinor)

	_, ok = c.ByTier(TierTrial)
	assert.False(t, ok)
}

func TestCatalogTierForAmount(t *testing.T) {
	c := testCatalog()

	tier, ok := c.TierForAmount(2999900)
	require.True(t, ok)
	assert.Equal(t, TierYear, tier)

	_, ok = c.TierForAmount(100)
	assert.False(t, ok)
}

func TestCatalogTierForProviderPlan(t *testing.T) {
	c := testCatalog()

	tier, ok := c.TierForProviderPlan("plan_w")
	require.True(t, ok)
	assert.Equal(t, TierWeek, tier)

	_, ok = c.TierForProviderPlan("")
	assert.False(t, ok)
	_, ok = c.TierForProviderPlan("plan_unknown")
	assert.False(t, ok)
}

func TestCatalogListOrder(t *testing.T) {
	plans := testCatalog().List()
	require.Len(t, plans, 3)
	assert.Equal(t, TierWeek, plans[0].Tier)
	assert.Equal(t, TierMonth, plans[1].Tier)
	assert.Equal(t, TierYear, plans[2].Tier)
}

func TestProcessingFee(t *testing.T) {
	assert.Equal(t, int64(2598), ProcessingFee(129900))
	assert.Equal(t, int64(6998), ProcessingFee(349900))
	assert.Equal(t, int64(59998), ProcessingFee(2999900))
	assert.Equal(t, int64(0), ProcessingFee(0))
}
