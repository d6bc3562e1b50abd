package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePointReason(t *testing.T) {
	reason, err := ParsePointReason("project_live")
	require.NoError(t, err)
	assert.Equal(t, PointReasonProjectLive, reason)

	_, err = ParsePointReason("bribery")
	assert.Error(t, err)
}

func TestPointReasonAllowsNegativeDelta(t *testing.T) {
	assert.True(t, PointReasonAdjustment.AllowsNegativeDelta())
	assert.False(t, PointReasonVote.AllowsNegativeDelta())
	assert.False(t, PointReasonBadgeAwarded.AllowsNegativeDelta())
}

func TestParseLeaderboardPeriod(t *testing.T) {
	period, err := ParseLeaderboardPeriod("monthly")
	require.NoError(t, err)
	assert.Equal(t, LeaderboardPeriodMonthly, period)

	_, err = ParseLeaderboardPeriod("weekly")
	assert.Error(t, err)
}

func TestTrendIsValid(t *testing.T) {
	assert.True(t, TrendUp.IsValid())
	assert.True(t, TrendStable.IsValid())
	assert.False(t, Trend("sideways").IsValid())
}

func TestBadgeEnums(t *testing.T) {
	assert.True(t, BadgeCategoryMilestone.IsValid())
	assert.False(t, BadgeCategory("vanity").IsValid())

	rarity, err := ParseBadgeRarity("legendary")
	require.NoError(t, err)
	assert.Equal(t, BadgeRarityLegendary, rarity)
}
