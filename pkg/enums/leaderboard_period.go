package enums

import "fmt"

// LeaderboardPeriod selects which running total a ranking is computed over.
type LeaderboardPeriod string

const (
	LeaderboardPeriodLifetime LeaderboardPeriod = "lifetime"
	LeaderboardPeriodMonthly  LeaderboardPeriod = "monthly"
)

var validLeaderboardPeriods = []LeaderboardPeriod{
	LeaderboardPeriodLifetime,
	LeaderboardPeriodMonthly,
}

// IsValid reports whether the value matches the canonical leaderboard period enum.
func (p LeaderboardPeriod) IsValid() bool {
	for _, candidate := range validLeaderboardPeriods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseLeaderboardPeriod converts raw input into LeaderboardPeriod.
func ParseLeaderboardPeriod(value string) (LeaderboardPeriod, error) {
	for _, candidate := range validLeaderboardPeriods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid leaderboard period %q", value)
}
