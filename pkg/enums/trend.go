package enums

// Trend describes how a user's rank moved relative to the last captured baseline.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

var validTrends = []Trend{
	TrendUp,
	TrendDown,
	TrendStable,
}

func (t Trend) IsValid() bool {
	for _, candidate := range validTrends {
		if candidate == t {
			return true
		}
	}
	return false
}
