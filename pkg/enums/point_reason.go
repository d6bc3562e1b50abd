package enums

import "fmt"

// PointReason maps to the point_reason_enum enum in Postgres.
type PointReason string

const (
	PointReasonProjectLive  PointReason = "project_live"
	PointReasonVisitor      PointReason = "visitor"
	PointReasonVote         PointReason = "vote"
	PointReasonGithubStar   PointReason = "github_star"
	PointReasonBadgeAwarded PointReason = "badge_awarded"
	PointReasonAdjustment   PointReason = "adjustment"
)

var validPointReasons = []PointReason{
	PointReasonProjectLive,
	PointReasonVisitor,
	PointReasonVote,
	PointReasonGithubStar,
	PointReasonBadgeAwarded,
	PointReasonAdjustment,
}

// IsValid reports whether the value matches the canonical point reason enum.
func (r PointReason) IsValid() bool {
	for _, candidate := range validPointReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParsePointReason converts raw input into PointReason.
func ParsePointReason(value string) (PointReason, error) {
	for _, candidate := range validPointReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid point reason %q", value)
}

// AllowsNegativeDelta reports whether events with this reason may subtract
// points. Only manual adjustments can take points away.
func (r PointReason) AllowsNegativeDelta() bool {
	return r == PointReasonAdjustment
}
