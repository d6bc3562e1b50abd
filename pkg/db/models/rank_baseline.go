package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/motivhq/scoring-backend/pkg/enums"
)

// RankBaseline is a periodic capture of a user's leaderboard position, used
// to compute rank trends between captures.
type RankBaseline struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Period      enums.LeaderboardPeriod `gorm:"column:period;type:leaderboard_period_enum;not null"`
	PeriodStart time.Time               `gorm:"column:period_start;type:date;not null"`
	UserID      uuid.UUID               `gorm:"column:user_id;type:uuid;not null"`
	Rank        int64                   `gorm:"column:rank;not null"`
	Points      int64                   `gorm:"column:points;not null"`
	CapturedAt  time.Time               `gorm:"column:captured_at;autoCreateTime"`
}

func (RankBaseline) TableName() string {
	return "rank_baselines"
}
