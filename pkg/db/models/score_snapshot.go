package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/motivhq/scoring-backend/pkg/types"
)

// ScoreSnapshot holds the derived running totals for one user. It is a pure
// fold over that user's point events and can be rebuilt from them at any time.
type ScoreSnapshot struct {
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;primaryKey"`
	LifetimeTotal int64               `gorm:"column:lifetime_total;not null;default:0"`
	MonthlyTotal  int64               `gorm:"column:monthly_total;not null;default:0"`
	MonthKey      string              `gorm:"column:month_key;type:char(7);not null"`
	ProjectTotals types.ProjectTotals `gorm:"column:project_totals;type:jsonb"`
	LastEventSeq  int64               `gorm:"column:last_event_seq;not null;default:0"`
	EventCount    int64               `gorm:"column:event_count;not null;default:0"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (ScoreSnapshot) TableName() string {
	return "score_snapshots"
}
