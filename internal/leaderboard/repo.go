package leaderboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/motivhq/scoring-backend/pkg/db/models"
	"github.com/motivhq/scoring-backend/pkg/enums"
)

// RankedUser is one row of the ranking source query.
type RankedUser struct {
	UserID uuid.UUID `json:"user_id"`
	Points int64     `json:"points"`
}

// Repository reads ranking rows from snapshots and manages trend baselines.
type Repository interface {
	ListRanked(ctx context.Context, period enums.LeaderboardPeriod, monthKey string, limit, offset int) ([]RankedUser, error)
	BaselineRanks(ctx context.Context, period enums.LeaderboardPeriod, periodStart time.Time) (map[uuid.UUID]int64, error)
	UpsertBaselines(ctx context.Context, baselines []models.RankBaseline) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a leaderboard repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// ListRanked orders users by points with user_id as the tie-break, so equal
// scores always rank in the same order.
func (r *repository) ListRanked(ctx context.Context, period enums.LeaderboardPeriod, monthKey string, limit, offset int) ([]RankedUser, error) {
	query := r.db.WithContext(ctx).Model(&models.ScoreSnapshot{})

	switch period {
	case enums.LeaderboardPeriodMonthly:
		query = query.
			Select("user_id, monthly_total AS points").
			Where("month_key = ?", monthKey).
			Order("monthly_total DESC, user_id ASC")
	default:
		query = query.
			Select("user_id, lifetime_total AS points").
			Order("lifetime_total DESC, user_id ASC")
	}

	var rows []RankedUser
	if err := query.Limit(limit).Offset(offset).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) BaselineRanks(ctx context.Context, period enums.LeaderboardPeriod, periodStart time.Time) (map[uuid.UUID]int64, error) {
	var baselines []models.RankBaseline
	err := r.db.WithContext(ctx).
		Where("period = ? AND period_start = ?", period, periodStart).
		Find(&baselines).Error
	if err != nil {
		return nil, err
	}

	ranks := make(map[uuid.UUID]int64, len(baselines))
	for _, baseline := range baselines {
		ranks[baseline.UserID] = baseline.Rank
	}
	return ranks, nil
}

// UpsertBaselines writes one capture batch. Re-running a capture for the same
// window overwrites rank and points instead of failing the unique constraint.
func (r *repository) UpsertBaselines(ctx context.Context, baselines []models.RankBaseline) error {
	if len(baselines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "period"}, {Name: "period_start"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"rank", "points", "captured_at"}),
		}).
		Create(&baselines).Error
}
