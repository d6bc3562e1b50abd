package badges

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/motivhq/scoring-backend/pkg/db/models"
	"github.com/motivhq/scoring-backend/pkg/enums"
)

// AwardedBadge is the joined view of a badge and the award that granted it.
type AwardedBadge struct {
	models.Badge
	AwardedAt time.Time  `json:"awarded_at"`
	EventID   *uuid.UUID `json:"event_id,omitempty"`
}

// Repository manages badge definitions and awards.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListActiveBadges(ctx context.Context) ([]models.Badge, error)
	AwardedBadgeIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error)
	CreateAward(ctx context.Context, award *models.BadgeAward) error
	ListUserBadges(ctx context.Context, userID uuid.UUID) ([]AwardedBadge, error)
	CountEventsByReason(ctx context.Context, userID uuid.UUID, reason enums.PointReason) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a badges repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListActiveBadges(ctx context.Context) ([]models.Badge, error) {
	var badges []models.Badge
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("slug ASC").
		Find(&badges).Error; err != nil {
		return nil, err
	}
	return badges, nil
}

func (r *repository) AwardedBadgeIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.BadgeAward{}).
		Where("user_id = ?", userID).
		Pluck("badge_id", &ids).Error; err != nil {
		return nil, err
	}

	awarded := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		awarded[id] = true
	}
	return awarded, nil
}

func (r *repository) CreateAward(ctx context.Context, award *models.BadgeAward) error {
	return r.db.WithContext(ctx).Create(award).Error
}

func (r *repository) ListUserBadges(ctx context.Context, userID uuid.UUID) ([]AwardedBadge, error) {
	var rows []AwardedBadge
	err := r.db.WithContext(ctx).
		Model(&models.BadgeAward{}).
		Select("badges.*, badge_awards.awarded_at, badge_awards.event_id").
		Joins("JOIN badges ON badges.id = badge_awards.badge_id").
		Where("badge_awards.user_id = ?", userID).
		Order("badge_awards.awarded_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountEventsByReason(ctx context.Context, userID uuid.UUID, reason enums.PointReason) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PointEvent{}).
		Where("user_id = ? AND reason = ?", userID, reason).
		Count(&count).Error
	return count, err
}
