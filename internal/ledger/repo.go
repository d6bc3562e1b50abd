package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/motivhq/scoring-backend/pkg/db/models"
	"github.com/motivhq/scoring-backend/pkg/enums"
	"github.com/motivhq/scoring-backend/pkg/pagination"
)

// Repository manages persistence for point events and the per-user snapshot
// row that serializes writes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateEvent(ctx context.Context, event *models.PointEvent) error
	FindByIdempotencyKey(ctx context.Context, key string) (*models.PointEvent, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PointEvent, error)
	ListAllByUser(ctx context.Context, userID uuid.UUID) ([]models.PointEvent, error)
	SumDeltas(ctx context.Context, userID uuid.UUID) (int64, error)
	CountByReason(ctx context.Context, userID uuid.UUID, reason enums.PointReason) (int64, error)
	BadgeExists(ctx context.Context, badgeID uuid.UUID) (bool, error)
	LockSnapshot(ctx context.Context, userID uuid.UUID) (*models.ScoreSnapshot, error)
	CreateSnapshot(ctx context.Context, snapshot *models.ScoreSnapshot) error
	SaveSnapshot(ctx context.Context, snapshot *models.ScoreSnapshot) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateEvent(ctx context.Context, event *models.PointEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, key string) (*models.PointEvent, error) {
	var event models.PointEvent
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PointEvent, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("user_seq DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where("user_seq < ?", cursor.Seq)
	}

	var events []models.PointEvent
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) ListAllByUser(ctx context.Context, userID uuid.UUID) ([]models.PointEvent, error) {
	var events []models.PointEvent
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("user_seq ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) SumDeltas(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.PointEvent{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&total).Error
	return total, err
}

func (r *repository) CountByReason(ctx context.Context, userID uuid.UUID, reason enums.PointReason) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PointEvent{}).
		Where("user_id = ? AND reason = ?", userID, reason).
		Count(&count).Error
	return count, err
}

// BadgeExists resolves a badge_awarded reference against the badge catalog.
func (r *repository) BadgeExists(ctx context.Context, badgeID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Badge{}).
		Where("id = ?", badgeID).
		Count(&count).Error
	return count > 0, err
}

// LockSnapshot loads the user's snapshot under FOR UPDATE so concurrent
// writers for the same user queue behind it. sqlite (tests) serializes writes
// on its own and rejects the clause, so it is applied on postgres only.
func (r *repository) LockSnapshot(ctx context.Context, userID uuid.UUID) (*models.ScoreSnapshot, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var snapshot models.ScoreSnapshot
	if err := query.Where("user_id = ?", userID).First(&snapshot).Error; err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *repository) CreateSnapshot(ctx context.Context, snapshot *models.ScoreSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

func (r *repository) SaveSnapshot(ctx context.Context, snapshot *models.ScoreSnapshot) error {
	return r.db.WithContext(ctx).Save(snapshot).Error
}
