package scores

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/motivhq/scoring-backend/pkg/db/models"
)

// Repository reads snapshots and the ledger rows reconciliation rebuilds from.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetSnapshot(ctx context.Context, userID uuid.UUID) (*models.ScoreSnapshot, error)
	LockSnapshot(ctx context.Context, userID uuid.UUID) (*models.ScoreSnapshot, error)
	UpsertSnapshot(ctx context.Context, snapshot *models.ScoreSnapshot) error
	ListSnapshotUserIDs(ctx context.Context, afterUser uuid.UUID, limit int) ([]uuid.UUID, error)
	ListAllEventsByUser(ctx context.Context, userID uuid.UUID) ([]models.PointEvent, error)
	SumDeltasByProject(ctx context.Context, projectID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a scores repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetSnapshot(ctx context.Context, userID uuid.UUID) (*models.ScoreSnapshot, error) {
	var snapshot models.ScoreSnapshot
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// LockSnapshot takes the same per-user row lock the ledger write path takes,
// so a rebuild never races a live fold. Applied on postgres only; sqlite
// serializes writes natively.
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

func (r *repository) UpsertSnapshot(ctx context.Context, snapshot *models.ScoreSnapshot) error {
	return r.db.WithContext(ctx).Save(snapshot).Error
}

// ListSnapshotUserIDs pages user ids by keyset so reconciliation never holds
// the full population in memory.
func (r *repository) ListSnapshotUserIDs(ctx context.Context, afterUser uuid.UUID, limit int) ([]uuid.UUID, error) {
	query := r.db.WithContext(ctx).
		Model(&models.ScoreSnapshot{}).
		Order("user_id ASC").
		Limit(limit)
	if afterUser != uuid.Nil {
		query = query.Where("user_id > ?", afterUser)
	}

	var ids []uuid.UUID
	if err := query.Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) ListAllEventsByUser(ctx context.Context, userID uuid.UUID) ([]models.PointEvent, error) {
	var events []models.PointEvent
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("user_seq ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) SumDeltasByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.PointEvent{}).
		Where("project_id = ?", projectID).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&total).Error
	return total, err
}
