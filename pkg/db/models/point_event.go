package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/motivhq/scoring-backend/pkg/enums"
)

// PointEvent records an immutable scoring fact. Rows are append-only; totals
// are always derivable by replaying a user's events in user_seq order.
type PointEvent struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	ProjectID      *uuid.UUID        `gorm:"column:project_id;type:uuid"`
	Delta          int64             `gorm:"column:delta;not null"`
	Reason         enums.PointReason `gorm:"column:reason;type:point_reason_enum;not null"`
	ReferenceType  *string           `gorm:"column:reference_type"`
	ReferenceID    *uuid.UUID        `gorm:"column:reference_id;type:uuid"`
	UserSeq        int64             `gorm:"column:user_seq;not null"`
	IdempotencyKey *string           `gorm:"column:idempotency_key"`
	Metadata       json.RawMessage   `gorm:"column:metadata;type:jsonb"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (PointEvent) TableName() string {
	return "point_events"
}
