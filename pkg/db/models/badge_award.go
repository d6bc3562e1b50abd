package models

import (
	"time"

	"github.com/google/uuid"
)

// BadgeAward links a user to a badge they earned. Awards are permanent; the
// unique (user_id, badge_id) constraint makes re-evaluation idempotent.
type BadgeAward struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID  `gorm:"column:user_id;type:uuid;not null"`
	BadgeID   uuid.UUID  `gorm:"column:badge_id;type:uuid;not null"`
	EventID   *uuid.UUID `gorm:"column:event_id;type:uuid"`
	AwardedAt time.Time  `gorm:"column:awarded_at;autoCreateTime"`
}

func (BadgeAward) TableName() string {
	return "badge_awards"
}
