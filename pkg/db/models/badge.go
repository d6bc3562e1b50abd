package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/motivhq/scoring-backend/pkg/enums"
)

// Badge is a definition of an achievement. Criteria holds the predicate tree
// evaluated against a user's scoring state.
type Badge struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Slug        string              `gorm:"column:slug;not null"`
	Name        string              `gorm:"column:name;not null"`
	Description string              `gorm:"column:description;not null"`
	Category    enums.BadgeCategory `gorm:"column:category;type:badge_category_enum;not null"`
	Rarity      enums.BadgeRarity   `gorm:"column:rarity;type:badge_rarity_enum;not null"`
	BonusPoints int64               `gorm:"column:bonus_points;not null;default:0"`
	Criteria    json.RawMessage     `gorm:"column:criteria;type:jsonb;not null"`
	Active      bool                `gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (Badge) TableName() string {
	return "badges"
}
