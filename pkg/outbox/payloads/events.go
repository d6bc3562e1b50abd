package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/motivhq/scoring-backend/pkg/enums"
)

// PointsRecordedEvent is emitted for every event appended to the ledger.
type PointsRecordedEvent struct {
	EventID       uuid.UUID         `json:"event_id"`
	UserID        uuid.UUID         `json:"user_id"`
	ProjectID     *uuid.UUID        `json:"project_id,omitempty"`
	Delta         int64             `json:"delta"`
	Reason        enums.PointReason `json:"reason"`
	UserSeq       int64             `json:"user_seq"`
	LifetimeTotal int64             `json:"lifetime_total"`
	MonthlyTotal  int64             `json:"monthly_total"`
}

// BadgeAwardedEvent tells downstream systems to congratulate the user.
type BadgeAwardedEvent struct {
	AwardID     uuid.UUID           `json:"award_id"`
	UserID      uuid.UUID           `json:"user_id"`
	BadgeID     uuid.UUID           `json:"badge_id"`
	BadgeSlug   string              `json:"badge_slug"`
	BadgeName   string              `json:"badge_name"`
	Rarity      enums.BadgeRarity   `json:"rarity"`
	Category    enums.BadgeCategory `json:"category"`
	BonusPoints int64               `json:"bonus_points"`
	AwardedAt   time.Time           `json:"awarded_at"`
}

// SnapshotReconciledEvent reports a snapshot that drifted from its ledger and
// was rebuilt by the reconcile job.
type SnapshotReconciledEvent struct {
	UserID           uuid.UUID `json:"user_id"`
	PreviousLifetime int64     `json:"previous_lifetime"`
	RebuiltLifetime  int64     `json:"rebuilt_lifetime"`
	EventCount       int64     `json:"event_count"`
	ReconciledAt     time.Time `json:"reconciled_at"`
}

// MonthlyRolloverEvent marks the first event of a new month for a user.
type MonthlyRolloverEvent struct {
	UserID        uuid.UUID `json:"user_id"`
	PreviousMonth string    `json:"previous_month"`
	NewMonth      string    `json:"new_month"`
	ClosingTotal  int64     `json:"closing_total"`
}
