package ledger

import (
	"github.com/google/uuid"

	"github.com/motivhq/scoring-backend/pkg/db/models"
	"github.com/motivhq/scoring-backend/pkg/types"
)

// Replay folds a user's full event history into a fresh snapshot. The result
// is what the stored snapshot must equal; reconciliation rebuilds from it.
// Events must be ordered by user_seq ascending.
func Replay(userID uuid.UUID, events []models.PointEvent) *models.ScoreSnapshot {
	snapshot := &models.ScoreSnapshot{
		UserID:        userID,
		ProjectTotals: types.ProjectTotals{},
	}

	for i := range events {
		event := &events[i]
		month := event.CreatedAt.UTC().Format(monthKeyLayout)
		if snapshot.MonthKey != month {
			snapshot.MonthKey = month
			snapshot.MonthlyTotal = 0
		}
		applyEvent(snapshot, event)
	}

	return snapshot
}
