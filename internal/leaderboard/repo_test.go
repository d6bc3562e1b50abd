package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/motivhq/scoring-backend/pkg/db/models"
	"github.com/motivhq/scoring-backend/pkg/enums"
)

func setupLeaderboardTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	scoreSnapshots := `
CREATE TABLE IF NOT EXISTS score_snapshots (
  user_id TEXT PRIMARY KEY,
  lifetime_total INTEGER NOT NULL DEFAULT 0,
  monthly_total INTEGER NOT NULL DEFAULT 0,
  month_key TEXT NOT NULL,
  project_totals TEXT,
  last_event_seq INTEGER NOT NULL DEFAULT 0,
  event_count INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME
);`
	rankBaselines := `
CREATE TABLE IF NOT EXISTS rank_baselines (
  id TEXT PRIMARY KEY,
  period TEXT NOT NULL,
  period_start DATETIME NOT NULL,
  user_id TEXT NOT NULL,
  rank INTEGER NOT NULL,
  points INTEGER NOT NULL,
  captured_at DATETIME,
  UNIQUE (period, period_start, user_id)
);`
	require.NoError(t, db.Exec(scoreSnapshots).Error)
	require.NoError(t, db.Exec(rankBaselines).Error)
	return db
}

func seedSnapshot(t *testing.T, db *gorm.DB, userID uuid.UUID, lifetime, monthly int64, monthKey string) {
	t.Helper()
	require.NoError(t, db.Create(&models.ScoreSnapshot{
		UserID:        userID,
		LifetimeTotal: lifetime,
		MonthlyTotal:  monthly,
		MonthKey:      monthKey,
	}).Error)
}

func TestRepository_ListRankedTieBreak(t *testing.T) {
	db := setupLeaderboardTestDB(t)
	repo := NewRepository(db)

	userA := uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000")
	userB := uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000")
	userC := uuid.MustParse("cccccccc-0000-0000-0000-000000000000")
	seedSnapshot(t, db, userB, 100, 10, "2026-08")
	seedSnapshot(t, db, userA, 100, 10, "2026-08")
	seedSnapshot(t, db, userC, 250, 5, "2026-08")

	rows, err := repo.ListRanked(context.Background(), enums.LeaderboardPeriodLifetime, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Highest points first; equal points always order by user id.
	require.Equal(t, userC, rows[0].UserID)
	require.Equal(t, userA, rows[1].UserID)
	require.Equal(t, userB, rows[2].UserID)

	again, err := repo.ListRanked(context.Background(), enums.LeaderboardPeriodLifetime, "", 10, 0)
	require.NoError(t, err)
	require.Equal(t, rows, again)
}

func TestRepository_ListRankedMonthlyFiltersStaleMonths(t *testing.T) {
	db := setupLeaderboardTestDB(t)
	repo := NewRepository(db)

	current := uuid.New()
	stale := uuid.New()
	seedSnapshot(t, db, current, 500, 40, "2026-08")
	seedSnapshot(t, db, stale, 900, 99, "2026-07")

	rows, err := repo.ListRanked(context.Background(), enums.LeaderboardPeriodMonthly, "2026-08", 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, current, rows[0].UserID)
	require.Equal(t, int64(40), rows[0].Points)
}

func TestRepository_ListRankedPaginates(t *testing.T) {
	db := setupLeaderboardTestDB(t)
	repo := NewRepository(db)

	for i := int64(1); i <= 5; i++ {
		seedSnapshot(t, db, uuid.New(), i*10, i, "2026-08")
	}

	rows, err := repo.ListRanked(context.Background(), enums.LeaderboardPeriodLifetime, "", 2, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, int64(30), rows[0].Points)
	require.Equal(t, int64(20), rows[1].Points)
}

func TestRepository_BaselineUpsertAndLookup(t *testing.T) {
	db := setupLeaderboardTestDB(t)
	repo := NewRepository(db)

	userID := uuid.New()
	periodStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	first := models.RankBaseline{
		ID:          uuid.New(),
		Period:      enums.LeaderboardPeriodMonthly,
		PeriodStart: periodStart,
		UserID:      userID,
		Rank:        7,
		Points:      120,
	}
	require.NoError(t, repo.UpsertBaselines(context.Background(), []models.RankBaseline{first}))

	// Re-running the capture for the same window overwrites the row.
	second := first
	second.ID = uuid.New()
	second.Rank = 3
	second.Points = 180
	require.NoError(t, repo.UpsertBaselines(context.Background(), []models.RankBaseline{second}))

	ranks, err := repo.BaselineRanks(context.Background(), enums.LeaderboardPeriodMonthly, periodStart)
	require.NoError(t, err)
	require.Len(t, ranks, 1)
	require.Equal(t, int64(3), ranks[userID])

	none, err := repo.BaselineRanks(context.Background(), enums.LeaderboardPeriodLifetime, periodStart)
	require.NoError(t, err)
	require.Empty(t, none)
}
