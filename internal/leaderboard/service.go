package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/motivhq/scoring-backend/pkg/db/models"
	"github.com/motivhq/scoring-backend/pkg/enums"
	pkgerrors "github.com/motivhq/scoring-backend/pkg/errors"
	"github.com/motivhq/scoring-backend/pkg/logger"
	"github.com/motivhq/scoring-backend/pkg/pagination"
)

const monthKeyLayout = "2006-01"

const captureBatchSize = 500

type pageCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	LeaderboardPageKey(period string, limit, offset int) string
}

// Service computes rankings over score snapshots.
type Service interface {
	GetRanking(ctx context.Context, params RankingParams) (*Ranking, error)
	CaptureBaseline(ctx context.Context, period enums.LeaderboardPeriod, periodStart time.Time) (int, error)
}

type service struct {
	repo     Repository
	cache    pageCache
	logg     *logger.Logger
	cacheTTL time.Duration
	now      func() time.Time
}

// RankingParams selects a leaderboard page. ForceRefresh bypasses the cache
// and overwrites it with a fresh computation.
type RankingParams struct {
	Period       enums.LeaderboardPeriod
	Limit        int
	Offset       int
	ForceRefresh bool
}

// Entry is one leaderboard row. Rank is offset-adjusted and total-ordered:
// ties on points break on user id, so no two entries share a rank.
type Entry struct {
	Rank   int64       `json:"rank"`
	UserID uuid.UUID   `json:"user_id"`
	Points int64       `json:"points"`
	Trend  enums.Trend `json:"trend"`
}

// Ranking is one page of the leaderboard.
type Ranking struct {
	Period  enums.LeaderboardPeriod `json:"period"`
	Entries []Entry                 `json:"entries"`
}

// NewService wires the leaderboard service with the required dependencies.
func NewService(repo Repository, cache pageCache, logg *logger.Logger, cacheTTL time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("leaderboard repository required")
	}
	if cache == nil {
		return nil, fmt.Errorf("page cache required")
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &service{
		repo:     repo,
		cache:    cache,
		logg:     logg,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}, nil
}

func (s *service) GetRanking(ctx context.Context, params RankingParams) (*Ranking, error) {
	if !params.Period.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid period %q", params.Period))
	}
	limit := pagination.NormalizeLimit(params.Limit)
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	cacheKey := s.cache.LeaderboardPageKey(string(params.Period), limit, offset)
	if !params.ForceRefresh {
		if cached := s.readCache(ctx, cacheKey); cached != nil {
			return cached, nil
		}
	}

	ranking, err := s.compute(ctx, params.Period, limit, offset)
	if err != nil {
		return nil, err
	}
	s.writeCache(ctx, cacheKey, ranking)

	return ranking, nil
}

func (s *service) compute(ctx context.Context, period enums.LeaderboardPeriod, limit, offset int) (*Ranking, error) {
	now := s.now().UTC()

	rows, err := s.repo.ListRanked(ctx, period, now.Format(monthKeyLayout), limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ranked users")
	}

	baselines, err := s.repo.BaselineRanks(ctx, period, PeriodStart(period, now))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rank baselines")
	}

	entries := make([]Entry, 0, len(rows))
	for i, row := range rows {
		rank := int64(offset + i + 1)
		entries = append(entries, Entry{
			Rank:   rank,
			UserID: row.UserID,
			Points: row.Points,
			Trend:  trendFor(rank, row.UserID, baselines),
		})
	}

	return &Ranking{Period: period, Entries: entries}, nil
}

// trendFor compares current rank to the baseline captured at the start of the
// period window. Lower rank numbers are better. Users absent from the
// baseline read as stable.
func trendFor(rank int64, userID uuid.UUID, baselines map[uuid.UUID]int64) enums.Trend {
	baseline, ok := baselines[userID]
	if !ok {
		return enums.TrendStable
	}
	switch {
	case rank < baseline:
		return enums.TrendUp
	case rank > baseline:
		return enums.TrendDown
	}
	return enums.TrendStable
}

// CaptureBaseline scans the full ranking for the period and persists it as
// the trend reference for the window starting at periodStart.
func (s *service) CaptureBaseline(ctx context.Context, period enums.LeaderboardPeriod, periodStart time.Time) (int, error) {
	if !period.IsValid() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid period %q", period))
	}

	monthKey := s.now().UTC().Format(monthKeyLayout)
	periodStart = periodStart.UTC().Truncate(24 * time.Hour)

	captured := 0
	offset := 0
	for {
		rows, err := s.repo.ListRanked(ctx, period, monthKey, captureBatchSize, offset)
		if err != nil {
			return captured, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ranked users")
		}
		if len(rows) == 0 {
			break
		}

		baselines := make([]models.RankBaseline, 0, len(rows))
		for i, row := range rows {
			baselines = append(baselines, models.RankBaseline{
				ID:          uuid.New(),
				Period:      period,
				PeriodStart: periodStart,
				UserID:      row.UserID,
				Rank:        int64(offset + i + 1),
				Points:      row.Points,
			})
		}
		if err := s.repo.UpsertBaselines(ctx, baselines); err != nil {
			return captured, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save rank baselines")
		}

		captured += len(rows)
		if len(rows) < captureBatchSize {
			break
		}
		offset += captureBatchSize
	}

	return captured, nil
}

// PeriodStart returns the trend window opening for the period: the current
// UTC month for monthly rankings, the current ISO week's Monday for lifetime.
func PeriodStart(period enums.LeaderboardPeriod, now time.Time) time.Time {
	now = now.UTC()
	if period == enums.LeaderboardPeriodMonthly {
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}

	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	monday := now.AddDate(0, 0, -(weekday - 1))
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *service) readCache(ctx context.Context, key string) *Ranking {
	payload, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "cache_key", key), "leaderboard cache read failed")
		}
		return nil
	}

	var ranking Ranking
	if err := json.Unmarshal([]byte(payload), &ranking); err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "cache_key", key), "leaderboard cache entry corrupt")
		}
		return nil
	}
	return &ranking
}

func (s *service) writeCache(ctx context.Context, key string, ranking *Ranking) {
	payload, err := json.Marshal(ranking)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(payload), s.cacheTTL); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "cache_key", key), "leaderboard cache write failed")
	}
}
