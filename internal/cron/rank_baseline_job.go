package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/motivhq/scoring-backend/internal/leaderboard"
	"github.com/motivhq/scoring-backend/pkg/enums"
	"github.com/motivhq/scoring-backend/pkg/logger"
)

type baselineCapturer interface {
	CaptureBaseline(ctx context.Context, period enums.LeaderboardPeriod, periodStart time.Time) (int, error)
}

type RankBaselineJobParams struct {
	Logger      *logger.Logger
	Leaderboard baselineCapturer
}

// NewRankBaselineJob builds the job that captures the rank baselines trends
// are computed against: the current week for lifetime, the current month for
// monthly.
func NewRankBaselineJob(params RankBaselineJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Leaderboard == nil {
		return nil, fmt.Errorf("leaderboard service required")
	}
	return &rankBaselineJob{
		logg:        params.Logger,
		leaderboard: params.Leaderboard,
		now:         time.Now,
	}, nil
}

type rankBaselineJob struct {
	logg        *logger.Logger
	leaderboard baselineCapturer
	now         func() time.Time
}

func (j *rankBaselineJob) Name() string { return "rank-baseline" }

func (j *rankBaselineJob) Run(ctx context.Context) error {
	now := j.now().UTC()

	var errs error
	for _, period := range []enums.LeaderboardPeriod{
		enums.LeaderboardPeriodLifetime,
		enums.LeaderboardPeriodMonthly,
	} {
		periodStart := leaderboard.PeriodStart(period, now)
		captured, err := j.leaderboard.CaptureBaseline(ctx, period, periodStart)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("capture %s baseline: %w", period, err))
			continue
		}
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"period":       period,
			"period_start": periodStart.Format("2006-01-02"),
			"captured":     captured,
		})
		j.logg.Info(logCtx, "rank baseline captured")
	}
	return errs
}
