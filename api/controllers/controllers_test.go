package controllers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/motivhq/scoring-backend/internal/badges"
	"github.com/motivhq/scoring-backend/internal/leaderboard"
	"github.com/motivhq/scoring-backend/internal/ledger"
	"github.com/motivhq/scoring-backend/internal/scores"
	"github.com/motivhq/scoring-backend/pkg/db/models"
	"github.com/motivhq/scoring-backend/pkg/enums"
	"github.com/motivhq/scoring-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func addRouteParam(r *http.Request, key, value string) *http.Request {
	routeCtx := chi.RouteContext(r.Context())
	if routeCtx == nil {
		routeCtx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, routeCtx))
	}
	routeCtx.URLParams.Add(key, value)
	return r
}

type testLedgerService struct {
	recordFn func(ctx context.Context, input ledger.RecordPointEventInput) (*ledger.RecordResult, error)
	listFn   func(ctx context.Context, params ledger.ListParams) (*ledger.ListResult, error)
}

func (s *testLedgerService) RecordEvent(ctx context.Context, input ledger.RecordPointEventInput) (*ledger.RecordResult, error) {
	if s.recordFn != nil {
		return s.recordFn(ctx, input)
	}
	return &ledger.RecordResult{Event: &models.PointEvent{ID: uuid.New()}, Snapshot: &models.ScoreSnapshot{}}, nil
}

func (s *testLedgerService) ListEvents(ctx context.Context, params ledger.ListParams) (*ledger.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return &ledger.ListResult{}, nil
}

type testBadgesService struct {
	evaluateFn func(ctx context.Context, userID uuid.UUID) ([]models.Badge, error)
	listFn     func(ctx context.Context, userID uuid.UUID) ([]badges.AwardedBadge, error)
}

func (s *testBadgesService) Evaluate(ctx context.Context, userID uuid.UUID) ([]models.Badge, error) {
	if s.evaluateFn != nil {
		return s.evaluateFn(ctx, userID)
	}
	return nil, nil
}

func (s *testBadgesService) ListUserBadges(ctx context.Context, userID uuid.UUID) ([]badges.AwardedBadge, error) {
	if s.listFn != nil {
		return s.listFn(ctx, userID)
	}
	return nil, nil
}

type testScoresService struct {
	getFn       func(ctx context.Context, userID uuid.UUID) (*scores.ScoreView, error)
	projectFn   func(ctx context.Context, projectID uuid.UUID) (int64, error)
	rebuildFn   func(ctx context.Context, userID uuid.UUID) (*models.ScoreSnapshot, error)
	reconcileFn func(ctx context.Context) (*scores.ReconcileReport, error)
}

func (s *testScoresService) GetScore(ctx context.Context, userID uuid.UUID) (*scores.ScoreView, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID)
	}
	return &scores.ScoreView{UserID: userID}, nil
}

func (s *testScoresService) ProjectTotal(ctx context.Context, projectID uuid.UUID) (int64, error) {
	if s.projectFn != nil {
		return s.projectFn(ctx, projectID)
	}
	return 0, nil
}

func (s *testScoresService) Rebuild(ctx context.Context, userID uuid.UUID) (*models.ScoreSnapshot, error) {
	if s.rebuildFn != nil {
		return s.rebuildFn(ctx, userID)
	}
	return &models.ScoreSnapshot{UserID: userID}, nil
}

func (s *testScoresService) Reconcile(ctx context.Context) (*scores.ReconcileReport, error) {
	if s.reconcileFn != nil {
		return s.reconcileFn(ctx)
	}
	return &scores.ReconcileReport{}, nil
}

type testLeaderboardService struct {
	rankingFn func(ctx context.Context, params leaderboard.RankingParams) (*leaderboard.Ranking, error)
}

func (s *testLeaderboardService) GetRanking(ctx context.Context, params leaderboard.RankingParams) (*leaderboard.Ranking, error) {
	if s.rankingFn != nil {
		return s.rankingFn(ctx, params)
	}
	return &leaderboard.Ranking{Period: params.Period}, nil
}

func (s *testLeaderboardService) CaptureBaseline(ctx context.Context, period enums.LeaderboardPeriod, periodStart time.Time) (int, error) {
	return 0, nil
}

var (
	_ ledger.Service      = (*testLedgerService)(nil)
	_ badges.Service      = (*testBadgesService)(nil)
	_ scores.Service      = (*testScoresService)(nil)
	_ leaderboard.Service = (*testLeaderboardService)(nil)
)
