package controllers

import (
	"net/http"
	"strings"

	"github.com/motivhq/scoring-backend/api/responses"
	"github.com/motivhq/scoring-backend/api/validators"
	"github.com/motivhq/scoring-backend/internal/leaderboard"
	"github.com/motivhq/scoring-backend/pkg/enums"
	pkgerrors "github.com/motivhq/scoring-backend/pkg/errors"
	"github.com/motivhq/scoring-backend/pkg/logger"
)

// GetLeaderboard returns one ranking page. Defaults to the lifetime period.
func GetLeaderboard(svc leaderboard.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "leaderboard service unavailable"))
			return
		}

		period := enums.LeaderboardPeriodLifetime
		if raw := strings.TrimSpace(r.URL.Query().Get("period")); raw != "" {
			parsed, err := enums.ParseLeaderboardPeriod(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid period"))
				return
			}
			period = parsed
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1_000_000)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		refresh := strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("refresh")), "true")

		ranking, err := svc.GetRanking(ctx, leaderboard.RankingParams{
			Period:       period,
			Limit:        limit,
			Offset:       offset,
			ForceRefresh: refresh,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, ranking)
	}
}
