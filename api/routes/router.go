package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/motivhq/scoring-backend/api/controllers"
	"github.com/motivhq/scoring-backend/api/middleware"
	"github.com/motivhq/scoring-backend/internal/badges"
	"github.com/motivhq/scoring-backend/internal/leaderboard"
	"github.com/motivhq/scoring-backend/internal/ledger"
	"github.com/motivhq/scoring-backend/internal/scores"
	"github.com/motivhq/scoring-backend/pkg/config"
	"github.com/motivhq/scoring-backend/pkg/db"
	"github.com/motivhq/scoring-backend/pkg/logger"
	"github.com/motivhq/scoring-backend/pkg/redis"
)

// redisConn is the slice of the redis client the router needs: readiness
// pings, the idempotency record store and the rate-limit counter.
type redisConn interface {
	redis.Pinger
	redis.IdempotencyStore
	redis.RateLimiter
}

// Evaluation walks the full badge catalog and calls the project store, so
// per-caller throttling keeps a hot client from hammering both.
var badgeEvaluatePolicy = middleware.RateLimitPolicy{
	Name:   "badge-evaluate",
	Limit:  30,
	Window: time.Minute,
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient redisConn,
	ledgerService ledger.Service,
	scoresService scores.Service,
	badgesService badges.Service,
	leaderboardService leaderboard.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.CORS(),
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessDeps(dbP, redisClient)))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.With(middleware.RequireWriteRole(logg)).
			Post("/points/events", controllers.PostPointEvent(ledgerService, badgesService, logg))

		r.Route("/users/{userId}", func(r chi.Router) {
			r.Get("/score", controllers.GetUserScore(scoresService, logg))
			r.Get("/events", controllers.ListUserEvents(ledgerService, logg))
			r.Get("/badges", controllers.ListUserBadges(badgesService, logg))
			r.With(
				middleware.RequireWriteRole(logg),
				middleware.RateLimit(badgeEvaluatePolicy, redisClient, logg),
			).Post("/badges/evaluate", controllers.EvaluateUserBadges(badgesService, logg))
		})

		r.Get("/projects/{projectId}/score", controllers.GetProjectScore(scoresService, logg))
		r.Get("/leaderboard", controllers.GetLeaderboard(leaderboardService, logg))
	})

	return r
}

// readinessDeps skips nil clients so partial wiring in tests stays usable.
func readinessDeps(dbP db.Pinger, redisClient redisConn) map[string]controllers.Pinger {
	deps := map[string]controllers.Pinger{}
	if dbP != nil {
		deps["db"] = dbP
	}
	if redisClient != nil {
		deps["redis"] = redisClient
	}
	return deps
}
