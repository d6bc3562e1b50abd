package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/motivhq/scoring-backend/api/routes"
	"github.com/motivhq/scoring-backend/internal/badges"
	"github.com/motivhq/scoring-backend/internal/leaderboard"
	"github.com/motivhq/scoring-backend/internal/ledger"
	"github.com/motivhq/scoring-backend/internal/projects"
	"github.com/motivhq/scoring-backend/internal/scores"
	"github.com/motivhq/scoring-backend/pkg/config"
	"github.com/motivhq/scoring-backend/pkg/db"
	"github.com/motivhq/scoring-backend/pkg/logger"
	"github.com/motivhq/scoring-backend/pkg/metrics"
	"github.com/motivhq/scoring-backend/pkg/migrate"
	"github.com/motivhq/scoring-backend/pkg/outbox"
	"github.com/motivhq/scoring-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ledgerMetrics := metrics.NewLedgerMetrics(prometheus.DefaultRegisterer)

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), dbClient, outboxService, ledgerMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	scoresService, err := scores.NewService(scores.NewRepository(dbClient.DB()), dbClient, outboxService, logg, cfg.Reconcile.BatchSize)
	if err != nil {
		logg.Error(context.Background(), "failed to create scores service", err)
		os.Exit(1)
	}

	projectsClient, err := projects.NewClient(cfg.Projects)
	if err != nil {
		logg.Error(context.Background(), "failed to create projects client", err)
		os.Exit(1)
	}

	badgesService, err := badges.NewService(
		badges.NewRepository(dbClient.DB()),
		dbClient,
		outboxService,
		ledgerService,
		scoresService,
		projectsClient,
		logg,
		ledgerMetrics,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create badges service", err)
		os.Exit(1)
	}

	leaderboardService, err := leaderboard.NewService(leaderboard.NewRepository(dbClient.DB()), redisClient, logg, cfg.Leaderboard.CacheTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create leaderboard service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			ledgerService,
			scoresService,
			badgesService,
			leaderboardService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
