package routes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/motivhq/scoring-backend/internal/badges"
	"github.com/motivhq/scoring-backend/internal/leaderboard"
	"github.com/motivhq/scoring-backend/internal/ledger"
	"github.com/motivhq/scoring-backend/internal/scores"
	pkgauth "github.com/motivhq/scoring-backend/pkg/auth"
	"github.com/motivhq/scoring-backend/pkg/config"
	"github.com/motivhq/scoring-backend/pkg/db/models"
	"github.com/motivhq/scoring-backend/pkg/enums"
)

type fakeRedis struct {
	data map[string]string
	hits map[string]int64
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string), hits: make(map[string]int64)}
}

func (f *fakeRedis) Ping(_ context.Context) error { return nil }

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", goredis.Nil
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeRedis) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("test:idem:%s:%s", scope, id)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeRedis) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	f.hits[scope]++
	return f.hits[scope] <= limit, f.hits[scope], nil
}

type fakeLedgerService struct {
	records int
}

func (f *fakeLedgerService) RecordEvent(_ context.Context, input ledger.RecordPointEventInput) (*ledger.RecordResult, error) {
	f.records++
	return &ledger.RecordResult{
		Event:    &models.PointEvent{ID: uuid.New(), UserID: input.UserID, Delta: input.Delta},
		Snapshot: &models.ScoreSnapshot{UserID: input.UserID, LifetimeTotal: input.Delta},
	}, nil
}

func (f *fakeLedgerService) ListEvents(_ context.Context, params ledger.ListParams) (*ledger.ListResult, error) {
	return &ledger.ListResult{}, nil
}

type fakeScoresService struct{}

func (fakeScoresService) GetScore(_ context.Context, userID uuid.UUID) (*scores.ScoreView, error) {
	return &scores.ScoreView{UserID: userID}, nil
}

func (fakeScoresService) ProjectTotal(_ context.Context, _ uuid.UUID) (int64, error) {
	return 0, nil
}

func (fakeScoresService) Rebuild(_ context.Context, userID uuid.UUID) (*models.ScoreSnapshot, error) {
	return &models.ScoreSnapshot{UserID: userID}, nil
}

func (fakeScoresService) Reconcile(_ context.Context) (*scores.ReconcileReport, error) {
	return &scores.ReconcileReport{}, nil
}

type fakeBadgesService struct{}

func (fakeBadgesService) Evaluate(_ context.Context, _ uuid.UUID) ([]models.Badge, error) {
	return nil, nil
}

func (fakeBadgesService) ListUserBadges(_ context.Context, _ uuid.UUID) ([]badges.AwardedBadge, error) {
	return nil, nil
}

type fakeLeaderboardService struct{}

func (fakeLeaderboardService) GetRanking(_ context.Context, params leaderboard.RankingParams) (*leaderboard.Ranking, error) {
	return &leaderboard.Ranking{Period: params.Period}, nil
}

func (fakeLeaderboardService) CaptureBaseline(_ context.Context, _ enums.LeaderboardPeriod, _ time.Time) (int, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60},
	}
}

func newTestRouter(t *testing.T) (http.Handler, *fakeLedgerService) {
	t.Helper()
	ledgerSvc := &fakeLedgerService{}
	router := NewRouter(
		testConfig(),
		nil,
		nil,
		newFakeRedis(),
		ledgerSvc,
		fakeScoresService{},
		fakeBadgesService{},
		fakeLeaderboardService{},
	)
	return router, ledgerSvc
}

func mintToken(t *testing.T, role pkgauth.Role) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(testConfig().JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("MintAccessToken: %v", err)
	}
	return token
}

func TestRouterHealthIsPublic(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestRouterRequiresAuth(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/leaderboard", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRouterAllowsAuthenticatedReads(t *testing.T) {
	router, _ := newTestRouter(t)
	token := mintToken(t, pkgauth.RoleUser)

	paths := []string{
		"/api/v1/leaderboard",
		"/api/v1/users/" + uuid.NewString() + "/score",
		"/api/v1/users/" + uuid.NewString() + "/events",
		"/api/v1/users/" + uuid.NewString() + "/badges",
		"/api/v1/projects/" + uuid.NewString() + "/score",
	}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d: %s", path, resp.Code, resp.Body.String())
		}
	}
}

func TestRouterPointEventsNeedWriteRole(t *testing.T) {
	router, _ := newTestRouter(t)
	token := mintToken(t, pkgauth.RoleUser)

	body := `{"user_id":"` + uuid.NewString() + `","delta":5,"reason":"vote"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/points/events", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Idempotency-Key", "k1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestRouterPointEventsRequireIdempotencyKey(t *testing.T) {
	router, _ := newTestRouter(t)
	token := mintToken(t, pkgauth.RoleService)

	body := `{"user_id":"` + uuid.NewString() + `","delta":5,"reason":"vote"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/points/events", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestRouterThrottlesBadgeEvaluation(t *testing.T) {
	router, _ := newTestRouter(t)
	token := mintToken(t, pkgauth.RoleService)
	path := "/api/v1/users/" + uuid.NewString() + "/badges/evaluate"

	send := func(i int) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", fmt.Sprintf("eval-%d", i))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp
	}

	for i := int64(0); i < badgeEvaluatePolicy.Limit; i++ {
		if resp := send(int(i)); resp.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 got %d: %s", i+1, resp.Code, resp.Body.String())
		}
	}
	resp := send(int(badgeEvaluatePolicy.Limit))
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after %d requests, got %d", badgeEvaluatePolicy.Limit, resp.Code)
	}
}

func TestRouterReplaysIdempotentPointEvents(t *testing.T) {
	router, ledgerSvc := newTestRouter(t)
	token := mintToken(t, pkgauth.RoleService)
	body := `{"user_id":"` + uuid.NewString() + `","delta":5,"reason":"vote"}`

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/points/events", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "k1")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp
	}

	first := send()
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", first.Code, first.Body.String())
	}
	second := send()
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201 got %d", second.Code)
	}
	if ledgerSvc.records != 1 {
		t.Fatalf("expected one ledger write, got %d", ledgerSvc.records)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatal("replayed body should match original")
	}
}
