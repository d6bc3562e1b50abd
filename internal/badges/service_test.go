package badges

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/motivhq/scoring-backend/internal/ledger"
	"github.com/motivhq/scoring-backend/internal/projects"
	"github.com/motivhq/scoring-backend/internal/scores"
	"github.com/motivhq/scoring-backend/pkg/db/models"
	"github.com/motivhq/scoring-backend/pkg/enums"
	pkgerrors "github.com/motivhq/scoring-backend/pkg/errors"
	"github.com/motivhq/scoring-backend/pkg/outbox"
)

type fakeRepository struct {
	badges []models.Badge
	awards []models.BadgeAward
	counts map[enums.PointReason]int64

	createAwardErr error
	countErr       error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{counts: make(map[enums.PointReason]int64)}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) ListActiveBadges(ctx context.Context) ([]models.Badge, error) {
	var active []models.Badge
	for _, badge := range f.badges {
		if badge.Active {
			active = append(active, badge)
		}
	}
	return active, nil
}

func (f *fakeRepository) AwardedBadgeIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	awarded := make(map[uuid.UUID]bool)
	for _, award := range f.awards {
		if award.UserID == userID {
			awarded[award.BadgeID] = true
		}
	}
	return awarded, nil
}

func (f *fakeRepository) CreateAward(ctx context.Context, award *models.BadgeAward) error {
	if f.createAwardErr != nil {
		return f.createAwardErr
	}
	for _, existing := range f.awards {
		if existing.UserID == award.UserID && existing.BadgeID == award.BadgeID {
			return errors.New("UNIQUE constraint failed: badge_awards.user_id")
		}
	}
	f.awards = append(f.awards, *award)
	return nil
}

func (f *fakeRepository) ListUserBadges(ctx context.Context, userID uuid.UUID) ([]AwardedBadge, error) {
	var rows []AwardedBadge
	for _, award := range f.awards {
		if award.UserID != userID {
			continue
		}
		for _, badge := range f.badges {
			if badge.ID == award.BadgeID {
				rows = append(rows, AwardedBadge{Badge: badge, AwardedAt: award.AwardedAt, EventID: award.EventID})
			}
		}
	}
	return rows, nil
}

func (f *fakeRepository) CountEventsByReason(ctx context.Context, userID uuid.UUID, reason enums.PointReason) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.counts[reason], nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeOutbox struct {
	emitted []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.emitted = append(f.emitted, event)
	return nil
}

type fakeLedger struct {
	inputs []ledger.RecordPointEventInput
	byKey  map[string]*models.PointEvent
	err    error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{byKey: make(map[string]*models.PointEvent)}
}

func (f *fakeLedger) RecordEvent(ctx context.Context, input ledger.RecordPointEventInput) (*ledger.RecordResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, input)
	if input.IdempotencyKey != nil {
		if existing, ok := f.byKey[*input.IdempotencyKey]; ok {
			return &ledger.RecordResult{Event: existing, Duplicate: true}, nil
		}
	}
	event := &models.PointEvent{
		ID:     uuid.New(),
		UserID: input.UserID,
		Delta:  input.Delta,
		Reason: input.Reason,
	}
	if input.IdempotencyKey != nil {
		f.byKey[*input.IdempotencyKey] = event
	}
	return &ledger.RecordResult{Event: event}, nil
}

type fakeScores struct {
	view *scores.ScoreView
}

func (f *fakeScores) GetScore(ctx context.Context, userID uuid.UUID) (*scores.ScoreView, error) {
	return f.view, nil
}

type fakeCounters struct {
	counters *projects.Counters
	err      error
	calls    int
}

func (f *fakeCounters) Counters(ctx context.Context, userID uuid.UUID) (*projects.Counters, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.counters, nil
}

func testBadge(slug string, bonus int64, criteria string) models.Badge {
	return models.Badge{
		ID:          uuid.New(),
		Slug:        slug,
		Name:        slug,
		Description: slug,
		Category:    enums.BadgeCategoryMilestone,
		Rarity:      enums.BadgeRarityCommon,
		BonusPoints: bonus,
		Criteria:    json.RawMessage(criteria),
		Active:      true,
	}
}

func newTestService(t *testing.T, repo *fakeRepository, ledgerSvc *fakeLedger, counters *fakeCounters, view *scores.ScoreView) (Service, *fakeOutbox) {
	t.Helper()
	if view == nil {
		view = &scores.ScoreView{}
	}
	emitter := &fakeOutbox{}
	svc, err := NewService(repo, fakeTxRunner{}, emitter, ledgerSvc, &fakeScores{view: view}, counters, nil, nil)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc, emitter
}

func TestService_EvaluateAwardsOnce(t *testing.T) {
	repo := newFakeRepository()
	repo.counts[enums.PointReasonProjectLive] = 1
	repo.badges = append(repo.badges, testBadge("first-launch", 10, `{"event_count": {"reason": "project_live", "min": 1}}`))

	ledgerSvc := newFakeLedger()
	svc, emitter := newTestService(t, repo, ledgerSvc, &fakeCounters{}, nil)
	userID := uuid.New()

	awarded, err := svc.Evaluate(context.Background(), userID)
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if len(awarded) != 1 || awarded[0].Slug != "first-launch" {
		t.Fatalf("expected first-launch award, got %+v", awarded)
	}
	if len(repo.awards) != 1 {
		t.Fatalf("expected one award row, got %d", len(repo.awards))
	}
	if repo.awards[0].EventID == nil {
		t.Fatal("award must link its bonus event")
	}
	if len(ledgerSvc.inputs) != 1 || ledgerSvc.inputs[0].Reason != enums.PointReasonBadgeAwarded {
		t.Fatalf("expected one badge_awarded ledger event, got %+v", ledgerSvc.inputs)
	}
	if ledgerSvc.inputs[0].Delta != 10 {
		t.Fatalf("expected bonus delta 10, got %d", ledgerSvc.inputs[0].Delta)
	}
	if ref := ledgerSvc.inputs[0].ReferenceType; ref == nil || *ref != ledger.ReferenceTypeBadge {
		t.Fatalf("bonus event must carry the badge reference type, got %+v", ref)
	}
	if ref := ledgerSvc.inputs[0].ReferenceID; ref == nil || *ref != awarded[0].ID {
		t.Fatalf("bonus event must reference the awarded badge, got %+v", ref)
	}
	if len(emitter.emitted) != 1 || emitter.emitted[0].EventType != enums.EventBadgeAwarded {
		t.Fatalf("expected one badge_awarded outbox event, got %+v", emitter.emitted)
	}

	// Re-running must not award the badge again.
	awarded, err = svc.Evaluate(context.Background(), userID)
	if err != nil {
		t.Fatalf("second Evaluate error: %v", err)
	}
	if len(awarded) != 0 {
		t.Fatalf("expected no new awards, got %+v", awarded)
	}
	if len(repo.awards) != 1 || len(emitter.emitted) != 1 {
		t.Fatal("re-evaluation must be a no-op")
	}
}

func TestService_EvaluateZeroBonusStillAudits(t *testing.T) {
	repo := newFakeRepository()
	repo.badges = append(repo.badges, testBadge("rising-star", 0, `{"metric": {"name": "lifetime_total", "op": "gte", "value": 500}}`))

	ledgerSvc := newFakeLedger()
	svc, _ := newTestService(t, repo, ledgerSvc, &fakeCounters{}, &scores.ScoreView{LifetimeTotal: 600})

	awarded, err := svc.Evaluate(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if len(awarded) != 1 {
		t.Fatalf("expected one award, got %d", len(awarded))
	}
	if len(ledgerSvc.inputs) != 1 || ledgerSvc.inputs[0].Delta != 0 {
		t.Fatalf("zero-bonus award must still write the audit event, got %+v", ledgerSvc.inputs)
	}
}

func TestService_EvaluateIsolatesBadgeFailures(t *testing.T) {
	repo := newFakeRepository()
	repo.counts[enums.PointReasonVote] = 200
	repo.badges = append(repo.badges,
		testBadge("broken", 5, `{"metric": {"name": "karma", "op": "gte", "value": 1}}`),
		testBadge("crowd-favorite", 25, `{"event_count": {"reason": "vote", "min": 100}}`),
	)

	svc, _ := newTestService(t, repo, newFakeLedger(), &fakeCounters{}, nil)

	awarded, err := svc.Evaluate(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected aggregated error for the broken badge")
	}
	if len(awarded) != 1 || awarded[0].Slug != "crowd-favorite" {
		t.Fatalf("healthy badge must still be awarded, got %+v", awarded)
	}
}

func TestService_EvaluateIsolatesCollaboratorFailures(t *testing.T) {
	repo := newFakeRepository()
	repo.counts[enums.PointReasonProjectLive] = 2
	repo.badges = append(repo.badges,
		testBadge("streaker", 5, `{"metric": {"name": "streak_days", "op": "gte", "value": 7}}`),
		testBadge("first-launch", 10, `{"event_count": {"reason": "project_live", "min": 1}}`),
	)

	counters := &fakeCounters{err: pkgerrors.New(pkgerrors.CodeDependency, "project store unavailable")}
	svc, _ := newTestService(t, repo, newFakeLedger(), counters, nil)

	awarded, err := svc.Evaluate(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected aggregated dependency error")
	}
	if len(awarded) != 1 || awarded[0].Slug != "first-launch" {
		t.Fatalf("ledger-only badge must still be awarded, got %+v", awarded)
	}
}

func TestService_EvaluateConcurrentWinner(t *testing.T) {
	repo := newFakeRepository()
	repo.counts[enums.PointReasonProjectLive] = 1
	badge := testBadge("first-launch", 10, `{"event_count": {"reason": "project_live", "min": 1}}`)
	repo.badges = append(repo.badges, badge)
	repo.createAwardErr = errors.New("duplicate key value violates unique constraint \"ux_badge_awards_user_badge\"")

	svc, emitter := newTestService(t, repo, newFakeLedger(), &fakeCounters{}, nil)

	awarded, err := svc.Evaluate(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("losing a race must not error: %v", err)
	}
	if len(awarded) != 0 {
		t.Fatalf("loser must not report the award, got %+v", awarded)
	}
	if len(emitter.emitted) != 0 {
		t.Fatal("loser must not emit a notification")
	}
}

func TestService_EvaluateMemoizesCounters(t *testing.T) {
	repo := newFakeRepository()
	repo.badges = append(repo.badges,
		testBadge("builder", 5, `{"metric": {"name": "project_count", "op": "gte", "value": 100}}`),
		testBadge("streaker", 5, `{"metric": {"name": "streak_days", "op": "gte", "value": 100}}`),
	)

	counters := &fakeCounters{counters: &projects.Counters{ProjectCount: 1, StreakDays: 1}}
	svc, _ := newTestService(t, repo, newFakeLedger(), counters, nil)

	if _, err := svc.Evaluate(context.Background(), uuid.New()); err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if counters.calls != 1 {
		t.Fatalf("expected one counters fetch, got %d", counters.calls)
	}
}

func TestService_ListUserBadges(t *testing.T) {
	repo := newFakeRepository()
	badge := testBadge("first-launch", 10, `{"event_count": {"reason": "project_live", "min": 1}}`)
	repo.badges = append(repo.badges, badge)
	userID := uuid.New()
	eventID := uuid.New()
	repo.awards = append(repo.awards, models.BadgeAward{
		ID:        uuid.New(),
		UserID:    userID,
		BadgeID:   badge.ID,
		EventID:   &eventID,
		AwardedAt: time.Now().UTC(),
	})

	svc, _ := newTestService(t, repo, newFakeLedger(), &fakeCounters{}, nil)

	rows, err := svc.ListUserBadges(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListUserBadges error: %v", err)
	}
	if len(rows) != 1 || rows[0].Slug != "first-launch" {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	if _, err := svc.ListUserBadges(context.Background(), uuid.Nil); err == nil {
		t.Fatal("expected validation error")
	}
}
