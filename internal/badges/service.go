package badges

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/motivhq/scoring-backend/internal/ledger"
	"github.com/motivhq/scoring-backend/internal/projects"
	"github.com/motivhq/scoring-backend/internal/scores"
	"github.com/motivhq/scoring-backend/pkg/auth"
	dbpkg "github.com/motivhq/scoring-backend/pkg/db"
	"github.com/motivhq/scoring-backend/pkg/db/models"
	"github.com/motivhq/scoring-backend/pkg/enums"
	pkgerrors "github.com/motivhq/scoring-backend/pkg/errors"
	"github.com/motivhq/scoring-backend/pkg/logger"
	"github.com/motivhq/scoring-backend/pkg/metrics"
	"github.com/motivhq/scoring-backend/pkg/outbox"
	"github.com/motivhq/scoring-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ledgerWriter interface {
	RecordEvent(ctx context.Context, input ledger.RecordPointEventInput) (*ledger.RecordResult, error)
}

type scoreReader interface {
	GetScore(ctx context.Context, userID uuid.UUID) (*scores.ScoreView, error)
}

type counterSource interface {
	Counters(ctx context.Context, userID uuid.UUID) (*projects.Counters, error)
}

// Service evaluates badge criteria and grants awards.
type Service interface {
	Evaluate(ctx context.Context, userID uuid.UUID) ([]models.Badge, error)
	ListUserBadges(ctx context.Context, userID uuid.UUID) ([]AwardedBadge, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	ledger   ledgerWriter
	scores   scoreReader
	counters counterSource
	logg     *logger.Logger
	metrics  *metrics.LedgerMetrics
	now      func() time.Time
}

// NewService wires the badges service with the required dependencies.
func NewService(
	repo Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	ledgerSvc ledgerWriter,
	scoresSvc scoreReader,
	counters counterSource,
	logg *logger.Logger,
	ledgerMetrics *metrics.LedgerMetrics,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("badges repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if scoresSvc == nil {
		return nil, fmt.Errorf("scores service required")
	}
	if counters == nil {
		return nil, fmt.Errorf("project counters source required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   outboxSvc,
		ledger:   ledgerSvc,
		scores:   scoresSvc,
		counters: counters,
		logg:     logg,
		metrics:  ledgerMetrics,
		now:      time.Now,
	}, nil
}

// Evaluate checks every active, not-yet-awarded badge against the user's
// current scoring state. Per-badge failures are logged and aggregated so one
// broken criteria tree or a flaky collaborator cannot block other awards.
// Awards are permanent; nothing here ever revokes one.
func (s *service) Evaluate(ctx context.Context, userID uuid.UUID) ([]models.Badge, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	catalog, err := s.repo.ListActiveBadges(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list badges")
	}
	alreadyAwarded, err := s.repo.AwardedBadgeIDs(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list badge awards")
	}

	view, err := s.scores.GetScore(ctx, userID)
	if err != nil {
		return nil, err
	}
	facts := &evalFacts{
		userID:   userID,
		view:     view,
		repo:     s.repo,
		counters: s.counters,
	}

	var awarded []models.Badge
	var errs error
	for _, badge := range catalog {
		if alreadyAwarded[badge.ID] {
			continue
		}

		granted, err := s.evaluateOne(ctx, badge, userID, facts)
		if err != nil {
			if s.logg != nil {
				logCtx := s.logg.WithFields(ctx, map[string]any{
					"badge_slug": badge.Slug,
					"user_id":    userID.String(),
				})
				s.logg.Error(logCtx, "badge evaluation failed", err)
			}
			errs = multierr.Append(errs, fmt.Errorf("badge %s: %w", badge.Slug, err))
			continue
		}
		if granted {
			awarded = append(awarded, badge)
		}
	}

	return awarded, errs
}

func (s *service) evaluateOne(ctx context.Context, badge models.Badge, userID uuid.UUID, facts Facts) (bool, error) {
	criteria, err := ParseCriteria(badge.Criteria)
	if err != nil {
		return false, err
	}
	satisfied, err := criteria.Eval(ctx, facts)
	if err != nil || !satisfied {
		return false, err
	}
	return s.award(ctx, badge, userID)
}

// award writes the bonus ledger event first, keyed so retries and concurrent
// winners collapse onto one event, then inserts the award row. The unique
// (user_id, badge_id) constraint resolves races: the loser treats the badge
// as already awarded.
func (s *service) award(ctx context.Context, badge models.Badge, userID uuid.UUID) (bool, error) {
	key := fmt.Sprintf("badge-award:%s:%s", userID, badge.Slug)
	metadata, err := json.Marshal(map[string]string{
		"badge_id":   badge.ID.String(),
		"badge_slug": badge.Slug,
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal badge metadata")
	}

	refType := ledger.ReferenceTypeBadge
	badgeID := badge.ID
	result, err := s.ledger.RecordEvent(ctx, ledger.RecordPointEventInput{
		UserID:         userID,
		Delta:          badge.BonusPoints,
		Reason:         enums.PointReasonBadgeAwarded,
		ReferenceType:  &refType,
		ReferenceID:    &badgeID,
		IdempotencyKey: &key,
		Metadata:       metadata,
		ActorRole:      string(auth.RoleService),
	})
	if err != nil {
		return false, err
	}

	award := &models.BadgeAward{
		ID:        uuid.New(),
		UserID:    userID,
		BadgeID:   badge.ID,
		EventID:   &result.Event.ID,
		AwardedAt: s.now().UTC(),
	}

	granted := true
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateAward(ctx, award); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				// A concurrent evaluation got there first.
				granted = false
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create badge award")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBadgeAwarded,
			AggregateType: enums.AggregateBadgeAward,
			AggregateID:   award.ID,
			Version:       1,
			Data: payloads.BadgeAwardedEvent{
				AwardID:     award.ID,
				UserID:      userID,
				BadgeID:     badge.ID,
				BadgeSlug:   badge.Slug,
				BadgeName:   badge.Name,
				Rarity:      badge.Rarity,
				Category:    badge.Category,
				BonusPoints: badge.BonusPoints,
				AwardedAt:   award.AwardedAt,
			},
		})
	})
	if err != nil {
		return false, err
	}

	if granted {
		s.metrics.IncBadgeAwarded()
	}
	return granted, nil
}

func (s *service) ListUserBadges(ctx context.Context, userID uuid.UUID) ([]AwardedBadge, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	rows, err := s.repo.ListUserBadges(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list user badges")
	}
	return rows, nil
}

// evalFacts answers criteria lookups for one user. The score view is taken
// once up front; reason counts and project counters are fetched on first use
// and memoized for the rest of the evaluation.
type evalFacts struct {
	userID   uuid.UUID
	view     *scores.ScoreView
	repo     Repository
	counters counterSource

	fetched      *projects.Counters
	reasonCounts map[enums.PointReason]int64
}

func (f *evalFacts) Metric(ctx context.Context, name string) (int64, error) {
	switch name {
	case MetricLifetimeTotal:
		return f.view.LifetimeTotal, nil
	case MetricMonthlyTotal:
		return f.view.MonthlyTotal, nil
	case MetricProjectCount:
		counters, err := f.projectCounters(ctx)
		if err != nil {
			return 0, err
		}
		return counters.ProjectCount, nil
	case MetricStreakDays:
		counters, err := f.projectCounters(ctx)
		if err != nil {
			return 0, err
		}
		return counters.StreakDays, nil
	}
	return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown metric %q", name))
}

func (f *evalFacts) EventCount(ctx context.Context, reason enums.PointReason) (int64, error) {
	if count, ok := f.reasonCounts[reason]; ok {
		return count, nil
	}
	count, err := f.repo.CountEventsByReason(ctx, f.userID, reason)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count events by reason")
	}
	if f.reasonCounts == nil {
		f.reasonCounts = make(map[enums.PointReason]int64)
	}
	f.reasonCounts[reason] = count
	return count, nil
}

func (f *evalFacts) projectCounters(ctx context.Context) (*projects.Counters, error) {
	if f.fetched != nil {
		return f.fetched, nil
	}
	counters, err := f.counters.Counters(ctx, f.userID)
	if err != nil {
		return nil, err
	}
	f.fetched = counters
	return counters, nil
}
