package scores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/motivhq/scoring-backend/internal/ledger"
	"github.com/motivhq/scoring-backend/pkg/db/models"
	"github.com/motivhq/scoring-backend/pkg/enums"
	pkgerrors "github.com/motivhq/scoring-backend/pkg/errors"
	"github.com/motivhq/scoring-backend/pkg/logger"
	"github.com/motivhq/scoring-backend/pkg/outbox"
	"github.com/motivhq/scoring-backend/pkg/outbox/payloads"
	"github.com/motivhq/scoring-backend/pkg/types"
)

const monthKeyLayout = "2006-01"

const defaultReconcileBatch = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the read and repair surface over score snapshots.
type Service interface {
	GetScore(ctx context.Context, userID uuid.UUID) (*ScoreView, error)
	ProjectTotal(ctx context.Context, projectID uuid.UUID) (int64, error)
	Rebuild(ctx context.Context, userID uuid.UUID) (*models.ScoreSnapshot, error)
	Reconcile(ctx context.Context) (*ReconcileReport, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	logg      *logger.Logger
	batchSize int
	now       func() time.Time
}

// ScoreView is the caller-facing snapshot. MonthlyTotal is presented against
// the current UTC month: a snapshot whose month_key lags (no events yet this
// month) reads as zero without mutating the stored row.
type ScoreView struct {
	UserID        uuid.UUID           `json:"user_id"`
	LifetimeTotal int64               `json:"lifetime_total"`
	MonthlyTotal  int64               `json:"monthly_total"`
	MonthKey      string              `json:"month_key"`
	ProjectTotals types.ProjectTotals `json:"project_totals"`
	LastEventSeq  int64               `json:"last_event_seq"`
	EventCount    int64               `json:"event_count"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// ReconcileReport summarizes one reconciliation sweep.
type ReconcileReport struct {
	Checked  int `json:"checked"`
	Repaired int `json:"repaired"`
	Failed   int `json:"failed"`
}

// NewService wires the scores service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, logg *logger.Logger, batchSize int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("scores repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if batchSize <= 0 {
		batchSize = defaultReconcileBatch
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    outboxSvc,
		logg:      logg,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

func (s *service) GetScore(ctx context.Context, userID uuid.UUID) (*ScoreView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	snapshot, err := s.repo.GetSnapshot(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		snapshot, err = s.Rebuild(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	return s.present(snapshot), nil
}

func (s *service) ProjectTotal(ctx context.Context, projectID uuid.UUID) (int64, error) {
	if projectID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "project id required")
	}
	total, err := s.repo.SumDeltasByProject(ctx, projectID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum project deltas")
	}
	return total, nil
}

// Rebuild replays the user's full event history and overwrites the stored
// snapshot with the result. A user with no events gets a zero view and no row.
func (s *service) Rebuild(ctx context.Context, userID uuid.UUID) (*models.ScoreSnapshot, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	var rebuilt *models.ScoreSnapshot
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// Queue behind live writers so the replay sees a settled ledger.
		if _, err := repo.LockSnapshot(ctx, userID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock score snapshot")
		}

		events, err := repo.ListAllEventsByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list point events")
		}

		rebuilt = ledger.Replay(userID, events)
		if rebuilt.MonthKey == "" {
			rebuilt.MonthKey = s.now().UTC().Format(monthKeyLayout)
		}
		if len(events) == 0 {
			return nil
		}

		if err := repo.UpsertSnapshot(ctx, rebuilt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save score snapshot")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rebuilt, nil
}

// Reconcile sweeps every snapshot, replays its ledger and repairs drift in
// place. Drift is logged and healed, never surfaced to callers; per-user
// failures are aggregated so one bad row cannot stall the sweep.
func (s *service) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{}
	var errs error

	cursor := uuid.Nil
	for {
		ids, err := s.repo.ListSnapshotUserIDs(ctx, cursor, s.batchSize)
		if err != nil {
			return report, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list snapshot users")
		}
		if len(ids) == 0 {
			break
		}

		for _, userID := range ids {
			report.Checked++
			repaired, err := s.reconcileUser(ctx, userID)
			if err != nil {
				report.Failed++
				errs = multierr.Append(errs, fmt.Errorf("user %s: %w", userID, err))
				continue
			}
			if repaired {
				report.Repaired++
			}
		}
		cursor = ids[len(ids)-1]
	}

	return report, errs
}

func (s *service) reconcileUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	var repaired bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		stored, err := repo.LockSnapshot(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock score snapshot")
		}

		events, err := repo.ListAllEventsByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list point events")
		}

		rebuilt := ledger.Replay(userID, events)

		if !drifted(stored, rebuilt) {
			return nil
		}
		repaired = true

		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"user_id":           userID.String(),
				"stored_lifetime":   stored.LifetimeTotal,
				"rebuilt_lifetime":  rebuilt.LifetimeTotal,
				"stored_event_seq":  stored.LastEventSeq,
				"rebuilt_event_seq": rebuilt.LastEventSeq,
			})
			s.logg.Warn(logCtx, "score snapshot drift repaired")
		}

		rebuilt.UpdatedAt = s.now().UTC()
		if err := repo.UpsertSnapshot(ctx, rebuilt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save score snapshot")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSnapshotReconciled,
			AggregateType: enums.AggregateSnapshot,
			AggregateID:   userID,
			Version:       1,
			Data: payloads.SnapshotReconciledEvent{
				UserID:           userID,
				PreviousLifetime: stored.LifetimeTotal,
				RebuiltLifetime:  rebuilt.LifetimeTotal,
				EventCount:       rebuilt.EventCount,
				ReconciledAt:     s.now().UTC(),
			},
		})
	})
	return repaired, err
}

// drifted compares stored state to the replay result. Monthly totals only
// count as drift when both sides agree on the month; a stale month key is a
// presentation concern, not corruption.
func drifted(stored, rebuilt *models.ScoreSnapshot) bool {
	if stored.LifetimeTotal != rebuilt.LifetimeTotal ||
		stored.LastEventSeq != rebuilt.LastEventSeq ||
		stored.EventCount != rebuilt.EventCount {
		return true
	}
	if stored.MonthKey == rebuilt.MonthKey && stored.MonthlyTotal != rebuilt.MonthlyTotal {
		return true
	}
	if len(stored.ProjectTotals) != len(rebuilt.ProjectTotals) {
		return true
	}
	for id, total := range rebuilt.ProjectTotals {
		if stored.ProjectTotals[id] != total {
			return true
		}
	}
	return false
}

func (s *service) present(snapshot *models.ScoreSnapshot) *ScoreView {
	view := &ScoreView{
		UserID:        snapshot.UserID,
		LifetimeTotal: snapshot.LifetimeTotal,
		MonthlyTotal:  snapshot.MonthlyTotal,
		MonthKey:      snapshot.MonthKey,
		ProjectTotals: snapshot.ProjectTotals,
		LastEventSeq:  snapshot.LastEventSeq,
		EventCount:    snapshot.EventCount,
		UpdatedAt:     snapshot.UpdatedAt,
	}
	if view.ProjectTotals == nil {
		view.ProjectTotals = types.ProjectTotals{}
	}

	current := s.now().UTC().Format(monthKeyLayout)
	if view.MonthKey != current {
		view.MonthKey = current
		view.MonthlyTotal = 0
	}
	return view
}
