package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/motivhq/scoring-backend/pkg/db"
	"github.com/motivhq/scoring-backend/pkg/db/models"
	"github.com/motivhq/scoring-backend/pkg/enums"
	pkgerrors "github.com/motivhq/scoring-backend/pkg/errors"
	"github.com/motivhq/scoring-backend/pkg/metrics"
	"github.com/motivhq/scoring-backend/pkg/outbox"
	"github.com/motivhq/scoring-backend/pkg/outbox/payloads"
	"github.com/motivhq/scoring-backend/pkg/pagination"
	"github.com/motivhq/scoring-backend/pkg/types"
)

const monthKeyLayout = "2006-01"

// ReferenceTypeBadge is the reference_type every badge_awarded event carries.
const ReferenceTypeBadge = "badge"

// Transient storage failures are retried before surfacing; the rolled-back
// transaction and the idempotency key make each retry safe.
const (
	appendMaxAttempts = 3
	appendBaseBackoff = 50 * time.Millisecond
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines the write and read surface of the event ledger.
type Service interface {
	RecordEvent(ctx context.Context, input RecordPointEventInput) (*RecordResult, error)
	ListEvents(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.LedgerMetrics
	now     func() time.Time
	backoff func(attempt int) time.Duration
}

// RecordPointEventInput captures the immutable data a point event requires.
type RecordPointEventInput struct {
	UserID         uuid.UUID
	ProjectID      *uuid.UUID
	Delta          int64
	Reason         enums.PointReason
	ReferenceType  *string
	ReferenceID    *uuid.UUID
	IdempotencyKey *string
	Metadata       json.RawMessage
	ActorUserID    uuid.UUID
	ActorRole      string
}

// RecordResult reports the appended event and the snapshot state after the
// fold. Duplicate marks submissions replayed via idempotency key.
type RecordResult struct {
	Event     *models.PointEvent
	Snapshot  *models.ScoreSnapshot
	Duplicate bool
}

// ListParams configures pagination for a user's event history.
type ListParams struct {
	UserID uuid.UUID
	Limit  int
	Cursor string
}

// ListResult wraps returned events and the cursor for the next page.
type ListResult struct {
	Items  []models.PointEvent `json:"items"`
	Cursor string              `json:"cursor"`
}

// NewService wires the ledger service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, ledgerMetrics *metrics.LedgerMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outboxSvc,
		metrics: ledgerMetrics,
		now:     time.Now,
		backoff: func(attempt int) time.Duration {
			return appendBaseBackoff << attempt
		},
	}, nil
}

// RecordEvent appends one event and folds it into the user's snapshot inside
// a single transaction. The snapshot row is locked first, so the per-user
// sequence is assigned without gaps and concurrent writers never double-apply.
// Retryable storage failures are re-attempted a bounded number of times with
// backoff before the error surfaces.
func (s *service) RecordEvent(ctx context.Context, input RecordPointEventInput) (*RecordResult, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	var result *RecordResult
	var err error
	for attempt := 0; attempt < appendMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), "record event aborted")
			case <-time.After(s.backoff(attempt)):
			}
		}
		result, err = s.append(ctx, input)
		if err == nil || !pkgerrors.IsRetryable(err) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	if result.Duplicate {
		s.metrics.IncDuplicate()
	} else {
		s.metrics.IncRecorded(string(result.Event.Reason))
	}
	return result, nil
}

func (s *service) append(ctx context.Context, input RecordPointEventInput) (*RecordResult, error) {
	var result *RecordResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		snapshot, err := s.lockOrCreateSnapshot(ctx, repo, input.UserID)
		if err != nil {
			return err
		}

		if input.IdempotencyKey != nil {
			existing, err := repo.FindByIdempotencyKey(ctx, *input.IdempotencyKey)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency lookup")
			}
			if existing != nil {
				if err := matchesOriginal(existing, input); err != nil {
					return err
				}
				result = &RecordResult{Event: existing, Snapshot: snapshot, Duplicate: true}
				return nil
			}
		}

		if input.Reason == enums.PointReasonBadgeAwarded {
			exists, err := repo.BadgeExists(ctx, *input.ReferenceID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve badge reference")
			}
			if !exists {
				return pkgerrors.New(pkgerrors.CodeValidation, "referenced badge does not exist")
			}
		}

		now := s.now().UTC()
		rolledOver, closing := s.rollMonth(snapshot, now)

		seq := snapshot.LastEventSeq + 1
		event := &models.PointEvent{
			ID:             uuid.New(),
			UserID:         input.UserID,
			ProjectID:      input.ProjectID,
			Delta:          input.Delta,
			Reason:         input.Reason,
			ReferenceType:  input.ReferenceType,
			ReferenceID:    input.ReferenceID,
			UserSeq:        seq,
			IdempotencyKey: input.IdempotencyKey,
			Metadata:       input.Metadata,
		}

		applyEvent(snapshot, event)

		if err := repo.CreateEvent(ctx, event); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_point_events_idempotency_key") {
				return pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, "idempotency key already captured")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append point event")
		}
		if err := repo.SaveSnapshot(ctx, snapshot); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save score snapshot")
		}

		actor := &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole}
		if rolledOver {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventMonthlyRollover,
				AggregateType: enums.AggregateSnapshot,
				AggregateID:   input.UserID,
				Version:       1,
				Actor:         actor,
				Data: payloads.MonthlyRolloverEvent{
					UserID:        input.UserID,
					PreviousMonth: closing.month,
					NewMonth:      snapshot.MonthKey,
					ClosingTotal:  closing.total,
				},
			}); err != nil {
				return err
			}
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPointsRecorded,
			AggregateType: enums.AggregatePointEvent,
			AggregateID:   event.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.PointsRecordedEvent{
				EventID:       event.ID,
				UserID:        event.UserID,
				ProjectID:     event.ProjectID,
				Delta:         event.Delta,
				Reason:        event.Reason,
				UserSeq:       event.UserSeq,
				LifetimeTotal: snapshot.LifetimeTotal,
				MonthlyTotal:  snapshot.MonthlyTotal,
			},
		}); err != nil {
			return err
		}

		result = &RecordResult{Event: event, Snapshot: snapshot}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) ListEvents(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	var cursor *pagination.Cursor
	if params.Cursor != "" {
		parsed, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		cursor = parsed
	}

	rows, err := s.repo.ListByUser(ctx, params.UserID, limit+1, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list point events")
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{Seq: last.UserSeq, ID: last.ID})
	}

	return &ListResult{Items: rows, Cursor: next}, nil
}

func (s *service) validate(input RecordPointEventInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !input.Reason.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid point reason %q", input.Reason))
	}
	// Zero-bonus badge awards still write an audit event.
	if input.Delta == 0 && input.Reason != enums.PointReasonBadgeAwarded {
		return pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	if input.Delta < 0 && !input.Reason.AllowsNegativeDelta() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("reason %q cannot subtract points", input.Reason))
	}
	if input.Reason == enums.PointReasonBadgeAwarded {
		if input.ReferenceType == nil || *input.ReferenceType != ReferenceTypeBadge {
			return pkgerrors.New(pkgerrors.CodeValidation, `badge awards require reference type "badge"`)
		}
		if input.ReferenceID == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "badge awards require a badge reference id")
		}
	} else if (input.ReferenceType == nil) != (input.ReferenceID == nil) {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference type and id must be provided together")
	}
	if input.IdempotencyKey != nil && *input.IdempotencyKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "idempotency key must be non-empty when provided")
	}
	if len(input.Metadata) > 0 && !json.Valid(input.Metadata) {
		return pkgerrors.New(pkgerrors.CodeValidation, "metadata must be valid json")
	}
	return nil
}

func (s *service) lockOrCreateSnapshot(ctx context.Context, repo Repository, userID uuid.UUID) (*models.ScoreSnapshot, error) {
	snapshot, err := repo.LockSnapshot(ctx, userID)
	if err == nil {
		return snapshot, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock score snapshot")
	}

	fresh := &models.ScoreSnapshot{
		UserID:        userID,
		MonthKey:      s.now().UTC().Format(monthKeyLayout),
		ProjectTotals: types.ProjectTotals{},
	}
	if err := repo.CreateSnapshot(ctx, fresh); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			// Another writer created the row first; queue behind its lock.
			snapshot, lockErr := repo.LockSnapshot(ctx, userID)
			if lockErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, lockErr, "relock score snapshot")
			}
			return snapshot, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create score snapshot")
	}
	return fresh, nil
}

type closedMonth struct {
	month string
	total int64
}

// rollMonth resets the monthly counter when the event lands in a new UTC
// month. Returns the closed month so the caller can announce the rollover.
func (s *service) rollMonth(snapshot *models.ScoreSnapshot, now time.Time) (bool, closedMonth) {
	current := now.Format(monthKeyLayout)
	if snapshot.MonthKey == current {
		return false, closedMonth{}
	}
	closing := closedMonth{month: snapshot.MonthKey, total: snapshot.MonthlyTotal}
	snapshot.MonthKey = current
	snapshot.MonthlyTotal = 0
	return closing.month != "", closing
}

// applyEvent folds one event into the snapshot. It is the single place totals
// change, shared by live writes and full rebuilds. Totals are signed and may
// go negative after compensating corrections; clamping would break the
// replay-equals-sum property.
func applyEvent(snapshot *models.ScoreSnapshot, event *models.PointEvent) {
	snapshot.LifetimeTotal += event.Delta
	snapshot.MonthlyTotal += event.Delta
	if event.ProjectID != nil {
		if snapshot.ProjectTotals == nil {
			snapshot.ProjectTotals = types.ProjectTotals{}
		}
		snapshot.ProjectTotals.Add(*event.ProjectID, event.Delta)
	}
	snapshot.LastEventSeq = event.UserSeq
	snapshot.EventCount++
}

// matchesOriginal guards idempotency key reuse: a replay must carry the same
// payload as the event it originally produced.
func matchesOriginal(existing *models.PointEvent, input RecordPointEventInput) error {
	if existing.UserID != input.UserID ||
		existing.Delta != input.Delta ||
		existing.Reason != input.Reason {
		return pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different payload")
	}
	return nil
}
