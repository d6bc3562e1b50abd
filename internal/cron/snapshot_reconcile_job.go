package cron

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/motivhq/scoring-backend/internal/scores"
	"github.com/motivhq/scoring-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type snapshotReconciler interface {
	Reconcile(ctx context.Context) (*scores.ReconcileReport, error)
}

type SnapshotReconcileJobParams struct {
	Logger *logger.Logger
	Scores snapshotReconciler
}

// NewSnapshotReconcileJob builds the job that replays every user's ledger and
// repairs snapshot drift.
func NewSnapshotReconcileJob(params SnapshotReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Scores == nil {
		return nil, fmt.Errorf("scores service required")
	}
	return &snapshotReconcileJob{
		logg:   params.Logger,
		scores: params.Scores,
	}, nil
}

type snapshotReconcileJob struct {
	logg   *logger.Logger
	scores snapshotReconciler
}

func (j *snapshotReconcileJob) Name() string { return "snapshot-reconcile" }

func (j *snapshotReconcileJob) Run(ctx context.Context) error {
	report, err := j.scores.Reconcile(ctx)
	if report != nil {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"checked":  report.Checked,
			"repaired": report.Repaired,
			"failed":   report.Failed,
		})
		j.logg.Info(logCtx, "snapshot reconciliation sweep complete")
	}
	if err != nil {
		return fmt.Errorf("snapshot reconcile: %w", err)
	}
	return nil
}
