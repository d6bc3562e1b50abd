package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/motivhq/scoring-backend/internal/scores"
	"github.com/motivhq/scoring-backend/pkg/logger"
)

type fakeReconciler struct {
	report *scores.ReconcileReport
	err    error
	called int
}

func (f *fakeReconciler) Reconcile(ctx context.Context) (*scores.ReconcileReport, error) {
	f.called++
	return f.report, f.err
}

func TestSnapshotReconcileJob(t *testing.T) {
	reconciler := &fakeReconciler{report: &scores.ReconcileReport{Checked: 10, Repaired: 2}}
	job, err := NewSnapshotReconcileJob(SnapshotReconcileJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Scores: reconciler,
	})
	if err != nil {
		t.Fatalf("NewSnapshotReconcileJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reconciler.called != 1 {
		t.Fatalf("expected one reconcile call, got %d", reconciler.called)
	}
}

func TestSnapshotReconcileJobPropagatesError(t *testing.T) {
	reconciler := &fakeReconciler{
		report: &scores.ReconcileReport{Checked: 5, Failed: 1},
		err:    errors.New("user x: connection reset"),
	}
	job, err := NewSnapshotReconcileJob(SnapshotReconcileJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Scores: reconciler,
	})
	if err != nil {
		t.Fatalf("NewSnapshotReconcileJob: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
