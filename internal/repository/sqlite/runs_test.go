package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/opsweep/opsweep/internal/domain/decommission"
	"github.com/opsweep/opsweep/internal/domain/resource"
)

func newTestRepo(t *testing.T) *RunRepository {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleReport(runID string, started time.Time) *decommission.Report {
	return &decommission.Report{
		RunID:      runID,
		Scope:      "rg-dev",
		Tier:       decommission.TierDevelopment,
		Operator:   "tester",
		Status:     decommission.RunCompleted,
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Decisions: []decommission.Decision{
			{ResourceID: "a", ResourceType: resource.TypeComputeCluster, Outcome: decommission.OutcomeDeleted},
			{ResourceID: "b", ResourceType: resource.TypeSecretStore, Outcome: decommission.OutcomeSkippedDependency},
			{ResourceID: "c", ResourceType: resource.TypeWorkflowPlan, Outcome: decommission.OutcomeScaledDown},
			{ResourceID: "d", ResourceType: resource.TypeVirtualMachine, Outcome: decommission.OutcomeFailed},
		},
	}
}

func TestSaveAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	started := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	if err := repo.Save(ctx, sampleReport("run-1", started), "/reports/run-1.json"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	runs, err := repo.List(ctx, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("listed %d runs, want 1", len(runs))
	}

	r := runs[0]
	if r.RunID != "run-1" || r.Scope != "rg-dev" || r.Tier != "development" {
		t.Errorf("row = %+v", r)
	}
	if r.Deleted != 1 || r.ScaledDown != 1 || r.Skipped != 1 || r.Failed != 1 {
		t.Errorf("counts = deleted:%d scaled:%d skipped:%d failed:%d", r.Deleted, r.ScaledDown, r.Skipped, r.Failed)
	}
	if r.ReportLocation != "/reports/run-1.json" {
		t.Errorf("report location = %s", r.ReportLocation)
	}
}

func TestListNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-old", "run-mid", "run-new"} {
		report := sampleReport(id, base.Add(time.Duration(i)*time.Hour))
		if err := repo.Save(ctx, report, ""); err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
	}

	runs, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("listed %d runs, want 2", len(runs))
	}
	if runs[0].RunID != "run-new" || runs[1].RunID != "run-mid" {
		t.Errorf("order = [%s, %s], want newest first", runs[0].RunID, runs[1].RunID)
	}
}

func TestSaveDuplicateRunID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	report := sampleReport("run-1", time.Now().UTC())
	if err := repo.Save(ctx, report, ""); err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(ctx, report, ""); err == nil {
		t.Fatal("expected primary key violation for duplicate run id")
	}
}
