package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opsweep/opsweep/internal/config"
	"github.com/opsweep/opsweep/internal/domain/decommission"
	"github.com/opsweep/opsweep/internal/domain/resource"
	"github.com/opsweep/opsweep/internal/pkg/logger"
	"github.com/opsweep/opsweep/internal/testutil"
)

func testRunConfig() config.RunConfig {
	return config.RunConfig{
		RetryAttempts: 0,
		PollInterval:  5 * time.Millisecond,
		MaxWait:       100 * time.Millisecond,
		Operator:      "tester",
	}
}

func testPolicy() decommission.RunPolicy {
	return decommission.RunPolicy{
		Tier:         decommission.TierDevelopment,
		Force:        true,
		PreserveData: true,
		Concurrency:  2,
	}
}

func newTestExecutor(catalog *testutil.MockCatalog, blobs *testutil.MockBlobStore, prompter *testutil.MockPrompter) *Executor {
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	if prompter == nil {
		prompter = &testutil.MockPrompter{}
	}
	return NewExecutor(catalog, blobs, nil, &testutil.MockNotifier{}, prompter, testRunConfig(), log)
}

func decisionFor(t *testing.T, report *decommission.Report, id string) decommission.Decision {
	t.Helper()
	for _, d := range report.Decisions {
		if d.ResourceID == id {
			return d
		}
	}
	t.Fatalf("no decision recorded for %s", id)
	return decommission.Decision{}
}

func TestRunBasicDecommission(t *testing.T) {
	catalog := testutil.NewMockCatalog()
	catalog.Add(resource.Descriptor{ID: "a", Name: "A", Type: resource.TypeComputeCluster, Scope: "rg-dev"})
	catalog.Add(resource.Descriptor{ID: "b", Name: "B", Type: resource.TypeManagedDatabase, Scope: "rg-dev"})
	blobs := testutil.NewMockBlobStore()
	exec := newTestExecutor(catalog, blobs, nil)

	allow := []resource.Type{resource.TypeComputeCluster, resource.TypeManagedDatabase}
	result, err := exec.Run(context.Background(), "rg-dev", testPolicy(), allow)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	report := result.Report
	if len(report.Decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(report.Decisions))
	}
	if report.Status != decommission.RunCompleted {
		t.Errorf("status = %s, want %s", report.Status, decommission.RunCompleted)
	}
	for _, id := range []string{"a", "b"} {
		d := decisionFor(t, report, id)
		if d.Outcome != decommission.OutcomeDeleted {
			t.Errorf("resource %s: outcome = %s, want %s", id, d.Outcome, decommission.OutcomeDeleted)
		}
		if d.Backup == nil || d.Backup.Location == "" {
			t.Errorf("resource %s: deleted without a stored backup", id)
		}
		if d.Backup != nil && !d.Backup.CreatedAt.Before(report.FinishedAt) {
			t.Errorf("resource %s: backup timestamp not before run end", id)
		}
	}
	if len(catalog.DeleteCalls) != 2 {
		t.Errorf("expected 2 delete requests, got %d", len(catalog.DeleteCalls))
	}
	if result.Location == "" {
		t.Error("report location is empty")
	}
}

func TestRunSkipsDependedUponResource(t *testing.T) {
	catalog := testutil.NewMockCatalog()
	catalog.Add(resource.Descriptor{ID: "s", Name: "vault-s", Type: resource.TypeSecretStore, Scope: "rg-dev"})
	catalog.Add(resource.Descriptor{ID: "c", Name: "C", Type: resource.TypeComputeCluster, Scope: "rg-dev"})
	// C holds a live binding to S.
	catalog.Configs["c"] = []byte(`{"properties":{"keyVault":"https://vault-s.vault.example.net/"}}`)
	blobs := testutil.NewMockBlobStore()
	exec := newTestExecutor(catalog, blobs, nil)

	result, err := exec.Run(context.Background(), "rg-dev", testPolicy(), []resource.Type{resource.TypeSecretStore})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	d := decisionFor(t, result.Report, "s")
	if d.Outcome != decommission.OutcomeSkippedDependency {
		t.Fatalf("outcome = %s, want %s", d.Outcome, decommission.OutcomeSkippedDependency)
	}
	if !catalog.Has("s") {
		t.Error("depended-upon secret store was deleted")
	}
	if len(catalog.DeleteCalls) != 0 {
		t.Errorf("expected no delete requests, got %v", catalog.DeleteCalls)
	}
}

func TestRunDryRunIsPure(t *testing.T) {
	catalog := testutil.NewMockCatalog()
	catalog.Add(resource.Descriptor{ID: "a", Name: "A", Type: resource.TypeComputeCluster, Scope: "rg-dev"})
	catalog.Add(resource.Descriptor{ID: "p", Name: "P", Type: resource.TypeWorkflowPlan, Scope: "rg-dev"})
	catalog.Add(resource.Descriptor{
		ID: "v", Name: "V", Type: resource.TypeVirtualMachine, Scope: "rg-dev",
		Tags: map[string]string{resource.TagProtected: "true"},
	})
	catalog.Add(resource.Descriptor{ID: "s", Name: "vault-s", Type: resource.TypeSecretStore, Scope: "rg-dev"})
	// A holds a live binding to S: a real run would skip S.
	catalog.Configs["a"] = []byte(`{"properties":{"keyVault":"https://vault-s.vault.example.net/"}}`)
	blobs := testutil.NewMockBlobStore()
	exec := newTestExecutor(catalog, blobs, nil)

	policy := testPolicy()
	policy.DryRun = true
	allow := []resource.Type{
		resource.TypeComputeCluster,
		resource.TypeWorkflowPlan,
		resource.TypeVirtualMachine,
		resource.TypeSecretStore,
	}
	result, err := exec.Run(context.Background(), "rg-dev", policy, allow)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(catalog.DeleteCalls) != 0 || len(catalog.UpdateCalls) != 0 || len(catalog.TagCalls) != 0 {
		t.Errorf("dry run mutated: deletes=%v updates=%v tags=%v", catalog.DeleteCalls, catalog.UpdateCalls, catalog.TagCalls)
	}
	if len(result.Report.Decisions) != 4 {
		t.Fatalf("expected 4 decisions, got %d", len(result.Report.Decisions))
	}
	// Protected and depended-upon resources get the same terminal
	// outcome as everything else: the would-be action lives in the
	// reason only.
	for _, d := range result.Report.Decisions {
		if d.Outcome != decommission.OutcomeDryRunOnly {
			t.Errorf("resource %s: outcome = %s, want %s", d.ResourceID, d.Outcome, decommission.OutcomeDryRunOnly)
		}
		if d.Backup != nil {
			t.Errorf("resource %s: dry run took a backup", d.ResourceID)
		}
	}
	if d := decisionFor(t, result.Report, "v"); !strings.Contains(d.Reason, "protected") {
		t.Errorf("protected resource reason = %q, want mention of protection", d.Reason)
	}
	if d := decisionFor(t, result.Report, "s"); !strings.Contains(d.Reason, "depended on by") {
		t.Errorf("depended-upon resource reason = %q, want mention of dependents", d.Reason)
	}
	// Only the report itself lands in the store.
	if len(blobs.Keys) != 1 || !strings.HasPrefix(blobs.Keys[0], "reports/") {
		t.Errorf("store keys = %v, want exactly one report", blobs.Keys)
	}
}

func TestRunSkipsProtectedResource(t *testing.T) {
	catalog := testutil.NewMockCatalog()
	catalog.Add(resource.Descriptor{
		ID: "a", Name: "A", Type: resource.TypeComputeCluster, Scope: "rg-dev",
		Tags: map[string]string{resource.TagProtected: "true"},
	})
	exec := newTestExecutor(catalog, testutil.NewMockBlobStore(), nil)

	result, err := exec.Run(context.Background(), "rg-dev", testPolicy(), []resource.Type{resource.TypeComputeCluster})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	d := decisionFor(t, result.Report, "a")
	if d.Outcome != decommission.OutcomeSkippedProtected {
		t.Errorf("outcome = %s, want %s", d.Outcome, decommission.OutcomeSkippedProtected)
	}
	if !catalog.Has("a") {
		t.Error("protected resource was deleted")
	}
}

func TestRunScalesDownWorkflowPlan(t *testing.T) {
	catalog := testutil.NewMockCatalog()
	catalog.Add(resource.Descriptor{ID: "p", Name: "plan", Type: resource.TypeWorkflowPlan, Scope: "rg-dev"})
	exec := newTestExecutor(catalog, testutil.NewMockBlobStore(), nil)

	result, err := exec.Run(context.Background(), "rg-dev", testPolicy(), []resource.Type{resource.TypeWorkflowPlan})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	d := decisionFor(t, result.Report, "p")
	if d.Outcome != decommission.OutcomeScaledDown {
		t.Errorf("outcome = %s, want %s", d.Outcome, decommission.OutcomeScaledDown)
	}
	if len(catalog.DeleteCalls) != 0 {
		t.Errorf("workflow plan was deleted: %v", catalog.DeleteCalls)
	}
	if len(catalog.UpdateCalls) != 1 || catalog.UpdateCalls[0] != "p" {
		t.Errorf("update calls = %v, want [p]", catalog.UpdateCalls)
	}
}

func TestRunTagFailureStillDeletes(t *testing.T) {
	catalog := testutil.NewMockCatalog()
	catalog.Add(resource.Descriptor{ID: "a", Name: "A", Type: resource.TypeComputeCluster, Scope: "rg-dev"})
	catalog.TagErr = errors.New("tag write denied")
	exec := newTestExecutor(catalog, testutil.NewMockBlobStore(), nil)

	result, err := exec.Run(context.Background(), "rg-dev", testPolicy(), []resource.Type{resource.TypeComputeCluster})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	d := decisionFor(t, result.Report, "a")
	if d.Outcome != decommission.OutcomeDeleted {
		t.Errorf("outcome = %s, want %s", d.Outcome, decommission.OutcomeDeleted)
	}
	if len(catalog.DeleteCalls) != 1 || catalog.DeleteCalls[0] != "a" {
		t.Errorf("delete calls = %v, want [a]", catalog.DeleteCalls)
	}
}

func TestRunDeletionRejectedRecordsFailure(t *testing.T) {
	catalog := testutil.NewMockCatalog()
	catalog.Add(resource.Descriptor{ID: "a", Name: "A", Type: resource.TypeComputeCluster, Scope: "rg-dev"})
	catalog.Add(resource.Descriptor{ID: "b", Name: "B", Type: resource.TypeVirtualMachine, Scope: "rg-dev"})
	catalog.DeleteErrs = map[string]error{"a": errors.New("locked by policy")}
	exec := newTestExecutor(catalog, testutil.NewMockBlobStore(), nil)

	allow := []resource.Type{resource.TypeComputeCluster, resource.TypeVirtualMachine}
	result, err := exec.Run(context.Background(), "rg-dev", testPolicy(), allow)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	d := decisionFor(t, result.Report, "a")
	if d.Outcome != decommission.OutcomeFailed {
		t.Errorf("outcome = %s, want %s", d.Outcome, decommission.OutcomeFailed)
	}
	if !strings.Contains(d.Reason, "deletion request rejected") {
		t.Errorf("reason = %q, want a rejection reason", d.Reason)
	}
	// The rejection stays scoped to its resource.
	if d := decisionFor(t, result.Report, "b"); d.Outcome != decommission.OutcomeDeleted {
		t.Errorf("unaffected resource outcome = %s, want %s", d.Outcome, decommission.OutcomeDeleted)
	}
}

func TestRunNotifyFailureDoesNotFailRun(t *testing.T) {
	catalog := testutil.NewMockCatalog()
	catalog.Add(resource.Descriptor{ID: "a", Name: "A", Type: resource.TypeComputeCluster, Scope: "rg-dev"})
	notifier := &testutil.MockNotifier{Err: errors.New("webhook unreachable")}
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	exec := NewExecutor(catalog, testutil.NewMockBlobStore(), nil, notifier, &testutil.MockPrompter{}, testRunConfig(), log)

	result, err := exec.Run(context.Background(), "rg-dev", testPolicy(), []resource.Type{resource.TypeComputeCluster})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Report.Status != decommission.RunCompleted {
		t.Errorf("status = %s, want %s", result.Report.Status, decommission.RunCompleted)
	}
	if len(notifier.Subjects) != 1 {
		t.Errorf("notify attempts = %d, want 1", len(notifier.Subjects))
	}
	if d := decisionFor(t, result.Report, "a"); d.Outcome != decommission.OutcomeDeleted {
		t.Errorf("outcome = %s, want %s", d.Outcome, decommission.OutcomeDeleted)
	}
}

func TestRunBackupFailureBlocksDeletion(t *testing.T) {
	catalog := testutil.NewMockCatalog()
	catalog.Add(resource.Descriptor{ID: "b", Name: "B", Type: resource.TypeManagedDatabase, Scope: "rg-dev"})
	catalog.ReadErrs = map[string]error{"b": errors.New("read denied")}
	exec := newTestExecutor(catalog, testutil.NewMockBlobStore(), nil)

	result, err := exec.Run(context.Background(), "rg-dev", testPolicy(), []resource.Type{resource.TypeManagedDatabase})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	d := decisionFor(t, result.Report, "b")
	if d.Outcome != decommission.OutcomeFailed {
		t.Errorf("outcome = %s, want %s", d.Outcome, decommission.OutcomeFailed)
	}
	if len(catalog.DeleteCalls) != 0 {
		t.Errorf("deletion proceeded despite failed backup: %v", catalog.DeleteCalls)
	}
}

func TestRunBackupFailureWithoutPreserveDataProceeds(t *testing.T) {
	catalog := testutil.NewMockCatalog()
	catalog.Add(resource.Descriptor{ID: "b", Name: "B", Type: resource.TypeManagedDatabase, Scope: "rg-dev"})
	catalog.ReadErrs = map[string]error{"b": errors.New("read denied")}
	blobs := testutil.NewMockBlobStore()
	exec := newTestExecutor(catalog, blobs, nil)

	policy := testPolicy()
	policy.PreserveData = false
	result, err := exec.Run(context.Background(), "rg-dev", policy, []resource.Type{resource.TypeManagedDatabase})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	d := decisionFor(t, result.Report, "b")
	if d.Outcome != decommission.OutcomeDeleted {
		t.Errorf("outcome = %s, want %s", d.Outcome, decommission.OutcomeDeleted)
	}
	if d.Backup != nil {
		t.Error("decision carries a backup record despite failed snapshot")
	}
}

func TestRunConfirmationDeclined(t *testing.T) {
	catalog := testutil.NewMockCatalog()
	catalog.Add(resource.Descriptor{ID: "a", Name: "A", Type: resource.TypeComputeCluster, Scope: "rg-dev"})
	prompter := &testutil.MockPrompter{ConfirmResult: false}
	exec := newTestExecutor(catalog, testutil.NewMockBlobStore(), prompter)

	policy := testPolicy()
	policy.Force = false
	_, err := exec.Run(context.Background(), "rg-dev", policy, []resource.Type{resource.TypeComputeCluster})
	if !errors.Is(err, ErrConfirmationDeclined) {
		t.Fatalf("Run() error = %v, want ErrConfirmationDeclined", err)
	}
	if len(catalog.DeleteCalls) != 0 {
		t.Errorf("declined run issued deletions: %v", catalog.DeleteCalls)
	}
}

func TestRunProductionRequiresPhrase(t *testing.T) {
	catalog := testutil.NewMockCatalog()
	catalog.Add(resource.Descriptor{ID: "a", Name: "A", Type: resource.TypeComputeCluster, Scope: "rg-prod"})
	prompter := &testutil.MockPrompter{ConfirmResult: true, PhraseResult: false}
	exec := newTestExecutor(catalog, testutil.NewMockBlobStore(), prompter)

	policy := testPolicy()
	policy.Force = false
	policy.Tier = decommission.TierProduction
	_, err := exec.Run(context.Background(), "rg-prod", policy, []resource.Type{resource.TypeComputeCluster})
	if !errors.Is(err, ErrConfirmationDeclined) {
		t.Fatalf("Run() error = %v, want ErrConfirmationDeclined", err)
	}
	if len(prompter.Prompts) != 1 || !strings.Contains(prompter.Prompts[0], "PRODUCTION") {
		t.Errorf("prompts = %v, want a single production phrase prompt", prompter.Prompts)
	}
}

func TestRunCancelledBeforeProcessing(t *testing.T) {
	catalog := testutil.NewMockCatalog()
	catalog.Add(resource.Descriptor{ID: "a", Name: "A", Type: resource.TypeComputeCluster, Scope: "rg-dev"})
	catalog.Add(resource.Descriptor{ID: "b", Name: "B", Type: resource.TypeManagedDatabase, Scope: "rg-dev"})
	exec := newTestExecutor(catalog, testutil.NewMockBlobStore(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	allow := []resource.Type{resource.TypeComputeCluster, resource.TypeManagedDatabase}
	result, err := exec.Run(ctx, "rg-dev", testPolicy(), allow)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	report := result.Report
	if report.Status != decommission.RunCancelled {
		t.Errorf("status = %s, want %s", report.Status, decommission.RunCancelled)
	}
	if len(report.Decisions) != 2 {
		t.Fatalf("expected 2 decisions even when cancelled, got %d", len(report.Decisions))
	}
	for _, d := range report.Decisions {
		if d.Outcome != decommission.OutcomeFailed {
			t.Errorf("resource %s: outcome = %s, want %s", d.ResourceID, d.Outcome, decommission.OutcomeFailed)
		}
	}
	if len(catalog.DeleteCalls) != 0 {
		t.Errorf("cancelled run issued deletions: %v", catalog.DeleteCalls)
	}
}

func TestRunTimeoutIsNonFatal(t *testing.T) {
	catalog := testutil.NewMockCatalog()
	ids := []string{"v1", "v2", "v3", "v4", "v5"}
	for _, id := range ids {
		catalog.Add(resource.Descriptor{ID: id, Name: id, Type: resource.TypeVirtualMachine, Scope: "rg-dev"})
	}
	// One deletion never completes.
	catalog.KeepAfterDelete = map[string]bool{"v5": true}
	blobs := testutil.NewMockBlobStore()
	exec := newTestExecutor(catalog, blobs, nil)

	result, err := exec.Run(context.Background(), "rg-dev", testPolicy(), []resource.Type{resource.TypeVirtualMachine})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	report := result.Report
	if report.Status != decommission.RunCompleted {
		t.Errorf("status = %s, want %s", report.Status, decommission.RunCompleted)
	}
	if got := report.Counts()[decommission.OutcomeDeleted]; got != 5 {
		t.Errorf("deleted count = %d, want 5", got)
	}
	if !catalog.Has("v5") {
		t.Error("stuck resource unexpectedly disappeared")
	}
	if result.Location == "" {
		t.Error("report not written after timeout")
	}
}

func TestRunIdempotentRerun(t *testing.T) {
	catalog := testutil.NewMockCatalog()
	catalog.Add(resource.Descriptor{ID: "a", Name: "A", Type: resource.TypeComputeCluster, Scope: "rg-dev"})
	exec := newTestExecutor(catalog, testutil.NewMockBlobStore(), nil)
	allow := []resource.Type{resource.TypeComputeCluster}

	first, err := exec.Run(context.Background(), "rg-dev", testPolicy(), allow)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if len(first.Report.Decisions) != 1 {
		t.Fatalf("first run decisions = %d, want 1", len(first.Report.Decisions))
	}

	second, err := exec.Run(context.Background(), "rg-dev", testPolicy(), allow)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if len(second.Report.Decisions) != 0 {
		t.Errorf("second run decisions = %d, want 0", len(second.Report.Decisions))
	}
	if len(catalog.DeleteCalls) != 1 {
		t.Errorf("delete calls = %v, want exactly one", catalog.DeleteCalls)
	}
}
