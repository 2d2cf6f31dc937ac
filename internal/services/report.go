package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/opsweep/opsweep/internal/domain/decommission"
	apperrors "github.com/opsweep/opsweep/internal/pkg/errors"
	"github.com/opsweep/opsweep/internal/pkg/metrics"
	"github.com/opsweep/opsweep/internal/store"
)

// Reporter accumulates decisions during a run. It is the only shared
// mutable state across resource workers; appends are serialized under a
// single lock and the report is finalized exactly once.
type Reporter struct {
	mu        sync.Mutex
	report    decommission.Report
	finalized bool
}

// NewReporter starts the report for one run.
func NewReporter(runID, scope string, policy decommission.RunPolicy, operator string) *Reporter {
	return &Reporter{
		report: decommission.Report{
			RunID:     runID,
			Scope:     scope,
			Tier:      policy.Tier,
			Operator:  operator,
			DryRun:    policy.DryRun,
			StartedAt: time.Now().UTC(),
		},
	}
}

// Record appends one decision. Safe for concurrent use.
func (r *Reporter) Record(d decommission.Decision) {
	if d.DecidedAt.IsZero() {
		d.DecidedAt = time.Now().UTC()
	}
	metrics.RecordDecision(string(d.Outcome), string(d.ResourceType))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Decisions = append(r.report.Decisions, d)
}

// Snapshot copies the decisions recorded so far.
func (r *Reporter) Snapshot() []decommission.Decision {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]decommission.Decision, len(r.report.Decisions))
	copy(out, r.report.Decisions)
	return out
}

// Len returns the number of decisions recorded so far.
func (r *Reporter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.report.Decisions)
}

// Finalize seals the report with its terminal status. Further calls
// return the same report.
func (r *Reporter) Finalize(status decommission.RunStatus) *decommission.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.finalized {
		r.report.Status = status
		r.report.FinishedAt = time.Now().UTC()
		r.finalized = true
	}
	return &r.report
}

// ReportKey builds the store key for a run's report, addressable by
// start timestamp and run id.
func ReportKey(report *decommission.Report) string {
	return fmt.Sprintf("reports/%s/%s.json",
		report.StartedAt.UTC().Format("20060102T150405Z"), report.RunID)
}

// WriteReport persists the finalized report. A write failure here is
// structural: a run without a durable report never happened as far as
// the audit trail is concerned.
func WriteReport(ctx context.Context, blobs store.BlobStore, report *decommission.Report) (string, error) {
	blob, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", apperrors.Structural("failed to encode run report", err)
	}
	location, err := blobs.Write(ctx, ReportKey(report), blob)
	if err != nil {
		return "", apperrors.Structural("failed to write run report", err)
	}
	return location, nil
}

// RenderSummary formats the human-readable end-of-run summary: counts
// per outcome plus the report location. Printed even for partially
// failed runs.
func RenderSummary(report *decommission.Report, location string) string {
	counts := report.Counts()

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s/%s) %s\n", report.RunID, report.Scope, report.Tier, report.Status)
	if report.DryRun {
		b.WriteString("Mode: dry-run (no changes were made)\n")
	}
	order := []decommission.Outcome{
		decommission.OutcomeDeleted,
		decommission.OutcomeScaledDown,
		decommission.OutcomeSkippedDependency,
		decommission.OutcomeSkippedProtected,
		decommission.OutcomeFailed,
		decommission.OutcomeDryRunOnly,
	}
	for _, o := range order {
		if n := counts[o]; n > 0 {
			fmt.Fprintf(&b, "  %-20s %d\n", string(o)+":", n)
		}
	}
	if len(report.Decisions) == 0 {
		b.WriteString("  no candidates found\n")
	}
	fmt.Fprintf(&b, "Report: %s", location)
	return b.String()
}
