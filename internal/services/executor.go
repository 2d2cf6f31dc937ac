package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opsweep/opsweep/internal/config"
	"github.com/opsweep/opsweep/internal/domain/backup"
	"github.com/opsweep/opsweep/internal/domain/decommission"
	"github.com/opsweep/opsweep/internal/domain/resource"
	apperrors "github.com/opsweep/opsweep/internal/pkg/errors"
	"github.com/opsweep/opsweep/internal/pkg/logger"
	"github.com/opsweep/opsweep/internal/pkg/metrics"
	"github.com/opsweep/opsweep/internal/pkg/retry"
	"github.com/opsweep/opsweep/internal/store"
)

// ErrConfirmationDeclined is returned when the operator declines the
// confirmation prompt. Nothing was mutated and no report is written.
var ErrConfirmationDeclined = errors.New("confirmation declined")

// scaleDownPatch is the capacity update applied to workflow plans
// instead of deletion. Shared plans are never deleted outright: other
// deployments may re-bind to them, so they are reduced to the minimal
// billing tier.
var scaleDownPatch = map[string]any{
	"sku": map[string]any{
		"name":     "Y1",
		"tier":     "Dynamic",
		"capacity": 0,
	},
}

// RunIndex records finished runs for the history command.
type RunIndex interface {
	Save(ctx context.Context, report *decommission.Report, reportLocation string) error
}

// RunResult is what a finished run hands back to the caller.
type RunResult struct {
	Report   *decommission.Report
	Location string
}

// Executor orchestrates one decommission run: selection, dependency
// checks, backup, confirmation gating, deletion dispatch, reconciliation
// and reporting. All resource-scoped errors are converted into
// decisions; only structural failures escape as errors.
type Executor struct {
	catalog    resource.Catalog
	selector   *Selector
	resolver   *Resolver
	dispatcher *Dispatcher
	reconciler *Reconciler
	blobs      store.BlobStore
	index      RunIndex
	notifier   Notifier
	prompter   Prompter
	runCfg     config.RunConfig
	logger     *logger.Logger
}

// NewExecutor wires an executor from its collaborators. index may be
// nil when no run history is kept.
func NewExecutor(
	catalog resource.Catalog,
	blobs store.BlobStore,
	index RunIndex,
	notifier Notifier,
	prompter Prompter,
	runCfg config.RunConfig,
	log *logger.Logger,
) *Executor {
	return &Executor{
		catalog:    catalog,
		selector:   NewSelector(catalog, runCfg.RetryAttempts, log),
		resolver:   NewResolver(catalog, log),
		dispatcher: NewDispatcher(catalog, blobs, runCfg.RetryAttempts, log),
		reconciler: NewReconciler(catalog, runCfg.PollInterval, runCfg.MaxWait, log),
		blobs:      blobs,
		index:      index,
		notifier:   notifier,
		prompter:   prompter,
		runCfg:     runCfg,
		logger:     log,
	}
}

// Run executes one decommission sweep over a scope. Every candidate
// receives exactly one decision in the returned report; the run exits
// cleanly even when individual resources fail.
func (e *Executor) Run(ctx context.Context, scope string, policy decommission.RunPolicy, allow []resource.Type) (*RunResult, error) {
	started := time.Now()
	runID := uuid.NewString()
	log := e.logger.WithFields(map[string]interface{}{
		"run_id": runID,
		"scope":  scope,
		"tier":   string(policy.Tier),
	})
	log.Info("starting decommission run")

	candidates, err := e.selector.SelectCandidates(ctx, scope, allow)
	if err != nil {
		return nil, err
	}

	if err := e.confirm(scope, policy, len(candidates)); err != nil {
		return nil, err
	}

	reporter := NewReporter(runID, scope, policy, e.runCfg.Operator)
	e.processAll(ctx, candidates, policy, reporter)

	status := decommission.RunCompleted
	if ctx.Err() != nil {
		// Cancelled: finalize immediately, no reconciliation.
		status = decommission.RunCancelled
	} else if !policy.DryRun {
		e.reconciler.Await(ctx, scope, pendingDeletions(candidates, reporter.Snapshot()))
		if ctx.Err() != nil {
			status = decommission.RunCancelled
		}
	}

	report := reporter.Finalize(status)

	location, err := WriteReport(context.WithoutCancel(ctx), e.blobs, report)
	if err != nil {
		return nil, err
	}
	if e.index != nil {
		if err := e.index.Save(context.WithoutCancel(ctx), report, location); err != nil {
			log.ErrorWithErr(err, "failed to index run in history")
		}
	}

	metrics.ObserveRunDuration(time.Since(started).Seconds())

	summary := RenderSummary(report, location)
	if err := e.notifier.Notify(context.WithoutCancel(ctx), fmt.Sprintf("opsweep run %s", report.Status), summary); err != nil {
		log.ErrorWithErr(err, "failed to deliver run notification")
	}

	log.Infof("run %s with %d decision(s)", report.Status, len(report.Decisions))
	return &RunResult{Report: report, Location: location}, nil
}

// confirm gates mutating runs behind operator confirmation. Dry runs
// and forced runs skip the prompt; the production tier requires typing
// a full phrase.
func (e *Executor) confirm(scope string, policy decommission.RunPolicy, candidates int) error {
	if policy.DryRun || policy.Force || candidates == 0 {
		return nil
	}

	var (
		ok  bool
		err error
	)
	if policy.Tier == decommission.TierProduction {
		phrase := fmt.Sprintf("decommission %s", scope)
		prompt := fmt.Sprintf("About to decommission %d resource(s) in PRODUCTION scope %s.", candidates, scope)
		ok, err = e.prompter.ConfirmPhrase(prompt, phrase)
	} else {
		prompt := fmt.Sprintf("Decommission %d resource(s) in scope %s (%s)?", candidates, scope, policy.Tier)
		ok, err = e.prompter.Confirm(prompt)
	}
	if err != nil {
		return apperrors.Structural("failed to read confirmation", err)
	}
	if !ok {
		return ErrConfirmationDeclined
	}
	return nil
}

// processAll fans candidates out to a bounded worker pool. Candidates
// not yet started when the run is cancelled still get a decision; the
// report must account for every one.
func (e *Executor) processAll(ctx context.Context, candidates []resource.Descriptor, policy decommission.RunPolicy, reporter *Reporter) {
	workers := policy.Concurrency
	if workers < 1 {
		workers = 1
	}

	work := make(chan resource.Descriptor)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cand := range work {
				if ctx.Err() != nil {
					reporter.Record(decommission.Decision{
						ResourceID:   cand.ID,
						ResourceName: cand.Name,
						ResourceType: cand.Type,
						Outcome:      decommission.OutcomeFailed,
						Reason:       "run cancelled before resource was processed",
					})
					continue
				}
				reporter.Record(e.processOne(ctx, cand, policy))
			}
		}()
	}
	for _, cand := range candidates {
		work <- cand
	}
	close(work)
	wg.Wait()
}

// processOne walks a single candidate through the decision sequence:
// protection check, dependency check, backup, then deletion or
// scale-down. Every exit path produces a decision.
func (e *Executor) processOne(ctx context.Context, cand resource.Descriptor, policy decommission.RunPolicy) decommission.Decision {
	decision := decommission.Decision{
		ResourceID:   cand.ID,
		ResourceName: cand.Name,
		ResourceType: cand.Type,
	}
	log := e.logger.WithFields(map[string]interface{}{
		"resource": cand.Name,
		"type":     string(cand.Type),
	})

	// Dry runs short-circuit every resource to the same terminal
	// outcome; the would-be action is carried in the reason only.
	if policy.DryRun {
		decision.Outcome = decommission.OutcomeDryRunOnly
		decision.Reason = e.planOnly(ctx, cand, policy)
		return decision
	}

	if cand.Protected() {
		decision.Outcome = decommission.OutcomeSkippedProtected
		decision.Reason = "resource carries the protected tag"
		return decision
	}

	dependents := e.resolver.FindDependents(ctx, cand)
	if len(dependents) > 0 && policy.PreserveData {
		decision.Outcome = decommission.OutcomeSkippedDependency
		decision.Reason = fmt.Sprintf("depended on by %s", dependentNames(dependents))
		return decision
	}
	if len(dependents) > 0 {
		log.Warnf("proceeding despite %d dependent(s): data preservation disabled", len(dependents))
	}

	// An in-flight backup finishes even if the run is cancelled, so a
	// half-written record is never left behind.
	rec, err := e.dispatcher.Backup(context.WithoutCancel(ctx), cand)
	switch {
	case errors.Is(err, backup.ErrNoStrategy):
		log.Debug("no backup strategy for type, proceeding without snapshot")
	case err != nil && policy.PreserveData:
		decision.Outcome = decommission.OutcomeFailed
		decision.Reason = fmt.Sprintf("backup failed, deletion blocked: %v", err)
		return decision
	case err != nil:
		log.ErrorWithErr(err, "backup failed, proceeding anyway: data preservation disabled")
	default:
		decision.Backup = rec
	}

	if ctx.Err() != nil {
		decision.Outcome = decommission.OutcomeFailed
		decision.Reason = "run cancelled before deletion was requested"
		return decision
	}

	if cand.Type == resource.TypeWorkflowPlan {
		return e.scaleDown(ctx, cand, decision, log)
	}
	return e.delete(ctx, cand, decision, log)
}

// planOnly runs the read-only checks and describes what a real run
// would do with the candidate. No backup, no mutation.
func (e *Executor) planOnly(ctx context.Context, cand resource.Descriptor, policy decommission.RunPolicy) string {
	if cand.Protected() {
		return "dry run; would skip: resource carries the protected tag"
	}
	dependents := e.resolver.FindDependents(ctx, cand)
	if len(dependents) > 0 && policy.PreserveData {
		return fmt.Sprintf("dry run; would skip: depended on by %s", dependentNames(dependents))
	}
	if cand.Type == resource.TypeWorkflowPlan {
		return "dry run; would scale down to minimal capacity"
	}
	return "dry run; would back up and request deletion"
}

// delete tags the resource as in-flight and requests asynchronous
// deletion. A tag failure is logged but does not block the deletion; it
// only degrades reconciliation for that resource.
func (e *Executor) delete(ctx context.Context, cand resource.Descriptor, decision decommission.Decision, log *logger.Logger) decommission.Decision {
	err := retry.Do(ctx, uint64(e.runCfg.RetryAttempts), func() error {
		tagErr := e.catalog.TagResource(ctx, cand.ID, map[string]string{resource.TagDecommissioning: "true"})
		if tagErr != nil {
			metrics.RecordCatalogRetry()
		}
		return tagErr
	})
	if err != nil {
		log.ErrorWithErr(err, "failed to tag resource as decommissioning")
	}

	if err := e.catalog.DeleteResource(ctx, cand.ID); err != nil {
		rejected := apperrors.DeletionRejected("deletion request rejected", err)
		log.ErrorWithErr(rejected, "deletion not accepted")
		decision.Outcome = decommission.OutcomeFailed
		decision.Reason = rejected.Error()
		return decision
	}

	log.Info("deletion request accepted")
	decision.Outcome = decommission.OutcomeDeleted
	return decision
}

// scaleDown soft-decommissions a workflow plan by reducing it to the
// minimal capacity tier.
func (e *Executor) scaleDown(ctx context.Context, cand resource.Descriptor, decision decommission.Decision, log *logger.Logger) decommission.Decision {
	if err := e.catalog.UpdateResource(ctx, cand.ID, scaleDownPatch); err != nil {
		rejected := apperrors.DeletionRejected("scale-down request rejected", err)
		log.ErrorWithErr(rejected, "scale-down not accepted")
		decision.Outcome = decommission.OutcomeFailed
		decision.Reason = rejected.Error()
		return decision
	}

	log.Info("scaled down to minimal capacity")
	decision.Outcome = decommission.OutcomeScaledDown
	decision.Reason = "shared plan reduced to minimal capacity instead of deletion"
	return decision
}

// pendingDeletions returns the candidates whose deletion request was
// accepted, for the reconciler to track.
func pendingDeletions(candidates []resource.Descriptor, decisions []decommission.Decision) []resource.Descriptor {
	deleted := make(map[string]struct{})
	for _, d := range decisions {
		if d.Outcome == decommission.OutcomeDeleted {
			deleted[d.ResourceID] = struct{}{}
		}
	}
	var pending []resource.Descriptor
	for _, c := range candidates {
		if _, ok := deleted[c.ID]; ok {
			pending = append(pending, c)
		}
	}
	return pending
}

func dependentNames(dependents []resource.Descriptor) string {
	names := make([]string, 0, len(dependents))
	for _, d := range dependents {
		names = append(names, d.Name)
	}
	return strings.Join(names, ", ")
}
