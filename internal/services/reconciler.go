package services

import (
	"context"
	"time"

	"github.com/opsweep/opsweep/internal/domain/resource"
	"github.com/opsweep/opsweep/internal/pkg/logger"
	"github.com/opsweep/opsweep/internal/pkg/metrics"
)

// Reconciler tracks accepted deletion requests to completion. Deletion
// is fire-and-forget at the management API; the reconciler re-queries
// the catalog at a fixed interval until every pending resource is gone
// or the wait budget runs out.
type Reconciler struct {
	catalog  resource.Catalog
	interval time.Duration
	maxWait  time.Duration
	logger   *logger.Logger
}

// NewReconciler creates a deletion reconciler.
func NewReconciler(catalog resource.Catalog, interval, maxWait time.Duration, log *logger.Logger) *Reconciler {
	return &Reconciler{
		catalog:  catalog,
		interval: interval,
		maxWait:  maxWait,
		logger:   log,
	}
}

// Await polls until no pending resource remains in the scope, the wait
// budget is exhausted, or ctx is cancelled. It returns the resources
// still present at the end. Budget exhaustion is a warning, not an
// error: the run's active phase already completed.
func (r *Reconciler) Await(ctx context.Context, scope string, pending []resource.Descriptor) []resource.Descriptor {
	if len(pending) == 0 {
		return nil
	}

	deadline := time.NewTimer(r.maxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Infof("awaiting deletion of %d resource(s) in scope %s (budget %s)", len(pending), scope, r.maxWait)

	for {
		select {
		case <-ctx.Done():
			r.logger.Warnf("reconciliation cancelled with %d resource(s) still pending", len(pending))
			return pending
		case <-deadline.C:
			r.logger.Warnf("wait budget of %s exhausted with %d resource(s) still pending deletion", r.maxWait, len(pending))
			return pending
		case <-ticker.C:
			metrics.RecordPollCycle()
			pending = r.stillPresent(ctx, scope, pending)
			if len(pending) == 0 {
				r.logger.Info("all deletion requests completed")
				return nil
			}
			r.logger.Debugf("%d resource(s) still pending deletion", len(pending))
		}
	}
}

// stillPresent re-lists the types of the pending resources and keeps
// only those the catalog still reports. A list failure keeps the whole
// type pending for the next cycle rather than declaring it gone.
func (r *Reconciler) stillPresent(ctx context.Context, scope string, pending []resource.Descriptor) []resource.Descriptor {
	byType := make(map[resource.Type][]resource.Descriptor)
	for _, p := range pending {
		byType[p.Type] = append(byType[p.Type], p)
	}

	var remaining []resource.Descriptor
	for t, group := range byType {
		current, err := r.catalog.ListResources(ctx, scope, t)
		if err != nil {
			r.logger.WithFields(map[string]interface{}{
				"type": string(t),
			}).ErrorWithErr(err, "poll query failed, keeping resources pending")
			remaining = append(remaining, group...)
			continue
		}
		present := make(map[string]struct{}, len(current))
		for _, c := range current {
			present[c.ID] = struct{}{}
		}
		for _, p := range group {
			if _, ok := present[p.ID]; ok {
				remaining = append(remaining, p)
			}
		}
	}
	return remaining
}
