package services

import (
	"context"
	"fmt"

	"github.com/opsweep/opsweep/internal/domain/resource"
	apperrors "github.com/opsweep/opsweep/internal/pkg/errors"
	"github.com/opsweep/opsweep/internal/pkg/logger"
	"github.com/opsweep/opsweep/internal/pkg/metrics"
	"github.com/opsweep/opsweep/internal/pkg/retry"
)

// Selector filters the catalog down to decommissioning candidates: the
// resource types the tier's allow-list marks as expensive enough to
// chase.
type Selector struct {
	catalog resource.Catalog
	retries uint64
	logger  *logger.Logger
}

// NewSelector creates a candidate selector.
func NewSelector(catalog resource.Catalog, retries int, log *logger.Logger) *Selector {
	return &Selector{
		catalog: catalog,
		retries: uint64(retries),
		logger:  log,
	}
}

// SelectCandidates lists every resource of an allowed type in the
// scope. An empty allow-list selects nothing. A query failure for one
// type is logged and the remaining types are still tried; only when
// every type fails is the catalog considered unreachable.
func (s *Selector) SelectCandidates(ctx context.Context, scope string, allow []resource.Type) ([]resource.Descriptor, error) {
	if len(allow) == 0 {
		s.logger.Warnf("allow-list for scope %s is empty, nothing to select", scope)
		return nil, nil
	}

	var (
		candidates []resource.Descriptor
		failed     int
		lastErr    error
	)
	for _, t := range allow {
		var found []resource.Descriptor
		err := retry.Do(ctx, s.retries, func() error {
			var listErr error
			found, listErr = s.catalog.ListResources(ctx, scope, t)
			if listErr != nil {
				metrics.RecordCatalogRetry()
			}
			return listErr
		})
		if err != nil {
			failed++
			lastErr = apperrors.Transient(fmt.Sprintf("failed to list %s after retries", t), err)
			s.logger.WithFields(map[string]interface{}{
				"scope": scope,
				"type":  string(t),
			}).ErrorWithErr(lastErr, "skipping resource type, continuing with remaining types")
			continue
		}
		candidates = append(candidates, found...)
	}

	if failed == len(allow) {
		return nil, apperrors.Structural(
			fmt.Sprintf("catalog unreachable: all %d resource type queries failed for scope %s", failed, scope),
			lastErr)
	}

	s.logger.Infof("selected %d candidate(s) in scope %s across %d type(s)", len(candidates), scope, len(allow))
	return candidates, nil
}
