package services

import (
	"context"
	"strings"

	"github.com/opsweep/opsweep/internal/domain/resource"
	"github.com/opsweep/opsweep/internal/pkg/logger"
)

// dependentTypesFor maps each resource type to the types that may hold
// a live reference to it. A type with no entry is a leaf consumer:
// nothing in the taxonomy depends on it and the resolver can answer
// "no dependents" without a lookup.
var dependentTypesFor = map[resource.Type][]resource.Type{
	resource.TypeManagedDatabase: {
		resource.TypeComputeCluster,
		resource.TypeVirtualMachine,
		resource.TypeContainer,
		resource.TypeWorkflowPlan,
	},
	resource.TypeSecretStore: {
		resource.TypeComputeCluster,
		resource.TypeVirtualMachine,
		resource.TypeContainer,
		resource.TypeWorkflowPlan,
	},
	resource.TypeCapacityUnit: {
		resource.TypeComputeCluster,
		resource.TypeWorkflowPlan,
	},
}

// sentinelDependent is returned when a dependency lookup fails. The
// resolver never propagates lookup errors: an unknown answer must read
// as "has dependents" so the executor skips instead of deleting.
var sentinelDependent = resource.Descriptor{
	ID:   "unknown",
	Name: "unknown (dependency lookup failed)",
}

// Resolver determines which resources in a scope still reference a
// candidate. It is deliberately conservative: over-reporting costs a
// skip, under-reporting costs an unsafe deletion.
type Resolver struct {
	catalog resource.Catalog
	logger  *logger.Logger
}

// NewResolver creates a dependency resolver.
func NewResolver(catalog resource.Catalog, log *logger.Logger) *Resolver {
	return &Resolver{catalog: catalog, logger: log}
}

// FindDependents returns the resources in the candidate's scope whose
// configuration references it. An empty result means the resolver is
// confident no dependents exist; any lookup error yields a sentinel
// dependent instead of an error.
func (r *Resolver) FindDependents(ctx context.Context, candidate resource.Descriptor) []resource.Descriptor {
	holderTypes, ok := dependentTypesFor[candidate.Type]
	if !ok {
		return nil
	}

	log := r.logger.WithFields(map[string]interface{}{
		"resource": candidate.Name,
		"type":     string(candidate.Type),
	})

	var dependents []resource.Descriptor
	for _, t := range holderTypes {
		holders, err := r.catalog.ListResources(ctx, candidate.Scope, t)
		if err != nil {
			log.ErrorWithErr(err, "dependency lookup failed, assuming dependents exist")
			return []resource.Descriptor{sentinelDependent}
		}
		for _, h := range holders {
			if h.ID == candidate.ID {
				continue
			}
			cfg, err := r.catalog.ReadConfiguration(ctx, h.ID)
			if err != nil {
				log.ErrorWithErr(err, "failed to read holder configuration, assuming dependents exist")
				return []resource.Descriptor{sentinelDependent}
			}
			if referencesCandidate(cfg, candidate) {
				dependents = append(dependents, h)
			}
		}
	}

	if len(dependents) > 0 {
		log.Infof("found %d dependent(s)", len(dependents))
	}
	return dependents
}

// referencesCandidate checks whether a configuration document mentions
// the candidate. A match on the full resource id is authoritative; for
// secret stores the data-plane URI form is also checked, since compute
// resources bind to vaults by URI rather than by management id.
func referencesCandidate(cfg []byte, candidate resource.Descriptor) bool {
	doc := strings.ToLower(string(cfg))
	if strings.Contains(doc, strings.ToLower(candidate.ID)) {
		return true
	}
	if candidate.Type == resource.TypeSecretStore {
		return strings.Contains(doc, strings.ToLower(candidate.Name)+".vault")
	}
	return false
}
