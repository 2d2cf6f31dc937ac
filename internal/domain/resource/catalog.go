package resource

import (
	"context"
	"encoding/json"
)

// Catalog is the management-plane surface the orchestrator consumes. It
// is implemented by the cloud provider client and by test doubles; the
// orchestrator never talks to the management API directly.
//
// Deletion and update are asynchronous: the API acknowledges acceptance,
// not completion. All operations are idempotent at the identifier level;
// deleting an already-gone id is not an error.
type Catalog interface {
	// ListResources returns all resources of one type within a scope.
	ListResources(ctx context.Context, scope string, t Type) ([]Descriptor, error)

	// DeleteResource requests asynchronous deletion of a resource.
	DeleteResource(ctx context.Context, id string) error

	// UpdateResource applies a partial update, used for soft
	// decommissioning (capacity scale-down).
	UpdateResource(ctx context.Context, id string, patch map[string]any) error

	// TagResource merges the given tags into the resource's tag set.
	TagResource(ctx context.Context, id string, tags map[string]string) error

	// ReadConfiguration returns the resource's full configuration as
	// reported by the management API, used for backup snapshots and
	// dependency inspection.
	ReadConfiguration(ctx context.Context, id string) (json.RawMessage, error)

	// ListSecretNames enumerates item identifiers held by a secret
	// store. Values are never returned.
	ListSecretNames(ctx context.Context, id string) ([]string, error)
}
