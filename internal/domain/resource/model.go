package resource

// Type identifies one kind of deployed infrastructure unit. The set is
// closed: strategy tables (dependency resolution, backup, deletion) are
// keyed by Type, so adding a variant means extending those tables too.
type Type string

const (
	TypeComputeCluster  Type = "compute-cluster"
	TypeManagedDatabase Type = "managed-database"
	TypeCapacityUnit    Type = "capacity-unit"
	TypeSecretStore     Type = "secret-store"
	TypeVirtualMachine  Type = "virtual-machine"
	TypeContainer       Type = "lightweight-container"
	TypeWorkflowPlan    Type = "serverless-workflow-plan"
)

// AllTypes returns every known resource type.
func AllTypes() []Type {
	return []Type{
		TypeComputeCluster,
		TypeManagedDatabase,
		TypeCapacityUnit,
		TypeSecretStore,
		TypeVirtualMachine,
		TypeContainer,
		TypeWorkflowPlan,
	}
}

// ParseType converts a string to a Type, reporting whether it is known.
func ParseType(s string) (Type, bool) {
	t := Type(s)
	for _, known := range AllTypes() {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// Tag keys the orchestrator reads and writes.
const (
	// TagDecommissioning marks a resource whose deletion has been
	// requested but not yet observed to complete.
	TagDecommissioning = "decommissioning"

	// TagProtected excludes a resource from decommissioning entirely.
	TagProtected = "protected"
)

// Descriptor represents one deployed infrastructure unit as reported by
// the management API. It is discovered fresh on every run and never
// persisted; the catalog is the system of record.
type Descriptor struct {
	ID    string            `json:"id"`
	Name  string            `json:"name"`
	Type  Type              `json:"type"`
	Scope string            `json:"scope"`
	Tags  map[string]string `json:"tags,omitempty"`
}

// Protected reports whether the resource carries the protection tag.
func (d Descriptor) Protected() bool {
	return d.Tags[TagProtected] == "true"
}

// Decommissioning reports whether a deletion request is in flight for
// the resource.
func (d Descriptor) Decommissioning() bool {
	return d.Tags[TagDecommissioning] == "true"
}
