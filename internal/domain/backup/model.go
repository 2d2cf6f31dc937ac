package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opsweep/opsweep/internal/domain/resource"
)

// ErrNoStrategy is returned when no backup handler exists for a resource
// type. It is not a failure: stateless types have nothing worth
// restoring, and the executor proceeds to deletion without a backup.
var ErrNoStrategy = errors.New("no backup strategy for resource type")

// Record is the durable artifact written for one resource immediately
// before its deletion is requested. Immutable once written; the restore
// operation retrieves it by key.
type Record struct {
	ResourceID   string        `json:"resource_id"`
	ResourceName string        `json:"resource_name"`
	ResourceType resource.Type `json:"resource_type"`
	CreatedAt    time.Time     `json:"created_at"`

	// Location is the opaque handle returned by the blob store.
	Location string `json:"location,omitempty"`

	// SecretsOmitted is set when the snapshot holds only a manifest of
	// item names; restoring will require manual secret re-entry.
	SecretsOmitted bool `json:"secrets_omitted,omitempty"`

	Contents json.RawMessage `json:"contents,omitempty"`
}

// Key builds the store key for a record, addressable by creation
// timestamp and resource id.
func Key(createdAt time.Time, resourceID string) string {
	return fmt.Sprintf("backups/%s/%s.json",
		createdAt.UTC().Format("20060102T150405Z"), sanitizeID(resourceID))
}

// sanitizeID flattens management-API resource ids (which contain
// slashes) into a single path segment.
func sanitizeID(id string) string {
	id = strings.TrimPrefix(id, "/")
	return strings.NewReplacer("/", "_", ":", "_").Replace(id)
}
