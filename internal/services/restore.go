package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opsweep/opsweep/internal/domain/backup"
	"github.com/opsweep/opsweep/internal/pkg/logger"
	"github.com/opsweep/opsweep/internal/store"
)

// RestoreService retrieves backup records from durable storage so an
// operator can re-provision a decommissioned resource. Re-provisioning
// itself happens through the platform's deployment tooling; this
// service supplies the captured configuration.
type RestoreService struct {
	store  store.BlobStore
	logger *logger.Logger
}

// NewRestoreService creates a restore service.
func NewRestoreService(blobs store.BlobStore, log *logger.Logger) *RestoreService {
	return &RestoreService{store: blobs, logger: log}
}

// Restore fetches one backup record by store key.
func (s *RestoreService) Restore(ctx context.Context, key string) (*backup.Record, error) {
	if !strings.HasPrefix(key, "backups/") {
		key = "backups/" + key
	}

	blob, err := s.store.Read(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup %s: %w", key, err)
	}

	var rec backup.Record
	if err := json.Unmarshal(blob, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode backup %s: %w", key, err)
	}

	if rec.SecretsOmitted {
		s.logger.Warn("backup holds secret names only; secret values must be re-entered manually")
	}
	return &rec, nil
}

// ListBackups returns the store keys of all backup records, optionally
// filtered by a key prefix under backups/.
func (s *RestoreService) ListBackups(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.store.List(ctx, "backups/"+prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	return keys, nil
}
