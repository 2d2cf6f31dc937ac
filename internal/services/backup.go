package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opsweep/opsweep/internal/domain/backup"
	"github.com/opsweep/opsweep/internal/domain/resource"
	apperrors "github.com/opsweep/opsweep/internal/pkg/errors"
	"github.com/opsweep/opsweep/internal/pkg/logger"
	"github.com/opsweep/opsweep/internal/pkg/metrics"
	"github.com/opsweep/opsweep/internal/pkg/retry"
	"github.com/opsweep/opsweep/internal/store"
)

// backupHandler reads a resource's remote state and fills in the
// record's contents. Handlers never mutate the source resource.
type backupHandler func(ctx context.Context, d *Dispatcher, res resource.Descriptor, rec *backup.Record) error

// handlerFor routes each resource type to its backup strategy. Types
// with no entry hold no restorable state and are deleted (or scaled
// down) without a snapshot.
var handlerFor = map[resource.Type]backupHandler{
	resource.TypeComputeCluster:  snapshotConfiguration,
	resource.TypeManagedDatabase: snapshotConfiguration,
	resource.TypeCapacityUnit:    snapshotConfiguration,
	resource.TypeVirtualMachine:  snapshotConfiguration,
	resource.TypeContainer:       snapshotConfiguration,
	resource.TypeSecretStore:     snapshotSecretManifest,
}

// Dispatcher routes each candidate to a type-specific backup handler
// and writes the resulting record to durable storage.
type Dispatcher struct {
	catalog resource.Catalog
	store   store.BlobStore
	retries uint64
	logger  *logger.Logger
}

// NewDispatcher creates a backup dispatcher.
func NewDispatcher(catalog resource.Catalog, blobs store.BlobStore, retries int, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		catalog: catalog,
		store:   blobs,
		retries: uint64(retries),
		logger:  log,
	}
}

// Backup snapshots one resource before its deletion is requested.
// Returns backup.ErrNoStrategy when the type has no handler; any other
// error means the snapshot could not be taken or stored, and the caller
// must not delete the resource while data preservation is active.
func (d *Dispatcher) Backup(ctx context.Context, res resource.Descriptor) (*backup.Record, error) {
	handler, ok := handlerFor[res.Type]
	if !ok {
		return nil, backup.ErrNoStrategy
	}

	rec := &backup.Record{
		ResourceID:   res.ID,
		ResourceName: res.Name,
		ResourceType: res.Type,
		CreatedAt:    time.Now().UTC(),
	}
	if err := handler(ctx, d, res, rec); err != nil {
		return nil, apperrors.Backup(fmt.Sprintf("failed to snapshot %s", res.Name), err)
	}

	blob, err := json.Marshal(rec)
	if err != nil {
		return nil, apperrors.Backup(fmt.Sprintf("failed to encode backup record for %s", res.Name), err)
	}

	key := backup.Key(rec.CreatedAt, res.ID)
	location, err := d.store.Write(ctx, key, blob)
	if err != nil {
		return nil, apperrors.Backup(fmt.Sprintf("failed to store backup for %s", res.Name), err)
	}
	rec.Location = location
	metrics.RecordBackupBytes(len(blob))

	d.logger.WithFields(map[string]interface{}{
		"resource": res.Name,
		"location": location,
	}).Info("backup written")
	return rec, nil
}

// snapshotConfiguration captures the resource's full management-plane
// configuration.
func snapshotConfiguration(ctx context.Context, d *Dispatcher, res resource.Descriptor, rec *backup.Record) error {
	return retry.Do(ctx, d.retries, func() error {
		cfg, err := d.catalog.ReadConfiguration(ctx, res.ID)
		if err != nil {
			metrics.RecordCatalogRetry()
			return err
		}
		rec.Contents = cfg
		return nil
	})
}

// snapshotSecretManifest captures a secret store's configuration plus a
// manifest of secret names. Secret values are never exported; the
// record is flagged so operators know restore needs manual re-entry.
func snapshotSecretManifest(ctx context.Context, d *Dispatcher, res resource.Descriptor, rec *backup.Record) error {
	var cfg json.RawMessage
	err := retry.Do(ctx, d.retries, func() error {
		var readErr error
		cfg, readErr = d.catalog.ReadConfiguration(ctx, res.ID)
		if readErr != nil {
			metrics.RecordCatalogRetry()
		}
		return readErr
	})
	if err != nil {
		return err
	}

	var names []string
	err = retry.Do(ctx, d.retries, func() error {
		var listErr error
		names, listErr = d.catalog.ListSecretNames(ctx, res.ID)
		if listErr != nil {
			metrics.RecordCatalogRetry()
		}
		return listErr
	})
	if err != nil {
		return err
	}

	contents, err := json.Marshal(struct {
		Configuration json.RawMessage `json:"configuration"`
		SecretNames   []string        `json:"secret_names"`
	}{Configuration: cfg, SecretNames: names})
	if err != nil {
		return err
	}
	rec.Contents = contents
	rec.SecretsOmitted = true
	return nil
}
