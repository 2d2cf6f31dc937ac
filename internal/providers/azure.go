package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	armcompute "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	armkeyvault "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/keyvault/armkeyvault"
	armresources "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"golang.org/x/time/rate"

	"github.com/opsweep/opsweep/internal/config"
	"github.com/opsweep/opsweep/internal/domain/resource"
	apperrors "github.com/opsweep/opsweep/internal/pkg/errors"
	"github.com/opsweep/opsweep/internal/pkg/logger"
	"github.com/opsweep/opsweep/internal/pkg/metrics"
)

// armTypeFor maps the orchestrator's closed taxonomy onto ARM resource
// types. The scope of a run is a resource group.
var armTypeFor = map[resource.Type]string{
	resource.TypeComputeCluster:  "Microsoft.ContainerService/managedClusters",
	resource.TypeManagedDatabase: "Microsoft.DBforPostgreSQL/flexibleServers",
	resource.TypeCapacityUnit:    "Microsoft.Fabric/capacities",
	resource.TypeSecretStore:     "Microsoft.KeyVault/vaults",
	resource.TypeVirtualMachine:  "Microsoft.Compute/virtualMachines",
	resource.TypeContainer:       "Microsoft.ContainerInstance/containerGroups",
	resource.TypeWorkflowPlan:    "Microsoft.Web/serverfarms",
}

// apiVersionFor holds the management API version used for by-id
// operations on each ARM type.
var apiVersionFor = map[string]string{
	"microsoft.containerservice/managedclusters":  "2024-05-01",
	"microsoft.dbforpostgresql/flexibleservers":   "2024-08-01",
	"microsoft.fabric/capacities":                 "2023-11-01",
	"microsoft.keyvault/vaults":                   "2023-07-01",
	"microsoft.compute/virtualmachines":           "2024-07-01",
	"microsoft.containerinstance/containergroups": "2023-05-01",
	"microsoft.web/serverfarms":                   "2023-12-01",
}

const defaultAPIVersion = "2021-04-01"

// AzureCatalog implements resource.Catalog against Azure Resource
// Manager. All calls share one client-side rate limiter so a large
// scope cannot trip ARM throttling.
type AzureCatalog struct {
	generic *armresources.Client
	tags    *armresources.TagsClient
	vms     *armcompute.VirtualMachinesClient
	secrets *armkeyvault.SecretsClient
	limiter *rate.Limiter
	logger  *logger.Logger
}

// NewAzureCatalog builds an ARM-backed catalog from configuration.
// Missing credentials are a structural failure: nothing else in a run
// can proceed without the management API.
func NewAzureCatalog(cfg config.AzureConfig, log *logger.Logger) (*AzureCatalog, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.SubscriptionID == "" {
		return nil, apperrors.Structural("Azure credentials are not configured", nil)
	}

	cred, err := azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
	if err != nil {
		return nil, apperrors.Structural("failed to authenticate with Azure", err)
	}

	generic, err := armresources.NewClient(cfg.SubscriptionID, cred, nil)
	if err != nil {
		return nil, apperrors.Structural("failed to create resources client", err)
	}
	tagsClient, err := armresources.NewTagsClient(cfg.SubscriptionID, cred, nil)
	if err != nil {
		return nil, apperrors.Structural("failed to create tags client", err)
	}
	vmClient, err := armcompute.NewVirtualMachinesClient(cfg.SubscriptionID, cred, nil)
	if err != nil {
		return nil, apperrors.Structural("failed to create compute client", err)
	}
	secretsClient, err := armkeyvault.NewSecretsClient(cfg.SubscriptionID, cred, nil)
	if err != nil {
		return nil, apperrors.Structural("failed to create key vault client", err)
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}

	return &AzureCatalog{
		generic: generic,
		tags:    tagsClient,
		vms:     vmClient,
		secrets: secretsClient,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  log,
	}, nil
}

// ListResources lists all resources of one type in a resource group.
func (c *AzureCatalog) ListResources(ctx context.Context, scope string, t resource.Type) ([]resource.Descriptor, error) {
	armType, ok := armTypeFor[t]
	if !ok {
		return nil, fmt.Errorf("unknown resource type: %s", t)
	}

	var out []resource.Descriptor
	filter := fmt.Sprintf("resourceType eq '%s'", armType)
	pager := c.generic.NewListByResourceGroupPager(scope, &armresources.ClientListByResourceGroupOptions{
		Filter: to.Ptr(filter),
	})
	for pager.More() {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := pager.NextPage(ctx)
		metrics.RecordCatalogRequest("list", err)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s in %s: %w", t, scope, err)
		}
		for _, r := range page.Value {
			if r.ID == nil || r.Name == nil {
				continue
			}
			out = append(out, resource.Descriptor{
				ID:    *r.ID,
				Name:  *r.Name,
				Type:  t,
				Scope: scope,
				Tags:  fromARMTags(r.Tags),
			})
		}
	}
	return out, nil
}

// DeleteResource requests asynchronous deletion. The returned poller is
// discarded on purpose: the reconciler tracks completion by re-listing
// the scope, and ARM acknowledges acceptance on the initial request.
func (c *AzureCatalog) DeleteResource(ctx context.Context, id string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.generic.BeginDeleteByID(ctx, id, apiVersionForID(id), nil)
	metrics.RecordCatalogRequest("delete", err)
	if isNotFound(err) {
		// Already gone; deletion is idempotent at the id level.
		return nil
	}
	return err
}

// UpdateResource applies a partial properties update, used for capacity
// scale-down.
func (c *AzureCatalog) UpdateResource(ctx context.Context, id string, patch map[string]any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.generic.BeginUpdateByID(ctx, id, apiVersionForID(id), armresources.GenericResource{
		Properties: patch,
	}, nil)
	metrics.RecordCatalogRequest("update", err)
	return err
}

// TagResource merges tags into the resource's tag set.
func (c *AzureCatalog) TagResource(ctx context.Context, id string, tags map[string]string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	armTags := make(map[string]*string, len(tags))
	for k, v := range tags {
		armTags[k] = to.Ptr(v)
	}
	_, err := c.tags.UpdateAtScope(ctx, id, armresources.TagsPatchResource{
		Operation:  to.Ptr(armresources.TagsPatchOperationMerge),
		Properties: &armresources.Tags{Tags: armTags},
	}, nil)
	metrics.RecordCatalogRequest("tag", err)
	return err
}

// ReadConfiguration fetches the full resource body. Virtual machines go
// through the typed compute client, which returns the complete hardware
// and disk profile; everything else uses the generic client.
func (c *AzureCatalog) ReadConfiguration(ctx context.Context, id string) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	parsed, err := parseARMID(id)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(parsed.armType, "Microsoft.Compute/virtualMachines") {
		resp, err := c.vms.Get(ctx, parsed.resourceGroup, parsed.name, nil)
		metrics.RecordCatalogRequest("read", err)
		if err != nil {
			return nil, fmt.Errorf("failed to read vm %s: %w", parsed.name, err)
		}
		return json.Marshal(resp.VirtualMachine)
	}

	resp, err := c.generic.GetByID(ctx, id, apiVersionForID(id), nil)
	metrics.RecordCatalogRequest("read", err)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", id, err)
	}
	return json.Marshal(resp.GenericResource)
}

// ListSecretNames enumerates secret identifiers in a key vault via the
// management plane. Values are never requested.
func (c *AzureCatalog) ListSecretNames(ctx context.Context, id string) ([]string, error) {
	parsed, err := parseARMID(id)
	if err != nil {
		return nil, err
	}

	var names []string
	pager := c.secrets.NewListPager(parsed.resourceGroup, parsed.name, nil)
	for pager.More() {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := pager.NextPage(ctx)
		metrics.RecordCatalogRequest("list-secrets", err)
		if err != nil {
			return nil, fmt.Errorf("failed to list secrets in %s: %w", parsed.name, err)
		}
		for _, s := range page.Value {
			if s.Name != nil {
				names = append(names, *s.Name)
			}
		}
	}
	return names, nil
}

type armID struct {
	subscription  string
	resourceGroup string
	armType       string
	name          string
}

// parseARMID splits a resource id of the form
// /subscriptions/<s>/resourceGroups/<rg>/providers/<ns>/<type>/<name>.
func parseARMID(id string) (armID, error) {
	parts := strings.Split(strings.Trim(id, "/"), "/")
	if len(parts) < 8 ||
		!strings.EqualFold(parts[0], "subscriptions") ||
		!strings.EqualFold(parts[2], "resourceGroups") ||
		!strings.EqualFold(parts[4], "providers") {
		return armID{}, fmt.Errorf("malformed resource id: %s", id)
	}
	return armID{
		subscription:  parts[1],
		resourceGroup: parts[3],
		armType:       parts[5] + "/" + parts[6],
		name:          parts[len(parts)-1],
	}, nil
}

func apiVersionForID(id string) string {
	parsed, err := parseARMID(id)
	if err != nil {
		return defaultAPIVersion
	}
	if v, ok := apiVersionFor[strings.ToLower(parsed.armType)]; ok {
		return v
	}
	return defaultAPIVersion
}

func fromARMTags(tags map[string]*string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}
