package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/opsweep/opsweep/internal/domain/decommission"
	"github.com/opsweep/opsweep/internal/domain/resource"
)

// Config holds all orchestrator configuration. Loaded once per run and
// treated as immutable afterwards.
type Config struct {
	Azure   AzureConfig
	Store   StoreConfig
	Run     RunConfig
	History HistoryConfig
	Notify  NotifyConfig
	Logging LoggingConfig
	Metrics MetricsConfig

	// Tiers maps an environment tier to its candidate allow-list and
	// policy overrides. Loaded from the tiers file.
	Tiers map[string]TierConfig
}

// AzureConfig contains management API credentials and limits.
// Credentials are checked when the catalog client is built, not here,
// so commands that never touch the management API (history, restore)
// work without them.
type AzureConfig struct {
	TenantID          string
	ClientID          string
	ClientSecret      string
	SubscriptionID    string
	RequestsPerSecond float64
}

// StoreConfig contains durable backup/report store configuration
type StoreConfig struct {
	Backend string `validate:"oneof=filesystem s3"`
	// For filesystem
	Path string
	// For S3
	Bucket string
	Region string
	Prefix string
}

// RunConfig contains run behavior defaults, overridable per tier and
// by CLI flags
type RunConfig struct {
	PreserveData  bool
	Force         bool
	Concurrency   int `validate:"min=1,max=64"`
	RetryAttempts int `validate:"min=0,max=10"`
	PollInterval  time.Duration
	MaxWait       time.Duration
	Operator      string
}

// HistoryConfig contains the run-history index configuration
type HistoryConfig struct {
	Path string
}

// NotifyConfig contains notification sink configuration
type NotifyConfig struct {
	SlackWebhookURL string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// MetricsConfig contains the metrics endpoint configuration used in
// scheduled mode
type MetricsConfig struct {
	Addr string
}

// TierConfig is the per-tier section of the tiers file.
type TierConfig struct {
	AllowTypes   []string `yaml:"allow_types"`
	PreserveData *bool    `yaml:"preserve_data,omitempty"`
}

// Load loads configuration from environment variables and the tiers
// file. A missing tiers file falls back to built-in defaults; a missing
// tier inside it yields an empty allow-list (fail-safe).
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors as it's optional)
	_ = godotenv.Load()

	cfg := &Config{
		Azure: AzureConfig{
			TenantID:          getEnv("OPSWEEP_AZURE_TENANT_ID", ""),
			ClientID:          getEnv("OPSWEEP_AZURE_CLIENT_ID", ""),
			ClientSecret:      getEnv("OPSWEEP_AZURE_CLIENT_SECRET", ""),
			SubscriptionID:    getEnv("OPSWEEP_AZURE_SUBSCRIPTION_ID", ""),
			RequestsPerSecond: getEnvAsFloat("OPSWEEP_AZURE_RPS", 10),
		},
		Store: StoreConfig{
			Backend: getEnv("OPSWEEP_STORE_BACKEND", "filesystem"),
			Path:    getEnv("OPSWEEP_STORE_PATH", defaultStorePath()),
			Bucket:  getEnv("OPSWEEP_STORE_BUCKET", ""),
			Region:  getEnv("OPSWEEP_STORE_REGION", "us-east-1"),
			Prefix:  getEnv("OPSWEEP_STORE_PREFIX", "opsweep"),
		},
		Run: RunConfig{
			PreserveData:  getEnvAsBool("OPSWEEP_PRESERVE_DATA", true),
			Force:         getEnvAsBool("OPSWEEP_FORCE", false),
			Concurrency:   getEnvAsInt("OPSWEEP_CONCURRENCY", 4),
			RetryAttempts: getEnvAsInt("OPSWEEP_RETRY_ATTEMPTS", 3),
			PollInterval:  getEnvAsDuration("OPSWEEP_POLL_INTERVAL", 30*time.Second),
			MaxWait:       getEnvAsDuration("OPSWEEP_MAX_WAIT", 15*time.Minute),
			Operator:      getEnv("OPSWEEP_OPERATOR", os.Getenv("USER")),
		},
		History: HistoryConfig{
			Path: getEnv("OPSWEEP_HISTORY_PATH", defaultHistoryPath()),
		},
		Notify: NotifyConfig{
			SlackWebhookURL: getEnv("OPSWEEP_SLACK_WEBHOOK_URL", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("OPSWEEP_LOG_LEVEL", "info"),
			Format: getEnv("OPSWEEP_LOG_FORMAT", "console"),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("OPSWEEP_METRICS_ADDR", ":9465"),
		},
	}

	tiers, err := loadTiers(getEnv("OPSWEEP_TIERS_FILE", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid tiers file: %w", err)
	}
	cfg.Tiers = tiers

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}

	for tier, tc := range c.Tiers {
		for _, t := range tc.AllowTypes {
			if _, ok := resource.ParseType(t); !ok {
				return fmt.Errorf("tier %q: unknown resource type %q", tier, t)
			}
		}
	}

	if c.Store.Backend == "s3" && c.Store.Bucket == "" {
		return fmt.Errorf("OPSWEEP_STORE_BUCKET must be set for the s3 backend")
	}

	return nil
}

// AllowList returns the candidate resource types for a tier. Unknown
// tiers get an empty list, which selects nothing.
func (c *Config) AllowList(tier decommission.Tier) []resource.Type {
	tc, ok := c.Tiers[string(tier)]
	if !ok {
		return nil
	}
	out := make([]resource.Type, 0, len(tc.AllowTypes))
	for _, s := range tc.AllowTypes {
		if t, ok := resource.ParseType(s); ok {
			out = append(out, t)
		}
	}
	return out
}

// PolicyFor builds the run policy for a tier from configured defaults.
func (c *Config) PolicyFor(tier decommission.Tier) decommission.RunPolicy {
	policy := decommission.RunPolicy{
		Tier:         tier,
		Force:        c.Run.Force,
		PreserveData: c.Run.PreserveData,
		Concurrency:  c.Run.Concurrency,
	}
	if tc, ok := c.Tiers[string(tier)]; ok && tc.PreserveData != nil {
		policy.PreserveData = *tc.PreserveData
	}
	return policy
}

// loadTiers reads the tiers file, falling back to built-in defaults
// when no path is given.
func loadTiers(path string) (map[string]TierConfig, error) {
	if path == "" {
		return defaultTiers(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tiers map[string]TierConfig
	if err := yaml.Unmarshal(data, &tiers); err != nil {
		return nil, err
	}
	return tiers, nil
}

// defaultTiers keeps production empty on purpose: decommissioning there
// requires an explicit tiers file.
func defaultTiers() map[string]TierConfig {
	all := make([]string, 0)
	for _, t := range resource.AllTypes() {
		all = append(all, string(t))
	}
	return map[string]TierConfig{
		string(decommission.TierDevelopment): {AllowTypes: all},
		string(decommission.TierStaging): {AllowTypes: []string{
			string(resource.TypeComputeCluster),
			string(resource.TypeCapacityUnit),
			string(resource.TypeVirtualMachine),
			string(resource.TypeContainer),
		}},
		string(decommission.TierProduction): {AllowTypes: nil},
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./opsweep-store"
	}
	return home + "/.opsweep/store"
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./opsweep-history.db"
	}
	return home + "/.opsweep/history.db"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
