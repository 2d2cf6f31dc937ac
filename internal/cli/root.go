package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "opsweep",
	Short: "opsweep - cloud resource decommissioning and backup orchestrator",
	Long: `opsweep inventories expensive resources in a deployment scope, backs up
their configuration, and decommissions them with dependency-aware skip
logic. Every run produces an append-only report for audit and restore.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.opsweep/config.yaml)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newRestoreCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newScheduleCmd())
}

// configEnvKeys maps config-file keys to the environment variables the
// orchestrator reads. Environment always wins over the file.
var configEnvKeys = map[string]string{
	"tiers_file":            "OPSWEEP_TIERS_FILE",
	"operator":              "OPSWEEP_OPERATOR",
	"store.backend":         "OPSWEEP_STORE_BACKEND",
	"store.path":            "OPSWEEP_STORE_PATH",
	"store.bucket":          "OPSWEEP_STORE_BUCKET",
	"store.region":          "OPSWEEP_STORE_REGION",
	"store.prefix":          "OPSWEEP_STORE_PREFIX",
	"history.path":          "OPSWEEP_HISTORY_PATH",
	"slack_webhook_url":     "OPSWEEP_SLACK_WEBHOOK_URL",
	"log.level":             "OPSWEEP_LOG_LEVEL",
	"log.format":            "OPSWEEP_LOG_FORMAT",
	"metrics.addr":          "OPSWEEP_METRICS_ADDR",
	"run.concurrency":       "OPSWEEP_CONCURRENCY",
	"run.poll_interval":     "OPSWEEP_POLL_INTERVAL",
	"run.max_wait":          "OPSWEEP_MAX_WAIT",
	"azure.tenant_id":       "OPSWEEP_AZURE_TENANT_ID",
	"azure.client_id":       "OPSWEEP_AZURE_CLIENT_ID",
	"azure.subscription_id": "OPSWEEP_AZURE_SUBSCRIPTION_ID",
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return
		}
		configDir := home + "/.opsweep"
		_ = os.MkdirAll(configDir, 0700)
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("OPSWEEP")
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()

	for key, env := range configEnvKeys {
		if viper.IsSet(key) && os.Getenv(env) == "" {
			_ = os.Setenv(env, viper.GetString(key))
		}
	}
}
