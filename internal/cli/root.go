package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	dbPath       string
	storeBackend string
)

var rootCmd = &cobra.Command{
	Use:   "expstack",
	Short: "expstack - experiment allocation and results engine",
	Long: `expstack runs A/B tests: sticky per-user variant allocation,
event recording, and statistically interpretable results.
Single Go binary, embedded storage, no external services.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", getEnvOrDefault("EXPSTACK_DB", "./expstack.db"), "database path")
	rootCmd.PersistentFlags().StringVar(&storeBackend, "store", getEnvOrDefault("EXPSTACK_STORE", "sqlite"), "storage backend (sqlite or bolt)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
