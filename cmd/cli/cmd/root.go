package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath   string
	serverURL    string
	outputFormat string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "qps-sweep",
	Short: "QPS Sweep - benchmark LLM serving endpoints across request rates",
	Long: `QPS Sweep drives a ShareGPT-replay load generator against an
OpenAI-compatible serving endpoint at a sequence of QPS rates.

This CLI tool allows you to:
- Run a warm-up plus measured sweep and collect per-QPS CSV artifacts
- Summarize collected artifacts (TTFT percentiles, throughput)
- Browse sweep history
- Serve the status API`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", getEnvOrDefault("QPS_SWEEP_CONFIG", ""), "Path to config file")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", getEnvOrDefault("QPS_SWEEP_URL", "http://localhost:8080"), "Status API server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
