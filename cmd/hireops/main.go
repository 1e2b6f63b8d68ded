// Package main provides the hireops command line: a pipeline board for the
// HireOps recruitment API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	baseURL    string
	tokenFile  string
	logLevel   string
	logFile    string
	plainOut   bool
)

var rootCmd = &cobra.Command{
	Use:   "hireops",
	Short: "HireOps pipeline board",
	Long: `hireops shows recruitment applications grouped by pipeline stage and moves
them between stages. Moves are applied to the board immediately and rolled
back if the server rejects them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a config file (YAML, JSON or TOML)")
	flags.StringVar(&baseURL, "base-url", "", "API base URL (overrides api.base_url)")
	flags.StringVar(&tokenFile, "token-file", "", "Path to the stored bearer token (overrides auth.token_path)")
	flags.StringVar(&logLevel, "log-level", "", "Log level: DEBUG, INFO, WARN or ERROR")
	flags.StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")
	flags.BoolVar(&plainOut, "plain", false, "Plain text output without colors or boxes")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
