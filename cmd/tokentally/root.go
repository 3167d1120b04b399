package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/tokentally/internal/config"
)

// Global flag values.
var (
	envName    string
	configPath string
	logLevel   string
)

// rootCmd is the base command for tokentally.
var rootCmd = &cobra.Command{
	Use:   "tokentally",
	Short: "Track token usage and cost of chat completion calls",
	Long: `tokentally forwards chat completion calls to an OpenAI-compatible provider
(DeepSeek by default), reports the cache hit, cache miss, completion and total
token counters of every call and keeps running totals with an estimated cost.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return loadDotEnv()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "config environment (default: $ENV or local)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file, overrides --env lookup")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadDotEnv reads ENV_FILE (default .env) into the process environment.
// A missing file is fine; variables already set are never overwritten.
func loadDotEnv() error {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func resolveEnv() string {
	if envName != "" {
		return envName
	}
	return config.GetEnv()
}

func loadConfig() (config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load(resolveEnv())
}

func levelFor(cfg config.Config) string {
	if logLevel != "" {
		return logLevel
	}
	return cfg.Logging.Level
}
