package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "graphrag",
	Short:         "Answer Alzheimer's disease questions from the knowledge graph",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// A missing .env is normal; the environment and config file still apply.
	_ = godotenv.Load()

	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "config/config.toml"
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultPath, "path to the TOML config file")
	rootCmd.AddCommand(serveCmd, askCmd, aliasesCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
