package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/trailsocial/engagement/internal/config"
	"github.com/trailsocial/engagement/internal/container"
	"github.com/trailsocial/engagement/internal/logger"
)

var (
	envFile string
	output  = "text" // "text" or "json"
)

var rootCmd = &cobra.Command{
	Use:   "engagectl",
	Short: "Maintenance tool for the Trail engagement service",
	Long: `engagectl runs maintenance jobs against the engagement database:
migrations, view counter rebuilds, development seeding, and permalink
token encoding for debugging.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if output != "text" && output != "json" {
			return fmt.Errorf("--output must be text or json")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "Path to a .env file (defaults to ./.env when present)")
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	if envFile != "" {
		return config.Load(envFile)
	}
	return config.Load()
}

// openContainer loads configuration, starts the logger and wires the stores.
// Callers must run Cleanup.
func openContainer() (*container.Container, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(logger.Options{Level: cfg.Log.Level}); err != nil {
		return nil, err
	}
	return container.Build(cfg)
}

// printResult writes v as JSON or hands it to text for the text format.
func printResult(w io.Writer, v interface{}, text func(io.Writer)) error {
	if output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
