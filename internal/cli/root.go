package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/charliek/snag"
)

// Version is set during build
var Version = "dev"

// Global flags
var (
	configPath string
	verbose    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "snag",
	Short: "Bug report capture for Go applications",
	Long: `snag captures console output, HTTP traffic, and user actions from a
running application and bundles them into bug reports. It supports:
  - Interception of the standard log, slog, and zerolog outputs
  - HTTP client capture with bounded request and response bodies
  - Page screenshots through a DevTools-compatible renderer
  - An interactive terminal form for filing reports
  - A local development sink that accepts submitted reports`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("snag version %s\n", Version)
	},
}

func init() {
	// Persistent flags available to all subcommands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: auto-discovered snag.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	// Set version template
	rootCmd.SetVersionTemplate("snag version {{.Version}}\n")

	// Add subcommands
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(sinkCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the effective configuration for CLI commands.
// An explicit --config beats discovery; with no config file at all,
// flags and SNAG_* variables have to supply the required fields.
func loadConfig() (*snag.Config, error) {
	if configPath != "" {
		return snag.Load(configPath)
	}

	if path, err := snag.FindConfigFile(); err == nil {
		return snag.Load(path)
	}

	cfg := &snag.Config{}
	if v := os.Getenv("SNAG_PROJECT_KEY"); v != "" {
		cfg.ProjectKey = v
	}
	if v := os.Getenv("SNAG_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("SNAG_RENDERER_ENDPOINT"); v != "" {
		cfg.Screenshot.RendererEndpoint = v
	}
	return cfg, nil
}
