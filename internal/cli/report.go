package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/charliek/snag"
	"github.com/charliek/snag/internal/tui"
	"github.com/charliek/snag/report"
)

// Report flags
var (
	reportProject        string
	reportEndpoint       string
	reportAppURL         string
	reportTitle          string
	reportDescription    string
	reportEmail          string
	reportName           string
	reportNoScreenshot   bool
	reportNonInteractive bool
)

// reportCmd files a bug report from the terminal
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "File a bug report",
	Long: `Report opens the interactive capture form and submits the result to
the configured ingestion endpoint. With --non-interactive the report is
built from flags alone and submitted directly.

A screenshot of the configured app URL is attached when a DevTools
renderer is reachable; --no-screenshot skips it.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportProject, "project", "", "Project key (overrides config)")
	reportCmd.Flags().StringVar(&reportEndpoint, "endpoint", "", "Ingestion endpoint URL (overrides config)")
	reportCmd.Flags().StringVar(&reportAppURL, "app-url", "", "Page URL recorded in the report")
	reportCmd.Flags().StringVarP(&reportTitle, "title", "t", "", "Report title")
	reportCmd.Flags().StringVarP(&reportDescription, "message", "m", "", "Report description")
	reportCmd.Flags().StringVar(&reportEmail, "email", "", "Reporter email")
	reportCmd.Flags().StringVar(&reportName, "name", "", "Reporter name")
	reportCmd.Flags().BoolVar(&reportNoScreenshot, "no-screenshot", false, "Skip the screenshot")
	reportCmd.Flags().BoolVar(&reportNonInteractive, "non-interactive", false, "Submit from flags without the form")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if reportProject != "" {
		cfg.ProjectKey = reportProject
	}
	if reportEndpoint != "" {
		cfg.Endpoint = reportEndpoint
	}
	if reportAppURL != "" {
		cfg.AppURL = reportAppURL
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	eng, err := snag.New(*cfg)
	if err != nil {
		return err
	}
	if err := eng.Init(); err != nil {
		return err
	}
	defer eng.Teardown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := report.SubmitOptions{
		Title:          reportTitle,
		Description:    reportDescription,
		ReporterEmail:  reportEmail,
		ReporterName:   reportName,
		SkipScreenshot: reportNoScreenshot,
	}

	if reportNonInteractive {
		result, err := eng.Submit(ctx, opts)
		if err != nil {
			return err
		}
		fmt.Printf("Report submitted: %s\n", result.ID)
		return nil
	}

	// Show configured identity in the form when flags left it blank
	conf := eng.Config()
	if opts.ReporterEmail == "" {
		opts.ReporterEmail = conf.Reporter.Email
	}
	if opts.ReporterName == "" {
		opts.ReporterName = conf.Reporter.Name
	}

	result, err := tui.Run(ctx, tui.Options{
		Submit:   eng.Submit,
		Defaults: opts,
		Position: string(conf.Launcher.Position),
	})
	if err != nil {
		return err
	}
	if result == nil {
		fmt.Fprintln(os.Stderr, "Cancelled")
		return nil
	}

	fmt.Printf("Report submitted: %s\n", result.ID)
	return nil
}
