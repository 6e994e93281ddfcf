package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/complianceguard/guard-cli/internal/checks"
	"github.com/complianceguard/guard-cli/internal/config"
	"github.com/complianceguard/guard-cli/internal/dashboard"
	"github.com/complianceguard/guard-cli/internal/host"
	"github.com/complianceguard/guard-cli/internal/output"
	"github.com/complianceguard/guard-cli/internal/probes"
	"github.com/complianceguard/guard-cli/internal/utils"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// CLI flags
var (
	configPath    string
	logLevel      string
	logFormat     string
	verbose       bool
	outputFormat  string
	outputPath    string
	categories    []string
	frameworks    []string
	checkTimeout  time.Duration
	concurrency   int
	listCategory  string
	dashboardAddr string
)

// errNotCompliant makes the process exit 1 without printing an error
var errNotCompliant = errors.New("host is not compliant")

// newHost is swapped for a fake in tests
var newHost = func() host.Host { return host.NewSystem() }

type configKey struct{}

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errNotCompliant) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// newRootCommand creates the root command with every subcommand attached
func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "complianceguard",
		Short: "Host security compliance scanner",
		Long: `Evaluate this host against CIS-style security controls, score the results
with configurable severity weights, and report findings with remediation hints.

Examples:
  complianceguard scan
  complianceguard scan --format json --output report.json
  complianceguard scan --category "Network Security"
  complianceguard check CIS-2.6.1
  complianceguard dashboard --addr 127.0.0.1:8080`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("log-level") {
				cfg.Logging.Level = logLevel
			}
			if flags.Changed("log-format") {
				cfg.Logging.Format = logFormat
			}
			if verbose {
				cfg.Logging.Level = string(utils.LogLevelDebug)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger := utils.NewLogger(cfg.LoggerConfig())
			if cfg.File != "" {
				logger.WithComponent("config").Debugf("Loaded configuration from %s", cfg.File)
			}

			ctx := utils.WithLogger(cmd.Context(), logger)
			cmd.SetContext(context.WithValue(ctx, configKey{}, cfg))
			return nil
		},
	}

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./complianceguard.yaml or ~/.complianceguard/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Set log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Set log format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output (equivalent to --log-level debug)")

	rootCmd.AddCommand(newScanCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newDashboardCommand())

	return rootCmd
}

// newScanCommand creates the scan subcommand
func newScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run all compliance checks against this host",
		Long: `Run every registered compliance check, score the findings, and write the
report in the requested format. The command exits with status 1 when the score
is below the configured passing threshold.`,
		Args: cobra.NoArgs,
		RunE: runScanCommand,
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format (text, json, yaml, csv, html)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "Only run checks in these categories")
	cmd.Flags().StringSliceVar(&frameworks, "framework", nil, "Only run checks mapped to these framework controls")
	cmd.Flags().DurationVar(&checkTimeout, "timeout", checks.DefaultCheckTimeout, "Per-check timeout")
	cmd.Flags().IntVar(&concurrency, "concurrency", checks.DefaultConcurrency, "Maximum checks evaluated at once")

	return cmd
}

// runScanCommand executes the scan command
func runScanCommand(cmd *cobra.Command, args []string) error {
	cfg, logger, err := fromContext(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()

	if flags.Changed("format") {
		cfg.Reporting.Format = outputFormat
	}
	if flags.Changed("output") {
		cfg.Reporting.Output = outputPath
	}
	if flags.Changed("category") {
		cfg.Scanning.Categories = categories
	}
	if flags.Changed("framework") {
		cfg.Scanning.Frameworks = frameworks
	}
	if flags.Changed("timeout") {
		cfg.Scanning.Timeout = checkTimeout
	}
	if flags.Changed("concurrency") {
		cfg.Scanning.Concurrency = concurrency
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	format, err := output.ParseFormat(cfg.Reporting.Format)
	if err != nil {
		return err
	}
	weights, err := cfg.WeightTable()
	if err != nil {
		return err
	}
	registry, err := buildRegistry(cfg.Scanning.Categories, cfg.Scanning.Frameworks)
	if err != nil {
		return err
	}

	logger.WithComponent("scan").Debugf("Registered %d compliance checks", registry.Count())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := checks.NewCheckRunnerWithOptions(registry, cfg.RunnerOptions(logger))
	if !format.Machine() && cfg.Reporting.Output == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Running %d compliance checks...\n\n", registry.Count())
	}

	report, err := runner.RunAll(ctx, newHost(), weights)
	if err != nil {
		return fmt.Errorf("failed to run compliance checks: %w", err)
	}

	if err := writeReport(cmd.OutOrStdout(), cfg.Reporting.Output, report, format); err != nil {
		return fmt.Errorf("failed to output report: %w", err)
	}
	if cfg.Reporting.Output != "" {
		logger.WithComponent("scan").Infof("Report written to %s", cfg.Reporting.Output)
	}

	if !report.IsReportPassing() {
		logger.WithComponent("scan").Warnf("Compliance score %.1f%% is below the %.1f%% threshold",
			report.Score(), report.Threshold())
		return errNotCompliant
	}
	logger.WithComponent("scan").Infof("Compliance score %.1f%% meets the %.1f%% threshold",
		report.Score(), report.Threshold())
	return nil
}

// newCheckCommand creates the single-check subcommand
func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <check-id>",
		Short: "Run a single compliance check",
		Long: `Run one registered check through the same timeout and error handling as a
full scan. The command exits with status 1 when the check does not pass.`,
		Args: cobra.ExactArgs(1),
		RunE: runCheckCommand,
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format (text, json)")
	cmd.Flags().DurationVar(&checkTimeout, "timeout", checks.DefaultCheckTimeout, "Check timeout")

	return cmd
}

// runCheckCommand executes the check command
func runCheckCommand(cmd *cobra.Command, args []string) error {
	cfg, logger, err := fromContext(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Scanning.Timeout = checkTimeout
	}

	registry, err := buildRegistry(nil, nil)
	if err != nil {
		return err
	}
	runner := checks.NewCheckRunnerWithOptions(registry, cfg.RunnerOptions(logger))

	finding, err := runner.RunOne(cmd.Context(), newHost(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch strings.ToLower(outputFormat) {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(finding); err != nil {
			return err
		}
	case "text":
		writeFinding(out, finding)
	default:
		return fmt.Errorf("invalid output format: %s (supported: json, text)", outputFormat)
	}

	if finding.Status == checks.StatusFail || finding.Status == checks.StatusError {
		return errNotCompliant
	}
	return nil
}

// newListCommand creates the list subcommand
func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered compliance checks",
		Args:  cobra.NoArgs,
		RunE:  runListCommand,
	}

	cmd.Flags().StringVar(&listCategory, "category", "", "Only list checks in this category")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format (text, json)")

	return cmd
}

// runListCommand executes the list command
func runListCommand(cmd *cobra.Command, args []string) error {
	var filter []string
	if listCategory != "" {
		filter = []string{listCategory}
	}
	registry, err := buildRegistry(filter, nil)
	if err != nil {
		return err
	}
	catalog := registry.Metadata()

	out := cmd.OutOrStdout()
	switch strings.ToLower(outputFormat) {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(catalog)
	case "text":
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "CHECK ID\tSEVERITY\tCATEGORY\tTITLE\n")
		fmt.Fprintf(w, "--------\t--------\t--------\t-----\n")
		for _, m := range catalog {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.Severity, m.Category, m.Title)
		}
		return w.Flush()
	default:
		return fmt.Errorf("invalid output format: %s (supported: json, text)", outputFormat)
	}
}

// newDashboardCommand creates the dashboard subcommand
func newDashboardCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Serve live scan results over HTTP",
		Long: `Start a local web dashboard. Every page load runs a fresh scan; results are
not stored between requests.`,
		Args: cobra.NoArgs,
		RunE: runDashboardCommand,
	}

	cmd.Flags().StringVar(&dashboardAddr, "addr", "", "Listen address (default from config, 127.0.0.1:8080)")

	return cmd
}

// runDashboardCommand executes the dashboard command
func runDashboardCommand(cmd *cobra.Command, args []string) error {
	cfg, logger, err := fromContext(cmd)
	if err != nil {
		return err
	}
	if dashboardAddr != "" {
		cfg.Dashboard.Addr = dashboardAddr
	}

	weights, err := cfg.WeightTable()
	if err != nil {
		return err
	}
	registry, err := buildRegistry(cfg.Scanning.Categories, cfg.Scanning.Frameworks)
	if err != nil {
		return err
	}
	runner := checks.NewCheckRunnerWithOptions(registry, cfg.RunnerOptions(logger))
	h := newHost()

	handler, err := dashboard.NewRouter(dashboard.Options{
		Scan: func(ctx context.Context) (*checks.ComplianceReport, error) {
			return runner.RunAll(ctx, h, weights)
		},
		Catalog:        registry.Metadata,
		Logger:         logger,
		AllowedOrigins: cfg.Dashboard.AllowedOrigins,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return dashboard.Serve(ctx, cfg.Dashboard.Addr, handler, logger)
}

// buildRegistry registers every probe, then narrows to the requested
// categories and frameworks. Empty filters match everything.
func buildRegistry(categories, frameworks []string) (*checks.CheckRegistry, error) {
	all := checks.NewCheckRegistry()
	if err := probes.RegisterAll(all); err != nil {
		return nil, fmt.Errorf("failed to register checks: %w", err)
	}
	if len(categories) == 0 && len(frameworks) == 0 {
		return all, nil
	}

	byCategory := selectIDs(categories, all.ByCategory)
	byFramework := selectIDs(frameworks, all.ByFramework)

	filtered := checks.NewCheckRegistry()
	for check := range all.All() {
		id := check.Describe().ID
		if byCategory != nil && !byCategory[id] {
			continue
		}
		if byFramework != nil && !byFramework[id] {
			continue
		}
		if err := filtered.Register(check); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", id, err)
		}
	}
	return filtered, nil
}

// selectIDs collects the ids yielded for any of tags; nil means no filter
func selectIDs(tags []string, view func(string) iter.Seq[checks.ComplianceCheck]) map[string]bool {
	if len(tags) == 0 {
		return nil
	}
	ids := make(map[string]bool)
	for _, tag := range tags {
		for check := range view(strings.TrimSpace(tag)) {
			ids[check.Describe().ID] = true
		}
	}
	return ids
}

// fromContext returns what PersistentPreRunE stored on the command context
func fromContext(cmd *cobra.Command) (*config.Config, *utils.Logger, error) {
	ctx := cmd.Context()
	cfg, ok := ctx.Value(configKey{}).(*config.Config)
	if !ok {
		return nil, nil, errors.New("configuration not loaded")
	}
	logger := utils.LoggerFromContext(ctx)
	if logger == nil {
		logger = utils.NewDefaultLogger()
	}
	return cfg, logger, nil
}

func writeReport(stdout io.Writer, path string, report *checks.ComplianceReport, format output.Format) error {
	if path == "" {
		return output.Write(stdout, report, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := output.Write(f, report, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeFinding(w io.Writer, f checks.Finding) {
	fmt.Fprintf(w, "%s: %s\n", f.ID, f.Title)
	fmt.Fprintf(w, "Status: %s\n", f.Status)
	fmt.Fprintf(w, "Severity: %s\n", f.Severity)
	fmt.Fprintf(w, "Details: %s\n", f.Explanation)
	if f.ErrorKind != checks.ErrorKindNone {
		fmt.Fprintf(w, "Error kind: %s\n", f.ErrorKind)
	}
	if f.Risk != "" {
		fmt.Fprintf(w, "Risk: %s\n", f.Risk)
	}
	if f.Remediation != "" {
		fmt.Fprintf(w, "Remediation: %s\n", f.Remediation)
	}
	fmt.Fprintf(w, "Duration: %dms\n", f.DurationMS)
}
