// ipweaver keeps DNS address records pointed at the machine's current
// public IP address. Each invocation resolves the address, compares it with
// the record held by the DNS-hosting API and upserts the record when stale.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"text/tabwriter"

	"gitlab.bluewillows.net/root/ipweaver/internal/config"
	"gitlab.bluewillows.net/root/ipweaver/internal/metrics"
	"gitlab.bluewillows.net/root/ipweaver/internal/reconciler"
	"gitlab.bluewillows.net/root/ipweaver/pkg/dnscheck"
	"gitlab.bluewillows.net/root/ipweaver/pkg/hosting"
	"gitlab.bluewillows.net/root/ipweaver/pkg/iplookup"
)

// Version and BuildDate are set via ldflags during build.
// Example: -ldflags="-X main.Version=v1.0.0 -X main.BuildDate=2026-01-03"
var (
	Version   = "dev"
	BuildDate = "unknown"
)

// Subcommands.
const (
	cmdRun   = "run"
	cmdZones = "zones"
	cmdSetup = "setup"
)

// options holds the parsed command line.
type options struct {
	command        string
	configPath     string
	configExplicit bool
	csvPath        string
	verbose        bool
	quiet          bool
	force          bool
	dryRun         bool
}

func main() {
	if err := run(); err != nil {
		attrs := []any{slog.String("error", err.Error())}
		if hint := fatalHint(err); hint != "" {
			attrs = append(attrs, slog.String("hint", hint))
		}
		slog.Error("fatal error", attrs...)
		os.Exit(1)
	}
}

// fatalHint suggests a fix for hosting API failures.
func fatalHint(err error) string {
	switch {
	case hosting.IsUnauthorized(err):
		return "check the hosting credentials (CSV export, aws_access_key/aws_secret_access_key, cloudflare_token or the AWS default chain)"
	case hosting.IsZoneNotFound(err):
		return "check zone_id; `ipweaver zones` lists the zones these credentials can see"
	case hosting.IsThrottled(err):
		return "the hosting API is rate limiting requests; retry later"
	case hosting.IsAPIError(err):
		return "the hosting API rejected the request; rerun with -v for details"
	default:
		return ""
	}
}

func run() error {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.command == cmdSetup {
		logger := setupLogger(logLevelFor(opts, "info"), "text")
		slog.SetDefault(logger)
		return runSetup(ctx, newSetupIO(os.Stdin, os.Stdout), newBackendRegistry(logger), opts.configPath)
	}

	cfg, err := config.Load(config.LoadOptions{
		ConfigPath:   opts.configPath,
		RequireFile:  opts.configExplicit,
		CSVPath:      opts.csvPath,
		BackendTypes: backendTypes(),
		SkipTargets:  opts.command == cmdZones,
	})
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cfg.ForceUpdate = cfg.ForceUpdate || opts.force
	cfg.DryRun = cfg.DryRun || opts.dryRun

	logger := setupLogger(logLevelFor(opts, cfg.LogLevel), cfg.LogFormat)
	slog.SetDefault(logger)

	metrics.SetBuildInfo(Version, runtime.Version())

	logger.Debug("ipweaver starting",
		slog.String("version", Version),
		slog.String("build_date", BuildDate),
		slog.String("go_version", runtime.Version()),
		slog.String("command", opts.command),
		slog.String("backend", cfg.Backend),
		slog.String("credentials", cfg.CredentialsSource),
	)

	backend, err := createBackend(newBackendRegistry(logger), cfg)
	if err != nil {
		return err
	}

	switch opts.command {
	case cmdZones:
		return listZones(ctx, backend, os.Stdout)
	default:
		var out io.Writer = os.Stdout
		if opts.quiet {
			out = io.Discard
		}
		runErr := reconcile(ctx, cfg, backend, out, logger)
		pushMetrics(ctx, cfg, logger)
		return runErr
	}
}

// parseFlags parses args. Flag defaults come from IPWEAVER_* variables.
func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("ipweaver", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ipweaver [flags] [%s|%s|%s]\n\n", cmdRun, cmdZones, cmdSetup)
		fs.PrintDefaults()
	}

	configPath := fs.String("config",
		envOr("IPWEAVER_CONFIG", config.DefaultConfigFile),
		"config file (YAML, or TOML with a .toml extension)")
	csvPath := fs.String("csv",
		envOr("IPWEAVER_CSV", config.DefaultCredentialsFile),
		"AWS credentials CSV export")
	verbose := fs.Bool("v", false, "verbose mode (debug logging)")
	quiet := fs.Bool("q", false, "quiet mode (errors only, no report lines)")
	force := fs.Bool("force", false, "upsert even when the record is up to date")
	dryRun := fs.Bool("dry-run", false, "report what would change without writing")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts := &options{
		command:    cmdRun,
		configPath: *configPath,
		csvPath:    *csvPath,
		verbose:    *verbose,
		quiet:      *quiet,
		force:      *force,
		dryRun:     *dryRun,
	}
	opts.configExplicit = os.Getenv("IPWEAVER_CONFIG") != ""
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			opts.configExplicit = true
		}
	})

	switch fs.NArg() {
	case 0:
	case 1:
		opts.command = fs.Arg(0)
	default:
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args()[1:])
	}

	switch opts.command {
	case cmdRun, cmdZones, cmdSetup:
	default:
		return nil, fmt.Errorf("unknown command %q (want %s, %s or %s)", opts.command, cmdRun, cmdZones, cmdSetup)
	}
	if opts.verbose && opts.quiet {
		return nil, errors.New("-v and -q are mutually exclusive")
	}

	return opts, nil
}

// reconcile runs every configured target once.
func reconcile(ctx context.Context, cfg *config.Config, backend hosting.Backend, out io.Writer, logger *slog.Logger) error {
	resolver := iplookup.NewResolver(
		iplookup.WithTimeout(cfg.LookupTimeout),
		iplookup.WithLogger(logger),
		iplookup.WithObserver(metrics.ObserveLookup),
	)

	opts := []reconciler.Option{
		reconciler.WithLogger(logger),
		reconciler.WithOutput(out),
		reconciler.WithConfig(reconciler.Config{
			ZoneID:   cfg.ZoneID,
			TTL:      cfg.TTL,
			MaxPages: cfg.MaxPages,
			Force:    cfg.ForceUpdate,
			DryRun:   cfg.DryRun,
		}),
	}
	if cfg.PrecheckEnabled {
		opts = append(opts, reconciler.WithPrechecker(newPrechecker(cfg, logger)))
	}

	var targets []reconciler.Target
	for _, t := range cfg.Targets() {
		targets = append(targets, reconciler.Target{
			Family:     t.Family,
			RecordName: t.RecordName,
			Provider:   t.Provider,
		})
	}

	result, err := reconciler.New(backend, resolver, opts...).Run(ctx, targets)
	if result != nil {
		logger.Debug(result.Summary())
	}
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}
	return nil
}

func newPrechecker(cfg *config.Config, logger *slog.Logger) *dnscheck.Checker {
	opts := []dnscheck.Option{
		dnscheck.WithTimeout(cfg.PrecheckTimeout),
		dnscheck.WithLogger(logger),
	}
	if cfg.PrecheckNameserver != "" {
		opts = append(opts, dnscheck.WithLookuper(dnscheck.NewNameserverLookuper(cfg.PrecheckNameserver, cfg.PrecheckTimeout)))
	}
	return dnscheck.NewChecker(opts...)
}

// listZones prints every hosted zone visible to the credentials.
func listZones(ctx context.Context, backend hosting.Backend, out io.Writer) error {
	zones, err := backend.ListHostedZones(ctx)
	if err != nil {
		return fmt.Errorf("listing hosted zones: %w", err)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME")
	for _, z := range zones {
		fmt.Fprintf(w, "%s\t%s\n", z.ID, z.Name)
	}
	return w.Flush()
}

// pushMetrics sends the run's metrics to the Pushgateway, if configured.
func pushMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	if cfg.PushgatewayURL == "" {
		return
	}
	// The run context may already be cancelled by a signal.
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.LookupTimeout)
	defer cancel()

	if err := metrics.Push(pushCtx, cfg.PushgatewayURL, cfg.MetricsJob); err != nil {
		logger.Warn("failed to push metrics", slog.String("error", err.Error()))
		return
	}
	logger.Debug("pushed metrics", slog.String("url", cfg.PushgatewayURL))
}

// logLevelFor applies -v and -q on top of the configured level.
func logLevelFor(opts *options, configured string) string {
	switch {
	case opts.verbose:
		return "debug"
	case opts.quiet:
		return "error"
	default:
		return configured
	}
}

func setupLogger(level, format string) *slog.Logger {
	logLevel := parseLogLevel(level)

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	}

	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// envOr returns the environment variable named key, or fallback if unset or empty.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
