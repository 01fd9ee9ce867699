package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/qbthrottle/config"
	"github.com/s0up4200/qbthrottle/decision"
	"github.com/s0up4200/qbthrottle/qbittorrent"
	"github.com/s0up4200/qbthrottle/reconcile"
	"github.com/s0up4200/qbthrottle/sampler"
	"github.com/s0up4200/qbthrottle/schedule"
	"github.com/s0up4200/qbthrottle/throttle"
)

var (
	cfgFile  string
	cfg      *config.Config
	logger   zerolog.Logger
	qbClient *qbittorrent.Client
	loop     *throttle.Loop

	version   = "dev"
	buildTime = "unknown"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "qbthrottle",
	Short: "Adaptive bandwidth throttling for qBittorrent",
	Long: `qbthrottle keeps qBittorrent's global transfer limits converged with a
schedule- and activity-driven policy. Rules map time windows, external
activity (Jellyfin streaming, Radarr downloads) or custom conditions to
upload/download caps, and the control loop pushes divergences to the
Web API.`,
	PersistentPreRunE: initializeApp,
}

// SetVersion stores build information injected from main.
func SetVersion(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", v, bt)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(testCmd)
}

// initializeApp initializes the configuration, logger, clients and loop
func initializeApp(cmd *cobra.Command, args []string) error {
	// Load configuration
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger = setupLogger(cfg.Logging)

	// Create qBittorrent client
	qbClient, err = qbittorrent.NewClient(
		cfg.QBittorrent.URL,
		cfg.QBittorrent.Username,
		cfg.QBittorrent.Password,
		logger,
		qbittorrent.WithTimeout(cfg.QBittorrent.Timeout),
		qbittorrent.WithSessionTTL(cfg.QBittorrent.SessionTTL),
	)
	if err != nil {
		return fmt.Errorf("failed to create qBittorrent client: %w", err)
	}

	profile, err := buildProfile(cfg)
	if err != nil {
		return err
	}

	smp := sampler.New(logger, buildProviders(cfg)...)
	engine := decision.NewEngine(cfg.Loop.Dwell, logger)
	reconciler := reconcile.New(qbClient, reconcile.RetryPolicy{
		Attempts:  cfg.Loop.Retry.Attempts,
		BaseDelay: cfg.Loop.Retry.BaseDelay,
		MaxDelay:  cfg.Loop.Retry.MaxDelay,
	}, logger)

	loop = throttle.New(smp, engine, reconciler, profile, cfg.Loop.Interval, logger)

	return nil
}

func buildProfile(cfg *config.Config) (*schedule.Profile, error) {
	profile, err := schedule.NewProfile(cfg.Schedule.Rules, cfg.Schedule.DefaultTargets())
	if err != nil {
		return nil, fmt.Errorf("failed to build schedule: %w", err)
	}
	return profile, nil
}

// buildProviders creates the enabled signal providers. A provider that
// cannot be constructed is logged and skipped; the loop degrades to a
// schedule-only policy rather than refusing to start.
func buildProviders(cfg *config.Config) []sampler.SignalProvider {
	var providers []sampler.SignalProvider

	if cfg.Jellyfin.Enabled {
		jf, err := sampler.NewJellyfinProvider(cfg.Jellyfin.URL, cfg.Jellyfin.APIToken, cfg.Jellyfin.ActiveWithin, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to create Jellyfin provider, continuing without it")
		} else {
			providers = append(providers, jf)
			logger.Info().Msg("Jellyfin signal source enabled")
		}
	}

	if cfg.Radarr.Enabled {
		arr, err := sampler.NewArrProvider(cfg.Radarr.URL, cfg.Radarr.APIKey, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to create Radarr provider, continuing without it")
		} else {
			providers = append(providers, arr)
			logger.Info().Msg("Radarr queue signal source enabled")
		}
	}

	return providers
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output format
	useConsole := cfg.Format == "console"
	if cfg.Format == "auto" {
		useConsole = isatty.IsTerminal(os.Stderr.Fd())
	}

	if !useConsole {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !cfg.Color,
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the throttle control loop",
	Long: `Run the control loop until interrupted. On every tick the current
observation is sampled, the schedule decides the cap targets, and the
qBittorrent limits are reconciled toward them. Changes to the config
file reload the schedule without a restart.`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Watch the config file so schedule edits take effect live. Only
	// the schedule is hot-swapped; connection settings need a restart.
	if _, err := config.Watch(cfgFile, logger, func(next *config.Config) {
		profile, err := buildProfile(next)
		if err != nil {
			logger.Error().Err(err).Msg("Ignoring schedule reload")
			return
		}
		loop.SetProfile(profile)
	}); err != nil {
		return fmt.Errorf("failed to watch config: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})

	return g.Wait()
}

// onceCmd represents the once command
var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Perform a single reconciliation pass and exit",
	Long: `Sample, decide and reconcile exactly once. Useful from cron or for
verifying a schedule change. Exits non-zero when the reconciliation had
to be deferred.`,
	RunE: runOnce,
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return loop.RunOnce(ctx)
}

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test connections and show the current state",
	Long:  `Log in to qBittorrent, show the current transfer limits, probe the signal sources, and show which schedule rule applies right now.`,
	RunE:  runTest,
}

func runTest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	fmt.Printf("Testing connection to qBittorrent at %s...\n", cfg.QBittorrent.URL)
	if err := qbClient.Login(ctx); err != nil {
		return fmt.Errorf("failed to log in to qBittorrent: %w", err)
	}
	fmt.Println("✓ Login successful!")

	limits, err := qbClient.TransferLimits(ctx)
	if err != nil {
		return fmt.Errorf("failed to get transfer limits: %w", err)
	}
	fmt.Printf("- Current limits: %s\n", limits)

	providers := buildProviders(cfg)
	if len(providers) == 0 {
		fmt.Println("\nSignal sources: none configured")
	} else {
		fmt.Println("\nSignal sources:")
		for _, p := range providers {
			signal, err := p.Query(ctx)
			switch {
			case err != nil:
				fmt.Printf("  • %s: unavailable (%v)\n", p.Name(), err)
			case signal != "":
				fmt.Printf("  • %s: active (%s)\n", p.Name(), signal)
			default:
				fmt.Printf("  • %s: idle\n", p.Name())
			}
		}
	}

	profile, err := buildProfile(cfg)
	if err != nil {
		return err
	}

	obs := sampler.New(logger, providers...).Sample(ctx)
	rule := profile.Match(obs)
	fmt.Printf("\nActive rule: %s (%s)\n", rule.Name, rule.Targets)

	return nil
}
