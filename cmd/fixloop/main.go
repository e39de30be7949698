package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"fixloop/internal/config"
	"fixloop/internal/cycle"
	"fixloop/internal/logging"
	"fixloop/internal/source"
	"fixloop/internal/strategy"
	"fixloop/internal/supervisor"
	"fixloop/internal/tactile"
)

var (
	// Global flags
	configPath    string
	projectRoot   string
	intervalSecs  int
	maxIterations int
	verbose       bool

	// Logger
	logger *zap.Logger

	// exitCode carries the run outcome out past the deferred cleanup
	exitCode = 1
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "fixloop",
	Short: "fixloop - automated error detection and remediation loop",
	Long: `fixloop watches a micro-frontend platform's build logs, health
endpoints and in-page runtime errors, classifies what it finds, and
applies a small set of safe, idempotent fixes: installing missing npm
packages, flipping a stray noEmit flag, and rewriting the one source
line a compiler diagnostic points at. Services touched by a fix are
restarted, and the loop runs until the platform is stable.

Exit code is 0 when at least one fix was applied, 1 otherwise.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		if !verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runLoop,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a fixloop.yaml (optional)")
	rootCmd.PersistentFlags().StringVar(&projectRoot, "project-root", ".", "root of the platform checkout")
	rootCmd.PersistentFlags().IntVar(&intervalSecs, "interval", 30, "seconds to wait between cycles")
	rootCmd.PersistentFlags().IntVar(&maxIterations, "max-iterations", 10, "upper bound on cycles")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug-level output")
}

func runLoop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := logging.Initialize(cfg.ProjectRoot, logging.Settings{
		DebugMode:  cfg.Logging.DebugMode,
		Level:      cfg.Logging.Level,
		Categories: cfg.Logging.Categories,
	}); err != nil {
		logger.Sugar().Warnw("category logging unavailable", "error", err)
	}
	defer logging.CloseAll()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	controller := buildController(cfg)
	result, err := controller.Run(ctx)
	if err != nil {
		logger.Sugar().Errorw("run aborted", "error", err)
		exitCode = 1
		return nil
	}
	exitCode = result.ExitCode()
	return nil
}

// buildController assembles the scan sources, fix strategies and
// process supervisor around one shared executor and file editor.
func buildController(cfg *config.Config) *cycle.Controller {
	sugar := logger.Sugar()
	exec := tactile.NewExecutor()
	editor := tactile.NewFileEditor()

	adapters := []source.Adapter{
		source.NewBuildLogAdapter(cfg.ProjectRoot, cfg.Services),
	}
	for _, svc := range cfg.Services {
		adapters = append(adapters, source.NewRuntimeAdapter(cfg.Browser, svc.Name, svc.URL))
	}
	fixer := strategy.NewApplier(strategy.NewRegistry(cfg, exec, editor))
	health := source.NewHealthAdapter(cfg.Health, cfg.Services, cfg.BackendHealthURL)
	sup := supervisor.New(exec, cfg.ProjectRoot, cfg.Supervisor.Grace())

	logPaths := make([]string, 0, len(cfg.Services))
	for _, svc := range cfg.Services {
		logPaths = append(logPaths, svc.LogFile(cfg.ProjectRoot))
	}

	return cycle.NewController(cfg, sugar, adapters, fixer, health, sup,
		cycle.NewLogWatchSleeper(logPaths))
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// explicit flags win over file values
	if cmd.Flags().Changed("project-root") || cfg.ProjectRoot == "" {
		cfg.ProjectRoot = projectRoot
	}
	if cmd.Flags().Changed("interval") {
		cfg.IntervalSeconds = intervalSecs
	}
	if cmd.Flags().Changed("max-iterations") {
		cfg.MaxIterations = maxIterations
	}
	if verbose {
		cfg.Logging.DebugMode = true
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}
