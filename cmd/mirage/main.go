package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mirage/internal/config"
	"mirage/internal/content"
	"mirage/internal/engine"
	"mirage/internal/persona"
	"mirage/internal/strategy"
)

var (
	// Global flags
	configPath string
	verbose    bool
	dryRun     bool

	// Root flags
	loop         bool
	llmEnabled   bool
	strategyFlag string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd runs one deception cycle, or the full loop with --loop.
var rootCmd = &cobra.Command{
	Use:   "mirage",
	Short: "mirage - deception orchestration engine",
	Long: `mirage populates a honeypot host with believable synthetic user
activity. Personas with work schedules perform shell scenes, react to
attacker-facing triggers, and leave forensic residue (shell history,
project files, honeytokens) that holds up to inspection.

Run without flags to perform a single cycle; use --loop for the
resident daemon mode.`,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runEngine,
}

// forecastCmd pre-generates scheduled scenes for coming cycles.
var forecastCmd = &cobra.Command{
	Use:   "forecast [count]",
	Short: "Pre-generate forecast scenes for upcoming cycles",
	Long: `Asks the generative collaborator for a batch of scheduled scenes and
stores them in the content cache. The engine consumes them in order
when the forecast strategy is selected.

Example:
  mirage forecast 12`,
	Args: cobra.MaximumNArgs(1),
	RunE: runForecast,
}

// refreshCmd regenerates cached deception assets.
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Regenerate cached honeytokens, decoy vulnerabilities and breadcrumbs",
	RunE:  runRefresh,
}

// planCmd builds a multi-day narrative plan for the personas.
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate a monthly narrative plan driving daily scene focus",
	RunE:  runPlan,
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Log to file only: a deception host must not announce the
	// engine on an attached terminal.
	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{cfg.LogPath()}
	zc.ErrorOutputPaths = []string{cfg.LogPath()}
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		zc.OutputPaths = append(zc.OutputPaths, "stderr")
	}
	logger, err = zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if cfg.Execution.DryRun {
		dryRun = true
	}
	return nil
}

func buildEngine() (*engine.Engine, error) {
	personas, err := persona.Load(cfg.PersonaPath())
	if err != nil {
		// A fresh host has no persona spec yet; the engine idles
		// until one appears.
		logger.Warn("persona spec not loaded", zap.Error(err))
	}

	var gen content.Generator
	if llmEnabled || cfg.LLM.Enabled {
		gen, err = content.NewGemini(context.Background(), cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLMTimeout(), logger)
		if err != nil {
			return nil, fmt.Errorf("starting generator: %w", err)
		}
	}

	return engine.New(cfg, personas, gen, dryRun, logger, engine.Options{}), nil
}

func runEngine(cmd *cobra.Command, args []string) error {
	hint, err := parseStrategy()
	if err != nil {
		return err
	}

	eng, err := buildEngine()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !dryRun {
		eng.StartDefense(ctx)
	}
	defer eng.Shutdown()

	go content.Watch(ctx, eng.Library(), logger)

	if loop {
		err = eng.Loop(ctx, hint)
	} else {
		err = eng.RunCycle(ctx, hint)
	}
	if err == context.Canceled {
		logger.Info("shutdown requested")
		return nil
	}
	return err
}

func parseStrategy() (strategy.Strategy, error) {
	if strategyFlag == "" {
		return "", nil
	}
	s, ok := strategy.Parse(strategyFlag)
	if !ok {
		return "", fmt.Errorf("unknown strategy %q", strategyFlag)
	}
	return s, nil
}

func runForecast(cmd *cobra.Command, args []string) error {
	count := 5
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("count must be a positive integer, got %q", args[0])
		}
		count = n
	}

	eng, err := buildEngine()
	if err != nil {
		return err
	}
	gen, err := requireGenerator()
	if err != nil {
		return err
	}
	if err := eng.Library().GenerateForecast(cmd.Context(), gen, count); err != nil {
		return err
	}
	fmt.Printf("Forecast queue refilled with %d scene(s)\n", count)
	return nil
}

func runRefresh(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}
	gen, err := requireGenerator()
	if err != nil {
		return err
	}
	if err := eng.Library().RefreshAssets(cmd.Context(), gen); err != nil {
		return err
	}
	if err := eng.Library().GenerateBreadcrumbs(cmd.Context(), gen); err != nil {
		return err
	}
	fmt.Println("Deception assets regenerated")
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}
	gen, err := requireGenerator()
	if err != nil {
		return err
	}
	if err := eng.Library().GeneratePlan(cmd.Context(), gen); err != nil {
		return err
	}
	fmt.Println("Narrative plan written")
	return nil
}

// requireGenerator builds a Gemini client regardless of the --llm
// flag; the management commands are meaningless without one.
func requireGenerator() (content.Generator, error) {
	gen, err := content.NewGemini(context.Background(), cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLMTimeout(), logger)
	if err != nil {
		return nil, fmt.Errorf("a generative backend is required: %w", err)
	}
	return gen, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default: <config-dir>/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging to stderr")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Log commands instead of executing them")

	rootCmd.Flags().BoolVar(&loop, "loop", false, "Run cycles continuously with jittered sleep")
	rootCmd.Flags().BoolVar(&llmEnabled, "llm", false, "Enable the generative collaborator")
	rootCmd.Flags().StringVar(&strategyFlag, "strategy", "", "Force a deception strategy for every persona this run")

	rootCmd.AddCommand(forecastCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(planCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
