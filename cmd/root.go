package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/macross-trading/macross/internal/alpaca"
	"github.com/macross-trading/macross/internal/cache"
	"github.com/macross-trading/macross/internal/config"
	"github.com/macross-trading/macross/internal/risk"
)

var (
	// Global instances
	cfg         *config.Config
	client      *alpaca.Client
	dataCache   *cache.Cache
	riskManager *risk.Manager
	logger      *zap.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "macross",
	Short: "Moving-average crossover trading bot for Alpaca",
	Long: `macross runs an automated moving-average crossover strategy
against an Alpaca brokerage account. It serves an HTTP control surface
for the dashboard, persists the active bot so it survives restarts, and
trades at most one symbol at a time.`,
	PersistentPreRunE: initializeApp,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogger)
}

// initLogger configures the logger: default INFO, DEBUG if DEBUG env is truthy
func initLogger() {
	verbose := false
	if v := os.Getenv("DEBUG"); v == "true" || v == "1" || v == "yes" {
		verbose = true
	}

	zcfg := zap.NewProductionConfig()
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	var err error
	logger, err = zcfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
}

// initializeApp sets up the dependencies shared by all commands
func initializeApp(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client = alpaca.NewClient(cfg)
	dataCache = cache.New(cfg.CacheTTL)
	riskManager = risk.NewManager()

	return nil
}
