package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/macross-trading/macross/internal/bot"
	"github.com/macross-trading/macross/internal/server"
	"github.com/macross-trading/macross/internal/store"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the trading bot server",
	Long: `Starts the HTTP control surface and, if a bot was running when the
process last exited, resumes it from the persisted state.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	repo := store.New(db)

	manager := bot.NewManager(repo, client, riskManager, logger, cfg)

	// Resume before serving: a bot that survived a restart must already be
	// ticking when the first status request lands. A resume failure is not
	// fatal; the server still comes up so a new bot can be started.
	if err := manager.ResumeOnStartup(cmd.Context()); err != nil {
		logger.Warn("bot resume failed, serving without an active bot", zap.Error(err))
	}

	engine := server.New(logger, manager, client, dataCache)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	// Shut down the HTTP server only. The bot row is deliberately left
	// running in the store so the next process resumes it.
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
