package cmd

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/msto63/mBOT/foundation/core/log"
	"github.com/msto63/mBOT/internal/bot"
	"github.com/msto63/mBOT/internal/transport/gateway"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the websocket gateway",
	Long: `Starts the bot behind the websocket gateway.

Platform adapters connect to ws://<host>:<port><path> and exchange
JSON frames; /healthz reports the health checks.

Examples:
  mbot serve
  mbot serve --config ./configs/config.toml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	b, logger, err := buildBot(os.Stderr, bot.Options{})
	if err != nil {
		printError("failed to start", err)
		return err
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := b.Config().Gateway
	srv := gateway.New(gateway.Config{
		Host:         cfg.Host,
		Port:         cfg.Port,
		Path:         cfg.Path,
		ReadTimeout:  cfg.ReadTimeout.Duration,
		WriteTimeout: cfg.WriteTimeout.Duration,
	}, b, b.Health(), logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Run(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err = <-errCh:
		stop()
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping gateway")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if stopErr := srv.Stop(shutdownCtx); stopErr != nil {
			logger.ErrorWithErr("error during shutdown", stopErr)
		}
		err = <-errCh
	}
	wg.Wait()

	if err != nil {
		printError("gateway failed", err)
		return err
	}
	logger.Info("mbot stopped", log.Fields{"address": srv.Address()})
	return nil
}
