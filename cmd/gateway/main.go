// Command gateway runs the multi-tenant schema-deployment and routing
// HTTP server: it loads configuration from the environment, opens the
// admin connection pool, wires the HTTP surface, and serves until
// interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/config"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/httpapi"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/poolcache"
)

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Multi-tenant PostgreSQL schema-deployment and routing gateway",
	RunE:  runServer,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1) //revive:disable-line:deep-exit
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	pterm.DefaultHeader.WithFullWidth().Println("stonescriptdb gateway")
	pterm.Info.Printfln("binding to %s, data dir %s", cfg.GatewayAddr(), cfg.DataDir)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	cache, err := poolcache.New(ctx, cfg.AdminConnString(), poolcache.Options{
		MaxConnsPerPool: int32(cfg.MaxConnectionsPerPool),
		MaxTotalConns:   int32(cfg.MaxTotalConnections),
		IdleTimeout:     cfg.PoolIdleTimeout,
		MaxLifetime:     cfg.PoolMaxLifetime,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("connecting to cluster: %w", err)
	}
	defer cache.Close()

	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	cache.Start(cleanupCtx)

	server := httpapi.New(cfg, cache, logger)
	httpServer := &http.Server{
		Addr:              cfg.GatewayAddr(),
		Handler:           httpapi.NewRouter(server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		pterm.Success.Printfln("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-sigCtx.Done():
		pterm.Info.Println("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	return nil
}
