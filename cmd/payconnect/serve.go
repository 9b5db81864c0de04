package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"payconnect/internal/config"
	"payconnect/internal/domain"
	"payconnect/internal/gateway"
	"payconnect/internal/reconcile"
	"payconnect/internal/service"
	"payconnect/internal/store"
	"payconnect/internal/web"
	"payconnect/internal/worker"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		return store.NewSQLiteStore(cfg.StorePath)
	case config.DriverMemory:
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// clientRegistry builds the gateway clients. Only the sandbox client ships
// in this build; live provider clients register here.
func clientRegistry() gateway.ClientRegistry {
	return gateway.ClientRegistry{
		domain.ProviderSandbox: gateway.NewSandbox(),
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the connector API and background engines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

func runServer(cfg config.Config) error {
	logger := newLogger()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	clients := clientRegistry()
	charges := service.NewCharges(st, clients, logger)
	refunds := service.NewRefunds(st, logger)
	reconciler := reconcile.NewHandler(st, logger)

	captureEngine := worker.NewCaptureEngine(st, clients, worker.CaptureConfig{
		Workers:      cfg.CaptureWorkers,
		QueueSize:    cfg.QueueSize,
		PollInterval: cfg.PollInterval,
		MaxRetries:   cfg.CaptureMaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, logger)
	refundSubmitter := worker.NewRefundSubmitter(st, clients, worker.RefundConfig{
		Workers:      cfg.RefundWorkers,
		QueueSize:    cfg.QueueSize,
		PollInterval: cfg.PollInterval,
	}, logger)

	server := web.NewServer(charges, refunds, reconciler, st, logger)
	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		captureEngine.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		refundSubmitter.Run(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr, "store", cfg.StoreDriver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		stop()
		wg.Wait()
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	wg.Wait()
	return nil
}
