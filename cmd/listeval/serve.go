package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/listeval/internal/adapters/http/api"
	"github.com/okian/listeval/internal/adapters/http/site"
	"github.com/okian/listeval/internal/adapters/http/swagger"
	"github.com/okian/listeval/internal/adapters/repository"
	service "github.com/okian/listeval/internal/app"
	"github.com/okian/listeval/internal/config"
	"github.com/okian/listeval/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the rating forms and the live report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfgPath)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "YAML config file (default $"+config.EnvConfigFile+")")
	return cmd
}

// serve runs the HTTP server until ctx is cancelled.
func serve(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(ctx, cfgPath)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, handler, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info(ctx, "server stopped")
	return nil
}

// build starts the service described by cfg and returns its routes.
func build(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Service, http.Handler, error) {
	format, err := repository.ParseFormat(cfg.ResultsFormat)
	if err != nil {
		return nil, nil, err
	}
	store := repository.NewFileStore(cfg.ResultsDir,
		repository.WithFormat(format),
		repository.WithLogger(log.Named("store")),
	)

	opts := append(service.FromConfig(cfg, store), service.WithLogger(log.Named("service")))
	svc := service.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("start service: %w", err)
	}

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)
	api.NewServer(svc, log.Named("http")).Register(ctx, mux)
	return svc, mux, nil
}
