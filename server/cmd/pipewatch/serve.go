package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"google.golang.org/grpc"

	"github.com/pipewatch/pipewatch/server/internal/api"
	"github.com/pipewatch/pipewatch/server/internal/auth"
	"github.com/pipewatch/pipewatch/server/internal/config"
	"github.com/pipewatch/pipewatch/server/internal/health"
	"github.com/pipewatch/pipewatch/server/internal/metrics"
	"github.com/pipewatch/pipewatch/server/internal/notifier"
	"github.com/pipewatch/pipewatch/server/internal/poller"
	"github.com/pipewatch/pipewatch/server/internal/store"
	"github.com/pipewatch/pipewatch/server/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "run the poll loops, the REST API and the gRPC health service",
		Flags:  []cli.Flag{configFlag()},
		Action: runServe,
		Description: `
Environment variables override the config file, for example:
	PIPEWATCH_LOG_LEVEL
	PIPEWATCH_POLL_INTERVAL
	PIPEWATCH_PROVIDER_URL
	PIPEWATCH_HTTP_PORT
	PIPEWATCH_GRPC_PORT
	PIPEWATCH_AUTH_MODE
	PIPEWATCH_SUBSCRIPTIONS_BACKEND
`,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	slog.Info("pipewatch starting", "config", path)

	cfg, err := config.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logLevel.Set(cfg.Level())

	slog.Info("config loaded",
		"projects", cfg.Projects,
		"provider", cfg.Provider.Type,
		"interval", cfg.Poller.Interval,
		"http_port", cfg.Server.HTTPPort,
		"grpc_port", cfg.Server.GRPCPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"subscriptions", cfg.Subscriptions.Backend,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry, closeRegistry, err := newRegistry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open subscription registry: %w", err)
	}
	defer closeRegistry() //nolint:errcheck

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	// Latest cycle per project, evicted after the snapshot TTL.
	st := store.New(cfg.Server.Snapshot.TTL)
	go st.Run(ctx)

	reg := metrics.New(registry)
	reporter := health.New(cfg.Projects)
	hub := ws.New(st, cfg.Server.StreamInterval, slog.Default())
	go hub.Run(ctx)

	n := notifier.New(registry, notifier.Options{
		Timeout:  cfg.Subscriptions.Timeout,
		OnResult: reg.ObserveDelivery,
	})

	// The hub reads from the store, so it publishes after it.
	pollers, err := newPollers(cfg, provider,
		func(project string) poller.Notifier { return n.For(project) },
		st, reg, reporter, hub,
	)
	if err != nil {
		return err
	}
	for _, p := range pollers {
		go p.Run(ctx)
	}

	key := auth.APIKey{
		Mode:   cfg.Server.Auth.Mode,
		Header: cfg.Server.Auth.EffectiveHeader(),
		Key:    cfg.Server.Auth.Key(),
	}
	if key.Mode == "apikey" && key.Key == "" {
		slog.Warn("auth mode is apikey but no key is set, requests are not checked",
			"key_env", cfg.Server.Auth.KeyEnv)
	}

	grpcSrv := grpc.NewServer(
		grpc.UnaryInterceptor(key.Unary()),
		grpc.StreamInterceptor(key.Stream()),
	)
	reporter.Register(grpcSrv)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port %d: %w", cfg.Server.GRPCPort, err)
	}
	go func() {
		slog.Info("gRPC health service listening", "port", cfg.Server.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	httpSrv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: api.New(api.Options{
			Root:     cfg.Server.Root,
			Store:    st,
			Registry: registry,
			Guard:    key.Middleware,
			Metrics:  reg,
			Stream:   hub,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort, "root", "/"+cfg.Server.Root)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	go func() {
		err := config.Watch(ctx, path, func(next *config.Config) {
			logLevel.Set(next.Level())
			for _, p := range pollers {
				p.SetInterval(next.Poller.Interval)
			}
			slog.Info("config: applied reload",
				"log_level", next.Level().String(),
				"interval", next.Poller.Interval,
			)
		})
		if err != nil {
			slog.Warn("config: hot reload disabled", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("pipewatch shutting down")

	reporter.Shutdown()
	grpcSrv.GracefulStop()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "err", err)
	}
	return nil
}
