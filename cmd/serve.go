package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"catalog-cart-service/internal/api"
	"catalog-cart-service/internal/cart"
	"catalog-cart-service/internal/catalog"
	"catalog-cart-service/internal/scroll"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the gRPC health server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting service",
		zap.String("app_env", cfg.AppEnv),
		zap.String("log_level", cfg.LogLevel),
		zap.String("catalog_source", cfg.Catalog.Source),
		zap.String("cart_driver", cfg.Cart.Driver))

	pg, err := openPostgres(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if pg != nil {
		defer pg.Close()
	}

	// --- Cart ---
	kv, err := openCartStore(ctx, cfg, pg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logger.Warn("error closing cart store", zap.Error(err))
		}
	}()
	cartStore := cart.New(kv, logger)
	if _, err := cartStore.Hydrate(ctx); err != nil {
		return err
	}

	// --- Catalog ---
	source, err := newCatalogSource(cfg, pg, logger)
	if err != nil {
		return err
	}
	coordinator := catalog.NewCoordinator(source,
		catalog.WithPageSize(cfg.Catalog.PageSize),
		catalog.WithSortOrder(cfg.Catalog.SortOrder()),
		catalog.WithFetchTimeout(cfg.Catalog.FetchTimeout),
		catalog.WithLogger(logger))
	defer coordinator.Close()

	trigger := scroll.New(coordinator, coordinator.LoadMore,
		scroll.WithThreshold(cfg.Scroll.Threshold),
		scroll.WithDebounce(cfg.Scroll.Debounce),
		scroll.WithLogger(logger))
	defer trigger.Detach()

	coordinator.Refresh()

	// --- HTTP ---
	handler := api.NewHTTPHandler(coordinator, cartStore, trigger, kv, logger)
	router := chi.NewRouter()
	setupBaseMiddleware(router)
	handler.RegisterRoutes(router)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      router,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}
	httpServer.RegisterOnShutdown(handler.CloseStreams)

	// --- gRPC ---
	grpcServer, healthServer := setupGRPCServer()
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC on port %s: %w", cfg.GrpcServer.Port, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("port", cfg.HttpServer.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("gRPC server listening", zap.String("port", cfg.GrpcServer.Port))
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("starting graceful shutdown", zap.NamedError("cause", context.Cause(gctx)))
		healthServer.Shutdown()
		trigger.Detach()
		waitForShutdown(httpServer, grpcServer)
		return nil
	})

	err = g.Wait()
	logger.Info("service shutdown sequence finished")
	return err
}

func setupBaseMiddleware(router *chi.Mux) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(api.RequestLogger(logger))
	router.Use(middleware.Recoverer)
}

func setupGRPCServer() (*grpc.Server, *health.Server) {
	s := grpc.NewServer()

	healthServer := health.NewServer()
	healthServer.SetServingStatus(api.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(s, healthServer)

	// Enable gRPC server reflection (useful for tools like grpcurl).
	reflection.Register(s)
	logger.Debug("gRPC health and reflection services registered")

	return s, healthServer
}

func waitForShutdown(httpServer *http.Server, grpcServer *grpc.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("HTTP server gracefully shut down")
	}

	select {
	case <-stoppedGrpc:
		logger.Info("gRPC server gracefully shut down")
	case <-shutdownCtx.Done():
		logger.Warn("gRPC server graceful shutdown timed out, forcing stop", zap.Error(shutdownCtx.Err()))
		grpcServer.Stop()
	}
}
