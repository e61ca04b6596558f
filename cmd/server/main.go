// @title           Planet Hero API
// @version         1.0
// @description     Sustainability mini-games for students: sign-in, game sessions, points and badges.

// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.

// @securityDefinitions.apikey SessionAuth
// @in cookie
// @name session
// @description Session cookie set by the sign-in callback

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"planethero/internal/cache"
	"planethero/internal/config"
	"planethero/internal/events"
	"planethero/internal/handlers/api/v1/auth"
	"planethero/internal/identity"
	"planethero/internal/middleware"
	"planethero/internal/monitoring"
	"planethero/internal/response"
	"planethero/internal/router"
	"planethero/internal/services"
	"planethero/internal/store"
	"planethero/internal/utils/appinfo"

	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, level, err := initLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	logger.Info("Starting Planet Hero application")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.Logging.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
			logger.Warn("Ignoring invalid log level", zap.String("level", cfg.Logging.Level))
		}
	}

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Provider),
		zap.String("cache", cfg.Cache.Provider),
	)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Store.ConnectTimeout+10*time.Second)
	defer cancel()

	// Profile store
	documentStore, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open document store", zap.Error(err))
	}
	if err := documentStore.Ping(ctx); err != nil {
		logger.Fatal("Document store is not healthy", zap.Error(err))
	}
	logger.Info("Document store initialized", zap.String("provider", cfg.Store.Provider))

	// Create cache
	cacheInstance, err := cache.NewCache(cache.ConfigFrom(cfg), logger)
	if err != nil {
		logger.Fatal("Failed to create cache", zap.Error(err))
	}

	// Initialize services
	eventBus := events.NewEventBus(events.DefaultEventBusConfig(), logger)
	serviceCollection, err := services.NewServiceCollection(documentStore, cacheInstance, eventBus, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	if err := serviceCollection.Start(context.Background()); err != nil {
		logger.Fatal("Failed to start services", zap.Error(err))
	}

	// Identity
	tokens := identity.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.JWTExpiry)
	notifier := identity.NewNotifier(logger)
	revocations := identity.NewRevocations(cacheInstance, cfg.Cache.KeyPrefix, logger.Named("revocations"))
	resolver := identity.NewGoogleResolver(identity.GoogleConfig{
		ClientID:     cfg.Auth.GoogleClientID,
		ClientSecret: cfg.Auth.GoogleClientSecret,
		RedirectURL:  cfg.Auth.GoogleRedirectURL,
	}, logger)

	// Response builder for API controllers
	responseConfig := response.DefaultConfig()
	responseConfig.PrettyJSON = cfg.IsDevelopment()
	responseConfig.MaskInternalErrors = cfg.IsProduction()
	responseBuilder := response.NewBuilder(responseConfig, logger)

	authenticator := middleware.NewAuthenticator(tokens, serviceCollection.Profiles, cfg.Auth.CookieName, responseBuilder, logger).
		WithRevocations(revocations)

	// Monitoring dashboard
	dashboard := monitoring.NewDashboard(serviceCollection, documentStore, logger, appinfo.GetVersion(), cfg.Server.Environment)

	handler := router.SetupRouter(router.Dependencies{
		Services: serviceCollection,
		Auth: auth.Dependencies{
			Resolver:    resolver,
			Binding:     serviceCollection.Binding,
			Tokens:      tokens,
			Revocations: revocations,
			Notifier:    notifier,
			Events:      eventBus,
		},
		Authenticator:   authenticator,
		ResponseBuilder: responseBuilder,
		Dashboard:       dashboard,
		Config:          cfg,
	}, logger)

	// HTTP server
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown setup
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server",
			zap.String("address", server.Addr),
			zap.String("environment", cfg.Server.Environment),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	monitorCtx, stopMonitoring := context.WithCancel(context.Background())
	startBackgroundMonitoring(monitorCtx, dashboard, logger)

	logger.Info("Application started",
		zap.String("url", fmt.Sprintf("http://localhost:%s", cfg.Server.Port)),
		zap.String("health_check", "/health"),
		zap.String("docs", "/swagger/index.html"),
	)

	<-quit
	logger.Info("Shutting down application...")
	stopMonitoring()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer shutdownCancel()

	// Close auth streams first so hijacked websocket connections end
	notifier.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	} else {
		logger.Info("Server shutdown completed")
	}

	if err := serviceCollection.Shutdown(shutdownCtx); err != nil {
		logger.Error("Service shutdown failed", zap.Error(err))
	}

	if err := cacheInstance.Close(); err != nil {
		logger.Error("Failed to close cache", zap.Error(err))
	}
	if err := documentStore.Close(); err != nil {
		logger.Error("Failed to close document store", zap.Error(err))
	} else {
		logger.Info("Document store closed")
	}

	logger.Info("Application shutdown completed")
}

// startBackgroundMonitoring logs status changes until ctx is done
func startBackgroundMonitoring(ctx context.Context, dashboard *monitoring.Dashboard, logger *zap.Logger) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				status := dashboard.GetSystemStatus(checkCtx)
				cancel()

				if status.Status != "healthy" {
					logger.Warn("System health check detected issues",
						zap.String("status", status.Status),
						zap.Strings("alerts", status.Alerts),
					)
				}
			}
		}
	}()

	logger.Info("Background monitoring started")
}

// initLogger builds the process logger from GO_ENV. The returned level can be
// changed once configuration is loaded.
func initLogger() (*zap.Logger, zap.AtomicLevel, error) {
	env := os.Getenv("GO_ENV")
	var config zap.Config

	switch env {
	case "production":
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "staging":
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	default:
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, config.Level, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, config.Level, nil
}
