package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bid-broker/internal/auth"
	"bid-broker/internal/config"
	"bid-broker/internal/database"
	"bid-broker/internal/handler"
	"bid-broker/internal/jobs"
	"bid-broker/internal/listing"
	"bid-broker/internal/notify"
	"bid-broker/internal/rates"
	"bid-broker/internal/realtime"
	"bid-broker/internal/repository"
	"bid-broker/internal/router"
	"bid-broker/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting bid-broker API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	// Initialize repository
	bidRepo := repository.NewBidRequestRepository(pool, logger)

	// Initialize exchange-rate provider with optional redis cache
	var ratesProvider rates.Provider = rates.NewClient(cfg.Rates.BaseURL, cfg.Rates.Timeout, logger)
	if cfg.Redis.Enabled {
		rdb, err := rates.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to connect to redis, exchange rates will not be cached")
		} else {
			defer rdb.Close()
			ratesProvider = rates.NewCachedProvider(ratesProvider, rdb, cfg.Rates.CacheTTL, logger)
			logger.Info().Str("addr", cfg.Redis.Addr).Msg("exchange-rate cache enabled")
		}
	}

	// Initialize listing snapshot client
	listingClient := listing.NewClient(cfg.Listing.BaseURL, cfg.Listing.Timeout, logger)

	// Initialize notification channels
	var channels []notify.Notifier
	if cfg.Notify.PushURL != "" {
		channels = append(channels, notify.NewPushClient(cfg.Notify.PushURL, cfg.Notify.PushAPIKey, cfg.Notify.RequestTimeout, logger))
	}
	if cfg.Notify.WhatsAppURL != "" {
		channels = append(channels, notify.NewWhatsAppClient(cfg.Notify.WhatsAppURL, cfg.Notify.WhatsAppToken, cfg.Notify.RequestTimeout, logger))
	}
	if len(channels) == 0 {
		logger.Warn().Msg("no notification channels configured, deliveries will be dropped")
	}
	dispatcher := notify.NewDispatcher(logger, channels...)

	// Initialize realtime hub
	hub := realtime.NewHub(logger)
	defer hub.Close()

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret)

	// Initialize negotiation service
	adminContact := notify.AdminContact{
		Email: cfg.Auth.AdminEmail,
		Phone: cfg.Notify.AdminWhatsApp,
	}
	negotiationService := service.NewNegotiationService(
		bidRepo,
		listingClient,
		ratesProvider,
		dispatcher,
		hub,
		adminContact,
		logger,
	)

	// Start the auction end checker
	endChecker := jobs.NewEndChecker(bidRepo, dispatcher, adminContact, cfg.Jobs.EndCheckInterval, logger)
	go endChecker.Run(ctx)

	// Initialize HTTP handler and router
	bidHandler := handler.NewBidHandler(negotiationService, logger)
	mux := router.New(bidHandler, hub, jwtManager, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}
