package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"opal-bid-monitor/internal/api/handlers"
	"opal-bid-monitor/internal/bootstrap"
	"opal-bid-monitor/internal/domain"
	"opal-bid-monitor/internal/extractor"
	"opal-bid-monitor/internal/infrastructure/natsbus"
	"opal-bid-monitor/internal/infrastructure/redis"
	"opal-bid-monitor/internal/services"
	"opal-bid-monitor/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}
	log := logger.NewWithLevel(cfg.Log.Level)
	log.Info("Configuration loaded", "config", cfg.GetConfigString())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis carries bid events, and may also be the auction store
	rdb, err := bootstrap.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	store, closeStore, err := bootstrap.OpenAuctionStore(ctx, cfg, rdb, log)
	if err != nil {
		log.Error("Failed to open auction store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	bus, err := natsbus.NewObservationBus(cfg.NATS, cfg.Instance.ID, log)
	if err != nil {
		log.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	ext := extractor.New(
		extractor.WithRange(cfg.BidRange()),
		extractor.WithDenylist(cfg.Bids.Denylist),
	)
	bidService := services.NewBidService(
		store,
		redis.NewEventPublisher(rdb),
		ext,
		services.BidServiceConfig{
			MaxAttempts:  cfg.Bids.MaxAttempts,
			RetryBackoff: cfg.Bids.RetryBackoff,
		},
		log,
	)

	go func() {
		err := bus.SubscribeToObservations(ctx, func(ctx context.Context, obs *domain.Observation) error {
			_, err := bidService.Process(ctx, obs)
			return err
		})
		if err != nil && ctx.Err() == nil {
			log.Error("Observation subscriber stopped", "error", err)
			stop()
		}
	}()

	// Start HTTP server
	router := handlers.NewRouter(map[string]domain.Pinger{
		"store": store,
		"redis": redis.NewAuctionStore(rdb),
		"nats":  bus,
	}, log)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("Starting bid monitor", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down bid monitor...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Bid monitor stopped")
}
