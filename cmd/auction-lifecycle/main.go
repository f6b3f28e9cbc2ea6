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
	"opal-bid-monitor/internal/infrastructure/leader"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)
	lifecycle := services.NewAuctionLifecycle(store, redis.NewEventPublisher(rdb), leaderElection, cfg.Instance.ID, log)
	scheduler := services.NewCronSweepScheduler(cfg.Lifecycle.SweepSchedule, lifecycle, log)

	if err := scheduler.Start(ctx); err != nil {
		log.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	// Try to become leader
	go campaign(ctx, leaderElection, cfg.Instance.ID, cfg.Leader.TTL/2, log)

	router := handlers.NewRouter(map[string]domain.Pinger{
		"store": store,
		"redis": redis.NewAuctionStore(rdb),
	}, log)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("Starting auction lifecycle", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down auction lifecycle...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop scheduler
	scheduler.Stop()

	// Release leadership
	if err := leaderElection.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Auction lifecycle stopped")
}

// campaign keeps trying to take leadership until ctx is cancelled.
func campaign(ctx context.Context, election domain.LeaderElection, instanceID string, interval time.Duration, log logger.Logger) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		became, err := election.BecomeLeader(ctx, instanceID)
		if err != nil {
			log.Error("Failed to attempt leadership", "error", err)
		} else if became {
			log.Info("Became auction leader", "instance_id", instanceID)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
