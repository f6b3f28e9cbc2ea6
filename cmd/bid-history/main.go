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
	"opal-bid-monitor/internal/infrastructure/redis"
	"opal-bid-monitor/internal/infrastructure/sqlstore"
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

	db, err := bootstrap.OpenDatabase(ctx, cfg.Database, log)
	if err != nil {
		log.Error("Failed to open database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	recorder := services.NewHistoryRecorder(sqlstore.NewBidRepository(db), log)
	subscriber := redis.NewRedisEventSubscriber(rdb, log)

	router := handlers.NewRouter(map[string]domain.Pinger{
		"database": db,
		"redis":    redis.NewAuctionStore(rdb),
	}, log)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("Starting bid history", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			stop()
		}
	}()

	if err := recorder.Start(ctx, subscriber); err != nil && ctx.Err() == nil {
		log.Error("Bid history recorder stopped", "error", err)
	}

	log.Info("Shutting down bid history...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	log.Info("Bid history stopped")
}
