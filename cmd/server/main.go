package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/PhoenixSmith/seraph-v2-sub000/internal/bootstrap"
	"github.com/PhoenixSmith/seraph-v2-sub000/internal/config"
	"github.com/PhoenixSmith/seraph-v2-sub000/internal/server"
	"github.com/PhoenixSmith/seraph-v2-sub000/pkg/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db := database.Connect(cfg.DatabaseURL)
	if err := bootstrap.Migrate(db); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	if err := bootstrap.Seed(db); err != nil {
		log.Fatalf("failed to seed catalogs: %v", err)
	}

	redisClient := database.ConnectRedis(cfg.RedisURL)

	srv, err := server.NewServer(cfg, db, redisClient)
	if err != nil {
		log.Fatalf("failed to build server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx, ":"+cfg.Port); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}

	if redisClient != nil {
		_ = redisClient.Close()
	}
	log.Println("Server stopped")
}
