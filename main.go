package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"gsdesign/adapters/api"
	"gsdesign/internal"
	"gsdesign/internal/config"
	"gsdesign/internal/container"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := internal.DefaultLogger.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create container: %v", err)
	}
	if err := c.Init(ctx); err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer c.Close()

	server := api.NewServer(c.DesignService, appConfig.Server)
	logger.Info("gsdesign API starting (grid r=%d, %d sweep workers)", appConfig.Engine.GridR, appConfig.Sweep.Workers)
	if err := server.Start(ctx); err != nil {
		logger.Error("server stopped: %v", err)
	}
}
