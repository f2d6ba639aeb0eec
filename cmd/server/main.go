package main

import (
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nftgp/http-gateway/internal/api"
	"github.com/nftgp/http-gateway/internal/config"
	"github.com/nftgp/http-gateway/internal/stats"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	var recorder *stats.Recorder
	if cfg.RedisURL != "" {
		recorder, err = stats.NewRecorder(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to initialize Redis: %v", err)
		}
		defer recorder.Close()
	}

	server, err := api.NewServer(cfg, recorder)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	slog.Info("Starting gateway", "port", cfg.Port, "env", cfg.Environment, "chains", cfg.ChainIDs())

	go func() {
		if err := server.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if err := server.Shutdown(); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
