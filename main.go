package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carrito/internal/app"
	"carrito/internal/config"
	"carrito/internal/services"
	"carrito/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	cfg := config.Load()

	// --- Product store ---
	repo, err := app.OpenRepository(cfg)
	if err != nil {
		log.Fatalf("Failed to open product store: %v", err)
	}

	// --- Image store ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	images, err := app.OpenImageStore(ctx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("Failed to initialize image store: %v", err)
	}

	// --- Optional RabbitMQ event publisher ---
	var events services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mqClient.Close()
		events = mqClient
	} else {
		log.Println("RABBITMQ_URL not set. Product events are disabled.")
	}

	fiberApp := app.New(cfg, repo, images, events)

	// --- Start HTTP Server ---
	addr := cfg.Addr()
	log.Printf("Servidor corriendo en http://%s", addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := fiberApp.Listen(addr); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := fiberApp.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}
