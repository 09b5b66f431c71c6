package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/phone-verification-api/internal/application/verification"
	"github.com/phone-verification-api/internal/config"
	"github.com/phone-verification-api/internal/infrastructure/dynamo"
	"github.com/phone-verification-api/internal/infrastructure/memstore"
	"github.com/phone-verification-api/internal/infrastructure/sns"
	transporthttp "github.com/phone-verification-api/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Session store: in-memory by default, DynamoDB when configured.
	var store verification.Store
	if cfg.StoreBackend == "dynamo" {
		client := dynamo.NewClient(cfg)
		dynamo.Bootstrap(context.Background(), client, cfg.DynamoTable)
		store = dynamo.NewVerificationSessionRepo(client, cfg.DynamoTable)
	} else {
		store = memstore.New()
	}

	// SNS SMS sender (optional, simulated delivery otherwise).
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
	}

	deps := &transporthttp.Deps{
		Store:     store,
		SMSSender: smsSender,
	}
	router := transporthttp.NewRouter(cfg, deps)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	go verification.RunSweeper(sweepCtx, store, cfg.SweepInterval)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s, store=%s)", cfg.AppPort, cfg.AppEnv, cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	stopSweeper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
