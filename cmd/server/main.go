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

	"github.com/ismailopm12/gamesbazar.net/config"
	"github.com/ismailopm12/gamesbazar.net/internal/api"
	"github.com/ismailopm12/gamesbazar.net/internal/broker"
	"github.com/ismailopm12/gamesbazar.net/internal/gateway"
	"github.com/ismailopm12/gamesbazar.net/internal/redisclient"
	"github.com/ismailopm12/gamesbazar.net/internal/service"
	"github.com/ismailopm12/gamesbazar.net/internal/store"
	"github.com/ismailopm12/gamesbazar.net/internal/util"
	"github.com/ismailopm12/gamesbazar.net/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, "voucher-service"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting voucher service")

	tp, err := util.InitTracer("voucher-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	gatewayClient := gateway.NewClient(
		cfg.Gateway.APIURL,
		cfg.Gateway.APIKey,
		cfg.Gateway.RedirectURL,
		cfg.Gateway.CancelURL,
		cfg.Gateway.WebhookURL,
	)

	inventoryService := service.NewInventoryService(db, redisClient)
	walletService := service.NewWalletService(db, eventPublisher)
	fulfillmentService := service.NewFulfillmentService(db, redisClient, inventoryService, eventPublisher)
	checkoutService := service.NewCheckoutService(db, gatewayClient, inventoryService, fulfillmentService, walletService)

	ctx := context.Background()
	if err := inventoryService.SyncStockToRedis(ctx); err != nil {
		log.Printf("Failed to sync stock to Redis: %v", err)
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	eventConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
	stockWorker := worker.NewStockWorker(eventConsumer, inventoryService)
	go func() {
		if err := stockWorker.Start(workerCtx); err != nil {
			log.Printf("Stock worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(checkoutService, fulfillmentService, walletService, inventoryService, db)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	stockWorker.Stop()

	log.Println("Server exited")
}
