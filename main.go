package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fraud-verify-service/cache"
	"fraud-verify-service/config"
	"fraud-verify-service/detector"
	"fraud-verify-service/handlers"
	"fraud-verify-service/imaging"
	"fraud-verify-service/metrics"
	"fraud-verify-service/rabbitmq"
	"fraud-verify-service/service"
)

const cacheCleanupInterval = 10 * time.Minute

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	log.SetLevelFromString(cfg.LogLevel)

	log.Info("Starting fraud verify service...")

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	store := cache.NewMySQLStore(db)
	if err := store.CreateTable(); err != nil {
		log.Fatalf("Failed to create cache table: %v", err)
	}
	go runCacheCleanup(store)

	detectorClient := detector.NewClient(cfg.DetectorURL, cfg.DetectorTimeout)
	analyzer := imaging.NewExtractor()
	svc := service.NewService(cfg, store, detectorClient, analyzer)

	if cfg.AMQPURL != "" {
		publisher, err := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			// Assessments still work without fan-out.
			log.Errorf("Failed to initialize RabbitMQ publisher: %v", err)
		} else {
			svc.SetPublisher(publisher)
			defer publisher.Close()
		}
	}

	metrics.Register()

	h := handlers.NewHandlers(svc)
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowOrigins:     []string{"*"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/api/v1/issues/detect", h.DetectIssue)
	router.POST("/api/v1/issues/verify-completion", h.VerifyCompletion)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func runCacheCleanup(store *cache.MySQLStore) {
	ticker := time.NewTicker(cacheCleanupInterval)
	defer ticker.Stop()
	for range ticker.C {
		if err := store.CleanupExpired(context.Background()); err != nil {
			log.Warnf("Cache cleanup failed: %v", err)
		}
	}
}
