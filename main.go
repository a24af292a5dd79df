package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"complaint-service/config"
	"complaint-service/database"
	"complaint-service/geolocation"
	"complaint-service/handlers"
	"complaint-service/metrics"
	"complaint-service/rabbitmq"

	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Optional .env for local development; env vars win in deployment.
	godotenv.Load()

	cfg := config.Load()
	metrics.MustRegister()

	db, err := setupDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to setup database: %v", err)
	}
	defer db.Close()

	if err := database.InitializeSchema(db); err != nil {
		log.Fatalf("Failed to initialize database schema: %v", err)
	}

	cache := setupRedis(cfg)
	publisher := setupPublisher(cfg)
	if publisher != nil {
		defer publisher.Close()
	}

	resolver := geolocation.NewResolver(cfg, cache)
	service := database.NewComplaintService(db, eventPublisher(publisher))

	router := handlers.SetupRouter(handlers.NewHandlers(service, resolver))
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

func setupDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection with exponential backoff retry
	waitInterval := time.Second
	deadline := time.Now().Add(time.Minute)
	for {
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		pingErr := db.PingContext(pingCtx)
		cancel()
		if pingErr == nil {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("database ping timeout: %w", pingErr)
		}
		log.Warnf("Database connection failed, retrying in %v: %v", waitInterval, pingErr)
		time.Sleep(waitInterval)
		waitInterval *= 2
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Infof("Database connected successfully to %s:%s/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)
	return db, nil
}

func setupRedis(cfg *config.Config) *redis.Client {
	if cfg.RedisHost == "" {
		log.Info("Redis not configured, geolocation cache disabled")
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warnf("Redis ping failed, geolocation cache disabled: %v", err)
		client.Close()
		return nil
	}
	log.Infof("Redis connected successfully at %s", cfg.RedisAddr())
	return client
}

func setupPublisher(cfg *config.Config) *rabbitmq.Publisher {
	if cfg.RabbitMQHost == "" {
		log.Info("RabbitMQ not configured, event publishing disabled")
		return nil
	}
	publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQURL(), cfg.RabbitMQExchange, "complaint.created")
	if err != nil {
		log.Warnf("RabbitMQ connection failed, event publishing disabled: %v", err)
		return nil
	}
	log.Infof("RabbitMQ publisher connected, exchange %s", cfg.RabbitMQExchange)
	return publisher
}

// eventPublisher converts a possibly-nil concrete publisher into the store's
// interface without producing a non-nil interface holding a nil pointer.
func eventPublisher(p *rabbitmq.Publisher) database.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}
