package main

// @title           Chat Relay API
// @version         1.0
// @description     REST and WebSocket API for role-based chat with direct and group messaging
// @host            localhost:8080
// @BasePath        /api/v1
// @schemes         http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	_ "chatrelay/docs"
	"chatrelay/internal/api/handlers"
	"chatrelay/internal/api/middleware"
	"chatrelay/internal/api/routes"
	"chatrelay/internal/config"
	"chatrelay/internal/database"
	"chatrelay/internal/email"
	"chatrelay/internal/events"
	"chatrelay/internal/relay"
	"chatrelay/internal/services"
	"chatrelay/internal/store/mongodb"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting chat relay server")

	mongoDB, err := database.NewMongoConnection(cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		logger.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer mongoDB.Close(context.Background())

	st := mongodb.NewStore(mongoDB.DB, logger)
	if err := st.EnsureIndexes(context.Background()); err != nil {
		logger.Error("Failed to ensure indexes", "error", err)
		os.Exit(1)
	}

	redisClient, err := database.NewRedisConnection(cfg.Redis.URL)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	redisService := services.NewRedisService(redisClient)

	mailer := email.NewMailer(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		BaseURL:  cfg.Server.BaseURL,
	}, logger)

	// Relay wiring.
	registry := relay.NewRegistry()
	router := relay.NewRouter(st, registry, logger)
	verifier := relay.NewTokenVerifier(cfg.JWT.Secret, st)
	hub := relay.NewHub(registry, router, verifier, logger)
	hub.SetPresence(redisService)

	var publisher *events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer publisher.Close()
		router.SetEventSink(publisher)
		logger.Info("Kafka event publishing enabled", "topic", cfg.Kafka.Topic)
	}

	authMW := middleware.NewAuthMiddleware(cfg.JWT.Secret, st)
	rateLimitMW := middleware.NewRateLimitMiddleware(redisService)

	apiRouter := routes.NewRouter(
		handlers.NewAuthHandler(st, mailer, cfg.JWT.Secret, cfg.JWT.ExpirationTime, logger),
		handlers.NewUserHandler(st, redisService, logger),
		handlers.NewGroupHandler(st, logger),
		handlers.NewMessageHandler(st, logger),
		handlers.NewAdminHandler(st, logger),
		handlers.NewWebSocketHandler(hub, logger),
		authMW,
		rateLimitMW,
	)

	engine := gin.New()
	apiRouter.SetupRoutes(engine)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped")
}
