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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopadvisor/internal/config"
	"shopadvisor/internal/handler"
	"shopadvisor/internal/logger"
	"shopadvisor/internal/repository"
	"shopadvisor/internal/service"
	"shopadvisor/internal/telegram"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog := logger.New(cfg.Logging.Level, cfg.Logging.File, cfg.Logging.Prod)
	defer zlog.Sync()

	zlog.Info("shop advisor starting",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit))

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	// Conversation state store
	var store repository.StateStore
	switch cfg.State.Backend {
	case "postgres":
		pg, err := repository.NewPostgresStore(cfg.State.DSN, cfg.State.MaxConnections, cfg.State.MaxIdleConnections)
		if err != nil {
			zlog.Fatal("failed to connect to database", zap.Error(err))
		}
		store = pg
		zlog.Info("using postgres conversation state store")
	default:
		store = repository.NewMemoryStore(cfg.State.TTL)
		zlog.Info("using in-memory conversation state store",
			zap.Duration("ttl", cfg.State.TTL))
	}
	defer store.Close()

	// Generation provider
	openaiClient := service.NewOpenAIClient(&cfg.OpenAI)
	if openaiClient.IsEnabled() {
		zlog.Info("openai client initialized",
			zap.String("api_base", cfg.OpenAI.APIBase),
			zap.String("chat_model", cfg.OpenAI.ChatModel),
			zap.Float32("temperature", cfg.OpenAI.Temperature))
	} else {
		zlog.Warn("openai is disabled, every turn will answer with a clarification; set OPENAI_API_KEY to enable extraction")
	}

	// Services
	extractor := service.NewExtractor(openaiClient, store, cfg.OpenAI.Timeout, zlog)
	catalog := service.NewCatalogAdapter(service.NewWooClient(&cfg.Catalog), &cfg.Catalog, zlog)
	ranker := service.NewRanker(cfg.Ranking)
	formatter := service.NewFormatter(cfg.Presentation)
	advisor := service.NewAdvisor(extractor, catalog, ranker, formatter, zlog)

	// Telegram
	bot := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.DisableWebPreview)
	if bot.Enabled() && cfg.Telegram.WebhookURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := bot.SetWebhook(ctx, cfg.Telegram.WebhookURL); err != nil {
			zlog.Error("failed to register telegram webhook", zap.Error(err))
		} else {
			zlog.Info("telegram webhook registered", zap.String("url", cfg.Telegram.WebhookURL))
		}
		cancel()
	}

	// Handlers
	chatHandler := handler.NewChatHandler(advisor)
	webhookHandler := handler.NewWebhookHandler(advisor, bot, zlog)

	// Setup Gin router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.AllowedOrigins}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":     "healthy",
			"service":    "shop-advisor",
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	// Version endpoint
	router.GET("/version", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	// API routes
	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/chat", chatHandler.Chat)
	}

	if bot.Enabled() {
		router.POST("/telegram/webhook", webhookHandler.Handle)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		zlog.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Error("forced shutdown", zap.Error(err))
	}
	zlog.Info("server stopped")
}
