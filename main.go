package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"citifix/classifier"
	"citifix/config"
	"citifix/database"
	"citifix/engine"
	"citifix/handlers"
	"citifix/metrics"
	"citifix/middleware"
	"citifix/notifier"
	"citifix/version"
	ws "citifix/websocket"

	"github.com/apex/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "citifix"

func main() {
	// .env is optional, real deployments use environment variables.
	godotenv.Load()

	cfg := config.Load()
	if lv, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lv)
	}

	db, err := database.New(cfg, classifier.Categorize)
	if err != nil {
		log.Fatalf("Failed to create database connection: %v", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	var n notifier.Notifier
	if cfg.TelegramBotToken != "" {
		n, err = notifier.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			log.Fatalf("Failed to create telegram notifier: %v", err)
		}
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN not set, escalations will only be logged")
		n = notifier.LogOnly{}
	}

	hub := ws.NewHub()
	go hub.Run()

	e := engine.New(db, db, n, hub,
		cfg.EscalationThreshold, cfg.ResolutionRewardPoints, cfg.NotifyTimeout)

	metrics.Register()

	auth := middleware.NewAuth(cfg.JWTSecret, cfg.TokenExpiry)
	h := handlers.New(e, db, auth)
	wsHandler := handlers.NewWebSocketHandler(hub)

	router := setupRouter(h, wsHandler, auth)

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

func setupRouter(h *handlers.Handler, wsHandler *handlers.WebSocketHandler, auth *middleware.Auth) *gin.Engine {
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))
	router.Use(middleware.SecurityHeaders())

	api := router.Group("/api/v3")
	{
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)

		// Public routes
		api.GET("/complaints", h.ListComplaints)
		api.GET("/complaints/status_count", h.StatusCounts)
		api.GET("/complaints/:id", h.GetComplaint)
		api.GET("/map", h.Map)
		api.GET("/leaderboard", h.Leaderboard)
		api.GET("/users/:id/stats", h.UserStats)

		// Protected routes (require authentication)
		protected := api.Group("", auth.RequireAuth())
		{
			protected.POST("/complaints", h.CreateComplaint)
			protected.POST("/complaints/:id/vote", h.Vote)
		}

		// Admin routes
		admin := protected.Group("", auth.RequireAdmin())
		{
			admin.POST("/complaints/:id/status", h.UpdateStatus)
			admin.POST("/complaints/:id/assign", h.AssignDepartment)
			admin.GET("/ws/complaints", wsHandler.Feed)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": serviceName,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})
	router.GET("/version", func(c *gin.Context) {
		c.JSON(200, version.Get(serviceName))
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
