package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"roastarena/backend/internal/auth"
	"roastarena/backend/internal/battle"
	"roastarena/backend/internal/config"
	"roastarena/backend/internal/database"
	"roastarena/backend/internal/handler"
	"roastarena/backend/internal/hub"
	"roastarena/backend/internal/queue"
	"roastarena/backend/internal/scheduler"
	"roastarena/backend/internal/vote"

	"github.com/gin-gonic/gin"

	// Swagger imports
	_ "roastarena/backend/docs" // This is important for swag to find the generated docs

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func init() {
	config.LoadConfig()
}

// @title           RoastArena Battle API
// @version         1.0
// @description     Matchmaking and battle coordination engine for live roast battles.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.AppConfig

	// Connect to the database
	database.Connect(cfg.DatabaseURL)

	// Wire the engine: queue -> scheduler -> battles -> votes, fanning out
	// through one event hub.
	events := hub.NewHub()
	store := queue.NewStore(database.DB)
	votes := vote.NewAggregator(database.DB, events)

	opts := battle.DefaultOptions()
	opts.ReadyTimeout = time.Duration(cfg.ReadyTimeoutSeconds) * time.Second
	opts.BattleDuration = time.Duration(cfg.BattleDurationSeconds) * time.Second
	opts.VotingWindow = time.Duration(cfg.VotingWindowSeconds) * time.Second
	opts.RematchWindow = time.Duration(cfg.RematchWindowSeconds) * time.Second
	opts.DisconnectGrace = time.Duration(cfg.DisconnectGraceSeconds) * time.Second

	battles := battle.NewController(database.DB, store, votes, events, opts)
	matchmaker := scheduler.New(store, battles,
		time.Duration(cfg.MatchmakingIntervalSeconds)*time.Second,
		time.Duration(cfg.QueueTTLSeconds)*time.Second)
	if err := matchmaker.Start(); err != nil {
		log.Fatalf("Failed to start matchmaking scheduler: %v", err)
	}
	defer matchmaker.Stop()

	handler.Setup(store, matchmaker, battles, votes, events)

	router := gin.Default()

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	{
		// Queue routes (protected)
		queueRoutes := apiV1.Group("/queue")
		queueRoutes.Use(auth.AuthMiddleware())
		{
			queueRoutes.POST("/join", handler.JoinQueue)
			queueRoutes.POST("/leave", handler.LeaveQueue)
			queueRoutes.GET("/status", handler.QueueStatus)
			queueRoutes.GET("/events", handler.QueueEvents)
		}

		// Match routes. Spectating is open; commands require auth.
		matchRoutes := apiV1.Group("/matches")
		{
			matchRoutes.GET("/:id", auth.OptionalAuthMiddleware(), handler.GetMatch)
			matchRoutes.GET("/:id/result", handler.GetMatchResult)
			matchRoutes.GET("/:id/events", auth.OptionalAuthMiddleware(), handler.MatchEvents)

			matchRoutes.POST("/:id/ready", auth.AuthMiddleware(), handler.MarkReady)
			matchRoutes.POST("/:id/vote", auth.AuthMiddleware(), handler.CastVote)
			matchRoutes.POST("/:id/rematch", auth.AuthMiddleware(), handler.RequestRematch)
		}

		// User battle record routes (public)
		userRoutes := apiV1.Group("/users")
		{
			userRoutes.GET("/:id/stats", handler.GetUserStats)
			userRoutes.GET("/:id/history", handler.GetUserHistory)
		}
	}

	fmt.Println("Server is running on " + cfg.ListenAddr)
	fmt.Println("Swagger UI is available at http://localhost:8080/swagger/index.html")
	log.Fatal(router.Run(cfg.ListenAddr))
}
