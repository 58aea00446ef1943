package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/Alirun/StreamSaga/api/swagger"
	"github.com/Alirun/StreamSaga/internal/embedding"
	"github.com/Alirun/StreamSaga/internal/handler"
	"github.com/Alirun/StreamSaga/internal/middleware"
	"github.com/Alirun/StreamSaga/internal/models"
	"github.com/Alirun/StreamSaga/internal/repository"
	"github.com/Alirun/StreamSaga/internal/service"
	"github.com/Alirun/StreamSaga/pkg/cache"
	"github.com/Alirun/StreamSaga/pkg/config"
	"github.com/Alirun/StreamSaga/pkg/database"
	"github.com/Alirun/StreamSaga/pkg/logger"
	corsmiddleware "github.com/Alirun/StreamSaga/pkg/middleware/cors"
	reqidmiddleware "github.com/Alirun/StreamSaga/pkg/middleware/requestid"
	"github.com/Alirun/StreamSaga/pkg/ratelimit"
	"github.com/Alirun/StreamSaga/pkg/response"
)

// @title StreamSaga API
// @version 1.0.0
// @description Community proposal and voting API with semantic duplicate detection
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, rate limiting disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close() //nolint:errcheck
	}

	var limiter ratelimit.Limiter = ratelimit.Disabled{}
	if cfg.RateLimit.Enabled && redisClient != nil {
		limiter = ratelimit.NewRedisLimiter(redisClient, ratelimit.Config{
			KeySpace: cfg.RateLimit.KeySpace,
			Window:   cfg.RateLimit.Window,
			PerKey:   cfg.RateLimit.PerKey,
		}, logr)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	embedder := service.NewInstrumentedEmbedder(embedding.NewHTTPClient(cfg.Embedding, logr), metricsSvc)

	userRepo := repository.NewUserRepository(db)
	topicRepo := repository.NewTopicRepository(db)
	proposalRepo := repository.NewProposalRepository(db)
	voteRepo := repository.NewVoteRepository(db)

	backfillSvc := service.NewBackfillService(topicRepo, proposalRepo, embedder, service.BackfillConfig{
		Workers:    cfg.Backfill.Workers,
		MaxRetries: cfg.Backfill.MaxRetries,
		RetryDelay: cfg.Backfill.RetryDelay,
	}, logr)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "streamsaga",
	})
	topicSvc := service.NewTopicService(topicRepo, proposalRepo, voteRepo, embedder, backfillSvc, validate, logr, cfg.Topics.MemberCreate)
	proposalSvc := service.NewProposalService(proposalRepo, topicRepo, embedder, validate, logr)
	voteSvc := service.NewVoteService(voteRepo, proposalRepo, logr, metricsSvc)
	resolutionSvc := service.NewResolutionService(topicRepo, proposalRepo, voteRepo, logr)
	searchSvc := service.NewSearchService(topicRepo, proposalRepo, voteRepo, embedder, limiter, logr, metricsSvc, service.SearchConfig{
		MatchThreshold: cfg.Search.MatchThreshold,
		MatchCount:     cfg.Search.MatchCount,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backfillSvc.Start(ctx)
	defer backfillSvc.Stop()

	authHandler := handler.NewAuthHandler(authSvc)
	topicHandler := handler.NewTopicHandler(topicSvc, resolutionSvc)
	proposalHandler := handler.NewProposalHandler(proposalSvc, searchSvc)
	voteHandler := handler.NewVoteHandler(voteSvc)
	searchHandler := handler.NewSearchHandler(searchSvc, cfg.Search.MinQueryLength)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			response.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	topics := api.Group("/topics")
	topics.GET("", topicHandler.List)
	topics.GET("/:id", middleware.OptionalJWT(authSvc), topicHandler.Get)
	topics.POST("", middleware.JWT(authSvc), topicHandler.Create)
	topics.POST("/:id/resolve", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin), topicHandler.Resolve)
	topics.POST("/:id/archive", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin), topicHandler.Archive)
	topics.GET("/:id/report", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin), topicHandler.Report)

	proposals := api.Group("/proposals")
	proposals.POST("", middleware.JWT(authSvc), proposalHandler.Create)
	proposals.POST("/similar", middleware.OptionalJWT(authSvc), proposalHandler.Similar)
	proposals.POST("/:id/archive", middleware.JWT(authSvc), proposalHandler.Archive)
	proposals.POST("/:id/vote", middleware.JWT(authSvc), voteHandler.Cast)
	proposals.DELETE("/:id/vote", middleware.JWT(authSvc), voteHandler.Retract)

	api.GET("/search", middleware.OptionalJWT(authSvc), searchHandler.Search)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
