package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"riddlehub/internal/common/cache"
	"riddlehub/internal/common/db"
	commonmw "riddlehub/internal/common/http/middleware"
	"riddlehub/internal/common/mq"
	"riddlehub/internal/problem/controller"
	"riddlehub/internal/problem/repository"
	"riddlehub/internal/problem/service"
	"riddlehub/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/riddle_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	database, err := openDatabase(appCfg.Database)
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = database.Close()
	}()
	dbProvider := db.NewManager(database)

	var problemCache cache.Cache
	if appCfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
		if err != nil {
			logger.Error(context.Background(), "init redis failed", zap.Error(err))
			return
		}
		defer func() {
			_ = redisCache.Close()
		}()
		problemCache = redisCache
	}

	problemRepo := repository.NewProblemRepository(dbProvider, problemCache)
	answerRepo := repository.NewAnswerRepository(dbProvider)

	var mqClient mq.MessageQueue
	if appCfg.Cleanup.Enabled {
		mqClient, err = mq.NewKafkaQueue(appCfg.Kafka)
		if err != nil {
			logger.Error(context.Background(), "init kafka failed", zap.Error(err))
			return
		}
		defer func() {
			_ = mqClient.Close()
		}()
	}

	var cleanupPublisher *service.ProblemCleanupPublisher
	if mqClient != nil {
		cleanupPublisher = service.NewProblemCleanupPublisher(mqClient, appCfg.Cleanup.Topic)

		cleanupConsumer := service.NewProblemCleanupConsumer(mqClient, answerRepo)
		if err := cleanupConsumer.Subscribe(context.Background(), appCfg.Cleanup.Topic, appCfg.Cleanup.ConsumerGroup); err != nil {
			logger.Error(context.Background(), "subscribe cleanup events failed", zap.Error(err))
			return
		}
	}

	problemService := service.NewProblemService(problemRepo, cleanupPublisher)
	answerService := service.NewAnswerService(problemRepo, answerRepo, appCfg.Problem.RiddleAnswer)

	httpServer := buildHTTPServer(appCfg, problemService, answerService)

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "riddle http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
	if mqClient != nil {
		_ = mqClient.Stop()
	}
}

func openDatabase(cfg DatabaseConfig) (db.Database, error) {
	switch cfg.Driver {
	case driverMySQL:
		return db.NewMySQLWithConfig(&cfg.MySQL)
	case driverSQLite:
		return db.NewSQLiteWithConfig(&cfg.SQLite)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func buildHTTPServer(cfg *AppConfig, problemService *service.ProblemService, answerService *service.AnswerService) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1/problems")
	api.Use(commonmw.AuthMiddleware(commonmw.AuthConfig{
		DirectBearer: cfg.Auth.DirectBearer,
		JWTSecret:    []byte(cfg.Auth.JWTSecret),
		JWTIssuer:    cfg.Auth.JWTIssuer,
	}))

	problemController := controller.NewProblemController(problemService)
	api.POST("", problemController.Create)
	api.GET("", problemController.List)
	api.GET("/:id", problemController.Get)
	api.PUT("/:id", problemController.Update)
	api.DELETE("/:id", problemController.Delete)

	answerController := controller.NewAnswerController(answerService)
	api.POST("/:id/answers", answerController.Submit)

	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
