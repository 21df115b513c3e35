package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/robofleet/change-request-bot/internal/gateway"
	"github.com/robofleet/change-request-bot/internal/handler"
	"github.com/robofleet/change-request-bot/internal/middleware"
	"github.com/robofleet/change-request-bot/internal/repository"
	"github.com/robofleet/change-request-bot/internal/service"
	"github.com/robofleet/change-request-bot/pkg/cache"
	"github.com/robofleet/change-request-bot/pkg/config"
	"github.com/robofleet/change-request-bot/pkg/docstore"
	"github.com/robofleet/change-request-bot/pkg/jobs"
	"github.com/robofleet/change-request-bot/pkg/logger"
	reqidmiddleware "github.com/robofleet/change-request-bot/pkg/middleware/requestid"
	"github.com/robofleet/change-request-bot/pkg/sheets"
)

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

	ctx := context.Background()

	var names *cache.Names
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, name cache disabled", "error", err)
		} else {
			names = cache.NewNames(redisClient, cfg.Redis.NameTTL)
		}
	}

	slackGW := gateway.New(cfg.Slack.BotToken, names, logr)

	sheetClient, err := sheets.NewClient(ctx, cfg.Sheets, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to init sheets client", "error", err)
	}

	docStore, err := docstore.NewStore(ctx, cfg.Docstore, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to init docstore", "error", err)
	}
	defer docStore.Close() //nolint:errcheck

	scheduler := jobs.NewScheduler(jobs.SchedulerConfig{Workers: 2, Logger: logr})

	metricsSvc := service.NewMetricsService()

	registry := repository.NewRequestRegistry()
	tracker := repository.NewApprovalTracker()
	marker := repository.NewFinalizationMarker()

	approvalSvc := service.NewApprovalService(
		registry, tracker, marker,
		slackGW, sheetClient, docStore,
		scheduler, metricsSvc, logr, cfg.Approvals,
	)
	approvalSvc.BindScheduler(scheduler)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "🛰️ Change Request Bot is running.")
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	slackHandler := handler.NewSlackHandler(approvalSvc, slackGW, logr)
	slackGroup := r.Group("/slack", middleware.SlackSignature(cfg.Slack.SigningSecret))
	slackGroup.POST("/interactions", slackHandler.Interactions)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
