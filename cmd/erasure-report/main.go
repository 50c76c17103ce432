package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"erasure-report/internal/config"
	httpapi "erasure-report/internal/http"
	"erasure-report/internal/logger"
	"erasure-report/internal/repository"
	"erasure-report/internal/service"
	"erasure-report/internal/store"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "erasure-report")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.Webhook.Secret == "" {
		log.Warn("WEBHOOK_SECRET is empty, all webhook deliveries will be rejected")
	}

	loc, err := time.LoadLocation(cfg.Report.Timezone)
	if err != nil {
		log.Warn("Invalid REPORT_TZ, falling back to UTC", zap.String("tz", cfg.Report.Timezone))
		loc = time.UTC
	}

	db, err := repository.NewSQLiteDB(cfg.Database.Path)
	if err != nil {
		log.Fatal("Failed to open database", zap.String("path", cfg.Database.Path), zap.Error(err))
	}

	eventsRepo := repository.NewSQLiteEventsRepository(db)
	rollupsRepo := repository.NewSQLiteRollupsRepository(db)
	aggregate := service.NewAggregateService(eventsRepo, rollupsRepo, log)

	var appliance service.ApplianceLookup
	if cfg.Appliance.BaseURL != "" {
		appliance = service.NewApplianceClient(cfg.Appliance, log)
		log.Info("Appliance device-detail lookup enabled", zap.String("base_url", cfg.Appliance.BaseURL))
	}
	ingest := service.NewIngestService(eventsRepo, aggregate, appliance, loc, log)

	var redisClient *redis.Client
	var kv store.KV
	if cfg.Cache.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		kv = store.NewRedisKV(redisClient)
		log.Info("Report cache enabled", zap.String("addr", cfg.Cache.Addr))
	}

	router := httpapi.NewRouter(log)
	router.RegisterWebhookRoutes(httpapi.NewWebhookHandler(ingest, cfg.Webhook.Secret, log))
	router.RegisterOpsRoutes(httpapi.NewOpsHandler(ingest, cfg.Webhook.Secret, log))
	router.RegisterReportRoutes(httpapi.NewReportHandler(eventsRepo, rollupsRepo, kv, cfg.Cache.TTL, loc, log))
	router.RegisterAdminRoutes(httpapi.NewAdminHandler(aggregate, cfg.Webhook.Secret, log))

	// 启动时全量 resync：rollup 是缓存，不是事实来源
	if err := aggregate.Resync(context.Background()); err != nil {
		log.Error("Startup rollup resync failed", zap.Error(err))
	}

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case err := <-errCh:
		log.Error("HTTP server stopped", zap.Error(err))
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if redisClient != nil {
		_ = redisClient.Close()
	}
	_ = repository.Close(db)
}
