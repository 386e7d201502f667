package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"astroconsole-backend/internal/config"
	"astroconsole-backend/internal/database"
	"astroconsole-backend/internal/gateway"
	consoleHandler "astroconsole-backend/internal/handler/http/console"
	"astroconsole-backend/internal/middleware"
	redisRepo "astroconsole-backend/internal/repository/redis"
	"astroconsole-backend/internal/service/engine"
	"astroconsole-backend/internal/service/notify"
	"astroconsole-backend/internal/service/roster"
	"astroconsole-backend/pkg/constants"
	"astroconsole-backend/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	if err := logger.Init(&logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Presence source for roster ranking; the engine works without it
	var presence roster.PresenceChecker
	redisDB, err := database.NewRedisDB(&database.RedisConfig{Addr: cfg.GetRedisAddr()})
	if err != nil {
		logger.Warn("redis unavailable, roster ranks everyone offline", zap.Error(err))
	} else {
		defer redisDB.Close()
		presence = redisRepo.NewPresenceRepository(redisDB)
	}

	// Side-effect sink: FCM when configured, logs otherwise
	var sink notify.Sink = notify.LogSink{}
	if cfg.FCMCredentialsPath != "" {
		fcmSink, err := notify.NewFCMSink(&notify.FCMSinkConfig{
			CredentialsPath: cfg.FCMCredentialsPath,
			ProjectID:       cfg.FCMProjectID,
			DeviceTokens:    cfg.FCMDeviceTokens,
		})
		if err != nil {
			logger.Warn("FCM sink unavailable, falling back to log sink", zap.Error(err))
		} else {
			sink = fcmSink
		}
	}

	gw := gateway.NewWSGateway(cfg.GatewayURL, cfg.OperatorID)
	defer gw.Close()

	eng := engine.New(gw, presence, sink, engine.Options{
		DedupWindow: cfg.DedupWindow,
		ConnectWait: cfg.ConnectWait,
	})
	eng.Start()
	defer eng.Close()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.HealthCheck("console-engine"))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	consoleHandler.NewHandler(eng).RegisterRoutes(router.Group("/v1"))

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	go func() {
		logger.Info("console engine listening", zap.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
	}
}
