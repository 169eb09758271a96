package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/librosapp/libros/backend/go-services/internal/config"
	"github.com/librosapp/libros/backend/go-services/pkg/logger"
	"github.com/librosapp/libros/backend/go-services/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)
	logger.SetOutput(os.Stdout, cfg.Log.Format)
	defer logger.Sync()
	logger.Infof("config loaded: mongo=%v redis=%v uploads=%s level=%s",
		cfg.MongoDB.URI != "", cfg.Redis.Enabled(), cfg.Uploads.Backend, logger.LevelString())

	if cfg.Server.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	app, err := NewApp(context.Background(), cfg, logger.L())
	if err != nil {
		logger.Fatalf("failed to initialize: %v", err)
	}
	if err := app.Run(); err != nil {
		logger.Errorf("server exited: %v", err)
		logger.Sync()
		os.Exit(1)
	}
}
