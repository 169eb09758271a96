package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/librosapp/libros/backend/go-services/handlers"
	bookhandler "github.com/librosapp/libros/backend/go-services/internal/book/handler"
	"github.com/librosapp/libros/backend/go-services/internal/book/service"
	"github.com/librosapp/libros/backend/go-services/internal/config"
	"github.com/librosapp/libros/backend/go-services/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var startTime = time.Now()

func newRouter(cfg *config.Config, svc *service.Service, log *zap.Logger, deps ...handlers.Dependency) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.AccessLog(log.Named("http")),
		middleware.Metrics(),
		middleware.CORS(cfg.Server.AllowedOrigins),
	)

	handlers.RegisterHealth(r, startTime, deps...)
	handlers.RegisterSwagger(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	bookhandler.RegisterBookRoutes(r, bookhandler.New(svc, cfg.Uploads.MaxBytes, log.Named("books")))
	return r
}
