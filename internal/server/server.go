// internal/server/server.go

// Package server exposes the blueprint pipeline over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"blueprint-engine/internal/common/config"
	"blueprint-engine/internal/common/logger"
	"blueprint-engine/internal/router"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	engine *gin.Engine
	http   *http.Server
	logger logger.Logger
}

func New(cfg config.HTTPConfig, h *Handler, providerRouter *router.Router, log logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(log))

	engine.POST("/blueprints", h.CreateBlueprint)
	engine.GET("/blueprints", h.SearchBlueprints)
	engine.GET("/blueprints/:id", h.GetBlueprint)
	engine.GET("/healthz", healthHandler(providerRouter))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		engine: engine,
		http: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      engine,
			ReadTimeout:  cfg.GetReadTimeout(),
			WriteTimeout: cfg.GetWriteTimeout(),
		},
		logger: log.WithFields(map[string]interface{}{"component": "http-server"}),
	}
}

func (s *Server) Start() error {
	s.logger.Info("http server listening", map[string]interface{}{"addr": s.http.Addr})
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down", nil)
	return s.http.Shutdown(ctx)
}

// Engine exposes the underlying gin engine for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request handled", map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"durationMs": time.Since(start).Milliseconds(),
		})
	}
}

func healthHandler(providerRouter *router.Router) gin.HandlerFunc {
	startedAt := time.Now()
	return func(c *gin.Context) {
		adapters := make(map[string]string)
		for _, a := range providerRouter.Adapters() {
			adapters[a.Name()] = a.Health().String()
		}
		c.JSON(http.StatusOK, gin.H{
			"status":        "ok",
			"uptimeSeconds": int(time.Since(startedAt).Seconds()),
			"providers":     adapters,
		})
	}
}
