package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/flowtree/internal/engine"
)

// Server exposes the engine operations over HTTP
type Server struct {
	engine   *engine.Engine
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// New creates a server for eng. Metrics are served from gatherer; a nil
// gatherer serves the default registry
func New(eng *engine.Engine, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: eng, gatherer: gatherer, logger: logger}
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return s.logger
		}),
	))

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	{
		api.GET("/messages", s.listMessages)
		api.POST("/messages", s.insertMessage)
		api.GET("/messages/:flowId/:identifier", s.getMessage)
		api.PUT("/messages/:flowId/:identifier", s.updateMessage)
		api.DELETE("/messages/:flowId/:identifier", s.deleteMessage)
		api.DELETE("/messages/:flowId", s.deleteMessagesByFlow)

		api.GET("/flows", s.listFlows)
		api.POST("/flows", s.insertMainFlow)
		api.POST("/flows/exchange", s.exchangeFlows)
		api.DELETE("/flows/:flowId", s.deleteMainFlow)

		api.GET("/verify", s.verify)
	}

	return router
}

// ListenAndServe serves on addr until ctx is canceled, then drains
// in-flight requests for at most shutdownTimeout
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("HTTP server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Service: "flowtree", Status: "ok"})
}
