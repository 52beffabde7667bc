// Package admin exposes the operator surface: risk status, manual halt and
// reset, health and Prometheus metrics.
package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradeguard/internal/logger"
	"tradeguard/internal/risk"
)

type Server struct {
	addr   string
	router *gin.Engine
}

func NewServer(addr string, manager *risk.Manager) (*Server, error) {
	if manager == nil {
		return nil, errors.New("admin server requires a risk manager")
	}
	if addr == "" {
		addr = ":9920"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/risk")
	api.GET("/status", statusHandler(manager))
	api.POST("/halt", haltHandler(manager))
	api.POST("/reset", resetHandler(manager))

	return &Server{addr: addr, router: router}, nil
}

func statusHandler(manager *risk.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := manager.Status(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

func haltHandler(manager *risk.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Reason string `json:"reason"`
		}
		// an empty body is allowed; the manager fills a default reason
		_ = c.ShouldBindJSON(&body)

		if err := manager.TriggerHaltCmd(c.Request.Context(), body.Reason); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		logger.Warnf("admin: halt triggered via API (reason=%q)", body.Reason)
		c.JSON(http.StatusOK, gin.H{"status": "halted"})
	}
}

func resetHandler(manager *risk.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := manager.ResetHaltCmd(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		logger.Warnf("admin: halt reset via API")
		c.JSON(http.StatusOK, gin.H{"status": "normal"})
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

func (s *Server) Addr() string { return s.addr }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.Infof("admin: listening on %s", s.addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }
