// Package api exposes the daemon's lag monitor over HTTP: a snapshot
// endpoint, a per-source lookup, and a streaming feed.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"

	"tailtrack/internal/realtime"
)

// Config holds HTTP server configuration.
type Config struct {
	Host       string
	Port       int
	Production bool
}

// Server is the daemon's status/lag HTTP API.
type Server struct {
	router *gin.Engine
	server *http.Server
	logger *pterm.Logger
}

// NewServer wires a gin router over monitor's snapshot.
func NewServer(cfg Config, monitor *realtime.Monitor, logger *pterm.Logger) *Server {
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	apiGroup := router.Group("/api/v1")
	{
		apiGroup.GET("/sources", func(c *gin.Context) {
			c.JSON(http.StatusOK, monitor.Snapshot())
		})
		apiGroup.GET("/sources/:name", func(c *gin.Context) {
			status, ok := monitor.Get(c.Param("name"))
			if !ok {
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown source"})
				return
			}
			c.JSON(http.StatusOK, status)
		})
		apiGroup.GET("/sources/stream", streamHandler(monitor, logger))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		router: router,
		logger: logger,
		server: &http.Server{
			Addr:           addr,
			Handler:        router,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   300 * time.Second,
			MaxHeaderBytes: 1 << 20,
		},
	}
}

// streamHandler pushes the monitor's snapshot via Server-Sent Events every
// two seconds, stopping when the client disconnects.
func streamHandler(monitor *realtime.Monitor, logger *pterm.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		clientGone := c.Writer.CloseNotify()

		logger.Debug("client connected to source stream", logger.Args("client_ip", c.ClientIP()))

		for {
			select {
			case <-c.Request.Context().Done():
				return
			case <-clientGone:
				logger.Debug("client disconnected from source stream", logger.Args("client_ip", c.ClientIP()))
				return
			case <-ticker.C:
				data, err := json.Marshal(monitor.Snapshot())
				if err != nil {
					logger.Error("failed to marshal source snapshot", logger.Args("error", err))
					continue
				}
				if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
					logger.Debug("failed to write SSE data", logger.Args("error", err))
					return
				}
				c.Writer.Flush()
			}
		}
	}
}

// Run starts the HTTP server, blocking until it stops.
func (s *Server) Run() error {
	s.logger.Info("starting status API", s.logger.Args("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.WithCaller().Error("status API failed", s.logger.Args("error", err))
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down status API")
	return s.server.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
