package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/dnw3/synapse/graph"
	"github.com/dnw3/synapse/internal/runtime"
	"github.com/dnw3/synapse/internal/util"
)

// Server implements the HTTP API for the graph runtime
type Server struct {
	runtime *runtime.Runtime
	sockets util.Set[*Client]
	mu      sync.Mutex
}

var ErrInvalidJSON = errors.New("invalid JSON in request body")

// NewServer creates a new HTTP API server over the given runtime
func NewServer(rt *runtime.Runtime) *Server {
	return &Server{
		runtime: rt,
		sockets: util.Set[*Client]{},
	}
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods",
			"GET, POST, PUT, DELETE, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.GET("/health", s.handleHealth)

	g := router.Group("/graph")
	{
		g.GET("", s.listGraphs)
		g.GET("/", s.listGraphs)
		g.GET("/:graphID", s.getGraph)
		g.POST("/:graphID/invoke", s.invokeGraph)

		// Thread endpoints
		g.GET("/:graphID/thread/:threadID", s.getThreadState)
		g.GET("/:graphID/thread/:threadID/history", s.getThreadHistory)
		g.POST("/:graphID/thread/:threadID/resume", s.resumeThread)
		g.PUT("/:graphID/thread/:threadID/state", s.updateThreadState)
	}

	// WebSocket
	router.GET("/ws", s.handleWebSocket)

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Service: "synapse",
		Version: "1.0.0",
		Status:  "healthy",
	})
}

// abortWithError maps a runtime failure to an HTTP status and writes the
// error body
func abortWithError(c *gin.Context, wrap, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, runtime.ErrGraphNotFound),
		errors.Is(err, graph.ErrNoCheckpoint):
		status = http.StatusNotFound
	case errors.Is(err, runtime.ErrThreadBusy):
		status = http.StatusConflict
	case errors.Is(err, graph.ErrRecursionLimitExceeded):
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, ErrorResponse{
		Error:  fmt.Sprintf("%s: %v", wrap, err),
		Status: status,
	})
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Add(c)
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Remove(c)
}

// CloseWebSockets closes all active WebSocket connections
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, s.sockets.Len())
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
