// Package api exposes the operator REST gateway of a prover node: task
// submission, the task list and the node view shared with peers.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"cosmossdk.io/log"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/paw-chain/prover/x/prover/coordinator"
	"github.com/paw-chain/prover/x/prover/types"
)

// Node is the coordinator surface the gateway serves.
type Node interface {
	NodeInformation() types.NodeInformation
	NodeStatus() types.NodeStatus
	Snapshot() []coordinator.TaskSummary
	Task(opts types.TaskOptions) (types.Task, bool)
	GetOrEnqueue(opts types.TaskOptions) *types.TaskResult
}

// Server represents the REST gateway
type Server struct {
	router  *gin.Engine
	handler http.Handler
	node    Node
	auth    *AuthService
	config  *Config
	logger  log.Logger
}

// Config holds server configuration
type Config struct {
	Host            string
	Port            string
	JWTSecret       []byte
	CORSOrigins     []string
	RateLimitRPS    int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            "8080",
		CORSOrigins:     []string{"http://localhost:3000"},
		RateLimitRPS:    100,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// NewServer creates a gateway for node. Task submission requires a bearer
// token when config.JWTSecret is set and is open otherwise.
func NewServer(node Node, config *Config, logger log.Logger) (*Server, error) {
	if node == nil {
		return nil, fmt.Errorf("node is required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.RateLimitRPS <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", config.RateLimitRPS)
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	s := &Server{
		node:   node,
		config: config,
		logger: logger.With("module", "api"),
	}
	if len(config.JWTSecret) > 0 {
		s.auth = NewAuthService(config.JWTSecret)
	} else {
		s.logger.Warn("task submission is unauthenticated; set a JWT secret to require tokens")
	}

	s.setupRouter()
	return s, nil
}

// setupRouter configures the Gin router with all routes and middleware
func (s *Server) setupRouter() {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()

	// Recovery must be first to catch panics
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(SecurityHeadersMiddleware())
	s.router.Use(RequestSizeLimitMiddleware(MaxRequestSize))
	s.router.Use(RequestIDMiddleware())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(RateLimitMiddleware(s.config.RateLimitRPS))

	s.router.GET("/health", s.healthCheck)
	s.registerRoutes()

	s.handler = cors.New(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           86400,
	}).Handler(s.router)
}

func (s *Server) registerRoutes() {
	v1 := s.router.Group("/v1")

	v1.GET("/node", s.handleNodeInformation)
	v1.GET("/node/status", s.handleNodeStatus)
	v1.GET("/tasks", s.handleListTasks)
	v1.POST("/tasks/lookup", s.handleLookupTask)

	submit := v1.Group("/tasks")
	if s.auth != nil {
		submit.Use(s.AuthMiddleware())
	}
	submit.POST("", s.handleSubmitTask)
}

// Handler returns the gateway behind the CORS middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// healthCheck returns server liveness
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"node_id":   s.node.NodeStatus().ID,
	})
}

// Start serves the gateway until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:           net.JoinHostPort(s.config.Host, s.config.Port),
		Handler:        s.handler,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting REST gateway", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down REST gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
