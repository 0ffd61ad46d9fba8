// Package health provides health check functionality for the prover daemon.
//
// The health check system supports multiple endpoints:
// - /health - Basic liveness check
// - /health/ready - Readiness check for load balancers
// - /health/detailed - Comprehensive status with task and key cache metrics
//
// Readiness is mirrored into a gRPC health server so orchestrators that speak
// grpc.health.v1 see the same answer.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"cosmossdk.io/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/paw-chain/prover/x/prover/coordinator"
	"github.com/paw-chain/prover/x/prover/types"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// ComponentHealth represents the health status of a single component
type ComponentHealth struct {
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metrics   map[string]interface{} `json:"metrics,omitempty"`
}

// HealthCheck represents the overall health check response
type HealthCheck struct {
	Status     Status                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	NodeID     string                     `json:"node_id"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// Node is the part of the coordinator the checker observes.
type Node interface {
	NodeID() string
	NodeLookup() string
	NodeStatus() types.NodeStatus
	Snapshot() []coordinator.TaskSummary
	CachedKeys() []string
}

// TelemetryChecker reports whether tracing and metrics export are set up.
type TelemetryChecker interface {
	HealthCheck() error
}

// Checker performs health checks on the coordinator and its peer lookup
type Checker struct {
	logger    log.Logger
	node      Node
	resolver  coordinator.Resolver
	telemetry TelemetryChecker
	grpc      *grpchealth.Server
	version   string

	maxResponseTime time.Duration

	mu            sync.RWMutex
	lastCheck     time.Time
	cachedHealth  *HealthCheck
	cacheDuration time.Duration
}

// Config holds configuration for the health checker
type Config struct {
	// MaxResponseTime bounds the peer lookup
	MaxResponseTime time.Duration

	// CacheDuration is how long to cache health check results
	CacheDuration time.Duration

	// Version is reported in every response
	Version string
}

// DefaultConfig returns the default health check configuration
func DefaultConfig() Config {
	return Config{
		MaxResponseTime: 5 * time.Second,
		CacheDuration:   5 * time.Second,
	}
}

// NewChecker creates a new health checker. resolver may be nil when the node
// runs without a lookup; telemetry may be nil when tracing is disabled.
func NewChecker(logger log.Logger, cfg Config, node Node, resolver coordinator.Resolver, telemetry TelemetryChecker) (*Checker, error) {
	if node == nil {
		return nil, fmt.Errorf("node is required")
	}
	if node.NodeLookup() != "" && resolver == nil {
		return nil, fmt.Errorf("resolver is required when a node lookup is configured")
	}
	if cfg.MaxResponseTime <= 0 {
		return nil, fmt.Errorf("max response time must be positive")
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	server := grpchealth.NewServer()
	server.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	return &Checker{
		logger:          logger.With("module", "health"),
		node:            node,
		resolver:        resolver,
		telemetry:       telemetry,
		grpc:            server,
		version:         cfg.Version,
		maxResponseTime: cfg.MaxResponseTime,
		cacheDuration:   cfg.CacheDuration,
	}, nil
}

// GRPCServer returns the gRPC health service kept in sync by Check.
func (c *Checker) GRPCServer() *grpchealth.Server {
	return c.grpc
}

// Check performs a health check. The detailed variant adds the key cache and
// telemetry components and bypasses the cache.
func (c *Checker) Check(ctx context.Context, detailed bool) (*HealthCheck, error) {
	// Return cached result if still valid
	if !detailed && c.shouldUseCached() {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.cachedHealth, nil
	}

	health := &HealthCheck{
		Timestamp:  time.Now(),
		Version:    c.version,
		NodeID:     c.node.NodeID(),
		Components: make(map[string]ComponentHealth),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	checks := []struct {
		name string
		fn   func(context.Context) ComponentHealth
	}{
		{"coordinator", c.checkCoordinator},
		{"peers", c.checkPeers},
	}

	if detailed {
		checks = append(checks,
			struct {
				name string
				fn   func(context.Context) ComponentHealth
			}{"key_cache", c.checkKeyCache},
			struct {
				name string
				fn   func(context.Context) ComponentHealth
			}{"telemetry", c.checkTelemetry},
		)
	}

	for _, check := range checks {
		wg.Add(1)
		go func(name string, fn func(context.Context) ComponentHealth) {
			defer wg.Done()
			result := fn(ctx)
			mu.Lock()
			health.Components[name] = result
			mu.Unlock()
		}(check.name, check.fn)
	}

	wg.Wait()

	health.Status = c.calculateOverallStatus(health.Components)
	c.syncGRPC(health.Status)

	if !detailed {
		c.mu.Lock()
		c.lastCheck = time.Now()
		c.cachedHealth = health
		c.mu.Unlock()
	}

	return health, nil
}

// checkCoordinator reports the task registry and the in-flight slot
func (c *Checker) checkCoordinator(context.Context) ComponentHealth {
	status := c.node.NodeStatus()
	tasks := c.node.Snapshot()

	waiting := 0
	for _, task := range tasks {
		if !task.HasResult {
			waiting++
		}
	}

	metrics := map[string]interface{}{
		"tasks_known":   len(tasks),
		"tasks_waiting": waiting,
		"obtained":      status.Obtained,
	}
	if status.Task != nil {
		metrics["pending_task"] = status.Task.String()
	}

	if status.Obtained && status.Task == nil {
		return ComponentHealth{
			Status:    StatusUnhealthy,
			Message:   "Coordinator reports an obtained slot without a task",
			Timestamp: time.Now(),
			Metrics:   metrics,
		}
	}

	message := "Coordinator is idle"
	if status.Obtained {
		message = fmt.Sprintf("Computing %s", status.Task.String())
	}

	return ComponentHealth{
		Status:    StatusHealthy,
		Message:   message,
		Timestamp: time.Now(),
		Metrics:   metrics,
	}
}

// checkPeers verifies the node lookup resolves
func (c *Checker) checkPeers(ctx context.Context) ComponentHealth {
	lookup := c.node.NodeLookup()
	if lookup == "" {
		return ComponentHealth{
			Status:    StatusHealthy,
			Message:   "Running standalone",
			Timestamp: time.Now(),
		}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.maxResponseTime)
	defer cancel()

	start := time.Now()
	addrs, err := c.resolver.Resolve(timeoutCtx, lookup)
	duration := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:    StatusUnhealthy,
			Message:   fmt.Sprintf("Peer lookup failed: %v", err),
			Timestamp: time.Now(),
		}
	}

	metrics := map[string]interface{}{
		"lookup":           lookup,
		"peer_count":       len(addrs),
		"response_time_ms": duration.Milliseconds(),
	}

	componentStatus := StatusHealthy
	message := fmt.Sprintf("Lookup resolved %d peers", len(addrs))

	switch {
	case len(addrs) == 0:
		componentStatus = StatusDegraded
		message = "Lookup resolved no peers"
	case duration > c.maxResponseTime/2:
		componentStatus = StatusDegraded
		message = "Peer lookup response time is degraded"
	}

	return ComponentHealth{
		Status:    componentStatus,
		Message:   message,
		Timestamp: time.Now(),
		Metrics:   metrics,
	}
}

// checkKeyCache lists the cached proving keys
func (c *Checker) checkKeyCache(context.Context) ComponentHealth {
	keys := c.node.CachedKeys()
	return ComponentHealth{
		Status:    StatusHealthy,
		Message:   fmt.Sprintf("%d proving keys cached", len(keys)),
		Timestamp: time.Now(),
		Metrics: map[string]interface{}{
			"keys": keys,
		},
	}
}

// checkTelemetry reports the trace and metric exporters
func (c *Checker) checkTelemetry(context.Context) ComponentHealth {
	if c.telemetry == nil {
		return ComponentHealth{
			Status:    StatusHealthy,
			Message:   "Telemetry disabled",
			Timestamp: time.Now(),
		}
	}
	if err := c.telemetry.HealthCheck(); err != nil {
		return ComponentHealth{
			Status:    StatusDegraded,
			Message:   fmt.Sprintf("Telemetry not initialized: %v", err),
			Timestamp: time.Now(),
		}
	}
	return ComponentHealth{
		Status:    StatusHealthy,
		Message:   "Telemetry exporting",
		Timestamp: time.Now(),
	}
}

// calculateOverallStatus determines the overall health status based on component statuses
func (c *Checker) calculateOverallStatus(components map[string]ComponentHealth) Status {
	hasUnhealthy := false
	hasDegraded := false

	for _, component := range components {
		switch component.Status {
		case StatusUnhealthy:
			hasUnhealthy = true
		case StatusDegraded:
			hasDegraded = true
		}
	}

	if hasUnhealthy {
		return StatusUnhealthy
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

func (c *Checker) syncGRPC(status Status) {
	serving := healthpb.HealthCheckResponse_SERVING
	if status == StatusUnhealthy {
		serving = healthpb.HealthCheckResponse_NOT_SERVING
	}
	c.grpc.SetServingStatus("", serving)
}

// shouldUseCached determines if cached health check results should be used
func (c *Checker) shouldUseCached() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cachedHealth == nil {
		return false
	}

	return time.Since(c.lastCheck) < c.cacheDuration
}

// RegisterRoutes registers health check endpoints on router
func (c *Checker) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", c.handleHealth).Methods("GET")
	router.HandleFunc("/health/ready", c.handleHealthReady).Methods("GET")
	router.HandleFunc("/health/detailed", c.handleHealthDetailed).Methods("GET")
}

// Handler returns the health routes behind a panic recovery middleware.
func (c *Checker) Handler() http.Handler {
	router := mux.NewRouter()
	c.RegisterRoutes(router)
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{c.logger}),
		handlers.PrintRecoveryStack(true),
	)(router)
}

type recoveryLogger struct {
	logger log.Logger
}

func (l recoveryLogger) Println(args ...interface{}) {
	l.logger.Error("PANIC RECOVERED", "handler", "health", "panic", fmt.Sprint(args...))
}

// handleHealth handles the basic liveness check endpoint
func (c *Checker) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"node_id":   c.node.NodeID(),
		"timestamp": time.Now().Format(time.RFC3339),
	}

	writeJSON(w, http.StatusOK, response)
}

// handleHealthReady handles the readiness check endpoint
func (c *Checker) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	health, err := c.Check(r.Context(), false)
	if err != nil {
		c.logger.Error("Health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	statusCode := http.StatusOK
	if health.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, health)
}

// handleHealthDetailed handles the detailed health check endpoint
func (c *Checker) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	health, err := c.Check(r.Context(), true)
	if err != nil {
		c.logger.Error("Detailed health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	statusCode := http.StatusOK
	if health.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, health)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
