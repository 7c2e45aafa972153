package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/cache"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/config"
)

const (
	// HealthCheckTimeout is the default timeout for health check operations.
	HealthCheckTimeout = 5 * time.Second
	// slowCheckThreshold marks a reachable but slow dependency as degraded.
	slowCheckThreshold = time.Second
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	// StatusHealthy indicates the component is healthy.
	StatusHealthy HealthStatus = "healthy"
	// StatusUnhealthy indicates the component is unhealthy.
	StatusUnhealthy HealthStatus = "unhealthy"
	// StatusDegraded indicates the component has degraded performance.
	StatusDegraded HealthStatus = "degraded"
)

// HealthResponse represents the overall health check response.
type HealthResponse struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
	Details    map[string]interface{}     `json:"details,omitempty"`
}

// ComponentHealth represents the health of an individual component.
type ComponentHealth struct {
	Status       HealthStatus `json:"status"`
	Message      string       `json:"message,omitempty"`
	LastChecked  time.Time    `json:"last_checked"`
	ResponseTime string       `json:"response_time,omitempty"`
}

// ReadinessResponse represents the readiness check response.
type ReadinessResponse struct {
	Ready      bool                       `json:"ready"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// DatabaseChecker is the role database as seen by the health checks.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
	IsAvailable() bool
}

// HealthObserver records health check outcomes.
type HealthObserver interface {
	ObserveHealthCheck(endpoint, status string)
	SetComponentHealth(component string, healthy bool)
}

// HealthHandler provides health check and monitoring endpoints.
type HealthHandler struct {
	config    *config.Config
	store     cache.Store
	db        DatabaseChecker
	logger    *logrus.Logger
	observer  HealthObserver
	version   string
	startTime time.Time
}

// NewHealthHandler creates a new health check handler. store and db may be nil
// when the response cache or the role database is disabled.
func NewHealthHandler(
	cfg *config.Config,
	store cache.Store,
	db DatabaseChecker,
	logger *logrus.Logger,
	observer HealthObserver,
	version string,
) *HealthHandler {
	return &HealthHandler{
		config:    cfg,
		store:     store,
		db:        db,
		logger:    logger,
		observer:  observer,
		version:   version,
		startTime: time.Now(),
	}
}

// RegisterRoutes registers health check and monitoring endpoints. /metrics
// exposes gatherer in the Prometheus text format.
func (h *HealthHandler) RegisterRoutes(router *mux.Router, gatherer prometheus.Gatherer) {
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/live", h.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", h.Readiness).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}

// Health provides a comprehensive health check including all components.
// The service stays up without the cache or the role database, so those only
// degrade it; missing upstream accounts make it unhealthy.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	components := map[string]ComponentHealth{
		"cache":         h.checkCache(ctx),
		"database":      h.checkDatabase(ctx),
		"configuration": h.checkConfiguration(),
	}

	overallStatus := StatusHealthy
	for _, c := range components {
		if c.Status != StatusHealthy {
			overallStatus = StatusDegraded
		}
	}
	if components["configuration"].Status == StatusUnhealthy {
		overallStatus = StatusUnhealthy
	}

	if h.observer != nil {
		h.observer.ObserveHealthCheck("health", string(overallStatus))
		for component, health := range components {
			h.observer.SetComponentHealth(component, health.Status == StatusHealthy)
		}
	}

	statusCode := http.StatusOK
	if overallStatus == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, h.logger, HealthResponse{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Version:    h.version,
		Uptime:     time.Since(h.startTime).String(),
		Components: components,
		Details: map[string]interface{}{
			"check_duration": time.Since(start).String(),
			"environment":    h.config.Environment.Environment,
		},
	}, statusCode)

	h.logger.WithFields(logrus.Fields{
		"status":   overallStatus,
		"duration": time.Since(start).String(),
	}).Debug("Health check completed")
}

// Liveness provides a simple liveness check that returns 200 if the service is alive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	if h.observer != nil {
		h.observer.ObserveHealthCheck("liveness", string(StatusHealthy))
	}

	writeJSONResponse(w, h.logger, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now(),
		"uptime":    time.Since(h.startTime).String(),
	}, http.StatusOK)
}

// Readiness checks if the service is ready to receive traffic. It requires the
// upstream accounts, and a reachable cache when Redis was explicitly chosen.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	components := map[string]ComponentHealth{
		"cache":         h.checkCache(ctx),
		"configuration": h.checkConfiguration(),
	}

	ready := components["configuration"].Status != StatusUnhealthy
	if h.config.Cache.Backend == config.CacheBackendRedis && components["cache"].Status == StatusUnhealthy {
		ready = false
	}

	statusLabel := "ready"
	statusCode := http.StatusOK
	if !ready {
		statusLabel = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}
	if h.observer != nil {
		h.observer.ObserveHealthCheck("readiness", statusLabel)
	}

	writeJSONResponse(w, h.logger, ReadinessResponse{
		Ready:      ready,
		Timestamp:  time.Now(),
		Components: components,
	}, statusCode)
}

// checkCache checks the response cache backend.
func (h *HealthHandler) checkCache(ctx context.Context) ComponentHealth {
	if h.store == nil {
		return ComponentHealth{
			Status:      StatusHealthy,
			Message:     "Response cache disabled",
			LastChecked: time.Now(),
		}
	}

	checkCtx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	start := time.Now()
	err := h.store.Ping(checkCtx)
	duration := time.Since(start)
	storageType := storageType(h.store)

	if err != nil {
		h.logger.WithError(err).Warn("Cache health check failed")
		return ComponentHealth{
			Status:       StatusUnhealthy,
			Message:      storageType + " connection failed: " + err.Error(),
			LastChecked:  time.Now(),
			ResponseTime: duration.String(),
		}
	}

	status := StatusHealthy
	message := storageType + " is healthy"
	if duration > slowCheckThreshold {
		status = StatusDegraded
		message = storageType + " response time is slow"
	}

	return ComponentHealth{
		Status:       status,
		Message:      message,
		LastChecked:  time.Now(),
		ResponseTime: duration.String(),
	}
}

// checkDatabase checks the role database when one is configured.
func (h *HealthHandler) checkDatabase(ctx context.Context) ComponentHealth {
	if h.db == nil {
		return ComponentHealth{
			Status:      StatusHealthy,
			Message:     "Database not configured (optional)",
			LastChecked: time.Now(),
		}
	}

	checkCtx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	start := time.Now()
	err := h.db.Ping(checkCtx)
	duration := time.Since(start)

	if err != nil || !h.db.IsAvailable() {
		message := "Database marked as unavailable"
		if err != nil {
			h.logger.WithError(err).Debug("Database health check failed")
			message = "Database connection failed: " + err.Error()
		}
		return ComponentHealth{
			Status:       StatusUnhealthy,
			Message:      message + ", using static role assignments",
			LastChecked:  time.Now(),
			ResponseTime: duration.String(),
		}
	}

	return ComponentHealth{
		Status:       StatusHealthy,
		Message:      "Database is healthy",
		LastChecked:  time.Now(),
		ResponseTime: duration.String(),
	}
}

// checkConfiguration reports settings that keep metrics from working.
func (h *HealthHandler) checkConfiguration() ComponentHealth {
	var missing []string
	if !h.config.IsPrintFleetConfigured() {
		missing = append(missing, "print fleet service account")
	}
	if !h.config.IsToolUsageConfigured() {
		missing = append(missing, "tool usage organization credential")
	}

	if len(missing) > 0 {
		return ComponentHealth{
			Status:      StatusUnhealthy,
			Message:     "Missing " + strings.Join(missing, ", "),
			LastChecked: time.Now(),
		}
	}

	message := "Configuration is valid"
	status := StatusHealthy
	if h.config.CAS.Bypass {
		status = StatusDegraded
		message = "SSO bypass is enabled"
	}

	return ComponentHealth{
		Status:      status,
		Message:     message,
		LastChecked: time.Now(),
	}
}

// storageType names the cache backend for health messages.
func storageType(store cache.Store) string {
	switch store.(type) {
	case *cache.RedisStore:
		return "Redis"
	case *cache.MemoryStore:
		return "In-Memory"
	default:
		return "Cache"
	}
}
