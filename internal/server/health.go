package server

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the health of an individual component
type ComponentStatus string

const (
	ComponentStatusUp       ComponentStatus = "up"
	ComponentStatusDown     ComponentStatus = "down"
	ComponentStatusDegraded ComponentStatus = "degraded"
)

// Health is the body of GET /health.
type Health struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Commit     string                     `json:"commit,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents the health of a single system component
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs float64         `json:"latency_ms,omitempty"`
	Details   any             `json:"details,omitempty"`
}

// breakerReporter is implemented by object stores guarded by a CircuitBreaker.
type breakerReporter interface {
	Breaker() *CircuitBreaker
}

// HandleHealth reports every component; 503 when any of them is down.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	health := s.checkHealth(r.Context())

	statusCode := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, health)
}

// HandleReady answers load balancer readiness probes: the catalog and the
// bucket must both answer.
func (s *Server) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.videos.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "message": "catalog unavailable"})
		return
	}
	if err := s.objects.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "message": "object storage unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// HandleLive is the liveness probe: OK while the process can serve.
func (s *Server) HandleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) checkHealth(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health := Health{
		Timestamp: time.Now(),
		Version:   s.build.Version,
		Commit:    s.build.Commit,
		Components: map[string]ComponentHealth{
			"catalog":        s.checkCatalogHealth(ctx),
			"object_storage": s.checkObjectStoreHealth(ctx),
			"news":           s.checkNewsHealth(),
		},
	}
	health.Status = determineOverallHealth(health.Components)
	return health
}

func (s *Server) checkCatalogHealth(ctx context.Context) ComponentHealth {
	start := time.Now()
	if err := s.videos.Ping(ctx); err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: "catalog ping failed: " + err.Error(),
		}
	}
	latency := time.Since(start).Milliseconds()

	status, message := ComponentStatusUp, "catalog healthy"
	if latency > 1000 {
		status, message = ComponentStatusDegraded, "catalog latency high"
	}
	return ComponentHealth{Status: status, Message: message, LatencyMs: float64(latency)}
}

func (s *Server) checkObjectStoreHealth(ctx context.Context) ComponentHealth {
	var (
		details     any
		breakerOpen bool
	)
	if br, ok := s.objects.(breakerReporter); ok {
		stats := br.Breaker().GetStats()
		details = stats
		breakerOpen = stats.State != StateClosed.String()
	}

	start := time.Now()
	if err := s.objects.Ping(ctx); err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: "object storage check failed: " + err.Error(),
			Details: details,
		}
	}
	latency := time.Since(start).Milliseconds()

	status, message := ComponentStatusUp, "object storage healthy"
	switch {
	case latency > 2000:
		status, message = ComponentStatusDegraded, "object storage latency high"
	case breakerOpen:
		status, message = ComponentStatusDegraded, "object storage circuit breaker not closed"
	}
	return ComponentHealth{Status: status, Message: message, LatencyMs: float64(latency), Details: details}
}

func (s *Server) checkNewsHealth() ComponentHealth {
	records, err := s.news.ListAll()
	if err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: "news file unreadable: " + err.Error(),
		}
	}
	return ComponentHealth{
		Status:  ComponentStatusUp,
		Message: "news readable",
		Details: map[string]int{"records": len(records)},
	}
}

// determineOverallHealth: any component down is unhealthy, any degraded is
// degraded.
func determineOverallHealth(components map[string]ComponentHealth) HealthStatus {
	var downCount, degradedCount int
	for _, component := range components {
		switch component.Status {
		case ComponentStatusDown:
			downCount++
		case ComponentStatusDegraded:
			degradedCount++
		}
	}

	if downCount > 0 {
		return HealthStatusUnhealthy
	}
	if degradedCount > 0 {
		return HealthStatusDegraded
	}
	return HealthStatusHealthy
}
