package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/DTADMI/velvet-galaxy-sub002/internal/util"
)

// DependencyHealth reports the state of every backing dependency. A nil
// map value means the dependency passed its check.
type DependencyHealth interface {
	HealthCheck(ctx context.Context) map[string]error
}

// The audit pipeline loses decision records when down but never blocks
// throttle checks, so these dependencies degrade the service instead of
// failing it.
var advisoryDependencies = map[string]bool{
	"kafka":      true,
	"clickhouse": true,
}

type HealthHandler struct {
	deps   DependencyHealth
	logger *zap.Logger
}

func NewHealthHandler(deps DependencyHealth, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{deps: deps, logger: logger}
}

type HealthResponse struct {
	Status       string            `json:"status"`
	Service      string            `json:"service"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Check reports healthy, degraded (advisory dependency down), or
// unhealthy with a 503 when a required dependency fails.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	results := h.deps.HealthCheck(r.Context())

	status := "healthy"
	deps := make(map[string]string, len(results))
	for name, err := range results {
		if err == nil {
			deps[name] = "healthy"
			continue
		}
		deps[name] = err.Error()
		if advisoryDependencies[name] {
			if status == "healthy" {
				status = "degraded"
			}
		} else {
			status = "unhealthy"
		}
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	if status != "healthy" {
		h.logger.Warn("Health check reported failing dependencies",
			util.String("status", status),
			util.Any("dependencies", deps),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(HealthResponse{
		Status:       status,
		Service:      "velvet-galaxy-throttle",
		Dependencies: deps,
	}); err != nil {
		h.logger.Error("Failed to encode health response", util.ErrorField(err))
	}
}
