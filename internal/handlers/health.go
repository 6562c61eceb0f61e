package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	domain "github.com/lylaw27/glaze-store/internal/domain"
	"github.com/lylaw27/glaze-store/internal/platform/httpx"
	"github.com/lylaw27/glaze-store/internal/platform/requestctx"
	"github.com/lylaw27/glaze-store/internal/services"
)

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	system  services.SystemService
	started time.Time
	clock   func() time.Time
}

// NewHealthHandlers constructs probe handlers. A nil system service reports ready unconditionally.
func NewHealthHandlers(system services.SystemService) *HealthHandlers {
	return &HealthHandlers{system: system, started: time.Now(), clock: time.Now}
}

type healthCheckPayload struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
}

type readinessPayload struct {
	Status      string                        `json:"status"`
	Checks      map[string]healthCheckPayload `json:"checks,omitempty"`
	GeneratedAt string                        `json:"generatedAt"`
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    now.Sub(h.started).Round(time.Second).String(),
		"timestamp": now.UTC().Format(time.RFC3339),
	})
}

// Readyz probes dependencies and answers 503 when any check fails.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.system == nil {
		writeJSONResponse(w, http.StatusOK, readinessPayload{
			Status:      string(domain.HealthStatusOK),
			GeneratedAt: h.clock().UTC().Format(time.RFC3339),
		})
		return
	}

	report, err := h.system.HealthReport(ctx)
	if err != nil {
		requestctx.Logger(ctx).Error("readiness check failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("not_ready", "readiness check failed", http.StatusServiceUnavailable))
		return
	}

	payload := readinessPayload{
		Status:      string(report.Status),
		Checks:      make(map[string]healthCheckPayload, len(report.Checks)),
		GeneratedAt: report.GeneratedAt.UTC().Format(time.RFC3339),
	}
	for name, check := range report.Checks {
		payload.Checks[name] = healthCheckPayload{
			Status:    string(check.Status),
			Detail:    check.Detail,
			Error:     check.Error,
			LatencyMS: check.Latency.Milliseconds(),
		}
	}
	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, payload)
}
