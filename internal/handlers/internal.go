package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marketsquare/api/internal/cart"
	"github.com/marketsquare/api/internal/domain"
	"github.com/marketsquare/api/internal/platform/httpx"
	"github.com/marketsquare/api/internal/services"
)

// InternalHandlers serves service-to-service maintenance endpoints. Callers
// are authenticated by the OIDC middleware configured on the route group.
type InternalHandlers struct {
	registry *cart.Registry
	system   services.SystemService
}

// NewInternalHandlers constructs the internal maintenance handlers.
func NewInternalHandlers(registry *cart.Registry, system services.SystemService) *InternalHandlers {
	return &InternalHandlers{
		registry: registry,
		system:   system,
	}
}

// Routes wires the internal endpoints onto the provided router.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/carts/prune", h.pruneCarts)
	r.Get("/status", h.status)
}

type pruneCartsPayload struct {
	Pruned    int `json:"pruned"`
	Remaining int `json:"remaining"`
}

type internalStatusPayload struct {
	Status string                          `json:"status"`
	Checks map[string]internalCheckPayload `json:"checks,omitempty"`
}

type internalCheckPayload struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

func (h *InternalHandlers) pruneCarts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.registry == nil {
		httpx.WriteError(ctx, w, httpx.NewError("carts_unavailable", "cart registry is unavailable", http.StatusServiceUnavailable))
		return
	}
	pruned := h.registry.PruneExpired()
	writeJSONResponse(w, http.StatusOK, pruneCartsPayload{Pruned: pruned, Remaining: h.registry.Len()})
}

func (h *InternalHandlers) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.system == nil {
		httpx.WriteError(ctx, w, httpx.NewError("system_unavailable", "system service is unavailable", http.StatusServiceUnavailable))
		return
	}
	report, err := h.system.HealthReport(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if report.Status != domain.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}

	payload := internalStatusPayload{
		Status: string(report.Status),
		Checks: make(map[string]internalCheckPayload, len(report.Checks)),
	}
	for name, check := range report.Checks {
		payload.Checks[name] = internalCheckPayload{
			Status:    string(check.Status),
			Detail:    check.Detail,
			Error:     check.Error,
			LatencyMS: check.Latency.Milliseconds(),
		}
	}
	writeJSONResponse(w, status, payload)
}
