package http

import (
	"context"
	"net/http"
	"time"

	"github.com/davicafu/catalogsync/internal/shared/infra/health"
	"github.com/gin-gonic/gin"
)

type HealthReporter interface {
	Snapshot() health.Snapshot
}

type BacklogCounter interface {
	CountPending(ctx context.Context) (int, error)
}

// HealthHandler expone el estado de los componentes de fondo del proceso.
type HealthHandler struct {
	components []HealthReporter
	backlog    BacklogCounter
	state      func() string
}

// NewHealthHandler: backlog y state pueden ser nil si el proceso no ejecuta esos componentes.
func NewHealthHandler(backlog BacklogCounter, state func() string, components ...HealthReporter) *HealthHandler {
	return &HealthHandler{components: components, backlog: backlog, state: state}
}

type healthResponse struct {
	Status          string            `json:"status"`
	Components      []health.Snapshot `json:"components"`
	ReconcilerState string            `json:"reconcilerState,omitempty"`
	OutboxBacklog   *int              `json:"outboxBacklog,omitempty"`
	CheckedAt       time.Time         `json:"checkedAt"`
}

// Health endpoint GET /health. Devuelve 503 si algún componente no está sano.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := healthResponse{Status: "ok", Components: []health.Snapshot{}, CheckedAt: time.Now().UTC()}

	for _, comp := range h.components {
		snap := comp.Snapshot()
		if !snap.Healthy {
			resp.Status = "degraded"
		}
		resp.Components = append(resp.Components, snap)
	}
	if h.state != nil {
		resp.ReconcilerState = h.state()
	}
	if h.backlog != nil {
		if n, err := h.backlog.CountPending(c.Request.Context()); err == nil {
			resp.OutboxBacklog = &n
		} else {
			resp.Status = "degraded"
		}
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}
