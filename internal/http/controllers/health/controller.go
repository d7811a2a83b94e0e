// Package health contiene el health check del servicio.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	cp "github.com/dropDatabas3/authgate/internal/controlplane"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
)

const pingTimeout = 2 * time.Second

// Controller maneja GET /healthz.
type Controller struct {
	cp cp.ConfigProvider
}

func NewController(provider cp.ConfigProvider) *Controller {
	return &Controller{cp: provider}
}

// HealthResponse es la respuesta JSON del health check.
type HealthResponse struct {
	Status       string `json:"status"`
	ControlPlane string `json:"control_plane"`
}

// Handle responde 200 con el estado agregado. Un control plane caído degrada
// a "degraded" pero no tumba el health: el servicio sigue sirviendo cache.
func (c *Controller) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", ControlPlane: "ok"}
	status := http.StatusOK
	if err := c.cp.Ping(ctx); err != nil {
		logger.From(r.Context()).Warn("control plane ping falló", logger.Err(err))
		resp.Status = "degraded"
		resp.ControlPlane = "unavailable"
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
