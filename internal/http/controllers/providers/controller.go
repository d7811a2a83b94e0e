// Package providers lista los providers de login social disponibles para un
// tenant, sin exponer credenciales.
package providers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	cp "github.com/dropDatabas3/authgate/internal/controlplane"
	httperrors "github.com/dropDatabas3/authgate/internal/http/errors"
	mw "github.com/dropDatabas3/authgate/internal/http/middlewares"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
)

// Controller maneja GET /oauth2/providers.
type Controller struct {
	cp      cp.ConfigProvider
	pattern string
}

// NewController recibe el pattern de inicio de autorización para armar los
// paths de cada provider.
func NewController(provider cp.ConfigProvider, pattern string) *Controller {
	return &Controller{cp: provider, pattern: pattern}
}

// ProviderInfo describe un provider disponible.
type ProviderInfo struct {
	ProviderID string   `json:"provider_id"`
	LoginPath  string   `json:"login_path"`
	Scopes     []string `json:"scopes,omitempty"`
	PKCE       bool     `json:"pkce"`
}

// ProvidersResponse es la respuesta JSON de la lista.
type ProvidersResponse struct {
	Providers []ProviderInfo `json:"providers"`
}

// List maneja GET /oauth2/providers.
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("Providers.List"))

	tenantID := mw.GetTenant(ctx)
	if tenantID == "" {
		httperrors.WriteError(w, httperrors.ErrTenantRequired)
		return
	}

	regs, err := c.cp.ListRegistrations(ctx, tenantID)
	if err != nil {
		switch {
		case errors.Is(err, cp.ErrTenantNotFound):
			httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("tenant desconocido"))
		case errors.Is(err, cp.ErrStoreUnavailable):
			log.Warn("control plane no disponible", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrConfigUnavailable)
		default:
			log.Error("listado de providers falló", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrInternalServerError)
		}
		return
	}

	out := make([]ProviderInfo, 0, len(regs))
	for _, reg := range regs {
		out = append(out, ProviderInfo{
			ProviderID: reg.ProviderID,
			LoginPath:  strings.Replace(c.pattern, "{providerId}", reg.ProviderID, 1),
			Scopes:     reg.Scopes,
			PKCE:       reg.UsePKCE,
		})
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(ProvidersResponse{Providers: out})
}
