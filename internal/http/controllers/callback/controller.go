// Package callback maneja el retorno del provider tras el consentimiento del
// usuario. Valida y consume el state; el intercambio de code por tokens corre
// por cuenta del backend de la aplicación.
package callback

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	httperrors "github.com/dropDatabas3/authgate/internal/http/errors"
	mw "github.com/dropDatabas3/authgate/internal/http/middlewares"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
	"github.com/dropDatabas3/authgate/internal/observability/metrics"
	"github.com/dropDatabas3/authgate/internal/statestore"
)

// Controller consume states pendientes.
type Controller struct {
	states statestore.Store
}

func NewController(states statestore.Store) *Controller {
	return &Controller{states: states}
}

// CallbackResponse es la respuesta JSON de un callback válido. Entrega el
// material necesario para que el backend complete el intercambio de tokens.
type CallbackResponse struct {
	Status       string `json:"status"`
	TenantID     string `json:"tenant_id"`
	ProviderID   string `json:"provider_id"`
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri"`
	CodeVerifier string `json:"code_verifier,omitempty"`
}

// Handle procesa GET /login/oauth2/code/{providerId}.
func (c *Controller) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerID := chi.URLParam(r, "providerId")
	log := logger.From(ctx).With(
		logger.Layer("controller"),
		logger.Op("Callback"),
		logger.Provider(providerID),
	)

	q := r.URL.Query()
	state := q.Get("state")
	if state == "" {
		httperrors.WriteError(w, httperrors.ErrStateInvalid.WithDetail("state faltante"))
		return
	}

	// Consumo one-shot: válido o no, el state queda quemado.
	entry, err := c.states.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, statestore.ErrNotFound) {
			metrics.CallbacksConsumed.WithLabelValues("not_found").Inc()
			log.Warn("state desconocido o ya consumido")
			httperrors.WriteError(w, httperrors.ErrStateInvalid)
			return
		}
		log.Error("consumo de state falló", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithCause(err))
		return
	}

	// El state debe haberse emitido para este mismo provider y tenant.
	if entry.ProviderID != providerID {
		metrics.CallbacksConsumed.WithLabelValues("mismatch").Inc()
		log.Warn("state emitido para otro provider", logger.String("issued_for", entry.ProviderID))
		httperrors.WriteError(w, httperrors.ErrStateInvalid)
		return
	}
	if slug := mw.GetTenant(ctx); slug != "" && slug != entry.TenantID {
		metrics.CallbacksConsumed.WithLabelValues("mismatch").Inc()
		log.Warn("state emitido para otro tenant", logger.TenantID(slug))
		httperrors.WriteError(w, httperrors.ErrStateInvalid)
		return
	}

	// El provider puede retornar un error en lugar de un code
	// (access_denied y compañía, RFC 6749 §4.1.2.1).
	if provErr := q.Get("error"); provErr != "" {
		metrics.CallbacksConsumed.WithLabelValues("ok").Inc()
		log.Warn("el provider rechazó la autorización",
			logger.String("oauth_error", provErr),
			logger.TenantID(entry.TenantID),
		)
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("provider error: "+provErr))
		return
	}

	code := q.Get("code")
	if code == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("code faltante"))
		return
	}

	metrics.CallbacksConsumed.WithLabelValues("ok").Inc()
	log.Info("callback validado", logger.TenantID(entry.TenantID))

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(CallbackResponse{
		Status:       "authorization_complete",
		TenantID:     entry.TenantID,
		ProviderID:   entry.ProviderID,
		Code:         code,
		RedirectURI:  entry.RedirectURI,
		CodeVerifier: entry.CodeVerifier,
	})
}
