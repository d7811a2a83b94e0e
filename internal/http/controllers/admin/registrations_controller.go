// Package admin expone el CRUD de client registrations del control plane.
package admin

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	cp "github.com/dropDatabas3/authgate/internal/controlplane"
	httperrors "github.com/dropDatabas3/authgate/internal/http/errors"
	"github.com/dropDatabas3/authgate/internal/observability/logger"
	"github.com/dropDatabas3/authgate/internal/util"
)

const maxBodyBytes = 64 << 10

// Deps agrupa las dependencias del controller.
type Deps struct {
	CP cp.ConfigProvider
	// OnChange se invoca tras cada upsert/delete exitoso; el wiring lo usa
	// para invalidar la cache de registrations en caliente.
	OnChange func(tenantSlug, providerID string)
}

// RegistrationsController maneja /v1/admin/tenants/{tenant}/registrations.
type RegistrationsController struct {
	cp       cp.ConfigProvider
	onChange func(tenantSlug, providerID string)
}

func NewRegistrationsController(d Deps) *RegistrationsController {
	onChange := d.OnChange
	if onChange == nil {
		onChange = func(string, string) {}
	}
	return &RegistrationsController{cp: d.CP, onChange: onChange}
}

// RegistrationView es la vista externa de una registration: el secret nunca
// sale, solo el hecho de que existe.
type RegistrationView struct {
	ProviderID          string            `json:"providerId"`
	ClientID            string            `json:"clientId"`
	SecretSet           bool              `json:"secretSet"`
	AuthorizationURI    string            `json:"authorizationUri"`
	TokenURI            string            `json:"tokenUri,omitempty"`
	Scopes              []string          `json:"scopes,omitempty"`
	RedirectURITemplate string            `json:"redirectUriTemplate"`
	UsePKCE             bool              `json:"usePkce"`
	AdditionalParams    map[string]string `json:"additionalParams,omitempty"`
}

func toView(reg *cp.Registration) RegistrationView {
	return RegistrationView{
		ProviderID:          reg.ProviderID,
		ClientID:            reg.ClientID,
		SecretSet:           reg.SecretEnc != "",
		AuthorizationURI:    reg.AuthorizationURI,
		TokenURI:            reg.TokenURI,
		Scopes:              reg.Scopes,
		RedirectURITemplate: reg.RedirectURITemplate,
		UsePKCE:             reg.UsePKCE,
		AdditionalParams:    reg.AdditionalParams,
	}
}

// List maneja GET /v1/admin/tenants/{tenant}/registrations.
func (c *RegistrationsController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := chi.URLParam(r, "tenant")

	regs, err := c.cp.ListRegistrations(ctx, tenant)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	out := make([]RegistrationView, 0, len(regs))
	for i := range regs {
		out = append(out, toView(&regs[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"registrations": out})
}

// Get maneja GET /v1/admin/tenants/{tenant}/registrations/{provider}.
func (c *RegistrationsController) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := chi.URLParam(r, "tenant")
	provider := chi.URLParam(r, "provider")

	reg, err := c.cp.GetRegistration(ctx, tenant, provider)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toView(reg))
}

// Upsert maneja PUT /v1/admin/tenants/{tenant}/registrations/{provider}.
// El provider del path manda: un providerId distinto en el body es un 400.
func (c *RegistrationsController) Upsert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := chi.URLParam(r, "tenant")
	provider := chi.URLParam(r, "provider")
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("Registrations.Upsert"))

	var in cp.RegistrationInput
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("JSON inválido"))
		return
	}
	if in.ProviderID == "" {
		in.ProviderID = provider
	}
	if in.ProviderID != provider {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("providerId no coincide con el path"))
		return
	}

	reg, err := c.cp.UpsertRegistration(ctx, tenant, in)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	c.onChange(tenant, provider)
	log.Info("registration actualizada",
		logger.TenantID(tenant),
		logger.Provider(provider),
		logger.ClientID(util.Mask(reg.ClientID)),
	)
	writeJSON(w, http.StatusOK, toView(reg))
}

// Delete maneja DELETE /v1/admin/tenants/{tenant}/registrations/{provider}.
func (c *RegistrationsController) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := chi.URLParam(r, "tenant")
	provider := chi.URLParam(r, "provider")

	if err := c.cp.DeleteRegistration(ctx, tenant, provider); err != nil {
		writeStoreError(w, r, err)
		return
	}

	c.onChange(tenant, provider)
	logger.From(ctx).Info("registration eliminada",
		logger.TenantID(tenant), logger.Provider(provider))
	w.WriteHeader(http.StatusNoContent)
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cp.ErrTenantNotFound):
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("tenant desconocido"))
	case errors.Is(err, cp.ErrRegistrationNotFound):
		httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("registration desconocida"))
	case errors.Is(err, cp.ErrBadInput):
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("payload inválido"))
	case errors.Is(err, cp.ErrStoreUnavailable):
		logger.From(r.Context()).Warn("control plane no disponible", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrConfigUnavailable)
	default:
		logger.From(r.Context()).Error("operación de control plane falló", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
